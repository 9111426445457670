package gdpr

import (
	"errors"
	"fmt"

	"github.com/prebid/go-gdpr/api"
	"github.com/prebid/go-gdpr/vendorconsent"
	tcf2 "github.com/prebid/go-gdpr/vendorconsent/tcf2"
)

// errDeprecatedVersion flags a well formed TCF v1 consent string.
var errDeprecatedVersion = errors.New("invalid encoding format version: 1")

// maxTCFPolicyVersion is the newest TCF policy the enforcement understands.
const maxTCFPolicyVersion = 4

// parsedConsent is a TCF2 consent string with the versions needed to pick its vendor list.
type parsedConsent struct {
	encodingVersion uint8
	specVersion     uint16
	listVersion     uint16
	consentMeta     TCString
}

// parseConsent decodes a TCF2 consent string. Every failure is an ErrorMalformedConsent and a TCF v1
// string wraps errDeprecatedVersion.
func parseConsent(consent string) (*parsedConsent, error) {
	vc, err := vendorconsent.ParseString(consent)
	if err == nil {
		err = validateVersions(vc)
	}
	if err != nil {
		return nil, &ErrorMalformedConsent{Consent: consent, Cause: err}
	}

	metadata, ok := vc.(tcf2.ConsentMetadata)
	if !ok {
		return nil, &ErrorMalformedConsent{Consent: consent, Cause: errors.New("unable to access TCF2 parsed consent")}
	}

	return &parsedConsent{
		encodingVersion: vc.Version(),
		specVersion:     getSpecVersion(vc.TCFPolicyVersion()),
		listVersion:     vc.VendorListVersion(),
		consentMeta:     metadata,
	}, nil
}

// parseLegacyConsent decodes a TCF v1 consent string for the legacy service.
func parseLegacyConsent(consent string) (api.VendorConsents, error) {
	vc, err := vendorconsent.ParseString(consent)
	if err == nil && vc.Version() != 1 {
		err = fmt.Errorf("invalid encoding format version: %d", vc.Version())
	}
	if err != nil {
		return nil, &ErrorMalformedConsent{Consent: consent, Cause: err}
	}
	return vc, nil
}

// validateVersions accepts encoding version 2 with a known TCF policy version.
func validateVersions(vc api.VendorConsents) error {
	switch version := vc.Version(); {
	case version == 1:
		return errDeprecatedVersion
	case version != 2:
		return fmt.Errorf("invalid encoding format version: %d", version)
	case vc.TCFPolicyVersion() > maxTCFPolicyVersion:
		return fmt.Errorf("invalid TCF policy version: %d", vc.TCFPolicyVersion())
	}
	return nil
}

// getSpecVersion maps the TCF policy version to the GVL specification its vendor list follows. Policy 4
// and later use GVL v3.
func getSpecVersion(policyVersion uint8) uint16 {
	if policyVersion >= 4 {
		return 3
	}
	return 2
}
