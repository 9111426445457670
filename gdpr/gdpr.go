package gdpr

import (
	"github.com/prebid/go-gdpr/consentconstants"
)

// TCString is a decoded TCF v2 consent string. It is satisfied by the go-gdpr tcf2.ConsentMetadata type.
type TCString interface {
	Version() uint8
	VendorListVersion() uint16
	TCFPolicyVersion() uint8
	PurposeAllowed(id consentconstants.Purpose) bool
	PurposeLITransparency(id consentconstants.Purpose) bool
	PurposeOneTreatment() bool
	SpecialFeatureOptIn(id uint16) bool
	VendorConsent(id uint16) bool
	VendorLegitInterest(id uint16) bool
	CheckPubRestriction(purposeID uint8, restrictType uint8, vendor uint16) bool
}

// An ErrorMalformedConsent is reported when the consent string argument was the reason for the failure.
type ErrorMalformedConsent struct {
	Consent string
	Cause   error
}

func (e *ErrorMalformedConsent) Error() string {
	return "malformed consent string " + e.Consent + ": " + e.Cause.Error()
}

func (e *ErrorMalformedConsent) Unwrap() error {
	return e.Cause
}
