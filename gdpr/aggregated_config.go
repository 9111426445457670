package gdpr

import (
	"github.com/prebid/go-gdpr/consentconstants"

	"github.com/prebid/prebid-privacy/config"
)

// TCF2ConfigReader is an interface to access TCF2 configurations
type TCF2ConfigReader interface {
	BasicEnforcementVendor(string) bool
	FeatureOneEnforced() bool
	FeatureOneVendorException(string) bool
	PurposeEnforced(consentconstants.Purpose) bool
	PurposeEnforcementAlgo(consentconstants.Purpose) config.TCF2EnforcementAlgo
	PurposeEnforcingVendors(consentconstants.Purpose) bool
	PurposeVendorExceptions(consentconstants.Purpose) map[string]struct{}
	PurposeEIDExceptions(consentconstants.Purpose) map[string]struct{}
	PurposeOneTreatmentInterpretation() config.PurposeOneTreatmentInterpretation
}

type TCF2ConfigBuilder func(hostConfig config.TCF2, accountConfig config.AccountGDPR) TCF2ConfigReader

type tcf2Config struct {
	HostConfig    config.TCF2
	AccountConfig config.AccountGDPR
}

// NewTCF2Config creates an instance of tcf2Config which implements the TCF2ConfigReader interface
func NewTCF2Config(hostConfig config.TCF2, accountConfig config.AccountGDPR) TCF2ConfigReader {
	return &tcf2Config{
		HostConfig:    hostConfig,
		AccountConfig: accountConfig,
	}
}

// PurposeEnforced checks if enforcement is turned on for a given purpose by first looking at the account
// settings, and if not set there, defaulting to the host configuration.
func (tc *tcf2Config) PurposeEnforced(purpose consentconstants.Purpose) bool {
	if value, exists := tc.AccountConfig.PurposeEnforced(purpose); exists {
		return value
	}
	return tc.HostConfig.PurposeEnforced(purpose)
}

// PurposeEnforcementAlgo returns the basic or full enforcement algorithm for a given purpose, account first.
func (tc *tcf2Config) PurposeEnforcementAlgo(purpose consentconstants.Purpose) config.TCF2EnforcementAlgo {
	if value, exists := tc.AccountConfig.PurposeEnforcementAlgo(purpose); exists {
		return value
	}
	return tc.HostConfig.PurposeEnforcementAlgo(purpose)
}

// PurposeEnforcingVendors checks if enforcing vendors is turned on for a given purpose by first looking at the
// account settings, and if not set there, defaulting to the host configuration. With enforcing vendors enabled,
// the GDPR full enforcement algorithm considers the GVL when determining legal basis; otherwise it's skipped.
func (tc *tcf2Config) PurposeEnforcingVendors(purpose consentconstants.Purpose) bool {
	if value, exists := tc.AccountConfig.PurposeEnforcingVendors(purpose); exists {
		return value
	}
	return tc.HostConfig.PurposeEnforcingVendors(purpose)
}

// PurposeVendorExceptions returns the bidders which bypass the legal basis calculation for a given purpose.
// An account level list replaces the host list entirely.
func (tc *tcf2Config) PurposeVendorExceptions(purpose consentconstants.Purpose) map[string]struct{} {
	if value, exists := tc.AccountConfig.PurposeVendorExceptions(purpose); exists {
		return value
	}
	return tc.HostConfig.PurposeVendorExceptions(purpose)
}

// PurposeEIDExceptions returns the eid sources kept when user ids are removed.
func (tc *tcf2Config) PurposeEIDExceptions(purpose consentconstants.Purpose) map[string]struct{} {
	if value, exists := tc.AccountConfig.PurposeEIDExceptions(purpose); exists {
		return value
	}
	return tc.HostConfig.PurposeEIDExceptions(purpose)
}

// FeatureOneEnforced checks if special feature one is enforced by first looking at the account settings, and if not
// set there, defaulting to the host configuration. If it is enforced, we determine whether geo information
// may be passed through in the bid request.
func (tc *tcf2Config) FeatureOneEnforced() bool {
	if value, exists := tc.AccountConfig.SpecialFeature1Enforced(); exists {
		return value
	}
	return tc.HostConfig.FeatureOneEnforced()
}

// FeatureOneVendorException checks if the specified bidder is considered a vendor exception for special feature one
// by first looking at the account settings, and if not set there, defaulting to the host configuration.
func (tc *tcf2Config) FeatureOneVendorException(bidder string) bool {
	if value, exists := tc.AccountConfig.SpecialFeature1VendorExceptions(); exists {
		_, found := value[bidder]
		return found
	}
	return tc.HostConfig.FeatureOneVendorException(bidder)
}

// PurposeOneTreatmentInterpretation resolves how the purpose one treatment flag of a consent string is read.
func (tc *tcf2Config) PurposeOneTreatmentInterpretation() config.PurposeOneTreatmentInterpretation {
	enabled, exists := tc.AccountConfig.PurposeOneTreatmentEnabled()
	if !exists {
		enabled = tc.HostConfig.PurposeOneTreatmentEnabled()
	}
	if !enabled {
		return config.PurposeOneTreatmentIgnore
	}

	accessAllowed, exists := tc.AccountConfig.PurposeOneTreatmentAccessAllowed()
	if !exists {
		accessAllowed = tc.HostConfig.PurposeOneTreatmentAccessAllowed()
	}
	if accessAllowed {
		return config.PurposeOneTreatmentAccessAllowed
	}
	return config.PurposeOneTreatmentNoAccessAllowed
}

// BasicEnforcementVendor checks if the given bidder is considered a basic enforcement vendor by looking at the account
// settings. If set, the legal basis calculation for the bidder only considers consent to the purpose, not the vendor.
// The idea is that the publisher trusts this vendor to enforce the appropriate rules on their own.
func (tc *tcf2Config) BasicEnforcementVendor(bidder string) bool {
	return tc.AccountConfig.BasicEnforcementVendor(bidder)
}
