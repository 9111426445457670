package gdpr

import (
	"github.com/prebid/go-gdpr/consentconstants"

	"github.com/prebid/prebid-privacy/config"
)

// PurposeEnforcer determines if legal basis is satisfied for a given purpose and vendor.
type PurposeEnforcer interface {
	LegalBasis(vendorInfo VendorInfo, bidder string, consent TCString, overrides Overrides) bool
}

// PurposeEnforcerBuilder builds the enforcer for a purpose. Downgraded enforcers are used when the GVL
// could not be fetched.
type PurposeEnforcerBuilder func(cfg purposeConfig, downgraded bool) PurposeEnforcer

// VendorInfo carries the vendor id and its GVL entry. The entry is empty when the vendor is not
// listed or the GVL is unavailable.
type VendorInfo struct {
	vendorID uint16
	vendor   gvlVendor
}

// gvlVendor is the part of a GVL vendor entry used to calculate legal basis.
type gvlVendor interface {
	Purpose(purposeID consentconstants.Purpose) bool
	LegitimateInterest(purposeID consentconstants.Purpose) bool
}

type emptyVendor struct{}

func (emptyVendor) Purpose(consentconstants.Purpose) bool            { return false }
func (emptyVendor) LegitimateInterest(consentconstants.Purpose) bool { return false }

// Overrides force stricter settings than configured. They are used to calculate whether a purpose is
// allowed on its own merits, without vendor exceptions.
type Overrides struct {
	blockVendorExceptions bool
	enforcePurpose        bool
	enforceVendors        bool
}

type purposeConfig struct {
	PurposeID          consentconstants.Purpose
	EnforceAlgo        config.TCF2EnforcementAlgo
	EnforcePurpose     bool
	EnforceVendors     bool
	VendorExceptionMap map[string]struct{}
}

func (pc *purposeConfig) vendorException(bidder string) bool {
	if pc.VendorExceptionMap == nil {
		return false
	}
	_, found := pc.VendorExceptionMap[bidder]
	return found
}

// NewPurposeEnforcer is called from the TCF2Service and injected into it as a builder to improve testability
func NewPurposeEnforcer(cfg purposeConfig, downgraded bool) PurposeEnforcer {
	if cfg.EnforceAlgo == config.TCF2BasicEnforcement || downgraded {
		return &BasicEnforcement{cfg: cfg}
	}
	return &FullEnforcement{cfg: cfg}
}

// applyEnforceOverrides returns the enforce purpose and enforce vendor configuration values unless
// those values have been overridden, in which case they return true
func applyEnforceOverrides(cfg purposeConfig, overrides Overrides) (enforcePurpose, enforceVendors bool) {
	enforcePurpose = cfg.EnforcePurpose || overrides.enforcePurpose
	enforceVendors = cfg.EnforceVendors || overrides.enforceVendors
	return
}
