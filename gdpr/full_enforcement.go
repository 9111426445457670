package gdpr

const (
	pubRestrictNotAllowed           = 0
	pubRestrictRequireConsent       = 1
	pubRestrictRequireLegitInterest = 2
)

// FullEnforcement determines legal basis for a given purpose using the TCF2 full enforcement algorithm
// FullEnforcement implements the PurposeEnforcer interface
type FullEnforcement struct {
	cfg purposeConfig
}

// LegalBasis determines if legal basis is satisfied for a given purpose and bidder using the TCF2 full
// enforcement algorithm. It considers publisher restrictions, the GVL claims of the vendor and both
// consent and legitimate interest signals.
func (fe *FullEnforcement) LegalBasis(vendorInfo VendorInfo, bidder string, consent TCString, overrides Overrides) bool {
	enforcePurpose, enforceVendors := applyEnforceOverrides(fe.cfg, overrides)
	purposeID := uint8(fe.cfg.PurposeID)

	if consent.CheckPubRestriction(purposeID, pubRestrictNotAllowed, vendorInfo.vendorID) {
		return false
	}
	if !enforcePurpose && !enforceVendors {
		return true
	}
	if fe.cfg.vendorException(bidder) && !overrides.blockVendorExceptions {
		return true
	}

	purposeAllowed := fe.consentEstablished(consent, vendorInfo, enforcePurpose, enforceVendors)
	legitInterest := fe.legitInterestEstablished(consent, vendorInfo, enforcePurpose, enforceVendors)

	if consent.CheckPubRestriction(purposeID, pubRestrictRequireConsent, vendorInfo.vendorID) {
		return purposeAllowed
	}
	if consent.CheckPubRestriction(purposeID, pubRestrictRequireLegitInterest, vendorInfo.vendorID) {
		return legitInterest
	}

	return purposeAllowed || legitInterest
}

// consentEstablished checks if consent has been established for the purpose and vendor. The vendor must
// declare the purpose in the GVL.
func (fe *FullEnforcement) consentEstablished(consent TCString, vi VendorInfo, enforcePurpose bool, enforceVendors bool) bool {
	if vi.vendor == nil {
		return false
	}
	if !vi.vendor.Purpose(fe.cfg.PurposeID) {
		return false
	}
	if enforcePurpose && !consent.PurposeAllowed(fe.cfg.PurposeID) {
		return false
	}
	return !enforceVendors || consent.VendorConsent(vi.vendorID)
}

// legitInterestEstablished checks if legitimate interest has been established for the purpose and vendor
func (fe *FullEnforcement) legitInterestEstablished(consent TCString, vi VendorInfo, enforcePurpose bool, enforceVendors bool) bool {
	if vi.vendor == nil {
		return false
	}
	if !vi.vendor.LegitimateInterest(fe.cfg.PurposeID) {
		return false
	}
	if enforcePurpose && !consent.PurposeLITransparency(fe.cfg.PurposeID) {
		return false
	}
	return !enforceVendors || consent.VendorLegitInterest(vi.vendorID)
}
