package gdpr

// BasicEnforcement is the purpose enforcer for hosts which trust the consent string alone. It looks for a
// good-faith signal that the user consented and ignores the GVL claims and legitimate interest.
type BasicEnforcement struct {
	cfg purposeConfig
}

// LegalBasis reports whether the purpose consent and the vendor consent the config enforces are present.
// Vendor exceptions pass unless the overrides block them.
func (be *BasicEnforcement) LegalBasis(vendorInfo VendorInfo, bidder string, consent TCString, overrides Overrides) bool {
	enforcePurpose, enforceVendors := applyEnforceOverrides(be.cfg, overrides)

	switch {
	case !enforcePurpose && !enforceVendors:
		return true
	case be.cfg.vendorException(bidder) && !overrides.blockVendorExceptions:
		return true
	}

	purposeConsented := !enforcePurpose || consent.PurposeAllowed(be.cfg.PurposeID)
	vendorConsented := !enforceVendors || consent.VendorConsent(vendorInfo.vendorID)
	return purposeConsented && vendorConsented
}
