package gdpr

import (
	"context"

	"github.com/golang/glog"
	"github.com/prebid/go-gdpr/api"

	"github.com/prebid/prebid-privacy/config"
)

// TCF2Service computes the privacy enforcement actions of vendors from a TCF v2 consent string.
type TCF2Service struct {
	hostConfig             config.TCF2
	catalog                config.BidderInfos
	fetchVendorList        VendorListFetcher
	purposeEnforcerBuilder PurposeEnforcerBuilder
	cfgBuilder             TCF2ConfigBuilder
}

// NewTCF2Service builds the service with the default purpose enforcers.
func NewTCF2Service(hostConfig config.TCF2, catalog config.BidderInfos, fetcher VendorListFetcher) *TCF2Service {
	return &TCF2Service{
		hostConfig:             hostConfig,
		catalog:                catalog,
		fetchVendorList:        fetcher,
		purposeEnforcerBuilder: NewPurposeEnforcer,
		cfgBuilder:             NewTCF2Config,
	}
}

// PermissionsForVendorIDs evaluates vendors by id under the host configuration. The bidder names are
// taken from the catalog and are empty for unknown vendors.
func (s *TCF2Service) PermissionsForVendorIDs(ctx context.Context, vendorIDs []uint16, consent TCString) []VendorPermission {
	permissions := make([]VendorPermission, 0, len(vendorIDs))
	for _, id := range vendorIDs {
		name, _ := s.catalog.NameByVendorID(id)
		permissions = append(permissions, VendorPermission{
			VendorID:   id,
			BidderName: name,
			Action:     RestrictAll(),
		})
	}
	s.evaluate(ctx, permissions, consent, s.cfgBuilder(s.hostConfig, config.AccountGDPR{}))
	return permissions
}

// PermissionsForBidders evaluates bidders under the account configuration merged onto the host one.
// Bidders the resolver cannot map are evaluated with vendor id 0.
func (s *TCF2Service) PermissionsForBidders(ctx context.Context, bidders []string, resolver VendorIDResolver, consent TCString, account config.AccountGDPR) []VendorPermission {
	permissions := make([]VendorPermission, 0, len(bidders))
	for _, bidder := range bidders {
		id, _ := resolver.Resolve(bidder)
		permissions = append(permissions, VendorPermission{
			VendorID:   id,
			BidderName: bidder,
			Action:     RestrictAll(),
		})
	}
	s.evaluate(ctx, permissions, consent, s.cfgBuilder(s.hostConfig, account))
	return permissions
}

func (s *TCF2Service) evaluate(ctx context.Context, permissions []VendorPermission, consent TCString, cfg TCF2ConfigReader) {
	if len(permissions) == 0 || consent == nil {
		return
	}

	vendorList, err := s.fetchVendorList(ctx, getSpecVersion(consent.TCFPolicyVersion()), consent.VendorListVersion())
	downgraded := err != nil
	if downgraded {
		glog.Warningf("Evaluating TCF purposes with basic enforcement: %v", err)
	}

	strong := s.buildEnforcers(cfg, downgraded, false)
	weak := s.buildEnforcers(cfg, downgraded, true)
	purposeOneInterpretation := config.PurposeOneTreatmentIgnore
	if consent.PurposeOneTreatment() {
		purposeOneInterpretation = cfg.PurposeOneTreatmentInterpretation()
	}
	eidExceptions := cfg.PurposeEIDExceptions(purposeSelectAds)

	for i := range permissions {
		permission := &permissions[i]
		vendorInfo := VendorInfo{vendorID: permission.VendorID}
		if !downgraded {
			vendorInfo.vendor = lookupVendor(vendorList, permission.VendorID)
		}

		weakVendor := cfg.BasicEnforcementVendor(permission.BidderName)
		enforcers := strong
		if weakVendor {
			enforcers = weak
		}
		natural := Overrides{blockVendorExceptions: true, enforcePurpose: true, enforceVendors: !weakVendor}

		for j, strategy := range purposeStrategies {
			if strategy.purpose == purposeStoreInfo && purposeOneInterpretation != config.PurposeOneTreatmentIgnore {
				if purposeOneInterpretation == config.PurposeOneTreatmentAccessAllowed {
					strategy.allow(&permission.Action)
					strategy.natural(&permission.Action)
				}
				continue
			}
			if enforcers[j].LegalBasis(vendorInfo, permission.BidderName, consent, Overrides{}) {
				strategy.allow(&permission.Action)
			}
			if enforcers[j].LegalBasis(vendorInfo, permission.BidderName, consent, natural) {
				strategy.natural(&permission.Action)
			}
		}

		if !cfg.FeatureOneEnforced() || cfg.FeatureOneVendorException(permission.BidderName) || consent.SpecialFeatureOptIn(specialFeaturePreciseGeo) {
			allowPreciseGeo(&permission.Action)
		}

		permission.Action.EIDExceptions = eidExceptions
		permission.Action = permission.Action.Clone()
	}
}

// buildEnforcers returns one enforcer per purpose strategy. Weak vendors are evaluated with the basic
// algorithm and without vendor enforcement.
func (s *TCF2Service) buildEnforcers(cfg TCF2ConfigReader, downgraded, weakVendor bool) []PurposeEnforcer {
	enforcers := make([]PurposeEnforcer, len(purposeStrategies))
	for i, strategy := range purposeStrategies {
		pc := purposeConfig{
			PurposeID:          strategy.purpose,
			EnforceAlgo:        cfg.PurposeEnforcementAlgo(strategy.purpose),
			EnforcePurpose:     cfg.PurposeEnforced(strategy.purpose),
			EnforceVendors:     cfg.PurposeEnforcingVendors(strategy.purpose),
			VendorExceptionMap: cfg.PurposeVendorExceptions(strategy.purpose),
		}
		if weakVendor {
			pc.EnforceAlgo = config.TCF2BasicEnforcement
			pc.EnforceVendors = false
		}
		enforcers[i] = s.purposeEnforcerBuilder(pc, downgraded)
	}
	return enforcers
}

func lookupVendor(vendorList api.VendorList, vendorID uint16) gvlVendor {
	if vendorList == nil {
		return nil
	}
	vendor := vendorList.Vendor(vendorID)
	if vendor == nil {
		return nil
	}
	return vendor
}
