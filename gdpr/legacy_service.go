package gdpr

import (
	"context"

	"github.com/golang/glog"
	"github.com/prebid/go-gdpr/api"
	"github.com/prebid/go-gdpr/consentconstants"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/geolocation"
	"github.com/prebid/prebid-privacy/metrics"
)

// tcf1PurposeCount is the number of purposes defined by TCF v1.
const tcf1PurposeCount = 5

// GdprResponse holds the verdict per vendor id of the legacy TCF v1 evaluation.
type GdprResponse struct {
	VendorsToGdpr map[uint16]bool
	Country       string
}

// GdprService evaluates TCF v1 consent strings. It has no basic enforcement fallback: a vendor list
// which cannot be fetched denies every vendor.
type GdprService struct {
	cfg             config.GDPR
	geo             geolocation.GeoLocation
	fetchVendorList VendorListFetcher
	metricsEngine   metrics.MetricsEngine
}

func NewGdprService(cfg config.GDPR, geo geolocation.GeoLocation, fetcher VendorListFetcher, metricsEngine metrics.MetricsEngine) *GdprService {
	return &GdprService{
		cfg:             cfg,
		geo:             geo,
		fetchVendorList: fetcher,
		metricsEngine:   metricsEngine,
	}
}

// ResultByVendor returns whether each vendor may process personal data. An invalid gdpr signal is the
// only error.
func (s *GdprService) ResultByVendor(ctx context.Context, vendorIDs []uint16, gdprSignal, consent, ipAddress string) (GdprResponse, error) {
	return s.resultByVendor(ctx, vendorIDs, gdprSignal, consent, ipAddress, legacyVendorAllowed)
}

// ResultByVendorForPurposes returns whether each vendor may process personal data for the given purposes.
// The consent must allow every given purpose, and a vendor passes only when it is allowed and declares
// all of them.
func (s *GdprService) ResultByVendorForPurposes(ctx context.Context, purposes []consentconstants.Purpose, vendorIDs []uint16, gdprSignal, consent, ipAddress string) (GdprResponse, error) {
	verdict := func(vendorList api.VendorList, vendorConsents api.VendorConsents, vendorID uint16) bool {
		return legacyVendorAllowed(vendorList, vendorConsents, vendorID) &&
			legacyVendorHasPurposes(vendorList, vendorConsents, vendorID, purposes)
	}
	return s.resultByVendor(ctx, vendorIDs, gdprSignal, consent, ipAddress, verdict)
}

type legacyVerdict func(vendorList api.VendorList, consent api.VendorConsents, vendorID uint16) bool

func (s *GdprService) resultByVendor(ctx context.Context, vendorIDs []uint16, gdprSignal, consent, ipAddress string, verdict legacyVerdict) (GdprResponse, error) {
	signal, err := SignalParse(gdprSignal)
	if err != nil {
		return GdprResponse{}, err
	}

	var country string
	if signal == SignalAmbiguous {
		signal, country = s.signalFromGeo(ctx, ipAddress)
	}

	if signal != SignalYes {
		return GdprResponse{VendorsToGdpr: vendorsWithVerdict(vendorIDs, true), Country: country}, nil
	}

	if consent == "" {
		return GdprResponse{VendorsToGdpr: vendorsWithVerdict(vendorIDs, false), Country: country}, nil
	}
	vendorConsents, err := parseLegacyConsent(consent)
	if err != nil {
		glog.V(2).Infof("Denying all vendors: %v", err)
		return GdprResponse{VendorsToGdpr: vendorsWithVerdict(vendorIDs, false), Country: country}, nil
	}

	vendorList, err := s.fetchVendorList(ctx, 1, vendorConsents.VendorListVersion())
	if err != nil {
		return GdprResponse{VendorsToGdpr: vendorsWithVerdict(vendorIDs, false), Country: country}, nil
	}

	verdicts := make(map[uint16]bool, len(vendorIDs))
	for _, id := range vendorIDs {
		verdicts[id] = verdict(vendorList, vendorConsents, id)
	}
	return GdprResponse{VendorsToGdpr: verdicts, Country: country}, nil
}

func (s *GdprService) signalFromGeo(ctx context.Context, ipAddress string) (Signal, string) {
	geoInfo, err := geolocation.LookupWithContext(ctx, s.geo, ipAddress)
	s.metricsEngine.RecordGeoLookup(err == nil)
	if err != nil || geoInfo == nil {
		return SignalNormalize(SignalAmbiguous, s.cfg.DefaultValue), ""
	}
	signal := SignalFromCountry(geoInfo.Country, s.cfg.IsInEEA)
	return SignalNormalize(signal, s.cfg.DefaultValue), geoInfo.Country
}

// legacyVendorAllowed requires the vendor to be listed, to have its consent bit set and to have consent
// for every purpose it declares.
func legacyVendorAllowed(vendorList api.VendorList, consent api.VendorConsents, vendorID uint16) bool {
	vendor := vendorList.Vendor(vendorID)
	if vendor == nil || !consent.VendorConsent(vendorID) {
		return false
	}
	for purpose := consentconstants.Purpose(1); purpose <= tcf1PurposeCount; purpose++ {
		if vendor.Purpose(purpose) && !consent.PurposeAllowed(purpose) {
			return false
		}
	}
	return true
}

// legacyVendorHasPurposes requires the consent to allow every given purpose and the vendor to declare it.
func legacyVendorHasPurposes(vendorList api.VendorList, consent api.VendorConsents, vendorID uint16, purposes []consentconstants.Purpose) bool {
	vendor := vendorList.Vendor(vendorID)
	if vendor == nil {
		return false
	}
	for _, purpose := range purposes {
		if !consent.PurposeAllowed(purpose) || !vendor.Purpose(purpose) {
			return false
		}
	}
	return true
}

func vendorsWithVerdict(vendorIDs []uint16, allowed bool) map[uint16]bool {
	verdicts := make(map[uint16]bool, len(vendorIDs))
	for _, id := range vendorIDs {
		verdicts[id] = allowed
	}
	return verdicts
}
