package gdpr

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/geolocation"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/util/iputil"
)

// TCFDefinerService resolves whether GDPR applies to a request and dispatches consent evaluation.
// Requests outside of GDPR scope are allowed everything without evaluating the consent.
type TCFDefinerService struct {
	cfg           config.GDPR
	tcf2Service   *TCF2Service
	geo           geolocation.GeoLocation
	resolver      VendorIDResolver
	metricsEngine metrics.MetricsEngine
}

func NewTCFDefinerService(cfg config.GDPR, tcf2Service *TCF2Service, geo geolocation.GeoLocation, resolver VendorIDResolver, metricsEngine metrics.MetricsEngine) *TCFDefinerService {
	if geo == nil {
		geo = geolocation.NilGeoLocation{}
	}
	return &TCFDefinerService{
		cfg:           cfg,
		tcf2Service:   tcf2Service,
		geo:           geo,
		resolver:      resolver,
		metricsEngine: metricsEngine,
	}
}

// ResolveTCFContext determines GDPR scope in this order: a valid consent string when the host treats it
// as a scope signal, the request gdpr flag, the supplied country and finally a geo lookup of the masked
// ip address. Consent problems are reported as warnings on the returned context.
func (s *TCFDefinerService) ResolveTCFContext(ctx context.Context, p privacy.Privacy, country, ipAddress string, account config.AccountGDPR, channel config.ChannelType, geoHint *geolocation.GeoInfo) TCFContext {
	if !s.gdprEnabled(account, channel) {
		return NotInScope()
	}

	tcfContext, source := s.parseConsent(p.Consent)
	tcfContext.IPAddress = ipAddress

	signal, err := SignalParse(p.GDPR)
	if err != nil {
		tcfContext = tcfContext.WithWarning(&errortypes.Warning{
			Message:     err.Error(),
			WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
		})
	}

	switch {
	case s.cfg.ConsentStringMeansInScope && tcfContext.ConsentValid:
		tcfContext.InGDPRScope = true
	case signal != SignalAmbiguous:
		tcfContext.InGDPRScope = signal == SignalYes
	case country != "":
		inEEA := s.cfg.IsInEEA(country)
		tcfContext.InGDPRScope = inEEA
		tcfContext.InEEA = &inEEA
		tcfContext.GeoInfo = &geolocation.GeoInfo{Country: country}
	default:
		tcfContext = s.resolveByGeo(ctx, tcfContext, geoHint)
	}

	if tcfContext.InGDPRScope {
		version := metrics.TCFVersionToValue(tcfContext.ConsentVersion())
		s.metricsEngine.RecordTCFRequest(version, source)
		s.metricsEngine.RecordTCFGeo(version, tcfContext.InEEA)
	}
	return tcfContext
}

func (s *TCFDefinerService) gdprEnabled(account config.AccountGDPR, channel config.ChannelType) bool {
	if enabled := account.EnabledForChannelType(channel); enabled != nil {
		return *enabled
	}
	return s.cfg.Enabled
}

// parseConsent decodes the consent string. Anything but a valid TCF v2 string yields a context without
// a consent.
func (s *TCFDefinerService) parseConsent(consent string) (TCFContext, metrics.TCFSource) {
	tcfContext := TCFContext{ConsentString: consent}
	if consent == "" {
		return tcfContext, metrics.TCFSourceMissing
	}

	parsed, err := parseConsent(consent)
	if err != nil {
		cause := err
		var malformed *ErrorMalformedConsent
		if errors.As(err, &malformed) {
			cause = malformed.Cause
		}
		warning := &errortypes.Warning{
			Message:     fmt.Sprintf("Parsing consent string:\"%s\" failed. %v", consent, cause),
			WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
		}
		if errors.Is(err, errDeprecatedVersion) {
			warning = &errortypes.Warning{
				Message:     fmt.Sprintf("Parsing consent string:\"%s\" failed. TCF version 1 is deprecated and treated as corrupted TCF version 2", consent),
				WarningCode: errortypes.DeprecatedConsentWarningCode,
			}
		}
		return tcfContext.WithWarning(warning), metrics.TCFSourceInvalid
	}

	tcfContext.Consent = parsed.consentMeta
	tcfContext.ConsentValid = true
	return tcfContext, metrics.TCFSourceValid
}

func (s *TCFDefinerService) resolveByGeo(ctx context.Context, tcfContext TCFContext, geoHint *geolocation.GeoInfo) TCFContext {
	maskedIP := iputil.MaskIP(tcfContext.IPAddress)
	tcfContext.IPAddress = maskedIP

	geoInfo := geoHint
	if maskedIP != "" {
		lookedUp, err := geolocation.LookupWithContext(ctx, s.geo, maskedIP)
		s.metricsEngine.RecordGeoLookup(err == nil)
		if err == nil {
			geoInfo = lookedUp
		} else {
			glog.V(2).Infof("Geo lookup for %s failed: %v", maskedIP, err)
		}
	}

	if geoInfo == nil || geoInfo.Country == "" {
		tcfContext.InGDPRScope = SignalNormalize(SignalAmbiguous, s.cfg.DefaultValue) == SignalYes
		tcfContext.GeoInfo = geoInfo
		return tcfContext
	}

	inEEA := s.cfg.IsInEEA(geoInfo.Country)
	tcfContext.InGDPRScope = inEEA
	tcfContext.InEEA = &inEEA
	tcfContext.GeoInfo = geoInfo
	return tcfContext
}

// ResultForVendorIDs evaluates vendors by GVL id.
func (s *TCFDefinerService) ResultForVendorIDs(ctx context.Context, vendorIDs []uint16, tcfContext TCFContext) TCFResponse[uint16] {
	response := TCFResponse[uint16]{
		UserInGDPRScope: tcfContext.InGDPRScope,
		Actions:         make(map[uint16]PrivacyEnforcementAction, len(vendorIDs)),
		Country:         tcfContext.Country(),
	}
	if !tcfContext.InGDPRScope {
		for _, id := range vendorIDs {
			response.Actions[id] = AllowAll()
		}
		return response
	}
	for _, permission := range s.tcf2Service.PermissionsForVendorIDs(ctx, vendorIDs, tcfContext.Consent) {
		response.Actions[permission.VendorID] = permission.Action
	}
	return response
}

// ResultForBidderNames evaluates bidders resolving their vendor ids through the bidder catalog.
func (s *TCFDefinerService) ResultForBidderNames(ctx context.Context, bidders []string, tcfContext TCFContext, account config.AccountGDPR) TCFResponse[string] {
	return s.ResultForBidderNamesWithResolver(ctx, bidders, s.resolver, tcfContext, account)
}

// ResultForBidderNamesWithResolver evaluates bidders with a caller supplied vendor id resolver, typically
// one aware of the aliases declared by the request.
func (s *TCFDefinerService) ResultForBidderNamesWithResolver(ctx context.Context, bidders []string, resolver VendorIDResolver, tcfContext TCFContext, account config.AccountGDPR) TCFResponse[string] {
	response := TCFResponse[string]{
		UserInGDPRScope: tcfContext.InGDPRScope,
		Actions:         make(map[string]PrivacyEnforcementAction, len(bidders)),
		Country:         tcfContext.Country(),
	}
	if !tcfContext.InGDPRScope {
		for _, bidder := range bidders {
			response.Actions[bidder] = AllowAll()
		}
		return response
	}
	for _, permission := range s.tcf2Service.PermissionsForBidders(ctx, bidders, resolver, tcfContext.Consent, account) {
		response.Actions[permission.BidderName] = permission.Action
	}
	return response
}

// IsConsentStringValid reports whether the consent string is a valid TCF v2 string.
func (s *TCFDefinerService) IsConsentStringValid(consent string) bool {
	_, err := parseConsent(consent)
	return err == nil
}

// IsAllowedForHostVendorID reports whether the host company may sync its own cookie. A host without a
// vendor id is always allowed.
func (s *TCFDefinerService) IsAllowedForHostVendorID(ctx context.Context, tcfContext TCFContext) HostVendorTCFResponse {
	response := HostVendorTCFResponse{
		UserInGDPRScope: tcfContext.InGDPRScope,
		Country:         tcfContext.Country(),
		VendorAllowed:   true,
	}
	if s.cfg.HostVendorID == 0 {
		return response
	}

	hostVendorID := uint16(s.cfg.HostVendorID)
	result := s.ResultForVendorIDs(ctx, []uint16{hostVendorID}, tcfContext)
	action, ok := result.Actions[hostVendorID]
	response.VendorAllowed = ok && !action.BlockPixelSync
	return response
}
