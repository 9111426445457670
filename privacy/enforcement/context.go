package enforcement

import (
	"context"
	"errors"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/privacy/ccpa"
	"github.com/prebid/prebid-privacy/privacy/lmt"
)

// SyncRequestPrivacy holds the privacy fields of a cookie sync request.
type SyncRequestPrivacy struct {
	GDPR      string
	Consent   string
	USPrivacy string
}

// ContextFromBidRequest reads the privacy signals of an openrtb request and resolves its GDPR context.
// The openrtb 2.6 fields win over their legacy ext locations. Malformed signals are returned as warnings.
// The request is not modified: the iOS tracking flag is derived on a copy of the device.
func (s *Service) ContextFromBidRequest(ctx context.Context, req *openrtb2.BidRequest, account config.Account, channel config.ChannelType) (PrivacyContext, []error) {
	if req == nil {
		return PrivacyContext{}, nil
	}

	var warnings []error
	p := privacy.Privacy{}

	gdprSignal, err := readGDPRSignal(req.Regs)
	if err != nil {
		warnings = append(warnings, consentWarning(err))
	}
	p.GDPR = gdprSignal

	consent, err := readConsent(req.User)
	if err != nil {
		warnings = append(warnings, consentWarning(err))
	}
	p.Consent = consent

	policy, err := ccpa.ReadFromRequest(req)
	if err == nil {
		err = policy.Validate()
	}
	if err != nil {
		warnings = append(warnings, consentWarning(err))
	}
	p.CCPA = policy

	if req.Regs != nil {
		p.COPPA = int(req.Regs.COPPA)
	}

	var ip, country string
	if req.Device != nil {
		ip = req.Device.IP
		if ip == "" {
			ip = req.Device.IPv6
		}
		if req.Device.Geo != nil {
			country = req.Device.Geo.Country
		}
	}

	tcfContext := s.definer.ResolveTCFContext(ctx, p, country, ip, account.GDPR, channel, nil)
	warnings = append(warnings, tcfContext.Warnings...)

	privacyContext := newPrivacyContext(p, tcfContext, ip)
	privacyContext.LMT = readLMTForIOS(req)
	return privacyContext, warnings
}

func readLMTForIOS(req *openrtb2.BidRequest) lmt.Policy {
	if req.Device == nil {
		return lmt.Policy{}
	}
	device := *req.Device
	reqCopy := *req
	reqCopy.Device = &device
	lmt.ModifyForIOS(&reqCopy)
	return lmt.ReadPolicy(&device)
}

// ContextFromCookieSyncRequest builds the privacy context of a cookie sync request made from a browser.
func (s *Service) ContextFromCookieSyncRequest(ctx context.Context, request SyncRequestPrivacy, ip string, account config.Account) PrivacyContext {
	p := privacy.Privacy{
		GDPR:    request.GDPR,
		Consent: request.Consent,
		CCPA:    ccpa.Policy{Consent: request.USPrivacy},
	}
	tcfContext := s.definer.ResolveTCFContext(ctx, p, "", ip, account.GDPR, config.ChannelWeb, nil)
	return newPrivacyContext(p, tcfContext, ip)
}

func newPrivacyContext(p privacy.Privacy, tcfContext gdpr.TCFContext, ip string) PrivacyContext {
	if tcfContext.IPAddress != "" {
		ip = tcfContext.IPAddress
	}
	return PrivacyContext{Privacy: p, TCFContext: tcfContext, IPAddress: ip}
}

func readGDPRSignal(regs *openrtb2.Regs) (string, error) {
	if regs == nil {
		return "", nil
	}
	if regs.GDPR != nil {
		return strconv.Itoa(int(*regs.GDPR)), nil
	}
	if len(regs.Ext) == 0 {
		return "", nil
	}

	value, err := jsonparser.GetInt(regs.Ext, "gdpr")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return "", nil
	}
	if err != nil {
		return "", errors.New("request.regs.ext.gdpr must be an integer")
	}
	return strconv.FormatInt(value, 10), nil
}

func readConsent(user *openrtb2.User) (string, error) {
	if user == nil {
		return "", nil
	}
	if user.Consent != "" || len(user.Ext) == 0 {
		return user.Consent, nil
	}

	consent, err := jsonparser.GetString(user.Ext, "consent")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return "", nil
	}
	if err != nil {
		return "", errors.New("request.user.ext.consent must be a string")
	}
	return consent, nil
}

func consentWarning(err error) error {
	return &errortypes.Warning{
		Message:     err.Error(),
		WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
	}
}
