package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/cookiesync"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/privacy/enforcement"
	"github.com/prebid/prebid-privacy/usersync"
	"github.com/prebid/prebid-privacy/util/httputil"
)

// CookieSyncProcessor runs the cookie sync filters and builds the response.
type CookieSyncProcessor interface {
	ProcessContext(ctx context.Context, syncContext cookiesync.Context) (cookiesync.Context, error)
	PrepareResponse(syncContext cookiesync.Context) cookiesync.Response
}

// SyncPrivacyContextBuilder resolves the privacy context of a cookie sync request.
type SyncPrivacyContextBuilder interface {
	ContextFromCookieSyncRequest(ctx context.Context, request enforcement.SyncRequestPrivacy, ip string, account config.Account) enforcement.PrivacyContext
}

var (
	errCookieSyncBody            = errors.New("Failed to read request body")
	errCookieSyncAccountDisabled = errors.New("Account is disabled")
)

func NewCookieSyncEndpoint(cfg *config.Configuration, processor CookieSyncProcessor, privacyBuilder SyncPrivacyContextBuilder, metricsEngine metrics.MetricsEngine) httprouter.Handle {
	deps := &cookieSyncEndpoint{
		config:         cfg,
		processor:      processor,
		privacyBuilder: privacyBuilder,
		metrics:        metricsEngine,
		decoder:        usersync.Base64Decoder{},
	}
	return deps.Handle
}

type cookieSyncEndpoint struct {
	config         *config.Configuration
	processor      CookieSyncProcessor
	privacyBuilder SyncPrivacyContextBuilder
	metrics        metrics.MetricsEngine
	decoder        usersync.Decoder
}

func (c *cookieSyncEndpoint) Handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	syncContext, err := c.parseRequest(r)
	if err != nil {
		c.handleError(w, err)
		return
	}

	syncContext, err = c.processor.ProcessContext(r.Context(), syncContext)
	if err != nil {
		c.handleError(w, err)
		return
	}

	c.metrics.RecordCookieSync(metrics.CookieSyncOK)
	c.writeResponse(w, c.processor.PrepareResponse(syncContext))
}

func (c *cookieSyncEndpoint) parseRequest(r *http.Request) (cookiesync.Context, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return cookiesync.Context{}, &errortypes.BadInput{Message: errCookieSyncBody.Error()}
	}

	request := cookieSyncRequest{}
	if err := json.Unmarshal(body, &request); err != nil {
		return cookiesync.Context{}, &errortypes.BadInput{Message: fmt.Sprintf("JSON parsing failed: %s", err.Error())}
	}

	filter, err := request.syncTypeFilter()
	if err != nil {
		return cookiesync.Context{}, &errortypes.BadInput{Message: err.Error()}
	}

	account := c.config.ResolveAccount(request.Account)
	if account.Disabled {
		return cookiesync.Context{}, &errortypes.Unauthorized{Message: errCookieSyncAccountDisabled.Error()}
	}

	activities, err := privacy.NewActivityInfrastructure(&account.Privacy)
	if err != nil {
		glog.Warningf("account %s has invalid activity controls, allowing all activities: %v", account.ID, err)
	}

	privacyContext := c.privacyBuilder.ContextFromCookieSyncRequest(r.Context(), enforcement.SyncRequestPrivacy{
		GDPR:      gdprSignalToString(request.GDPR),
		Consent:   request.GDPRConsent,
		USPrivacy: request.USPrivacy,
	}, requestIP(r), account)

	return cookiesync.Context{
		Request: cookiesync.Request{
			Bidders:   request.Bidders,
			GDPR:      request.GDPR,
			Consent:   request.GDPRConsent,
			USPrivacy: request.USPrivacy,
			Limit:     request.Limit,
			CoopSync:  request.CoopSync,
			Account:   request.Account,
			Debug:     request.Debug,
		},
		Account:       account,
		Privacy:       privacyContext,
		Activities:    activities,
		MethodChooser: usersync.NewMethodChooser(filter),
		Cookie:        usersync.ReadCookie(r, c.decoder, &c.config.HostCookie),
		HTTPRequest:   r,
	}, nil
}

func (c *cookieSyncEndpoint) handleError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	metricStatus := metrics.CookieSyncBadRequest

	var unauthorized *errortypes.Unauthorized
	if errors.As(err, &unauthorized) {
		status = http.StatusUnauthorized
		metricStatus = metrics.CookieSyncOptOut
	}

	c.metrics.RecordCookieSync(metricStatus)
	http.Error(w, err.Error(), status)
}

func (c *cookieSyncEndpoint) writeResponse(w http.ResponseWriter, response cookiesync.Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(response); err != nil {
		glog.Errorf("error writing /cookie_sync response: %v", err)
	}
}

func requestIP(r *http.Request) string {
	if ip := httputil.FindIP(r, func(ip net.IP) bool { return ip != nil }); ip != nil {
		return ip.String()
	}
	return ""
}

func gdprSignalToString(gdpr *int) string {
	if gdpr == nil {
		return ""
	}
	return strconv.Itoa(*gdpr)
}

type cookieSyncRequest struct {
	Bidders        []string                         `json:"bidders"`
	GDPR           *int                             `json:"gdpr"`
	GDPRConsent    string                           `json:"gdpr_consent"`
	USPrivacy      string                           `json:"us_privacy"`
	Limit          *int                             `json:"limit"`
	CoopSync       *bool                            `json:"coop_sync"`
	Account        string                           `json:"account"`
	Debug          bool                             `json:"debug"`
	FilterSettings *cookieSyncRequestFilterSettings `json:"filterSettings"`
}

type cookieSyncRequestFilterSettings struct {
	IFrame   *cookieSyncRequestFilter `json:"iframe"`
	Redirect *cookieSyncRequestFilter `json:"image"`
}

type cookieSyncRequestFilter struct {
	Bidders json.RawMessage `json:"bidders"`
	Mode    string          `json:"filter"`
}

func (req cookieSyncRequest) syncTypeFilter() (usersync.SyncTypeFilter, error) {
	filter := usersync.NewSyncTypeFilterForAll()
	if req.FilterSettings == nil {
		return filter, nil
	}

	if f := req.FilterSettings.IFrame; f != nil {
		iframe, err := usersync.ParseBidderFilter(f.Bidders, f.Mode)
		if err != nil {
			return filter, fmt.Errorf("error parsing filtersettings.iframe: %v", err)
		}
		filter.IFrame = iframe
	}

	if f := req.FilterSettings.Redirect; f != nil {
		redirect, err := usersync.ParseBidderFilter(f.Bidders, f.Mode)
		if err != nil {
			return filter, fmt.Errorf("error parsing filtersettings.image: %v", err)
		}
		filter.Redirect = redirect
	}

	return filter, nil
}
