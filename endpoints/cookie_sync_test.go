package endpoints

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/cookiesync"
	"github.com/prebid/prebid-privacy/errortypes"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/macros"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy/enforcement"
	"github.com/prebid/prebid-privacy/usersync"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

type fakeProcessor struct {
	err      error
	received cookiesync.Context
}

func (p *fakeProcessor) ProcessContext(_ context.Context, syncContext cookiesync.Context) (cookiesync.Context, error) {
	p.received = syncContext
	return syncContext, p.err
}

func (p *fakeProcessor) PrepareResponse(syncContext cookiesync.Context) cookiesync.Response {
	return cookiesync.Response{
		Status: "no_cookie",
		BidderStatus: []cookiesync.BidderStatus{{
			Bidder:   "adnxs",
			NoCookie: true,
			UserSync: &cookiesync.UserSyncInfo{URL: "https://adnxs.com/sync?a=1&b=2", Type: "iframe"},
		}},
	}
}

type fakeSyncer struct {
	defaultSyncType usersync.SyncType
}

func (s fakeSyncer) Key() string {
	return "fake"
}

func (s fakeSyncer) DefaultSyncType() usersync.SyncType {
	return s.defaultSyncType
}

func (s fakeSyncer) SupportsType([]usersync.SyncType) bool {
	return true
}

func (s fakeSyncer) GetSync(syncTypes []usersync.SyncType, _ macros.UserSyncPrivacy) (usersync.Sync, error) {
	return usersync.Sync{Type: syncTypes[0]}, nil
}

type fakePrivacyBuilder struct {
	tcfContext gdpr.TCFContext
	request    enforcement.SyncRequestPrivacy
	ip         string
	account    config.Account
}

func (b *fakePrivacyBuilder) ContextFromCookieSyncRequest(_ context.Context, request enforcement.SyncRequestPrivacy, ip string, account config.Account) enforcement.PrivacyContext {
	b.request = request
	b.ip = ip
	b.account = account
	return enforcement.PrivacyContext{TCFContext: b.tcfContext, IPAddress: ip}
}

func cookieSyncTestConfig() *config.Configuration {
	return &config.Configuration{
		Accounts: map[string]config.Account{
			"disabled": {ID: "disabled", Disabled: true},
			"pub":      {ID: "pub", CookieSync: config.CookieSync{DefaultLimit: ptrutil.ToPtr(4)}},
		},
	}
}

func TestCookieSyncEndpoint(t *testing.T) {
	testCases := []struct {
		description          string
		body                 string
		processorErr         error
		expectedStatus       int
		expectedBody         string
		expectedMetricStatus metrics.CookieSyncStatus
	}{
		{
			description:          "Success",
			body:                 `{"bidders":["appnexus"]}`,
			expectedStatus:       http.StatusOK,
			expectedBody:         `{"status":"no_cookie","bidder_status":[{"bidder":"adnxs","no_cookie":true,"usersync":{"url":"https://adnxs.com/sync?a=1&b=2","type":"iframe","supportCORS":false}}]}` + "\n",
			expectedMetricStatus: metrics.CookieSyncOK,
		},
		{
			description:          "Malformed JSON",
			body:                 `{"bidders":`,
			expectedStatus:       http.StatusBadRequest,
			expectedMetricStatus: metrics.CookieSyncBadRequest,
		},
		{
			description:          "Malformed Filter",
			body:                 `{"filterSettings":{"iframe":{"bidders":"*","filter":"sometimes"}}}`,
			expectedStatus:       http.StatusBadRequest,
			expectedBody:         "error parsing filtersettings.iframe: invalid filter value 'sometimes'. must be either 'include' or 'exclude'\n",
			expectedMetricStatus: metrics.CookieSyncBadRequest,
		},
		{
			description:          "Disabled Account",
			body:                 `{"account":"disabled"}`,
			expectedStatus:       http.StatusUnauthorized,
			expectedBody:         "Account is disabled\n",
			expectedMetricStatus: metrics.CookieSyncOptOut,
		},
		{
			description:          "Processor Bad Input",
			body:                 `{"gdpr":1}`,
			processorErr:         &errortypes.BadInput{Message: "gdpr_consent is required if gdpr is 1"},
			expectedStatus:       http.StatusBadRequest,
			expectedBody:         "gdpr_consent is required if gdpr is 1\n",
			expectedMetricStatus: metrics.CookieSyncBadRequest,
		},
		{
			description:          "Processor Unauthorized",
			body:                 `{}`,
			processorErr:         &errortypes.Unauthorized{Message: "Sync is not allowed for this uids"},
			expectedStatus:       http.StatusUnauthorized,
			expectedBody:         "Sync is not allowed for this uids\n",
			expectedMetricStatus: metrics.CookieSyncOptOut,
		},
	}

	for _, test := range testCases {
		metricsEngine := &metrics.MetricsEngineMock{}
		metricsEngine.On("RecordCookieSync", test.expectedMetricStatus).Return()

		endpoint := NewCookieSyncEndpoint(cookieSyncTestConfig(), &fakeProcessor{err: test.processorErr}, &fakePrivacyBuilder{}, metricsEngine)

		request := httptest.NewRequest("POST", "/cookie_sync", strings.NewReader(test.body))
		recorder := httptest.NewRecorder()
		endpoint(recorder, request, nil)

		assert.Equal(t, test.expectedStatus, recorder.Code, test.description+":status")
		if test.expectedBody != "" {
			assert.Equal(t, test.expectedBody, recorder.Body.String(), test.description+":body")
		}
		metricsEngine.AssertExpectations(t)
	}
}

func TestCookieSyncEndpointBuildsContext(t *testing.T) {
	metricsEngine := &metrics.MetricsEngineMock{}
	metricsEngine.On("RecordCookieSync", metrics.CookieSyncOK).Return()

	processor := &fakeProcessor{}
	privacyBuilder := &fakePrivacyBuilder{}
	endpoint := NewCookieSyncEndpoint(cookieSyncTestConfig(), processor, privacyBuilder, metricsEngine)

	body := `{
		"bidders": ["appnexus", "rubicon"],
		"gdpr": 1,
		"gdpr_consent": "anyConsent",
		"us_privacy": "1YNN",
		"limit": 2,
		"coop_sync": true,
		"account": "pub",
		"debug": true,
		"filterSettings": {"image": {"bidders": ["rubicon"], "filter": "exclude"}}
	}`
	request := httptest.NewRequest("POST", "/cookie_sync", strings.NewReader(body))
	request.Header.Set("X-Forwarded-For", "203.0.113.7")
	endpoint(httptest.NewRecorder(), request, nil)

	assert.Equal(t, enforcement.SyncRequestPrivacy{GDPR: "1", Consent: "anyConsent", USPrivacy: "1YNN"}, privacyBuilder.request)
	assert.Equal(t, "203.0.113.7", privacyBuilder.ip)
	assert.Equal(t, "pub", privacyBuilder.account.ID)

	received := processor.received
	assert.Equal(t, cookiesync.Request{
		Bidders:   []string{"appnexus", "rubicon"},
		GDPR:      ptrutil.ToPtr(1),
		Consent:   "anyConsent",
		USPrivacy: "1YNN",
		Limit:     ptrutil.ToPtr(2),
		CoopSync:  ptrutil.ToPtr(true),
		Account:   "pub",
		Debug:     true,
	}, received.Request)
	assert.Equal(t, ptrutil.ToPtr(4), received.Account.CookieSync.DefaultLimit)
	assert.True(t, received.Cookie.AllowSyncs())

	syncer := fakeSyncer{defaultSyncType: usersync.SyncTypeRedirect}
	syncType, ok := received.MethodChooser.Choose("rubicon", syncer)
	assert.True(t, ok)
	assert.Equal(t, usersync.SyncTypeIFrame, syncType)
}

func TestGDPRSignalToString(t *testing.T) {
	assert.Equal(t, "", gdprSignalToString(nil))
	assert.Equal(t, "0", gdprSignalToString(ptrutil.ToPtr(0)))
	assert.Equal(t, "1", gdprSignalToString(ptrutil.ToPtr(1)))
}
