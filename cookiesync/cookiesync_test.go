package cookiesync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/macros"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy/ccpa"
	"github.com/prebid/prebid-privacy/usersync"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

type noopShuffler struct{}

func (noopShuffler) Shuffle([]string) {}

type reverseShuffler struct{}

func (reverseShuffler) Shuffle(v []string) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

type fakeSyncer struct {
	key             string
	defaultSyncType usersync.SyncType
	supported       []usersync.SyncType
}

func (s fakeSyncer) Key() string {
	return s.key
}

func (s fakeSyncer) DefaultSyncType() usersync.SyncType {
	return s.defaultSyncType
}

func (s fakeSyncer) SupportsType(syncTypes []usersync.SyncType) bool {
	for _, given := range syncTypes {
		for _, supported := range s.supported {
			if given == supported {
				return true
			}
		}
	}
	return false
}

func (s fakeSyncer) GetSync(syncTypes []usersync.SyncType, p macros.UserSyncPrivacy) (usersync.Sync, error) {
	return usersync.Sync{
		URL:  "https://" + s.key + ".com/sync?gdpr=" + p.GDPR + "&consent=" + p.GDPRConsent + "&us_privacy=" + p.USPrivacy,
		Type: syncTypes[0],
	}, nil
}

type fakeTCF struct {
	hostBlocked bool
	blocked     map[string]bool
	asked       []string
}

func (f *fakeTCF) IsAllowedForHostVendorID(_ context.Context, tcfContext gdpr.TCFContext) gdpr.HostVendorTCFResponse {
	return gdpr.HostVendorTCFResponse{UserInGDPRScope: tcfContext.InGDPRScope, VendorAllowed: !f.hostBlocked}
}

func (f *fakeTCF) ResultForBidderNames(_ context.Context, bidders []string, tcfContext gdpr.TCFContext, _ config.AccountGDPR) gdpr.TCFResponse[string] {
	f.asked = append(f.asked, bidders...)
	response := gdpr.TCFResponse[string]{UserInGDPRScope: tcfContext.InGDPRScope, Actions: map[string]gdpr.PrivacyEnforcementAction{}}
	for _, bidder := range bidders {
		if f.blocked[bidder] {
			response.Actions[bidder] = gdpr.RestrictAll()
		} else {
			response.Actions[bidder] = gdpr.AllowAll()
		}
	}
	return response
}

type fakeCCPA struct {
	enforced bool
}

func (f fakeCCPA) IsCCPAEnforced(ccpa.Policy, config.Account, config.ChannelType) bool {
	return f.enforced
}

type fakeCoop struct {
	bidders []string
}

func (f fakeCoop) CoopSyncBidders(Context) []string {
	return f.bidders
}

var (
	iframeAndRedirect = []usersync.SyncType{usersync.SyncTypeIFrame, usersync.SyncTypeRedirect}

	testCatalog = config.BidderInfos{
		"appnexus":   {GVLVendorID: 32, Syncer: &config.Syncer{Key: "adnxs"}},
		"rubicon":    {GVLVendorID: 52, CCPAEnforced: true, Syncer: &config.Syncer{Key: "rubicon"}},
		"rubiconalt": {AliasOf: "rubicon", Syncer: &config.Syncer{Key: "rubicon"}},
		"openx":      {GVLVendorID: 69, Syncer: &config.Syncer{Key: "openx", Enabled: ptrutil.ToPtr(false)}},
		"pubmatic":   {GVLVendorID: 76, Syncer: &config.Syncer{Key: "pubmatic"}},
		"sovrn":      {GVLVendorID: 13, Syncer: &config.Syncer{Key: "sovrn"}},
		"disabled":   {Disabled: true, Syncer: &config.Syncer{Key: "disabled"}},
		"nosync":     {GVLVendorID: 1},
	}

	testSyncers = map[string]usersync.Syncer{
		"appnexus":   fakeSyncer{key: "adnxs", defaultSyncType: usersync.SyncTypeIFrame, supported: iframeAndRedirect},
		"rubicon":    fakeSyncer{key: "rubicon", defaultSyncType: usersync.SyncTypeRedirect, supported: []usersync.SyncType{usersync.SyncTypeRedirect}},
		"rubiconalt": fakeSyncer{key: "rubicon", defaultSyncType: usersync.SyncTypeRedirect, supported: []usersync.SyncType{usersync.SyncTypeRedirect}},
		"openx":      fakeSyncer{key: "openx", defaultSyncType: usersync.SyncTypeIFrame, supported: iframeAndRedirect},
		"pubmatic":   fakeSyncer{key: "pubmatic", defaultSyncType: usersync.SyncTypeIFrame, supported: []usersync.SyncType{usersync.SyncTypeIFrame}},
		"sovrn":      fakeSyncer{key: "sovrn", defaultSyncType: usersync.SyncTypeRedirect, supported: iframeAndRedirect},
		"disabled":   fakeSyncer{key: "disabled", defaultSyncType: usersync.SyncTypeIFrame, supported: iframeAndRedirect},
	}
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		ExternalURL: "http://prebid.host.com/",
		HostCookie:  config.HostCookie{Family: "adnxs", CookieName: "uuid2"},
		UserSync:    config.UserSync{DefaultLimit: 2, MaxLimit: 3},
	}
}

func permissiveMetrics() *metrics.MetricsEngineMock {
	metricsEngine := &metrics.MetricsEngineMock{}
	metricsEngine.On("RecordSyncerRequest", mock.Anything, mock.Anything).Return()
	metricsEngine.On("RecordUserSyncTCFInvalid").Return()
	return metricsEngine
}

func newTestService(tcf TCFChecker, ccpaChecker CCPAChecker, coop CoopSyncBidderProvider, metricsEngine metrics.MetricsEngine) *Service {
	service, err := NewService(testConfig(), testCatalog, testSyncers, tcf, ccpaChecker, coop, noopShuffler{}, metricsEngine)
	if err != nil {
		panic(err)
	}
	return service
}

func newTestContext(bidders ...string) Context {
	return Context{
		Request:       Request{Bidders: bidders},
		Cookie:        usersync.NewCookie(),
		MethodChooser: usersync.NewMethodChooser(usersync.NewSyncTypeFilterForAll()),
	}
}
