package enforcement

import (
	"context"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/mock"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/geolocation"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// fakeDefiner answers with a fixed context and fixed actions and records its inputs.
type fakeDefiner struct {
	tcfContext gdpr.TCFContext
	actions    map[string]gdpr.PrivacyEnforcementAction

	resolvedPrivacy privacy.Privacy
	resolvedCountry string
	resolvedIP      string
	resolvedChannel config.ChannelType
	askedBidders    []string
	resolver        gdpr.VendorIDResolver
}

func (d *fakeDefiner) ResolveTCFContext(_ context.Context, p privacy.Privacy, country, ipAddress string, _ config.AccountGDPR, channel config.ChannelType, _ *geolocation.GeoInfo) gdpr.TCFContext {
	d.resolvedPrivacy = p
	d.resolvedCountry = country
	d.resolvedIP = ipAddress
	d.resolvedChannel = channel
	return d.tcfContext
}

func (d *fakeDefiner) ResultForBidderNamesWithResolver(_ context.Context, bidders []string, resolver gdpr.VendorIDResolver, tcfContext gdpr.TCFContext, _ config.AccountGDPR) gdpr.TCFResponse[string] {
	d.askedBidders = bidders
	d.resolver = resolver
	response := gdpr.TCFResponse[string]{
		UserInGDPRScope: tcfContext.InGDPRScope,
		Actions:         make(map[string]gdpr.PrivacyEnforcementAction, len(bidders)),
	}
	for _, bidder := range bidders {
		if action, ok := d.actions[bidder]; ok {
			response.Actions[bidder] = action.Clone()
		}
	}
	return response
}

// tcf2Consent is a decoded consent of which only the version is read.
type tcf2Consent struct {
	gdpr.TCString
}

func (tcf2Consent) Version() uint8 {
	return 2
}

func allowAllDefiner(bidders ...string) *fakeDefiner {
	actions := make(map[string]gdpr.PrivacyEnforcementAction, len(bidders))
	for _, bidder := range bidders {
		actions[bidder] = gdpr.AllowAll()
	}
	return &fakeDefiner{actions: actions}
}

func testCatalog() config.BidderInfos {
	return config.BidderInfos{
		"appnexus":   {GVLVendorID: 32, CCPAEnforced: true},
		"rubicon":    {GVLVendorID: 52, CCPAEnforced: true},
		"openx":      {GVLVendorID: 69},
		"rubiconalt": {AliasOf: "rubicon"},
	}
}

func testUser() *openrtb2.User {
	return &openrtb2.User{
		ID:       "user-id",
		BuyerUID: "buyer-uid",
		Yob:      1980,
		Gender:   "F",
		EIDs: []openrtb2.EID{
			{Source: "sharedid.org"},
			{Source: "liveramp.com"},
		},
		Geo: &openrtb2.Geo{Lat: ptrutil.ToPtr(51.12345), Lon: ptrutil.ToPtr(-0.12345), City: "London"},
		Ext: []byte(`{"data":1}`),
	}
}

func testDevice() *openrtb2.Device {
	return &openrtb2.Device{
		IP:      "192.168.1.123",
		IFA:     "ifa",
		DIDSHA1: "didsha1",
		Geo:     &openrtb2.Geo{Lat: ptrutil.ToPtr(51.12345), Lon: ptrutil.ToPtr(-0.12345), ZIP: "N1"},
	}
}

func bidderUsers(bidders ...string) map[string]*openrtb2.User {
	users := make(map[string]*openrtb2.User, len(bidders))
	for _, bidder := range bidders {
		users[bidder] = testUser()
	}
	return users
}

func bidderDevices(bidders ...string) map[string]*openrtb2.Device {
	devices := make(map[string]*openrtb2.Device, len(bidders))
	for _, bidder := range bidders {
		devices[bidder] = testDevice()
	}
	return devices
}

func resultsByBidder(results []BidderPrivacyResult) map[string]BidderPrivacyResult {
	byBidder := make(map[string]BidderPrivacyResult, len(results))
	for _, result := range results {
		byBidder[result.RequestBidder] = result
	}
	return byBidder
}

// permissiveMetrics accepts every event the enforcement stages record.
func permissiveMetrics() *metrics.MetricsEngineMock {
	metricsEngine := &metrics.MetricsEngineMock{}
	metricsEngine.On("RecordRequestPrivacy", mock.Anything).Return()
	metricsEngine.On("RecordCCPA", mock.Anything).Return()
	metricsEngine.On("RecordAdapterCCPA", mock.Anything).Return()
	metricsEngine.On("RecordAdapterTCF", mock.Anything).Return()
	metricsEngine.On("RecordAdapterBuyerUIDScrubbed", mock.Anything).Return()
	return metricsEngine
}
