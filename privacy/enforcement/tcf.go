package enforcement

import (
	"context"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy"
)

// TCFEnforcement applies the actions computed from the TCF consent to every bidder. A device limiting ad
// tracking is masked as if every restriction was in force.
type TCFEnforcement struct {
	catalog         config.BidderInfos
	definer         TCFDefiner
	lmtEnforce      bool
	disabledMetrics config.DisabledMetrics
	metricsEngine   metrics.MetricsEngine
}

func NewTCFEnforcement(catalog config.BidderInfos, definer TCFDefiner, lmtEnforce bool, disabledMetrics config.DisabledMetrics, metricsEngine metrics.MetricsEngine) *TCFEnforcement {
	return &TCFEnforcement{
		catalog:         catalog,
		definer:         definer,
		lmtEnforce:      lmtEnforce,
		disabledMetrics: disabledMetrics,
		metricsEngine:   metricsEngine,
	}
}

func (e *TCFEnforcement) Enforce(ctx context.Context, auction AuctionContext, results []BidderPrivacyResult) []BidderPrivacyResult {
	if len(results) == 0 {
		return results
	}

	resolver := gdpr.NewRequestVendorIDResolver(e.catalog, auction.Aliases, auction.AliasGVLIDs)
	response := e.definer.ResultForBidderNamesWithResolver(ctx, resultBidders(results), resolver, auction.Privacy.TCFContext, auction.Account.GDPR)

	for i := range results {
		result := &results[i]

		action, found := response.Actions[result.RequestBidder]
		if !found {
			action = gdpr.RestrictAll()
		}
		lmtEnforced := lmtPolicy(result.Device, auction).ShouldEnforce(e.lmtEnforce)
		labels, buyerUIDScrubbed := e.adapterLabels(result, action, lmtEnforced, auction.Aliases)

		e.applyAction(result, action, lmtEnforced)
		e.recordMetrics(labels, buyerUIDScrubbed)
	}
	return results
}

func (e *TCFEnforcement) applyAction(result *BidderPrivacyResult, action gdpr.PrivacyEnforcementAction, lmtEnforced bool) {
	if action.BlockBidderRequest {
		result.User = nil
		result.Device = nil
		result.BlockedRequestByTCF = true
		result.BlockedAnalyticsByTCF = action.BlockAnalyticsReport
		return
	}

	result.BlockedAnalyticsByTCF = action.BlockAnalyticsReport
	if lmtEnforced {
		result.User = privacy.MaskUserTCF(result.User, true, true, true, action.EIDExceptions)
		result.Device = privacy.MaskDeviceTCF(result.Device, true, true, true)
		return
	}
	result.User = privacy.MaskUserTCF(result.User, action.RemoveUserIDs, action.MaskGeo, action.RemoveUserFPD, action.EIDExceptions)
	result.Device = privacy.MaskDeviceTCF(result.Device, action.MaskDeviceIP, action.MaskGeo, action.MaskDeviceInfo)
}

// adapterLabels describes what the action removes from the unmasked user and device, and whether a
// buyeruid is scrubbed.
func (e *TCFEnforcement) adapterLabels(result *BidderPrivacyResult, action gdpr.PrivacyEnforcementAction, lmtEnforced bool, aliases map[string]string) (metrics.AdapterTCFLabels, bool) {
	labels := metrics.AdapterTCFLabels{
		Adapter:          resolveBidder(result.RequestBidder, aliases, e.catalog),
		AnalyticsBlocked: action.BlockAnalyticsReport,
		RequestBlocked:   action.BlockBidderRequest,
		LMTEnforced:      lmtEnforced,
	}
	if action.BlockBidderRequest {
		return labels, false
	}

	removeIDs := action.RemoveUserIDs || lmtEnforced
	removeFPD := action.RemoveUserFPD || lmtEnforced
	maskGeo := action.MaskGeo || lmtEnforced
	maskDeviceInfo := action.MaskDeviceInfo || lmtEnforced

	labels.UserIdsRemoved = removeIDs && userHasIDs(result.User)
	labels.UserFpdRemoved = (removeFPD && userHasFPD(result.User)) || (maskDeviceInfo && deviceHasIDs(result.Device))
	labels.GeoMasked = maskGeo && ((result.User != nil && result.User.Geo != nil) || (result.Device != nil && result.Device.Geo != nil))
	return labels, removeIDs && result.User != nil && result.User.BuyerUID != ""
}

func (e *TCFEnforcement) recordMetrics(labels metrics.AdapterTCFLabels, buyerUIDScrubbed bool) {
	if !e.disabledMetrics.AdapterTCF {
		e.metricsEngine.RecordAdapterTCF(labels)
	}
	if buyerUIDScrubbed && !e.disabledMetrics.AdapterBuyerUIDScrubbed {
		e.metricsEngine.RecordAdapterBuyerUIDScrubbed(labels.Adapter)
	}
}

func userHasIDs(user *openrtb2.User) bool {
	return user != nil && (user.ID != "" || user.BuyerUID != "" || len(user.EIDs) > 0)
}

func userHasFPD(user *openrtb2.User) bool {
	return user != nil && (user.Yob != 0 || user.Gender != "" || user.Keywords != "" || len(user.KwArray) > 0 || len(user.Data) > 0 || len(user.Ext) > 0)
}

func deviceHasIDs(device *openrtb2.Device) bool {
	return device != nil && (device.IFA != "" || device.DIDSHA1 != "" || device.DIDMD5 != "" ||
		device.DPIDSHA1 != "" || device.DPIDMD5 != "" || device.MACSHA1 != "" || device.MACMD5 != "")
}
