package enforcement

import (
	"context"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/privacy/ccpa"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// CCPAEnforcement masks the bidders marked as CCPA enforced in the catalog when the user opted out of
// the sale of personal information. Bidders on the request no-sale list are exempt.
type CCPAEnforcement struct {
	catalog       config.BidderInfos
	hostEnforce   bool
	metricsEngine metrics.MetricsEngine
}

func NewCCPAEnforcement(catalog config.BidderInfos, hostEnforce bool, metricsEngine metrics.MetricsEngine) *CCPAEnforcement {
	return &CCPAEnforcement{catalog: catalog, hostEnforce: hostEnforce, metricsEngine: metricsEngine}
}

// IsEnforced reports whether the policy opts out and CCPA is enabled for the account and channel. The
// channel setting of the account wins over its general setting, which wins over the host setting.
func (e *CCPAEnforcement) IsEnforced(policy ccpa.Policy, account config.Account, channel config.ChannelType) bool {
	return policy.IsOptOut() && e.enabled(account, channel)
}

func (e *CCPAEnforcement) enabled(account config.Account, channel config.ChannelType) bool {
	return ptrutil.ValueOrDefault(ptrutil.Coalesce(account.CCPA.EnabledForChannelType(channel), &e.hostEnforce))
}

func (e *CCPAEnforcement) Enforce(_ context.Context, auction AuctionContext, results []BidderPrivacyResult) []BidderPrivacyResult {
	policy := auction.Privacy.Privacy.CCPA
	if policy.Consent == "" {
		return results
	}

	enforced := e.IsEnforced(policy, auction.Account, auction.Channel)
	noSaleApplied := false

	if enforced {
		for i := range results {
			result := &results[i]
			if result.BlockedRequestByTCF {
				continue
			}
			bidder := resolveBidder(result.RequestBidder, auction.Aliases, e.catalog)
			if !e.catalog.CCPAEnforced(bidder) {
				continue
			}
			if policy.IsNoSaleBidder(result.RequestBidder) {
				noSaleApplied = true
				continue
			}
			result.User = privacy.MaskUserCCPA(result.User)
			result.Device = privacy.MaskDeviceCCPA(result.Device)
			e.metricsEngine.RecordAdapterCCPA(bidder)
		}
	}

	e.metricsEngine.RecordCCPA(metrics.CCPALabels{
		HostEnabled:     e.hostEnforce,
		AccountEnforced: ptrutil.ValueOrDefault(auction.Account.CCPA.EnabledForChannelType(auction.Channel)),
		NoSaleApplied:   noSaleApplied,
	})
	return results
}
