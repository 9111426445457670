package enforcement

import (
	"context"

	"github.com/prebid/prebid-privacy/privacy"
)

// ActivityEnforcement removes the data classes the account's activity rules do not allow a bidder to
// receive.
type ActivityEnforcement struct{}

func NewActivityEnforcement() *ActivityEnforcement {
	return &ActivityEnforcement{}
}

func (e *ActivityEnforcement) Enforce(_ context.Context, auction AuctionContext, results []BidderPrivacyResult) []BidderPrivacyResult {
	for i := range results {
		result := &results[i]
		if result.BlockedRequestByTCF {
			continue
		}

		component := privacy.Component{Type: privacy.ComponentTypeBidder, Name: result.RequestBidder}
		disallowUFPD := !auction.Activities.IsAllowed(privacy.ActivityTransmitUserFPD, component)
		disallowPreciseGeo := !auction.Activities.IsAllowed(privacy.ActivityTransmitPreciseGeo, component)
		if !disallowUFPD && !disallowPreciseGeo {
			continue
		}

		result.User = privacy.MaskUserActivity(result.User, disallowUFPD, disallowPreciseGeo)
		result.Device = privacy.MaskDeviceActivity(result.Device, disallowUFPD, disallowPreciseGeo)
	}
	return results
}
