package enforcement

import (
	"context"

	"github.com/prebid/prebid-privacy/privacy"
)

// CoppaEnforcement masks every bidder of a request subject to COPPA. The request level metric is recorded
// by Service.Mask.
type CoppaEnforcement struct{}

func NewCoppaEnforcement() *CoppaEnforcement {
	return &CoppaEnforcement{}
}

func (e *CoppaEnforcement) IsApplicable(auction AuctionContext) bool {
	return auction.Privacy.Privacy.IsCOPPA()
}

func (e *CoppaEnforcement) Enforce(_ context.Context, _ AuctionContext, results []BidderPrivacyResult) []BidderPrivacyResult {
	masked := make([]BidderPrivacyResult, 0, len(results))
	for _, result := range results {
		masked = append(masked, BidderPrivacyResult{
			RequestBidder: result.RequestBidder,
			User:          privacy.MaskUserCOPPA(result.User),
			Device:        privacy.MaskDeviceCOPPA(result.Device),
		})
	}
	return masked
}
