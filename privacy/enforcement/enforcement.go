package enforcement

import (
	"context"
	"sort"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/geolocation"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/privacy/lmt"
)

// PrivacyContext carries the privacy signals of a request together with the resolved GDPR context.
// IPAddress is masked when the request is in GDPR scope and the ip was used for a geo lookup.
type PrivacyContext struct {
	Privacy    privacy.Privacy
	TCFContext gdpr.TCFContext
	IPAddress  string
	// LMT is the tracking flag of the request device, set for iOS apps from the OS version.
	LMT lmt.Policy
}

// AuctionContext is the request level input of Service.Mask.
type AuctionContext struct {
	Request    *openrtb2.BidRequest
	Account    config.Account
	Channel    config.ChannelType
	Privacy    PrivacyContext
	Activities privacy.ActivityInfrastructure

	// Aliases maps the bidder aliases declared by the request to their root bidder.
	Aliases map[string]string
	// AliasGVLIDs holds the vendor ids the request declared for its aliases.
	AliasGVLIDs map[string]uint16
}

// BidderPrivacyResult is the masked user and device sent to one bidder. User and Device are nil when
// the request to the bidder is blocked.
type BidderPrivacyResult struct {
	RequestBidder         string
	User                  *openrtb2.User
	Device                *openrtb2.Device
	BlockedRequestByTCF   bool
	BlockedAnalyticsByTCF bool
}

// TCFDefiner is the part of gdpr.TCFDefinerService used by the enforcement stages.
type TCFDefiner interface {
	ResolveTCFContext(ctx context.Context, p privacy.Privacy, country, ipAddress string, account config.AccountGDPR, channel config.ChannelType, geoHint *geolocation.GeoInfo) gdpr.TCFContext
	ResultForBidderNamesWithResolver(ctx context.Context, bidders []string, resolver gdpr.VendorIDResolver, tcfContext gdpr.TCFContext, account config.AccountGDPR) gdpr.TCFResponse[string]
}

// newResults pairs every bidder with its user and the device. Results are ordered by bidder name.
func newResults(bidderToUser map[string]*openrtb2.User, bidderToDevice map[string]*openrtb2.Device) []BidderPrivacyResult {
	names := make(map[string]struct{}, len(bidderToUser))
	for bidder := range bidderToUser {
		names[bidder] = struct{}{}
	}
	for bidder := range bidderToDevice {
		names[bidder] = struct{}{}
	}

	bidders := make([]string, 0, len(names))
	for bidder := range names {
		bidders = append(bidders, bidder)
	}
	sort.Strings(bidders)

	results := make([]BidderPrivacyResult, 0, len(bidders))
	for _, bidder := range bidders {
		results = append(results, BidderPrivacyResult{
			RequestBidder: bidder,
			User:          bidderToUser[bidder],
			Device:        bidderToDevice[bidder],
		})
	}
	return results
}

func resultBidders(results []BidderPrivacyResult) []string {
	bidders := make([]string, 0, len(results))
	for _, result := range results {
		bidders = append(bidders, result.RequestBidder)
	}
	return bidders
}

// resolveBidder returns the catalog bidder behind a request bidder, following request aliases first.
func resolveBidder(bidder string, aliases map[string]string, catalog config.BidderInfos) string {
	if root, ok := aliases[bidder]; ok {
		bidder = root
	}
	return catalog.ResolveAlias(bidder)
}

// lmtPolicy prefers the flag derived for the request device over the one read from the given device.
func lmtPolicy(device *openrtb2.Device, auction AuctionContext) lmt.Policy {
	if auction.Privacy.LMT.SignalProvided {
		return auction.Privacy.LMT
	}
	return lmt.ReadPolicy(device)
}
