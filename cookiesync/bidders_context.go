package cookiesync

import (
	"github.com/prebid/prebid-privacy/usersync"
)

// BiddersContext tracks the bidders of a cookie sync request through the filters. Values are never
// modified in place; the With methods return updated copies.
type BiddersContext struct {
	requested []string
	coopSync  []string
	rejected  map[string]RejectionReason
	methods   map[string]usersync.SyncType
}

// NewBiddersContext returns a context holding the requested bidders followed by the cooperative ones.
func NewBiddersContext(requested, coopSync []string) BiddersContext {
	return BiddersContext{
		requested: dedupe(requested),
		coopSync:  dedupe(coopSync),
		rejected:  map[string]RejectionReason{},
		methods:   map[string]usersync.SyncType{},
	}
}

func dedupe(bidders []string) []string {
	seen := make(map[string]struct{}, len(bidders))
	result := make([]string, 0, len(bidders))
	for _, bidder := range bidders {
		if _, ok := seen[bidder]; ok {
			continue
		}
		seen[bidder] = struct{}{}
		result = append(result, bidder)
	}
	return result
}

// AllBidders returns the requested bidders followed by the cooperative bidders not requested.
func (c BiddersContext) AllBidders() []string {
	all := make([]string, 0, len(c.requested)+len(c.coopSync))
	all = append(all, c.requested...)
	for _, bidder := range c.coopSync {
		if !c.IsRequested(bidder) {
			all = append(all, bidder)
		}
	}
	return all
}

// AllowedBidders returns every bidder not rejected yet.
func (c BiddersContext) AllowedBidders() []string {
	return c.allowed(c.AllBidders())
}

// AllowedRequestedBidders returns the requested bidders not rejected yet.
func (c BiddersContext) AllowedRequestedBidders() []string {
	return c.allowed(c.requested)
}

// AllowedCoopSyncBidders returns the cooperative bidders not requested and not rejected yet.
func (c BiddersContext) AllowedCoopSyncBidders() []string {
	var coop []string
	for _, bidder := range c.allowed(c.coopSync) {
		if !c.IsRequested(bidder) {
			coop = append(coop, bidder)
		}
	}
	return coop
}

func (c BiddersContext) allowed(bidders []string) []string {
	var allowed []string
	for _, bidder := range bidders {
		if _, rejected := c.rejected[bidder]; !rejected {
			allowed = append(allowed, bidder)
		}
	}
	return allowed
}

// RejectedBidders returns a copy of the rejected bidders with their reasons.
func (c BiddersContext) RejectedBidders() map[string]RejectionReason {
	rejected := make(map[string]RejectionReason, len(c.rejected))
	for bidder, reason := range c.rejected {
		rejected[bidder] = reason
	}
	return rejected
}

func (c BiddersContext) IsRequested(bidder string) bool {
	for _, requested := range c.requested {
		if requested == bidder {
			return true
		}
	}
	return false
}

func (c BiddersContext) IsCoopSync(bidder string) bool {
	for _, coop := range c.coopSync {
		if coop == bidder {
			return true
		}
	}
	return false
}

// UsersyncMethod returns the sync type chosen for the bidder.
func (c BiddersContext) UsersyncMethod(bidder string) (usersync.SyncType, bool) {
	syncType, ok := c.methods[bidder]
	return syncType, ok
}

// WithRejectedBidder returns a copy with the bidder rejected. The first rejection of a bidder wins.
func (c BiddersContext) WithRejectedBidder(bidder string, reason RejectionReason) BiddersContext {
	return c.WithRejectedBidders([]string{bidder}, reason)
}

// WithRejectedBidders returns a copy with every given bidder rejected. The first rejection of a bidder
// wins.
func (c BiddersContext) WithRejectedBidders(bidders []string, reason RejectionReason) BiddersContext {
	if len(bidders) == 0 {
		return c
	}

	rejected := c.RejectedBidders()
	for _, bidder := range bidders {
		if _, ok := rejected[bidder]; !ok {
			rejected[bidder] = reason
		}
	}
	c.rejected = rejected
	return c
}

// WithBidderUsersyncMethod returns a copy recording the sync type chosen for the bidder.
func (c BiddersContext) WithBidderUsersyncMethod(bidder string, syncType usersync.SyncType) BiddersContext {
	methods := make(map[string]usersync.SyncType, len(c.methods)+1)
	for b, t := range c.methods {
		methods[b] = t
	}
	methods[bidder] = syncType
	c.methods = methods
	return c
}
