package cookiesync

import (
	"sort"

	"github.com/golang/glog"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/usersync"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// PrioritizedCoopSyncProvider holds the bidders synced first when cooperative sync is enabled.
type PrioritizedCoopSyncProvider struct {
	bidders  []string
	shuffler usersync.Shuffler
}

// NewPrioritizedCoopSyncProvider keeps the configured bidders which are valid, enabled and syncable.
// Other bidders are dropped with a warning.
func NewPrioritizedCoopSyncProvider(bidders []string, catalog config.BidderInfos, syncers map[string]usersync.Syncer, shuffler usersync.Shuffler) *PrioritizedCoopSyncProvider {
	valid := make([]string, 0, len(bidders))
	for _, bidder := range bidders {
		switch {
		case !catalog.IsValidName(bidder):
			glog.Warningf("%s is not a valid bidder name, ignoring it for prioritized coop sync", bidder)
		case !catalog.IsActive(bidder):
			glog.Warningf("%s is disabled, ignoring it for prioritized coop sync", bidder)
		case syncers[bidder] == nil:
			glog.Warningf("%s has no user sync configuration, ignoring it for prioritized coop sync", bidder)
		default:
			valid = append(valid, bidder)
		}
	}
	return &PrioritizedCoopSyncProvider{bidders: valid, shuffler: shuffler}
}

// PrioritizedBidders returns the account's prioritized bidders when it has any, else the host's. The
// result is reshuffled on every call.
func (p *PrioritizedCoopSyncProvider) PrioritizedBidders(account config.Account) []string {
	source := p.bidders
	if len(account.CookieSync.PrioritizedBidders) > 0 {
		source = account.CookieSync.PrioritizedBidders
	}

	bidders := make([]string, len(source))
	copy(bidders, source)
	p.shuffler.Shuffle(bidders)
	return bidders
}

// CoopSyncProvider chooses the bidders synced on top of the requested ones.
type CoopSyncProvider struct {
	prioritized     *PrioritizedCoopSyncProvider
	syncable        []string
	defaultCoopSync bool
	shuffler        usersync.Shuffler
}

func NewCoopSyncProvider(prioritized *PrioritizedCoopSyncProvider, catalog config.BidderInfos, syncers map[string]usersync.Syncer, defaultCoopSync bool, shuffler usersync.Shuffler) *CoopSyncProvider {
	syncable := make([]string, 0, len(syncers))
	for bidder := range syncers {
		if catalog.IsActive(bidder) {
			syncable = append(syncable, bidder)
		}
	}
	sort.Strings(syncable)

	return &CoopSyncProvider{
		prioritized:     prioritized,
		syncable:        syncable,
		defaultCoopSync: defaultCoopSync,
		shuffler:        shuffler,
	}
}

// CoopSyncBidders returns the prioritized bidders followed by every other syncable bidder in random
// order, or nothing when cooperative sync is off for the request.
func (p *CoopSyncProvider) CoopSyncBidders(syncContext Context) []string {
	enabled := ptrutil.ValueOrDefault(ptrutil.Coalesce(
		syncContext.Request.CoopSync,
		syncContext.Account.CookieSync.DefaultCoopSync,
		&p.defaultCoopSync))
	if !enabled {
		return nil
	}

	all := make([]string, len(p.syncable))
	copy(all, p.syncable)
	p.shuffler.Shuffle(all)

	return dedupe(append(p.prioritized.PrioritizedBidders(syncContext.Account), all...))
}
