package usersync

// SyncType specifies the mechanism used to perform a user sync.
type SyncType string

const (
	// SyncTypeUnknown specifies the user sync type is invalid or not specified.
	SyncTypeUnknown SyncType = ""

	// SyncTypeIFrame specifies the user sync is to be performed within an HTML iframe
	// and to expect the server to return a valid HTML page with an embedded script.
	SyncTypeIFrame SyncType = "iframe"

	// SyncTypeRedirect specifies the user sync is to be performed within an HTML image
	// and to expect the server to return a 302 redirect.
	SyncTypeRedirect SyncType = "redirect"
)

// SyncTypeFilter determines which sync types, if any, the bidder is permitted to use.
type SyncTypeFilter struct {
	IFrame   BidderFilter
	Redirect BidderFilter
}

// ForBidder returns a slice of sync types the bidder is permitted to use.
func (t SyncTypeFilter) ForBidder(bidder string) []SyncType {
	var syncTypes []SyncType

	if t.IFrame.Allowed(bidder) {
		syncTypes = append(syncTypes, SyncTypeIFrame)
	}

	if t.Redirect.Allowed(bidder) {
		syncTypes = append(syncTypes, SyncTypeRedirect)
	}

	return syncTypes
}

// NewSyncTypeFilterForAll returns a filter which allows every bidder to use every sync type.
func NewSyncTypeFilterForAll() SyncTypeFilter {
	return SyncTypeFilter{
		IFrame:   NewBidderFilterForAll(BidderFilterModeInclude),
		Redirect: NewBidderFilterForAll(BidderFilterModeInclude),
	}
}

// MethodChooser picks the sync type a bidder uses for a cookie sync request.
type MethodChooser struct {
	filter SyncTypeFilter
}

func NewMethodChooser(filter SyncTypeFilter) MethodChooser {
	return MethodChooser{filter: filter}
}

// Choose returns the syncer's default sync type when the filter allows it, else the other sync type the
// syncer supports and the filter allows. It returns false when no sync type is left.
func (c MethodChooser) Choose(bidder string, syncer Syncer) (SyncType, bool) {
	allowed := c.filter.ForBidder(bidder)

	primary := syncer.DefaultSyncType()
	for _, syncType := range allowed {
		if syncType == primary && syncer.SupportsType([]SyncType{syncType}) {
			return syncType, true
		}
	}

	for _, syncType := range allowed {
		if syncer.SupportsType([]SyncType{syncType}) {
			return syncType, true
		}
	}

	return SyncTypeUnknown, false
}
