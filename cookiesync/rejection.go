package cookiesync

// RejectionReason explains why a bidder was left out of a cookie sync response.
type RejectionReason int

const (
	RejectionInvalidBidder RejectionReason = iota + 1
	RejectionDisabledBidder
	RejectionTCF
	RejectionCCPA
	RejectionActivity
	RejectionUnconfiguredUsersync
	RejectionDisabledUsersync
	RejectionFilter
	RejectionAlreadyInSync
)

type rejectionError struct {
	message        string
	whenRequested  bool
	whenCoopSynced bool
}

// rejectionErrors lists the debug message of every reason and whether it is reported for requested and
// cooperative bidders.
var rejectionErrors = map[RejectionReason]rejectionError{
	RejectionInvalidBidder:        {message: "Unsupported bidder", whenRequested: true},
	RejectionDisabledBidder:       {message: "Disabled bidder", whenRequested: true},
	RejectionTCF:                  {message: "Rejected by TCF", whenRequested: true, whenCoopSynced: true},
	RejectionCCPA:                 {message: "Rejected by CCPA", whenRequested: true, whenCoopSynced: true},
	RejectionActivity:             {message: "Disallowed activity", whenRequested: true, whenCoopSynced: true},
	RejectionUnconfiguredUsersync: {message: "No sync config", whenRequested: true},
	RejectionDisabledUsersync:     {message: "Sync disabled by config", whenRequested: true, whenCoopSynced: true},
	RejectionFilter:               {message: "Rejected by request filter", whenRequested: true, whenCoopSynced: true},
	RejectionAlreadyInSync:        {message: "Already in sync", whenRequested: true},
}

func (r RejectionReason) String() string {
	if e, ok := rejectionErrors[r]; ok {
		return e.message
	}
	return ""
}
