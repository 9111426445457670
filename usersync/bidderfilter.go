package usersync

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BidderFilterMode represents the comparison approach of a BidderFilter.
type BidderFilterMode int

const (
	BidderFilterModeInclude BidderFilterMode = iota
	BidderFilterModeExclude
)

// BidderFilter determines if a bidder has permission to perform a user sync activity. Bidder names are
// compared case-insensitively.
type BidderFilter struct {
	biddersAll    bool
	biddersLookup map[string]struct{}
	mode          BidderFilterMode
}

// Allowed returns true if the bidder has permission per the filter settings and returns false if either
// the bidder is denied permission or if the BidderFilter is configured for an unsupported filter mode.
func (t BidderFilter) Allowed(bidder string) bool {
	switch t.mode {
	case BidderFilterModeInclude:
		return t.bidderIncluded(bidder)
	case BidderFilterModeExclude:
		return !t.bidderIncluded(bidder)
	default:
		return false
	}
}

func (t BidderFilter) bidderIncluded(bidder string) bool {
	if t.biddersAll {
		return true
	}

	_, exists := t.biddersLookup[strings.ToLower(bidder)]
	return exists
}

// NewBidderFilter returns a new BidderFilter which applies the same mode for a list of specific bidders.
func NewBidderFilter(bidders []string, mode BidderFilterMode) BidderFilter {
	biddersLookup := make(map[string]struct{}, len(bidders))
	for _, bidder := range bidders {
		biddersLookup[strings.ToLower(bidder)] = struct{}{}
	}

	return BidderFilter{biddersLookup: biddersLookup, mode: mode}
}

// NewBidderFilterForAll returns a new BidderFilter which applies the same mode for all bidders.
func NewBidderFilterForAll(mode BidderFilterMode) BidderFilter {
	return BidderFilter{biddersAll: true, mode: mode}
}

// ParseBidderFilter reads the bidders and filter fields of a cookie sync filter setting. Bidders is either
// "*" or an array of names and the filter is "include" or "exclude". A missing filter setting allows
// every bidder.
func ParseBidderFilter(bidders json.RawMessage, filter string) (BidderFilter, error) {
	mode := BidderFilterModeInclude
	switch strings.ToLower(filter) {
	case "", "include":
	case "exclude":
		mode = BidderFilterModeExclude
	default:
		return BidderFilter{}, fmt.Errorf("invalid filter value '%s'. must be either 'include' or 'exclude'", filter)
	}

	if len(bidders) == 0 || string(bidders) == "null" {
		return NewBidderFilterForAll(mode), nil
	}

	var all string
	if err := json.Unmarshal(bidders, &all); err == nil {
		if all != "*" {
			return BidderFilter{}, fmt.Errorf("invalid bidders value `%s`. must either be '*' or a string array", all)
		}
		return NewBidderFilterForAll(mode), nil
	}

	var names []string
	if err := json.Unmarshal(bidders, &names); err != nil {
		return BidderFilter{}, fmt.Errorf("invalid bidders value `%s`. must either be '*' or a string array", string(bidders))
	}
	return NewBidderFilter(names, mode), nil
}
