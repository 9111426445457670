package usersync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-privacy/macros"
)

type fakeSyncer struct {
	key             string
	defaultSyncType SyncType
	supported       []SyncType
}

func (s fakeSyncer) Key() string {
	return s.key
}

func (s fakeSyncer) DefaultSyncType() SyncType {
	return s.defaultSyncType
}

func (s fakeSyncer) SupportsType(syncTypes []SyncType) bool {
	for _, given := range syncTypes {
		for _, supported := range s.supported {
			if given == supported {
				return true
			}
		}
	}
	return false
}

func (s fakeSyncer) GetSync(syncTypes []SyncType, _ macros.UserSyncPrivacy) (Sync, error) {
	return Sync{}, nil
}

func TestSyncTypeFilter(t *testing.T) {
	testCases := []struct {
		description string
		filter      SyncTypeFilter
		expected    []SyncType
	}{
		{
			description: "All",
			filter:      NewSyncTypeFilterForAll(),
			expected:    []SyncType{SyncTypeIFrame, SyncTypeRedirect},
		},
		{
			description: "IFrame Only",
			filter: SyncTypeFilter{
				IFrame:   NewBidderFilter([]string{"a"}, BidderFilterModeInclude),
				Redirect: NewBidderFilter([]string{"a"}, BidderFilterModeExclude),
			},
			expected: []SyncType{SyncTypeIFrame},
		},
		{
			description: "None",
			filter: SyncTypeFilter{
				IFrame:   NewBidderFilterForAll(BidderFilterModeExclude),
				Redirect: NewBidderFilterForAll(BidderFilterModeExclude),
			},
			expected: nil,
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, test.filter.ForBidder("a"), test.description)
	}
}

func TestMethodChooser(t *testing.T) {
	var (
		both         = []SyncType{SyncTypeIFrame, SyncTypeRedirect}
		iframeOnly   = SyncTypeFilter{IFrame: NewBidderFilterForAll(BidderFilterModeInclude), Redirect: NewBidderFilterForAll(BidderFilterModeExclude)}
		redirectOnly = SyncTypeFilter{IFrame: NewBidderFilterForAll(BidderFilterModeExclude), Redirect: NewBidderFilterForAll(BidderFilterModeInclude)}
		none         = SyncTypeFilter{IFrame: NewBidderFilterForAll(BidderFilterModeExclude), Redirect: NewBidderFilterForAll(BidderFilterModeExclude)}
	)

	testCases := []struct {
		description    string
		filter         SyncTypeFilter
		syncer         Syncer
		expectedType   SyncType
		expectedChosen bool
	}{
		{
			description:    "Primary Allowed",
			filter:         NewSyncTypeFilterForAll(),
			syncer:         fakeSyncer{defaultSyncType: SyncTypeRedirect, supported: both},
			expectedType:   SyncTypeRedirect,
			expectedChosen: true,
		},
		{
			description:    "Primary Filtered - Secondary Chosen",
			filter:         iframeOnly,
			syncer:         fakeSyncer{defaultSyncType: SyncTypeRedirect, supported: both},
			expectedType:   SyncTypeIFrame,
			expectedChosen: true,
		},
		{
			description:    "Secondary Not Supported",
			filter:         redirectOnly,
			syncer:         fakeSyncer{defaultSyncType: SyncTypeIFrame, supported: []SyncType{SyncTypeIFrame}},
			expectedType:   SyncTypeUnknown,
			expectedChosen: false,
		},
		{
			description:    "All Filtered",
			filter:         none,
			syncer:         fakeSyncer{defaultSyncType: SyncTypeIFrame, supported: both},
			expectedType:   SyncTypeUnknown,
			expectedChosen: false,
		},
	}

	for _, test := range testCases {
		syncType, chosen := NewMethodChooser(test.filter).Choose("a", test.syncer)
		assert.Equal(t, test.expectedType, syncType, test.description+":type")
		assert.Equal(t, test.expectedChosen, chosen, test.description+":chosen")
	}
}

func TestParseBidderFilter(t *testing.T) {
	testCases := []struct {
		description   string
		bidders       json.RawMessage
		filter        string
		expectedA     bool
		expectedB     bool
		expectedError string
	}{
		{
			description: "Missing",
			expectedA:   true,
			expectedB:   true,
		},
		{
			description: "All Include",
			bidders:     json.RawMessage(`"*"`),
			filter:      "include",
			expectedA:   true,
			expectedB:   true,
		},
		{
			description: "All Exclude",
			bidders:     json.RawMessage(`"*"`),
			filter:      "exclude",
			expectedA:   false,
			expectedB:   false,
		},
		{
			description: "List Include",
			bidders:     json.RawMessage(`["A"]`),
			filter:      "include",
			expectedA:   true,
			expectedB:   false,
		},
		{
			description: "List Exclude",
			bidders:     json.RawMessage(`["a"]`),
			filter:      "exclude",
			expectedA:   false,
			expectedB:   true,
		},
		{
			description:   "Invalid Filter",
			bidders:       json.RawMessage(`"*"`),
			filter:        "maybe",
			expectedError: "invalid filter value 'maybe'. must be either 'include' or 'exclude'",
		},
		{
			description:   "Invalid Bidders String",
			bidders:       json.RawMessage(`"a"`),
			filter:        "include",
			expectedError: "invalid bidders value `a`. must either be '*' or a string array",
		},
		{
			description:   "Invalid Bidders Type",
			bidders:       json.RawMessage(`42`),
			filter:        "include",
			expectedError: "invalid bidders value `42`. must either be '*' or a string array",
		},
	}

	for _, test := range testCases {
		result, err := ParseBidderFilter(test.bidders, test.filter)
		if test.expectedError != "" {
			assert.EqualError(t, err, test.expectedError, test.description)
			continue
		}
		if assert.NoError(t, err, test.description) {
			assert.Equal(t, test.expectedA, result.Allowed("a"), test.description+":a")
			assert.Equal(t, test.expectedB, result.Allowed("b"), test.description+":b")
		}
	}
}
