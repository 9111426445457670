package lmt

import (
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-privacy/util/ptrutil"
)

func TestReadPolicy(t *testing.T) {
	testCases := []struct {
		description    string
		device         *openrtb2.Device
		expectedPolicy Policy
	}{
		{
			description:    "Nil Device",
			device:         nil,
			expectedPolicy: Policy{},
		},
		{
			description:    "Nil LMT",
			device:         &openrtb2.Device{},
			expectedPolicy: Policy{},
		},
		{
			description:    "Restricted",
			device:         &openrtb2.Device{Lmt: ptrutil.ToPtr[int8](1)},
			expectedPolicy: Policy{Signal: 1, SignalProvided: true},
		},
		{
			description:    "Unrestricted",
			device:         &openrtb2.Device{Lmt: ptrutil.ToPtr[int8](0)},
			expectedPolicy: Policy{Signal: 0, SignalProvided: true},
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expectedPolicy, ReadPolicy(test.device), test.description)
	}
}

func TestShouldEnforce(t *testing.T) {
	testCases := []struct {
		description  string
		policy       Policy
		hostEnforced bool
		expected     bool
	}{
		{
			description:  "Signal Restricted",
			policy:       Policy{Signal: 1, SignalProvided: true},
			hostEnforced: true,
			expected:     true,
		},
		{
			description:  "Signal Restricted - Host Does Not Enforce",
			policy:       Policy{Signal: 1, SignalProvided: true},
			hostEnforced: false,
			expected:     false,
		},
		{
			description:  "Signal Unrestricted",
			policy:       Policy{Signal: 0, SignalProvided: true},
			hostEnforced: true,
			expected:     false,
		},
		{
			description:  "Signal Unknown Value",
			policy:       Policy{Signal: 42, SignalProvided: true},
			hostEnforced: true,
			expected:     false,
		},
		{
			description:  "Signal Not Provided",
			policy:       Policy{Signal: 1, SignalProvided: false},
			hostEnforced: true,
			expected:     false,
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, test.policy.ShouldEnforce(test.hostEnforced), test.description)
	}
}
