package ccpa

import (
	"encoding/json"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
)

func TestReadFromRequest(t *testing.T) {
	testCases := []struct {
		description    string
		request        *openrtb2.BidRequest
		expectedPolicy Policy
		expectedError  bool
	}{
		{
			description: "Success - Legacy Ext",
			request: &openrtb2.BidRequest{
				Regs: &openrtb2.Regs{Ext: json.RawMessage(`{"us_privacy":"ABC"}`)},
				Ext:  json.RawMessage(`{"prebid":{"nosale":["a", "b"]}}`),
			},
			expectedPolicy: Policy{Consent: "ABC", NoSaleBidders: []string{"a", "b"}},
		},
		{
			description: "Success - 2.6 Field Wins",
			request: &openrtb2.BidRequest{
				Regs: &openrtb2.Regs{USPrivacy: "1YNN", Ext: json.RawMessage(`{"us_privacy":"ABC"}`)},
			},
			expectedPolicy: Policy{Consent: "1YNN"},
		},
		{
			description:    "Nil Request",
			request:        nil,
			expectedPolicy: Policy{},
		},
		{
			description: "Nil Regs",
			request: &openrtb2.BidRequest{
				Ext: json.RawMessage(`{"prebid":{"nosale":["a", "b"]}}`),
			},
			expectedPolicy: Policy{NoSaleBidders: []string{"a", "b"}},
		},
		{
			description: "Missing Regs.Ext USPrivacy Value",
			request: &openrtb2.BidRequest{
				Regs: &openrtb2.Regs{Ext: json.RawMessage(`{"anythingElse":"42"}`)},
			},
			expectedPolicy: Policy{},
		},
		{
			description: "Malformed Regs.Ext USPrivacy Value",
			request: &openrtb2.BidRequest{
				Regs: &openrtb2.Regs{Ext: json.RawMessage(`{"us_privacy":42}`)},
			},
			expectedError: true,
		},
		{
			description: "Missing NoSale",
			request: &openrtb2.BidRequest{
				Regs: &openrtb2.Regs{USPrivacy: "1YNN"},
				Ext:  json.RawMessage(`{"prebid":{}}`),
			},
			expectedPolicy: Policy{Consent: "1YNN"},
		},
		{
			description: "Malformed NoSale",
			request: &openrtb2.BidRequest{
				Ext: json.RawMessage(`{"prebid":{"nosale":[1]}}`),
			},
			expectedError: true,
		},
	}

	for _, test := range testCases {
		result, err := ReadFromRequest(test.request)
		if test.expectedError {
			assert.Error(t, err, test.description)
			continue
		}
		assert.NoError(t, err, test.description)
		assert.Equal(t, test.expectedPolicy, result, test.description)
	}
}

func TestValidateConsent(t *testing.T) {
	testCases := []struct {
		description   string
		consent       string
		expectedError string
	}{
		{description: "Empty", consent: ""},
		{description: "Valid - Opt Out", consent: "1YYY"},
		{description: "Valid - Not Applicable", consent: "1---"},
		{description: "Invalid Length", consent: "1YY", expectedError: "must contain 4 characters"},
		{description: "Invalid Version", consent: "2YYY", expectedError: "must specify version 1"},
		{description: "Invalid Explicit Notice", consent: "1XYY", expectedError: "must specify 'N', 'Y', or '-' for the explicit notice"},
		{description: "Invalid Opt Out", consent: "1YXY", expectedError: "must specify 'N', 'Y', or '-' for the opt-out sale"},
		{description: "Invalid LSPA", consent: "1YYX", expectedError: "must specify 'N', 'Y', or '-' for the limited service provider agreement"},
	}

	for _, test := range testCases {
		err := ValidateConsent(test.consent)
		if test.expectedError == "" {
			assert.NoError(t, err, test.description)
		} else {
			assert.EqualError(t, err, test.expectedError, test.description)
		}
	}
}

func TestValidateNoSaleBidders(t *testing.T) {
	testCases := []struct {
		description   string
		noSale        []string
		expectedError bool
	}{
		{description: "None", noSale: nil},
		{description: "Wildcard Alone", noSale: []string{"*"}},
		{description: "Named", noSale: []string{"a", "b"}},
		{description: "Wildcard Mixed", noSale: []string{"*", "a"}, expectedError: true},
	}

	for _, test := range testCases {
		err := ValidateNoSaleBidders(test.noSale)
		assert.Equal(t, test.expectedError, err != nil, test.description)
	}
}

func TestShouldEnforce(t *testing.T) {
	testCases := []struct {
		description string
		policy      Policy
		bidder      string
		expected    bool
	}{
		{
			description: "Opt Out",
			policy:      Policy{Consent: "1YYY"},
			bidder:      "a",
			expected:    true,
		},
		{
			description: "Opt Out - Not Applicable LSPA",
			policy:      Policy{Consent: "1YY-"},
			bidder:      "a",
			expected:    true,
		},
		{
			description: "No Opt Out",
			policy:      Policy{Consent: "1YNY"},
			bidder:      "a",
			expected:    false,
		},
		{
			description: "Empty Consent",
			policy:      Policy{},
			bidder:      "a",
			expected:    false,
		},
		{
			description: "Invalid Consent",
			policy:      Policy{Consent: "malformed"},
			bidder:      "a",
			expected:    false,
		},
		{
			description: "No Sale - Listed Bidder",
			policy:      Policy{Consent: "1YYY", NoSaleBidders: []string{"a"}},
			bidder:      "a",
			expected:    false,
		},
		{
			description: "No Sale - Listed Bidder Case Insensitive",
			policy:      Policy{Consent: "1YYY", NoSaleBidders: []string{"A"}},
			bidder:      "a",
			expected:    false,
		},
		{
			description: "No Sale - Other Bidder",
			policy:      Policy{Consent: "1YYY", NoSaleBidders: []string{"b"}},
			bidder:      "a",
			expected:    true,
		},
		{
			description: "No Sale - Wildcard",
			policy:      Policy{Consent: "1YYY", NoSaleBidders: []string{"*"}},
			bidder:      "a",
			expected:    false,
		},
		{
			description: "No Sale - Invalid List",
			policy:      Policy{Consent: "1YYY", NoSaleBidders: []string{"*", "b"}},
			bidder:      "a",
			expected:    false,
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, test.policy.ShouldEnforce(test.bidder), test.description)
	}
}
