package gdpr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-privacy/config"
)

func TestVendorIDResolver(t *testing.T) {
	catalog := config.BidderInfos{
		"appnexus":     {GVLVendorID: 32},
		"districtm":    {AliasOf: "appnexus"},
		"ownid":        {AliasOf: "appnexus", GVLVendorID: 144},
		"nogvl":        {},
		"rubicon":      {GVLVendorID: 52},
		"magnite-open": {AliasOf: "rubicon"},
	}

	testCases := []struct {
		description    string
		resolver       VendorIDResolver
		bidder         string
		expectedID     uint16
		expectedExists bool
	}{
		{
			description:    "Catalog Bidder",
			resolver:       NewVendorIDResolver(catalog),
			bidder:         "appnexus",
			expectedID:     32,
			expectedExists: true,
		},
		{
			description:    "Catalog Bidder Case Insensitive",
			resolver:       NewVendorIDResolver(catalog),
			bidder:         "AppNexus",
			expectedID:     32,
			expectedExists: true,
		},
		{
			description:    "Catalog Alias Uses Root Vendor",
			resolver:       NewVendorIDResolver(catalog),
			bidder:         "districtm",
			expectedID:     32,
			expectedExists: true,
		},
		{
			description:    "Catalog Alias With Own Vendor",
			resolver:       NewVendorIDResolver(catalog),
			bidder:         "ownid",
			expectedID:     144,
			expectedExists: true,
		},
		{
			description:    "Bidder Without Vendor",
			resolver:       NewVendorIDResolver(catalog),
			bidder:         "nogvl",
			expectedExists: false,
		},
		{
			description:    "Unknown Bidder",
			resolver:       NewVendorIDResolver(catalog),
			bidder:         "unknown",
			expectedExists: false,
		},
		{
			description:    "Request Alias",
			resolver:       NewRequestVendorIDResolver(catalog, map[string]string{"anx": "appnexus"}, nil),
			bidder:         "anx",
			expectedID:     32,
			expectedExists: true,
		},
		{
			description:    "Request Alias Of Catalog Alias",
			resolver:       NewRequestVendorIDResolver(catalog, map[string]string{"dm": "districtm"}, nil),
			bidder:         "dm",
			expectedID:     32,
			expectedExists: true,
		},
		{
			description:    "Request Alias Vendor Id Wins",
			resolver:       NewRequestVendorIDResolver(catalog, map[string]string{"anx": "appnexus"}, map[string]uint16{"anx": 77}),
			bidder:         "anx",
			expectedID:     77,
			expectedExists: true,
		},
		{
			description:    "Request Alias Zero Vendor Id Ignored",
			resolver:       NewRequestVendorIDResolver(catalog, map[string]string{"anx": "appnexus"}, map[string]uint16{"anx": 0}),
			bidder:         "anx",
			expectedID:     32,
			expectedExists: true,
		},
	}

	for _, test := range testCases {
		id, exists := test.resolver.Resolve(test.bidder)
		assert.Equal(t, test.expectedID, id, test.description)
		assert.Equal(t, test.expectedExists, exists, test.description)
	}
}
