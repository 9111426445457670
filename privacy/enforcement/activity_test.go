package enforcement

import (
	"context"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/privacy"
)

func TestActivityEnforcement(t *testing.T) {
	denyAppnexus := config.Activity{Rules: []config.ActivityRule{{
		Condition: config.ActivityCondition{ComponentName: []string{"appnexus"}, ComponentType: []string{"bidder"}},
		Allow:     false,
	}}}

	testCases := []struct {
		description    string
		activities     config.AllowActivities
		expectedUser   *openrtb2.User
		expectedDevice *openrtb2.Device
	}{
		{
			description:    "everything-allowed",
			expectedUser:   testUser(),
			expectedDevice: testDevice(),
		},
		{
			description:    "transmit-ufpd-denied",
			activities:     config.AllowActivities{TransmitUserFPD: denyAppnexus},
			expectedUser:   privacy.MaskUserActivity(testUser(), true, false),
			expectedDevice: privacy.MaskDeviceActivity(testDevice(), true, false),
		},
		{
			description:    "transmit-precise-geo-denied",
			activities:     config.AllowActivities{TransmitPreciseGeo: denyAppnexus},
			expectedUser:   privacy.MaskUserActivity(testUser(), false, true),
			expectedDevice: privacy.MaskDeviceActivity(testDevice(), false, true),
		},
	}

	for _, test := range testCases {
		activities, err := privacy.NewActivityInfrastructure(&config.AccountPrivacy{AllowActivities: &test.activities})
		require.NoError(t, err, test.description)

		auction := AuctionContext{Activities: activities}
		results := NewActivityEnforcement().Enforce(context.Background(), auction, newResults(bidderUsers("appnexus", "rubicon"), bidderDevices("appnexus", "rubicon")))

		byBidder := resultsByBidder(results)
		assert.Equal(t, test.expectedUser, byBidder["appnexus"].User, test.description)
		assert.Equal(t, test.expectedDevice, byBidder["appnexus"].Device, test.description)
		assert.Equal(t, testUser(), byBidder["rubicon"].User, test.description+":other bidder")
	}
}

func TestActivityEnforcementSkipsBlockedBidders(t *testing.T) {
	results := []BidderPrivacyResult{{RequestBidder: "appnexus", BlockedRequestByTCF: true}}
	activities, err := privacy.NewActivityInfrastructure(&config.AccountPrivacy{AllowActivities: &config.AllowActivities{
		TransmitUserFPD: config.Activity{Default: new(bool)},
	}})
	require.NoError(t, err)

	results = NewActivityEnforcement().Enforce(context.Background(), AuctionContext{Activities: activities}, results)
	assert.Nil(t, results[0].User)
	assert.Nil(t, results[0].Device)
}
