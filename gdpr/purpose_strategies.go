package gdpr

import (
	"github.com/prebid/go-gdpr/consentconstants"
)

const (
	purposeStoreInfo         consentconstants.Purpose = 1
	purposeBasicAds          consentconstants.Purpose = 2
	purposeAdsProfile        consentconstants.Purpose = 3
	purposeSelectAds         consentconstants.Purpose = 4
	purposeContentProfile    consentconstants.Purpose = 5
	purposeSelectContent     consentconstants.Purpose = 6
	purposeMeasureAds        consentconstants.Purpose = 7
	purposeMeasureContent    consentconstants.Purpose = 8
	purposeMarketResearch    consentconstants.Purpose = 9
	purposeDevelopProducts   consentconstants.Purpose = 10
	specialFeaturePreciseGeo uint16                   = 1
)

// purposeStrategy relaxes an action once a purpose is established. allow runs when the legal basis
// holds, vendor exceptions included. natural runs when the legal basis holds on consent alone.
type purposeStrategy struct {
	purpose consentconstants.Purpose
	allow   func(*PrivacyEnforcementAction)
	natural func(*PrivacyEnforcementAction)
}

func noop(*PrivacyEnforcementAction) {}

func allowUserIDs(a *PrivacyEnforcementAction) {
	a.RemoveUserIDs = false
}

// purposeStrategies are evaluated in order.
var purposeStrategies = []purposeStrategy{
	{
		purpose: purposeStoreInfo,
		allow:   func(a *PrivacyEnforcementAction) { a.BlockPixelSync = false },
		natural: noop,
	},
	{
		purpose: purposeBasicAds,
		allow:   func(a *PrivacyEnforcementAction) { a.BlockBidderRequest = false },
		natural: allowUserIDs,
	},
	{
		purpose: purposeAdsProfile,
		allow:   noop,
		natural: func(a *PrivacyEnforcementAction) { a.RemoveUserFPD = false },
	},
	{
		purpose: purposeSelectAds,
		allow:   func(a *PrivacyEnforcementAction) { a.MaskDeviceInfo = false },
		natural: allowUserIDs,
	},
	{
		purpose: purposeContentProfile,
		allow:   noop,
		natural: allowUserIDs,
	},
	{
		purpose: purposeSelectContent,
		allow:   noop,
		natural: func(a *PrivacyEnforcementAction) {
			a.RemoveUserIDs = false
			a.MaskDeviceInfo = false
		},
	},
	{
		purpose: purposeMeasureAds,
		allow:   func(a *PrivacyEnforcementAction) { a.BlockAnalyticsReport = false },
		natural: allowUserIDs,
	},
	{purpose: purposeMeasureContent, allow: noop, natural: allowUserIDs},
	{purpose: purposeMarketResearch, allow: noop, natural: allowUserIDs},
	{purpose: purposeDevelopProducts, allow: noop, natural: allowUserIDs},
}

// allowPreciseGeo is applied once special feature 1 is established.
func allowPreciseGeo(a *PrivacyEnforcementAction) {
	a.MaskGeo = false
	a.MaskDeviceIP = false
}
