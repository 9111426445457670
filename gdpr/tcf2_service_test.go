package gdpr

import (
	"context"
	"errors"
	"testing"

	"github.com/prebid/go-gdpr/api"
	"github.com/prebid/go-gdpr/consentconstants"
	"github.com/prebid/go-gdpr/vendorlist2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// fakeTCString is a decoded consent string built from plain maps.
type fakeTCString struct {
	policyVersion       uint8
	listVersion         uint16
	purposes            map[consentconstants.Purpose]bool
	purposesLI          map[consentconstants.Purpose]bool
	purposeOneTreatment bool
	specialFeatures     map[uint16]bool
	vendorConsents      map[uint16]bool
	vendorLI            map[uint16]bool
}

func (c fakeTCString) Version() uint8            { return 2 }
func (c fakeTCString) VendorListVersion() uint16 { return c.listVersion }
func (c fakeTCString) TCFPolicyVersion() uint8   { return c.policyVersion }
func (c fakeTCString) PurposeAllowed(id consentconstants.Purpose) bool {
	return c.purposes[id]
}
func (c fakeTCString) PurposeLITransparency(id consentconstants.Purpose) bool {
	return c.purposesLI[id]
}
func (c fakeTCString) PurposeOneTreatment() bool          { return c.purposeOneTreatment }
func (c fakeTCString) SpecialFeatureOptIn(id uint16) bool { return c.specialFeatures[id] }
func (c fakeTCString) VendorConsent(id uint16) bool       { return c.vendorConsents[id] }
func (c fakeTCString) VendorLegitInterest(id uint16) bool { return c.vendorLI[id] }
func (c fakeTCString) CheckPubRestriction(uint8, uint8, uint16) bool {
	return false
}

func purposeSet(purposes ...consentconstants.Purpose) map[consentconstants.Purpose]bool {
	set := make(map[consentconstants.Purpose]bool, len(purposes))
	for _, p := range purposes {
		set[p] = true
	}
	return set
}

var allPurposes = []consentconstants.Purpose{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

const appnexusID = uint16(32)

// hostTCF2Config enforces every purpose with the full algorithm. Exceptions are set through the string
// lists; the lookup maps are built on first use.
func hostTCF2Config() config.TCF2 {
	purpose := config.TCF2Purpose{
		EnforceAlgo:    config.TCF2EnforceAlgoFull,
		EnforceAlgoID:  config.TCF2FullEnforcement,
		EnforcePurpose: true,
		EnforceVendors: true,
	}
	return config.TCF2{
		Purpose1: purpose, Purpose2: purpose, Purpose3: purpose, Purpose4: purpose, Purpose5: purpose,
		Purpose6: purpose, Purpose7: purpose, Purpose8: purpose, Purpose9: purpose, Purpose10: purpose,
		SpecialFeature1:     config.TCF2SpecialFeature{Enforce: true},
		PurposeOneTreatment: config.TCF2PurposeOneTreatment{Enabled: true, AccessAllowed: true},
	}
}

func testCatalog() config.BidderInfos {
	return config.BidderInfos{
		"appnexus": {GVLVendorID: appnexusID},
		"rubicon":  {GVLVendorID: 52},
		"unlisted": {GVLVendorID: 99},
	}
}

// fullClaimsVendorList declares every purpose for appnexus and rubicon. Vendor 99 is not listed.
func fullClaimsVendorList(t *testing.T) api.VendorList {
	purposes := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	list := MarshalVendorList(vendorList{
		VendorListVersion: 2,
		Vendors: map[string]*vendor{
			"32": {ID: 32, Purposes: purposes},
			"52": {ID: 52, Purposes: purposes},
		},
	})
	parsed, err := vendorlist2.ParseEagerly([]byte(list))
	require.NoError(t, err)
	return parsed
}

func staticFetcher(list api.VendorList, err error) VendorListFetcher {
	return func(_ context.Context, _, _ uint16) (api.VendorList, error) {
		return list, err
	}
}

// withoutEIDExceptions clears the eid exceptions so the remaining flags can be compared.
func withoutEIDExceptions(action PrivacyEnforcementAction) PrivacyEnforcementAction {
	action.EIDExceptions = nil
	return action
}

func TestTCF2ServicePermissionsForBidders(t *testing.T) {
	fullConsent := fakeTCString{
		listVersion:     2,
		purposes:        purposeSet(allPurposes...),
		specialFeatures: map[uint16]bool{1: true},
		vendorConsents:  map[uint16]bool{32: true, 52: true, 99: true},
	}
	purposeTwoConsent := fakeTCString{
		listVersion:    2,
		purposes:       purposeSet(2),
		vendorConsents: map[uint16]bool{32: true},
	}

	testCases := []struct {
		description    string
		hostConfig     func(cfg *config.TCF2)
		account        config.AccountGDPR
		fetchErr       error
		bidder         string
		consent        TCString
		expectedAction PrivacyEnforcementAction
	}{
		{
			description:    "Missing Consent Restricts Everything",
			bidder:         "appnexus",
			consent:        nil,
			expectedAction: RestrictAll(),
		},
		{
			description:    "Full Consent Allows Everything",
			bidder:         "appnexus",
			consent:        fullConsent,
			expectedAction: AllowAll(),
		},
		{
			description:    "No Consent Restricts Everything",
			bidder:         "appnexus",
			consent:        fakeTCString{listVersion: 2},
			expectedAction: RestrictAll(),
		},
		{
			description: "Purpose Two Allows Request And User Ids",
			bidder:      "appnexus",
			consent:     purposeTwoConsent,
			expectedAction: PrivacyEnforcementAction{
				BlockAnalyticsReport: true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				MaskDeviceInfo:       true,
				BlockPixelSync:       true,
			},
		},
		{
			description: "Select Ads Without Ads Profile Keeps First Party Data Removed",
			bidder:      "appnexus",
			consent: fakeTCString{
				listVersion:    2,
				purposes:       purposeSet(2, 4),
				vendorConsents: map[uint16]bool{32: true},
			},
			expectedAction: PrivacyEnforcementAction{
				BlockAnalyticsReport: true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				BlockPixelSync:       true,
			},
		},
		{
			description: "Vendor Exception Allows Request But Not User Ids",
			hostConfig: func(cfg *config.TCF2) {
				cfg.Purpose2.VendorExceptions = []string{"appnexus"}
			},
			bidder:  "appnexus",
			consent: fakeTCString{listVersion: 2},
			expectedAction: PrivacyEnforcementAction{
				BlockAnalyticsReport: true,
				RemoveUserIDs:        true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				MaskDeviceInfo:       true,
				BlockPixelSync:       true,
			},
		},
		{
			description:    "Vendor Missing From Vendor List Is Restricted",
			bidder:         "unlisted",
			consent:        fullConsent,
			expectedAction: PrivacyEnforcementAction{BlockAnalyticsReport: true, BlockBidderRequest: true, RemoveUserIDs: true, RemoveUserFPD: true, MaskDeviceInfo: true, BlockPixelSync: true},
		},
		{
			description:    "Vendor List Unavailable Downgrades To Basic Enforcement",
			fetchErr:       errors.New("vendor list unavailable"),
			bidder:         "unlisted",
			consent:        fullConsent,
			expectedAction: AllowAll(),
		},
		{
			description: "Basic Enforcement Vendor Skips Vendor Consent",
			account: config.AccountGDPR{
				BasicEnforcementVendorsMap: map[string]struct{}{"rubicon": {}},
			},
			bidder: "rubicon",
			consent: fakeTCString{
				listVersion: 2,
				purposes:    purposeSet(2),
			},
			expectedAction: PrivacyEnforcementAction{
				BlockAnalyticsReport: true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				MaskDeviceInfo:       true,
				BlockPixelSync:       true,
			},
		},
		{
			description: "Account Disables Purpose Two Enforcement",
			account: config.AccountGDPR{
				PurposeConfigs: map[consentconstants.Purpose]*config.AccountGDPRPurpose{
					2: {EnforcePurpose: ptrutil.ToPtr(false), EnforceVendors: ptrutil.ToPtr(false)},
				},
			},
			bidder:  "appnexus",
			consent: fakeTCString{listVersion: 2},
			expectedAction: PrivacyEnforcementAction{
				BlockAnalyticsReport: true,
				RemoveUserIDs:        true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				MaskDeviceInfo:       true,
				BlockPixelSync:       true,
			},
		},
		{
			description: "Purpose One Treatment Allows Access",
			bidder:      "appnexus",
			consent: fakeTCString{
				listVersion:         2,
				purposeOneTreatment: true,
			},
			expectedAction: PrivacyEnforcementAction{
				BlockBidderRequest:   true,
				BlockAnalyticsReport: true,
				RemoveUserIDs:        true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				MaskDeviceInfo:       true,
			},
		},
		{
			description: "Purpose One Treatment Denies Access",
			hostConfig: func(cfg *config.TCF2) {
				cfg.PurposeOneTreatment.AccessAllowed = false
			},
			bidder: "appnexus",
			consent: fakeTCString{
				listVersion:         2,
				purposes:            purposeSet(1),
				vendorConsents:      map[uint16]bool{32: true},
				purposeOneTreatment: true,
			},
			expectedAction: RestrictAll(),
		},
		{
			description: "Purpose One Treatment Ignored When Disabled",
			hostConfig: func(cfg *config.TCF2) {
				cfg.PurposeOneTreatment.Enabled = false
			},
			bidder: "appnexus",
			consent: fakeTCString{
				listVersion:         2,
				purposes:            purposeSet(1),
				vendorConsents:      map[uint16]bool{32: true},
				purposeOneTreatment: true,
			},
			expectedAction: PrivacyEnforcementAction{
				BlockBidderRequest:   true,
				BlockAnalyticsReport: true,
				RemoveUserIDs:        true,
				RemoveUserFPD:        true,
				MaskGeo:              true,
				MaskDeviceIP:         true,
				MaskDeviceInfo:       true,
			},
		},
		{
			description: "Special Feature One Not Enforced",
			hostConfig: func(cfg *config.TCF2) {
				cfg.SpecialFeature1.Enforce = false
			},
			bidder:  "appnexus",
			consent: fakeTCString{listVersion: 2},
			expectedAction: PrivacyEnforcementAction{
				BlockBidderRequest:   true,
				BlockAnalyticsReport: true,
				RemoveUserIDs:        true,
				RemoveUserFPD:        true,
				MaskDeviceInfo:       true,
				BlockPixelSync:       true,
			},
		},
		{
			description: "Special Feature One Vendor Exception",
			hostConfig: func(cfg *config.TCF2) {
				cfg.SpecialFeature1.VendorExceptions = []string{"appnexus"}
			},
			bidder:  "appnexus",
			consent: fakeTCString{listVersion: 2},
			expectedAction: PrivacyEnforcementAction{
				BlockBidderRequest:   true,
				BlockAnalyticsReport: true,
				RemoveUserIDs:        true,
				RemoveUserFPD:        true,
				MaskDeviceInfo:       true,
				BlockPixelSync:       true,
			},
		},
	}

	for _, test := range testCases {
		hostConfig := hostTCF2Config()
		if test.hostConfig != nil {
			test.hostConfig(&hostConfig)
		}
		var list api.VendorList
		if test.fetchErr == nil {
			list = fullClaimsVendorList(t)
		}
		service := NewTCF2Service(hostConfig, testCatalog(), staticFetcher(list, test.fetchErr))

		permissions := service.PermissionsForBidders(context.Background(), []string{test.bidder}, NewVendorIDResolver(testCatalog()), test.consent, test.account)

		require.Len(t, permissions, 1, test.description)
		assert.Equal(t, test.bidder, permissions[0].BidderName, test.description)
		assert.Equal(t, withoutEIDExceptions(test.expectedAction), withoutEIDExceptions(permissions[0].Action), test.description)
	}
}

func TestTCF2ServiceEIDExceptions(t *testing.T) {
	hostConfig := hostTCF2Config()
	hostConfig.Purpose4.EIDExceptions = []string{"liveramp.com"}
	service := NewTCF2Service(hostConfig, testCatalog(), staticFetcher(fullClaimsVendorList(t), nil))

	permissions := service.PermissionsForBidders(context.Background(), []string{"appnexus", "rubicon"}, NewVendorIDResolver(testCatalog()), fakeTCString{listVersion: 2}, config.AccountGDPR{})

	require.Len(t, permissions, 2)
	for _, permission := range permissions {
		assert.True(t, permission.Action.IsEIDException("liveramp.com"), permission.BidderName)
		assert.False(t, permission.Action.IsEIDException("adserver.org"), permission.BidderName)
	}

	permissions[0].Action.EIDExceptions["adserver.org"] = struct{}{}
	assert.False(t, permissions[1].Action.IsEIDException("adserver.org"), "actions must not share exceptions")
}

func TestTCF2ServicePermissionsForVendorIDs(t *testing.T) {
	consent := fakeTCString{
		listVersion:     2,
		purposes:        purposeSet(allPurposes...),
		specialFeatures: map[uint16]bool{1: true},
		vendorConsents:  map[uint16]bool{32: true, 77: true},
	}
	service := NewTCF2Service(hostTCF2Config(), testCatalog(), staticFetcher(fullClaimsVendorList(t), nil))

	permissions := service.PermissionsForVendorIDs(context.Background(), []uint16{32, 77}, consent)

	require.Len(t, permissions, 2)
	assert.Equal(t, VendorPermission{VendorID: 32, BidderName: "appnexus", Action: AllowAll()}, VendorPermission{
		VendorID:   permissions[0].VendorID,
		BidderName: permissions[0].BidderName,
		Action:     withoutEIDExceptions(permissions[0].Action),
	})
	assert.Equal(t, uint16(77), permissions[1].VendorID)
	assert.Empty(t, permissions[1].BidderName)
	assert.True(t, permissions[1].Action.BlockBidderRequest, "vendor 77 declares no purposes")
}

func TestTCF2ServiceFetchesVendorListOfConsent(t *testing.T) {
	var specVersion, listVersion uint16
	fetcher := func(_ context.Context, spec, list uint16) (api.VendorList, error) {
		specVersion, listVersion = spec, list
		return nil, errors.New("not found")
	}
	service := NewTCF2Service(hostTCF2Config(), testCatalog(), fetcher)

	service.PermissionsForVendorIDs(context.Background(), []uint16{32}, fakeTCString{policyVersion: 4, listVersion: 153})

	assert.Equal(t, uint16(3), specVersion)
	assert.Equal(t, uint16(153), listVersion)
}
