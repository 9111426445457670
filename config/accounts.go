package config

import (
	"fmt"

	"github.com/prebid/go-gdpr/consentconstants"

	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// ChannelType enumerates the values of integrations Prebid Server can configure for an account
type ChannelType string

// Possible values of channel types Prebid Server can configure for an account
const (
	ChannelAMP   ChannelType = "amp"
	ChannelApp   ChannelType = "app"
	ChannelVideo ChannelType = "video"
	ChannelWeb   ChannelType = "web"
	ChannelDOOH  ChannelType = "dooh"
)

// Account represents a publisher account configuration
type Account struct {
	ID         string         `mapstructure:"id" json:"id"`
	Disabled   bool           `mapstructure:"disabled" json:"disabled"`
	GDPR       AccountGDPR    `mapstructure:"gdpr" json:"gdpr"`
	CCPA       AccountCCPA    `mapstructure:"ccpa" json:"ccpa"`
	CookieSync CookieSync     `mapstructure:"cookie_sync" json:"cookie_sync"`
	Privacy    AccountPrivacy `mapstructure:"privacy" json:"privacy"`
}

// CookieSync represents the account-level defaults for the cookie sync endpoint.
type CookieSync struct {
	DefaultLimit       *int     `mapstructure:"default_limit" json:"default_limit"`
	MaxLimit           *int     `mapstructure:"max_limit" json:"max_limit"`
	DefaultCoopSync    *bool    `mapstructure:"default_coop_sync" json:"default_coop_sync"`
	PrioritizedBidders []string `mapstructure:"prioritized_bidders" json:"prioritized_bidders"`
}

// AccountCCPA represents account-specific CCPA configuration
type AccountCCPA struct {
	Enabled        *bool          `mapstructure:"enabled" json:"enabled,omitempty"`
	ChannelEnabled AccountChannel `mapstructure:"integration_enabled" json:"integration_enabled"`
}

// EnabledForChannelType indicates whether CCPA is turned on at the account level for the specified channel type
// by using the channel type setting if defined or the general CCPA setting if defined; otherwise it returns nil.
func (a *AccountCCPA) EnabledForChannelType(channelType ChannelType) *bool {
	if channelEnabled := a.ChannelEnabled.GetByChannelType(channelType); channelEnabled != nil {
		return channelEnabled
	}
	return a.Enabled
}

// AccountGDPR represents account-specific GDPR configuration
type AccountGDPR struct {
	Enabled        *bool          `mapstructure:"enabled" json:"enabled,omitempty"`
	ChannelEnabled AccountChannel `mapstructure:"integration_enabled" json:"integration_enabled"`
	// Array of basic enforcement vendors that is used to create the hash table so vendor names can be instantly accessed
	BasicEnforcementVendors    []string `mapstructure:"basic_enforcement_vendors" json:"basic_enforcement_vendors"`
	BasicEnforcementVendorsMap map[string]struct{}
	Purpose1                   AccountGDPRPurpose `mapstructure:"purpose1" json:"purpose1"`
	Purpose2                   AccountGDPRPurpose `mapstructure:"purpose2" json:"purpose2"`
	Purpose3                   AccountGDPRPurpose `mapstructure:"purpose3" json:"purpose3"`
	Purpose4                   AccountGDPRPurpose `mapstructure:"purpose4" json:"purpose4"`
	Purpose5                   AccountGDPRPurpose `mapstructure:"purpose5" json:"purpose5"`
	Purpose6                   AccountGDPRPurpose `mapstructure:"purpose6" json:"purpose6"`
	Purpose7                   AccountGDPRPurpose `mapstructure:"purpose7" json:"purpose7"`
	Purpose8                   AccountGDPRPurpose `mapstructure:"purpose8" json:"purpose8"`
	Purpose9                   AccountGDPRPurpose `mapstructure:"purpose9" json:"purpose9"`
	Purpose10                  AccountGDPRPurpose `mapstructure:"purpose10" json:"purpose10"`
	// Hash table of purpose configs for convenient purpose config lookup
	PurposeConfigs      map[consentconstants.Purpose]*AccountGDPRPurpose
	PurposeOneTreatment AccountGDPRPurposeOneTreatment `mapstructure:"purpose_one_treatment" json:"purpose_one_treatment"`
	SpecialFeature1     AccountGDPRSpecialFeature      `mapstructure:"special_feature1" json:"special_feature1"`
}

// EnabledForChannelType indicates whether GDPR is turned on at the account level for the specified channel type
// by using the channel type setting if defined or the general GDPR setting if defined; otherwise it returns nil.
func (a *AccountGDPR) EnabledForChannelType(channelType ChannelType) *bool {
	if channelEnabled := a.ChannelEnabled.GetByChannelType(channelType); channelEnabled != nil {
		return channelEnabled
	}
	return a.Enabled
}

func (a *AccountGDPR) purposeConfig(purpose consentconstants.Purpose) *AccountGDPRPurpose {
	if a.PurposeConfigs == nil {
		return nil
	}
	return a.PurposeConfigs[purpose]
}

// PurposeEnforced checks if full enforcement is turned on for a given purpose. With full enforcement enabled, the
// GDPR full enforcement algorithm will execute for that purpose determining legal basis; otherwise it's skipped.
func (a *AccountGDPR) PurposeEnforced(purpose consentconstants.Purpose) (value, exists bool) {
	pc := a.purposeConfig(purpose)
	if pc == nil || pc.EnforcePurpose == nil {
		return true, false
	}
	return *pc.EnforcePurpose, true
}

// PurposeEnforcementAlgo returns the enforcement algorithm for a given purpose
func (a *AccountGDPR) PurposeEnforcementAlgo(purpose consentconstants.Purpose) (value TCF2EnforcementAlgo, exists bool) {
	pc := a.purposeConfig(purpose)
	if pc == nil {
		return TCF2UndefinedEnforcement, false
	}
	if pc.EnforceAlgoID == TCF2BasicEnforcement || pc.EnforceAlgoID == TCF2FullEnforcement {
		return pc.EnforceAlgoID, true
	}
	return TCF2UndefinedEnforcement, false
}

// PurposeEnforcingVendors gets the account level enforce vendors setting for a given purpose returning the value and
// whether or not it is set. If not set, a default value of true is returned matching host default behavior.
func (a *AccountGDPR) PurposeEnforcingVendors(purpose consentconstants.Purpose) (value, exists bool) {
	pc := a.purposeConfig(purpose)
	if pc == nil || pc.EnforceVendors == nil {
		return true, false
	}
	return *pc.EnforceVendors, true
}

// PurposeVendorExceptions returns the vendor exception map for the specified purpose if it is set for the account;
// otherwise it returns a nil map
func (a *AccountGDPR) PurposeVendorExceptions(purpose consentconstants.Purpose) (value map[string]struct{}, exists bool) {
	pc := a.purposeConfig(purpose)
	if pc == nil || pc.VendorExceptionMap == nil {
		return nil, false
	}
	return pc.VendorExceptionMap, true
}

// PurposeEIDExceptions returns the eid source exceptions for the purpose if set for the account.
func (a *AccountGDPR) PurposeEIDExceptions(purpose consentconstants.Purpose) (value map[string]struct{}, exists bool) {
	pc := a.purposeConfig(purpose)
	if pc == nil || pc.EIDExceptionsMap == nil {
		return nil, false
	}
	return pc.EIDExceptionsMap, true
}

// SpecialFeature1Enforced gets the account level special feature 1 enforced setting returning the value and
// whether or not it is set. If not set, a default value of true is returned matching host default behavior.
func (a *AccountGDPR) SpecialFeature1Enforced() (value, exists bool) {
	if a.SpecialFeature1.Enforce == nil {
		return true, false
	}
	return *a.SpecialFeature1.Enforce, true
}

// SpecialFeature1VendorExceptions returns the vendor exception map for special feature 1 if it is set for the
// account; otherwise it returns a nil map
func (a *AccountGDPR) SpecialFeature1VendorExceptions() (value map[string]struct{}, exists bool) {
	if a.SpecialFeature1.VendorExceptionMap == nil {
		return nil, false
	}
	return a.SpecialFeature1.VendorExceptionMap, true
}

// PurposeOneTreatmentEnabled gets the account level purpose one treatment enabled setting returning the value and
// whether or not it is set. If not set, a default value of true is returned matching host default behavior.
func (a *AccountGDPR) PurposeOneTreatmentEnabled() (value, exists bool) {
	if a.PurposeOneTreatment.Enabled == nil {
		return true, false
	}
	return *a.PurposeOneTreatment.Enabled, true
}

// PurposeOneTreatmentAccessAllowed gets the account level purpose one treatment access allowed setting returning the
// value and whether or not it is set. If not set, a default value of true is returned matching host default behavior.
func (a *AccountGDPR) PurposeOneTreatmentAccessAllowed() (value, exists bool) {
	if a.PurposeOneTreatment.AccessAllowed == nil {
		return true, false
	}
	return *a.PurposeOneTreatment.AccessAllowed, true
}

// BasicEnforcementVendor reports whether the bidder is listed for basic enforcement by the account.
func (a *AccountGDPR) BasicEnforcementVendor(bidder string) bool {
	_, found := a.BasicEnforcementVendorsMap[bidder]
	return found
}

// AccountGDPRPurpose represents account-specific GDPR purpose configuration
type AccountGDPRPurpose struct {
	EnforceAlgo string `mapstructure:"enforce_algo" json:"enforce_algo,omitempty"`
	// Integer representation of enforcement algo for performance improvement on compares
	EnforceAlgoID  TCF2EnforcementAlgo
	EnforcePurpose *bool `mapstructure:"enforce_purpose" json:"enforce_purpose,omitempty"`
	EnforceVendors *bool `mapstructure:"enforce_vendors" json:"enforce_vendors,omitempty"`
	// Array of vendor exceptions that is used to create the hash table VendorExceptionMap so vendor names can be instantly accessed
	VendorExceptions   []string `mapstructure:"vendor_exceptions" json:"vendor_exceptions"`
	VendorExceptionMap map[string]struct{}
	EIDExceptions      []string `mapstructure:"eid_exceptions" json:"eid_exceptions"`
	EIDExceptionsMap   map[string]struct{}
}

// AccountGDPRSpecialFeature represents account-specific GDPR special feature configuration
type AccountGDPRSpecialFeature struct {
	Enforce *bool `mapstructure:"enforce" json:"enforce"`
	// Array of vendor exceptions that is used to create the hash table VendorExceptionMap so vendor names can be instantly accessed
	VendorExceptions   []string `mapstructure:"vendor_exceptions" json:"vendor_exceptions"`
	VendorExceptionMap map[string]struct{}
}

type AccountGDPRPurposeOneTreatment struct {
	Enabled       *bool `mapstructure:"enabled"`
	AccessAllowed *bool `mapstructure:"access_allowed"`
}

// AccountChannel indicates whether a particular privacy policy (GDPR, CCPA) is enabled for each channel type
type AccountChannel struct {
	AMP   *bool `mapstructure:"amp" json:"amp,omitempty"`
	App   *bool `mapstructure:"app" json:"app,omitempty"`
	Video *bool `mapstructure:"video" json:"video,omitempty"`
	Web   *bool `mapstructure:"web" json:"web,omitempty"`
	DOOH  *bool `mapstructure:"dooh" json:"dooh,omitempty"`
}

// GetByChannelType looks up the account integration enabled setting for the specified channel type
func (a *AccountChannel) GetByChannelType(channelType ChannelType) *bool {
	var channelEnabled *bool

	switch channelType {
	case ChannelAMP:
		channelEnabled = a.AMP
	case ChannelApp:
		channelEnabled = a.App
	case ChannelVideo:
		channelEnabled = a.Video
	case ChannelWeb:
		channelEnabled = a.Web
	case ChannelDOOH:
		channelEnabled = a.DOOH
	}

	return channelEnabled
}

// AccountPrivacy holds the publisher controlled activity rules.
type AccountPrivacy struct {
	AllowActivities *AllowActivities `mapstructure:"allowactivities" json:"allowactivities"`
}

type AllowActivities struct {
	SyncUser                 Activity `mapstructure:"syncUser" json:"syncUser"`
	FetchBids                Activity `mapstructure:"fetchBids" json:"fetchBids"`
	EnrichUserFPD            Activity `mapstructure:"enrichUfpd" json:"enrichUfpd"`
	ReportAnalytics          Activity `mapstructure:"reportAnalytics" json:"reportAnalytics"`
	TransmitUserFPD          Activity `mapstructure:"transmitUfpd" json:"transmitUfpd"`
	TransmitPreciseGeo       Activity `mapstructure:"transmitPreciseGeo" json:"transmitPreciseGeo"`
	TransmitUniqueRequestIds Activity `mapstructure:"transmitUniqueRequestIds" json:"transmitUniqueRequestIds"`
	TransmitTids             Activity `mapstructure:"transmitTid" json:"transmitTid"`
}

type Activity struct {
	Default *bool          `mapstructure:"default" json:"default"`
	Rules   []ActivityRule `mapstructure:"rules" json:"rules"`
}

type ActivityRule struct {
	Condition ActivityCondition `mapstructure:"condition" json:"condition"`
	Allow     bool              `mapstructure:"allow" json:"allow"`
}

type ActivityCondition struct {
	ComponentName []string `mapstructure:"componentName" json:"componentName"`
	ComponentType []string `mapstructure:"componentType" json:"componentType"`
}

func (a *Account) build() {
	a.GDPR.PurposeConfigs = map[consentconstants.Purpose]*AccountGDPRPurpose{
		1:  &a.GDPR.Purpose1,
		2:  &a.GDPR.Purpose2,
		3:  &a.GDPR.Purpose3,
		4:  &a.GDPR.Purpose4,
		5:  &a.GDPR.Purpose5,
		6:  &a.GDPR.Purpose6,
		7:  &a.GDPR.Purpose7,
		8:  &a.GDPR.Purpose8,
		9:  &a.GDPR.Purpose9,
		10: &a.GDPR.Purpose10,
	}
	for _, pc := range a.GDPR.PurposeConfigs {
		pc.EnforceAlgoID = TCF2EnforcementAlgoFromString(pc.EnforceAlgo)
		pc.VendorExceptionMap = toSet(pc.VendorExceptions)
		pc.EIDExceptionsMap = toSet(pc.EIDExceptions)
	}
	a.GDPR.SpecialFeature1.VendorExceptionMap = toSet(a.GDPR.SpecialFeature1.VendorExceptions)
	a.GDPR.BasicEnforcementVendorsMap = toSet(a.GDPR.BasicEnforcementVendors)
}

func (a *Account) validate(prefix string, errs []error) []error {
	for i := 1; i <= 10; i++ {
		pc := a.GDPR.purposeConfig(consentconstants.Purpose(i))
		if pc == nil || pc.EnforceAlgo == "" {
			continue
		}
		if pc.EnforceAlgoID == TCF2UndefinedEnforcement {
			errs = append(errs, fmt.Errorf("%s.gdpr.purpose%d.enforce_algo must be \"basic\" or \"full\". Got %s", prefix, i, pc.EnforceAlgo))
		}
	}

	cs := a.CookieSync
	if cs.DefaultLimit != nil && *cs.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s.cookie_sync.default_limit must be greater than 0. Got %d", prefix, *cs.DefaultLimit))
	}
	if cs.DefaultLimit != nil && cs.MaxLimit != nil && *cs.MaxLimit < *cs.DefaultLimit {
		errs = append(errs, fmt.Errorf("%s.cookie_sync.max_limit must be greater or equal than default_limit", prefix))
	}
	return errs
}

// withDefaults fills settings the account leaves unset from the defaults account. Purpose configs are taken
// whole from the defaults when the account does not configure the purpose at all.
func (a Account) withDefaults(defaults Account) Account {
	a.GDPR.Enabled = ptrutil.Coalesce(a.GDPR.Enabled, defaults.GDPR.Enabled)
	a.GDPR.ChannelEnabled = a.GDPR.ChannelEnabled.withDefaults(defaults.GDPR.ChannelEnabled)
	a.GDPR.PurposeOneTreatment.Enabled = ptrutil.Coalesce(a.GDPR.PurposeOneTreatment.Enabled, defaults.GDPR.PurposeOneTreatment.Enabled)
	a.GDPR.PurposeOneTreatment.AccessAllowed = ptrutil.Coalesce(a.GDPR.PurposeOneTreatment.AccessAllowed, defaults.GDPR.PurposeOneTreatment.AccessAllowed)
	a.GDPR.SpecialFeature1.Enforce = ptrutil.Coalesce(a.GDPR.SpecialFeature1.Enforce, defaults.GDPR.SpecialFeature1.Enforce)
	if a.GDPR.SpecialFeature1.VendorExceptionMap == nil {
		a.GDPR.SpecialFeature1.VendorExceptions = defaults.GDPR.SpecialFeature1.VendorExceptions
		a.GDPR.SpecialFeature1.VendorExceptionMap = defaults.GDPR.SpecialFeature1.VendorExceptionMap
	}
	if a.GDPR.BasicEnforcementVendorsMap == nil {
		a.GDPR.BasicEnforcementVendors = defaults.GDPR.BasicEnforcementVendors
		a.GDPR.BasicEnforcementVendorsMap = defaults.GDPR.BasicEnforcementVendorsMap
	}

	// The purpose map must point at this copy's fields, not at the stored account's.
	purposes := []*AccountGDPRPurpose{&a.GDPR.Purpose1, &a.GDPR.Purpose2, &a.GDPR.Purpose3, &a.GDPR.Purpose4,
		&a.GDPR.Purpose5, &a.GDPR.Purpose6, &a.GDPR.Purpose7, &a.GDPR.Purpose8, &a.GDPR.Purpose9, &a.GDPR.Purpose10}
	a.GDPR.PurposeConfigs = make(map[consentconstants.Purpose]*AccountGDPRPurpose, len(purposes))
	for i, pc := range purposes {
		purpose := consentconstants.Purpose(i + 1)
		if pc.isEmpty() {
			if def := defaults.GDPR.purposeConfig(purpose); def != nil {
				*pc = *def
			}
		}
		a.GDPR.PurposeConfigs[purpose] = pc
	}

	a.CCPA.Enabled = ptrutil.Coalesce(a.CCPA.Enabled, defaults.CCPA.Enabled)
	a.CCPA.ChannelEnabled = a.CCPA.ChannelEnabled.withDefaults(defaults.CCPA.ChannelEnabled)

	a.CookieSync.DefaultLimit = ptrutil.Coalesce(a.CookieSync.DefaultLimit, defaults.CookieSync.DefaultLimit)
	a.CookieSync.MaxLimit = ptrutil.Coalesce(a.CookieSync.MaxLimit, defaults.CookieSync.MaxLimit)
	a.CookieSync.DefaultCoopSync = ptrutil.Coalesce(a.CookieSync.DefaultCoopSync, defaults.CookieSync.DefaultCoopSync)
	if len(a.CookieSync.PrioritizedBidders) == 0 {
		a.CookieSync.PrioritizedBidders = defaults.CookieSync.PrioritizedBidders
	}

	if a.Privacy.AllowActivities == nil {
		a.Privacy.AllowActivities = defaults.Privacy.AllowActivities
	}
	return a
}

func (a AccountChannel) withDefaults(defaults AccountChannel) AccountChannel {
	return AccountChannel{
		AMP:   ptrutil.Coalesce(a.AMP, defaults.AMP),
		App:   ptrutil.Coalesce(a.App, defaults.App),
		Video: ptrutil.Coalesce(a.Video, defaults.Video),
		Web:   ptrutil.Coalesce(a.Web, defaults.Web),
		DOOH:  ptrutil.Coalesce(a.DOOH, defaults.DOOH),
	}
}

func (p *AccountGDPRPurpose) isEmpty() bool {
	return p.EnforceAlgo == "" && p.EnforcePurpose == nil && p.EnforceVendors == nil &&
		p.VendorExceptionMap == nil && p.EIDExceptionsMap == nil
}
