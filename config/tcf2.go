package config

import (
	"fmt"

	"github.com/prebid/go-gdpr/consentconstants"
)

type TCF2EnforcementAlgo int

const (
	TCF2UndefinedEnforcement TCF2EnforcementAlgo = iota
	TCF2FullEnforcement
	TCF2BasicEnforcement
)

const (
	TCF2EnforceAlgoBasic = "basic"
	TCF2EnforceAlgoFull  = "full"
)

// TCF2EnforcementAlgoFromString maps the configured enforce_algo value to its enum.
func TCF2EnforcementAlgoFromString(algo string) TCF2EnforcementAlgo {
	switch algo {
	case TCF2EnforceAlgoBasic:
		return TCF2BasicEnforcement
	case TCF2EnforceAlgoFull:
		return TCF2FullEnforcement
	}
	return TCF2UndefinedEnforcement
}

// PurposeOneTreatmentInterpretation decides what a consent string's purpose one treatment flag means.
type PurposeOneTreatmentInterpretation string

const (
	PurposeOneTreatmentIgnore          PurposeOneTreatmentInterpretation = "ignore"
	PurposeOneTreatmentNoAccessAllowed PurposeOneTreatmentInterpretation = "no_access_allowed"
	PurposeOneTreatmentAccessAllowed   PurposeOneTreatmentInterpretation = "access_allowed"
)

// TCF2 defines the TCF2 specific configurations for GDPR
type TCF2 struct {
	Purpose1  TCF2Purpose `mapstructure:"purpose1"`
	Purpose2  TCF2Purpose `mapstructure:"purpose2"`
	Purpose3  TCF2Purpose `mapstructure:"purpose3"`
	Purpose4  TCF2Purpose `mapstructure:"purpose4"`
	Purpose5  TCF2Purpose `mapstructure:"purpose5"`
	Purpose6  TCF2Purpose `mapstructure:"purpose6"`
	Purpose7  TCF2Purpose `mapstructure:"purpose7"`
	Purpose8  TCF2Purpose `mapstructure:"purpose8"`
	Purpose9  TCF2Purpose `mapstructure:"purpose9"`
	Purpose10 TCF2Purpose `mapstructure:"purpose10"`
	// Map of purpose configs for easy purpose lookup
	PurposeConfigs      map[consentconstants.Purpose]*TCF2Purpose
	SpecialFeature1     TCF2SpecialFeature      `mapstructure:"special_feature1"`
	SpecialFeature2     TCF2SpecialFeature      `mapstructure:"special_feature2"`
	PurposeOneTreatment TCF2PurposeOneTreatment `mapstructure:"purpose_one_treatment"`
}

// Makes the purpose configs addressable by purpose id and resolves the string lists into lookup maps.
func (t *TCF2) build() {
	t.PurposeConfigs = map[consentconstants.Purpose]*TCF2Purpose{
		1:  &t.Purpose1,
		2:  &t.Purpose2,
		3:  &t.Purpose3,
		4:  &t.Purpose4,
		5:  &t.Purpose5,
		6:  &t.Purpose6,
		7:  &t.Purpose7,
		8:  &t.Purpose8,
		9:  &t.Purpose9,
		10: &t.Purpose10,
	}
	for _, pc := range t.PurposeConfigs {
		pc.EnforceAlgoID = TCF2EnforcementAlgoFromString(pc.EnforceAlgo)
		pc.VendorExceptionMap = toSet(pc.VendorExceptions)
		pc.EIDExceptionsMap = toSet(pc.EIDExceptions)
	}
	t.SpecialFeature1.VendorExceptionMap = toSet(t.SpecialFeature1.VendorExceptions)
	t.SpecialFeature2.VendorExceptionMap = toSet(t.SpecialFeature2.VendorExceptions)
}

func (t *TCF2) validate(errs []error) []error {
	for i := consentconstants.Purpose(1); i <= 10; i++ {
		pc := t.purposeConfig(i)
		if pc == nil {
			continue
		}
		if pc.EnforceAlgo != TCF2EnforceAlgoBasic && pc.EnforceAlgo != TCF2EnforceAlgoFull {
			errs = append(errs, fmt.Errorf("gdpr.tcf2.purpose%d.enforce_algo must be \"basic\" or \"full\". Got %s", i, pc.EnforceAlgo))
		}
	}
	return errs
}

func (t *TCF2) purposeConfig(purpose consentconstants.Purpose) *TCF2Purpose {
	if t.PurposeConfigs == nil {
		t.build()
	}
	return t.PurposeConfigs[purpose]
}

// PurposeEnforced checks if full enforcement is turned on for a given purpose. With full enforcement enabled, the
// GDPR full enforcement algorithm will execute for that purpose determining legal basis; otherwise it's skipped.
func (t *TCF2) PurposeEnforced(purpose consentconstants.Purpose) (value bool) {
	if pc := t.purposeConfig(purpose); pc != nil {
		return pc.EnforcePurpose
	}
	return false
}

// PurposeEnforcementAlgo returns the default enforcement algorithm for a given purpose
func (t *TCF2) PurposeEnforcementAlgo(purpose consentconstants.Purpose) (value TCF2EnforcementAlgo) {
	if pc := t.purposeConfig(purpose); pc != nil && pc.EnforceAlgoID != TCF2UndefinedEnforcement {
		return pc.EnforceAlgoID
	}
	return TCF2FullEnforcement
}

// PurposeEnforcingVendors checks if enforcing vendors is turned on for a given purpose. With enforcing vendors
// enabled, the GDPR full enforcement algorithm considers the GVL when determining legal basis; otherwise it's skipped.
func (t *TCF2) PurposeEnforcingVendors(purpose consentconstants.Purpose) (value bool) {
	if pc := t.purposeConfig(purpose); pc != nil {
		return pc.EnforceVendors
	}
	return false
}

// PurposeVendorExceptions returns the vendor exception map for a given purpose if it exists, otherwise it returns
// an empty map of vendor exceptions
func (t *TCF2) PurposeVendorExceptions(purpose consentconstants.Purpose) (value map[string]struct{}) {
	if pc := t.purposeConfig(purpose); pc != nil && pc.VendorExceptionMap != nil {
		return pc.VendorExceptionMap
	}
	return make(map[string]struct{})
}

// PurposeEIDExceptions returns the sources of extended ids which survive a missing purpose 4 legal basis.
func (t *TCF2) PurposeEIDExceptions(purpose consentconstants.Purpose) (value map[string]struct{}) {
	if pc := t.purposeConfig(purpose); pc != nil && pc.EIDExceptionsMap != nil {
		return pc.EIDExceptionsMap
	}
	return make(map[string]struct{})
}

// FeatureOneEnforced checks if special feature one is enforced. If it is enforced, PBS will determine whether geo
// information may be passed through in the bid request.
func (t *TCF2) FeatureOneEnforced() (value bool) {
	return t.SpecialFeature1.Enforce
}

// FeatureOneVendorException checks if the specified bidder is considered a vendor exception for special feature one.
// If a bidder is a vendor exception, PBS will bypass the pass geo calculation passing the geo information in the bid request.
func (t *TCF2) FeatureOneVendorException(bidder string) (value bool) {
	_, found := t.SpecialFeature1.VendorExceptionMap[bidder]
	return found
}

// PurposeOneTreatmentEnabled checks if purpose one treatment is enabled.
func (t *TCF2) PurposeOneTreatmentEnabled() (value bool) {
	return t.PurposeOneTreatment.Enabled
}

// PurposeOneTreatmentAccessAllowed checks if purpose one treatment access is allowed.
func (t *TCF2) PurposeOneTreatmentAccessAllowed() (value bool) {
	return t.PurposeOneTreatment.AccessAllowed
}

// TCF2Purpose defines the TCF2 specific configurations for GDPR purposes
type TCF2Purpose struct {
	EnforceAlgo string `mapstructure:"enforce_algo"`
	// Integer representation of enforcement algo for performance improvement on compares
	EnforceAlgoID  TCF2EnforcementAlgo
	EnforcePurpose bool `mapstructure:"enforce_purpose"`
	EnforceVendors bool `mapstructure:"enforce_vendors"`
	// Array of vendor exceptions that is used to create the hash table VendorExceptionMap so vendor names can be instantly accessed
	VendorExceptions   []string `mapstructure:"vendor_exceptions"`
	VendorExceptionMap map[string]struct{}
	// EIDExceptions only applies to purpose 4.
	EIDExceptions    []string `mapstructure:"eid_exceptions"`
	EIDExceptionsMap map[string]struct{}
}

// TCF2SpecialFeature defines the TCF2 specific configurations for GDPR special features
type TCF2SpecialFeature struct {
	Enforce bool `mapstructure:"enforce"`
	// Array of vendor exceptions that is used to create the hash table VendorExceptionMap so vendor names can be instantly accessed
	VendorExceptions   []string `mapstructure:"vendor_exceptions"`
	VendorExceptionMap map[string]struct{}
}

// TCF2PurposeOneTreatment defines the TCF2 specific configurations for the purpose one treatment flag
type TCF2PurposeOneTreatment struct {
	Enabled       bool `mapstructure:"enabled"`
	AccessAllowed bool `mapstructure:"access_allowed"`
}

func toSet(values []string) map[string]struct{} {
	if values == nil {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
