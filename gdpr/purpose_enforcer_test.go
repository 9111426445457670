package gdpr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-privacy/config"
)

func TestNewPurposeEnforcer(t *testing.T) {
	tests := []struct {
		description string
		algo        config.TCF2EnforcementAlgo
		downgraded  bool
		wantBasic   bool
	}{
		{
			description: "full",
			algo:        config.TCF2FullEnforcement,
			wantBasic:   false,
		},
		{
			description: "full-downgraded",
			algo:        config.TCF2FullEnforcement,
			downgraded:  true,
			wantBasic:   true,
		},
		{
			description: "basic",
			algo:        config.TCF2BasicEnforcement,
			wantBasic:   true,
		},
		{
			description: "undefined",
			algo:        config.TCF2UndefinedEnforcement,
			wantBasic:   false,
		},
	}

	for _, tt := range tests {
		enforcer := NewPurposeEnforcer(purposeConfig{EnforceAlgo: tt.algo}, tt.downgraded)
		_, isBasic := enforcer.(*BasicEnforcement)
		assert.Equal(t, tt.wantBasic, isBasic, tt.description)
	}
}

func TestApplyEnforceOverrides(t *testing.T) {
	cfg := purposeConfig{EnforcePurpose: false, EnforceVendors: true}

	enforcePurpose, enforceVendors := applyEnforceOverrides(cfg, Overrides{})
	assert.False(t, enforcePurpose)
	assert.True(t, enforceVendors)

	enforcePurpose, enforceVendors = applyEnforceOverrides(cfg, Overrides{enforcePurpose: true})
	assert.True(t, enforcePurpose)
	assert.True(t, enforceVendors)
}
