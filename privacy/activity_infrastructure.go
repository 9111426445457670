package privacy

import (
	"fmt"

	"github.com/prebid/prebid-privacy/config"
)

type ActivityResult int

const (
	ActivityAbstain ActivityResult = iota
	ActivityAllow
	ActivityDeny
)

const defaultActivityResult = true

// ActivityInfrastructure answers whether a component may perform an activity under the account's rules.
// The zero value allows everything.
type ActivityInfrastructure struct {
	plans map[Activity]ActivityPlan
}

func NewActivityInfrastructure(cfg *config.AccountPrivacy) (ActivityInfrastructure, error) {
	ac := ActivityInfrastructure{}

	if cfg == nil || cfg.AllowActivities == nil {
		return ac, nil
	}

	activities := map[Activity]config.Activity{
		ActivitySyncUser:                 cfg.AllowActivities.SyncUser,
		ActivityFetchBids:                cfg.AllowActivities.FetchBids,
		ActivityEnrichUserFPD:            cfg.AllowActivities.EnrichUserFPD,
		ActivityReportAnalytics:          cfg.AllowActivities.ReportAnalytics,
		ActivityTransmitUserFPD:          cfg.AllowActivities.TransmitUserFPD,
		ActivityTransmitPreciseGeo:       cfg.AllowActivities.TransmitPreciseGeo,
		ActivityTransmitUniqueRequestIDs: cfg.AllowActivities.TransmitUniqueRequestIds,
		ActivityTransmitTIDs:             cfg.AllowActivities.TransmitTids,
	}

	plans := make(map[Activity]ActivityPlan, len(activities))
	for activity, activityCfg := range activities {
		plan, err := buildPlan(activityCfg)
		if err != nil {
			return ac, fmt.Errorf("activity %s: %w", activity, err)
		}
		plans[activity] = plan
	}
	ac.plans = plans

	return ac, nil
}

func buildPlan(activity config.Activity) (ActivityPlan, error) {
	rules, err := activityRulesToPrivacyRules(activity.Rules)
	if err != nil {
		return ActivityPlan{}, err
	}

	return ActivityPlan{
		rules:         rules,
		defaultResult: activityDefaultToDefaultResult(activity.Default),
	}, nil
}

func activityRulesToPrivacyRules(rules []config.ActivityRule) ([]Rule, error) {
	var enfRules []Rule

	for _, r := range rules {
		result := ActivityDeny
		if r.Allow {
			result = ActivityAllow
		}

		componentNames, err := conditionToRuleComponentNames(r.Condition)
		if err != nil {
			return nil, err
		}

		enfRules = append(enfRules, ComponentEnforcementRule{
			result:        result,
			componentName: componentNames,
			componentType: r.Condition.ComponentType,
		})
	}
	return enfRules, nil
}

// conditionToRuleComponentNames expands bare names over every listed component type.
func conditionToRuleComponentNames(condition config.ActivityCondition) ([]Component, error) {
	components := make([]Component, 0)

	for _, name := range condition.ComponentName {
		component, err := ParseComponent(name)
		if err != nil {
			return nil, err
		}

		if len(condition.ComponentType) == 0 || component.Type != ComponentTypeBidder || name != component.Name {
			components = append(components, component)
			continue
		}

		for _, componentType := range condition.ComponentType {
			components = append(components, Component{Type: componentType, Name: component.Name})
		}
	}

	return components, nil
}

func activityDefaultToDefaultResult(activityDefault *bool) bool {
	if activityDefault == nil {
		return defaultActivityResult
	}
	return *activityDefault
}

// IsAllowed evaluates the first rule which does not abstain, falling back to the activity default.
func (e ActivityInfrastructure) IsAllowed(activity Activity, target Component) bool {
	plan, planDefined := e.plans[activity]

	if !planDefined {
		return defaultActivityResult
	}

	return plan.Evaluate(target)
}

type ActivityPlan struct {
	defaultResult bool
	rules         []Rule
}

func (p ActivityPlan) Evaluate(target Component) bool {
	for _, rule := range p.rules {
		result := rule.Evaluate(target)
		if result == ActivityDeny || result == ActivityAllow {
			return result == ActivityAllow
		}
	}
	return p.defaultResult
}
