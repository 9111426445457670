package privacy

import (
	"slices"
	"strings"
)

// Rule votes on an activity for a component.
type Rule interface {
	Evaluate(target Component) ActivityResult
}

// ComponentEnforcementRule applies its result when the target matches both the name and the type clauses.
// An empty clause matches every component.
type ComponentEnforcementRule struct {
	result        ActivityResult
	componentName []Component
	componentType []string
}

func (r ComponentEnforcementRule) Evaluate(target Component) ActivityResult {
	if r.matchesName(target) && r.matchesType(target) {
		return r.result
	}
	return ActivityAbstain
}

func (r ComponentEnforcementRule) matchesName(target Component) bool {
	return len(r.componentName) == 0 || slices.ContainsFunc(r.componentName, func(name Component) bool {
		return name.Matches(target)
	})
}

func (r ComponentEnforcementRule) matchesType(target Component) bool {
	return len(r.componentType) == 0 || slices.ContainsFunc(r.componentType, func(componentType string) bool {
		return strings.EqualFold(componentType, target.Type)
	})
}
