package privacy

import (
	"errors"
	"strings"
)

const (
	ComponentTypeBidder       = "bidder"
	ComponentTypeAnalytics    = "analytics"
	ComponentTypeRealTimeData = "rtd"
	ComponentTypeGeneral      = "general"
)

// Component is the subject of an activity check, such as a bidder or an analytics module.
type Component struct {
	Type string
	Name string
}

// Matches compares type and name case-insensitively.
func (c Component) Matches(target Component) bool {
	return strings.EqualFold(c.Type, target.Type) && strings.EqualFold(c.Name, target.Name)
}

var ErrComponentEmpty = errors.New("unable to parse empty component")

// ParseComponent reads "type.name" or a bare name, which defaults to the bidder type.
func ParseComponent(v string) (Component, error) {
	if len(v) == 0 {
		return Component{}, ErrComponentEmpty
	}

	split := strings.Split(v, ".")

	if len(split) == 2 {
		if split[0] == "" || split[1] == "" {
			return Component{}, errors.New("unable to parse component: " + v)
		}
		return Component{Type: split[0], Name: split[1]}, nil
	}

	if len(split) == 1 {
		return Component{Type: ComponentTypeBidder, Name: split[0]}, nil
	}

	return Component{}, errors.New("unable to parse component: " + v)
}
