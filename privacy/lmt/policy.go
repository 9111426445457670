package lmt

import (
	"github.com/prebid/openrtb/v20/openrtb2"
)

// device.lmt values
const (
	trackingUnrestricted = 0
	trackingRestricted   = 1
)

// Policy is the Limit Ad Tracking signal of a device.
type Policy struct {
	Signal         int
	SignalProvided bool
}

// ReadPolicy reads device.lmt. A nil device or an absent flag leaves the signal unprovided.
func ReadPolicy(device *openrtb2.Device) Policy {
	if device == nil || device.Lmt == nil {
		return Policy{}
	}
	return Policy{Signal: int(*device.Lmt), SignalProvided: true}
}

// ShouldEnforce returns true when the host enforces LMT and the device restricts tracking.
func (p Policy) ShouldEnforce(hostEnforced bool) bool {
	return hostEnforced && p.SignalProvided && p.Signal == trackingRestricted
}
