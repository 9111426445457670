package gdpr

// PrivacyEnforcementAction lists the restrictions that apply to a single vendor. A flag set to true
// means the restriction is in force.
type PrivacyEnforcementAction struct {
	BlockBidderRequest   bool
	BlockAnalyticsReport bool
	RemoveUserIDs        bool
	RemoveUserFPD        bool
	MaskGeo              bool
	MaskDeviceIP         bool
	MaskDeviceInfo       bool
	BlockPixelSync       bool

	// EIDExceptions holds the eid sources which survive user id removal.
	EIDExceptions map[string]struct{}
}

// AllowAll returns an action without restrictions.
func AllowAll() PrivacyEnforcementAction {
	return PrivacyEnforcementAction{}
}

// RestrictAll returns an action with every restriction in force.
func RestrictAll() PrivacyEnforcementAction {
	return PrivacyEnforcementAction{
		BlockBidderRequest:   true,
		BlockAnalyticsReport: true,
		RemoveUserIDs:        true,
		RemoveUserFPD:        true,
		MaskGeo:              true,
		MaskDeviceIP:         true,
		MaskDeviceInfo:       true,
		BlockPixelSync:       true,
	}
}

// Clone returns a deep copy so actions are never shared between vendors.
func (a PrivacyEnforcementAction) Clone() PrivacyEnforcementAction {
	clone := a
	if a.EIDExceptions != nil {
		clone.EIDExceptions = make(map[string]struct{}, len(a.EIDExceptions))
		for source := range a.EIDExceptions {
			clone.EIDExceptions[source] = struct{}{}
		}
	}
	return clone
}

// IsEIDException reports whether user ids from the eid source may be kept.
func (a PrivacyEnforcementAction) IsEIDException(source string) bool {
	_, found := a.EIDExceptions[source]
	return found
}

// VendorPermission is the action computed for one vendor. VendorID is 0 when the vendor is unknown.
type VendorPermission struct {
	VendorID   uint16
	BidderName string
	Action     PrivacyEnforcementAction
}

// TCFResponse holds the actions computed for a set of vendors keyed by vendor id or bidder name.
type TCFResponse[T comparable] struct {
	UserInGDPRScope bool
	Actions         map[T]PrivacyEnforcementAction
	Country         string
}

// HostVendorTCFResponse reports whether the host company may sync its own cookie.
type HostVendorTCFResponse struct {
	UserInGDPRScope bool
	Country         string
	VendorAllowed   bool
}
