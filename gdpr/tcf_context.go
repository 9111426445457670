package gdpr

import (
	"github.com/prebid/prebid-privacy/geolocation"
)

// TCFContext is the per-request result of GDPR scope and consent resolution. Values are immutable;
// the With methods return modified copies.
type TCFContext struct {
	InGDPRScope bool
	// Consent is nil when the consent string was missing or invalid.
	Consent       TCString
	ConsentString string
	ConsentValid  bool
	InEEA         *bool
	IPAddress     string
	GeoInfo       *geolocation.GeoInfo
	Warnings      []error
}

// NotInScope returns the context used when GDPR does not apply to the request.
func NotInScope() TCFContext {
	return TCFContext{}
}

// ConsentVersion returns the encoding version of the decoded consent, or 0 when there is none.
func (c TCFContext) ConsentVersion() int {
	if c.Consent == nil {
		return 0
	}
	return int(c.Consent.Version())
}

// Country returns the resolved country or an empty string.
func (c TCFContext) Country() string {
	if c.GeoInfo == nil {
		return ""
	}
	return c.GeoInfo.Country
}

// WithWarning returns a copy of the context with the warning appended.
func (c TCFContext) WithWarning(warning error) TCFContext {
	warnings := make([]error, 0, len(c.Warnings)+1)
	warnings = append(warnings, c.Warnings...)
	c.Warnings = append(warnings, warning)
	return c
}

// WithIPAddress returns a copy of the context carrying the given ip address.
func (c TCFContext) WithIPAddress(ip string) TCFContext {
	c.IPAddress = ip
	return c
}
