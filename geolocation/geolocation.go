package geolocation

import (
	"context"
	"errors"
)

var (
	ErrDatabaseUnavailable = errors.New("geolocation database not available")
	ErrLookupIPInvalid     = errors.New("invalid IP address to lookup")
	ErrLookupTimeout       = errors.New("geolocation lookup deadline exceeded")
)

// GeoInfo is the result of a geolocation lookup. Country holds the ISO 3166-1 alpha-2 code.
type GeoInfo struct {
	Vendor     string
	Continent  string
	Country    string
	Region     string
	RegionCode int
	City       string
	Zip        string
	Lat        float64
	Lon        float64
	TimeZone   string
}

// GeoLocation resolves an ip address into a location.
type GeoLocation interface {
	Lookup(ctx context.Context, ip string) (*GeoInfo, error)
}

// NilGeoLocation is used when geolocation is disabled. Every lookup fails.
type NilGeoLocation struct{}

func (NilGeoLocation) Lookup(_ context.Context, _ string) (*GeoInfo, error) {
	return nil, ErrDatabaseUnavailable
}

// LookupWithContext runs the lookup unless the request deadline already expired.
func LookupWithContext(ctx context.Context, geo GeoLocation, ip string) (*GeoInfo, error) {
	if geo == nil {
		return nil, ErrDatabaseUnavailable
	}
	if ctx.Err() != nil {
		return nil, ErrLookupTimeout
	}
	return geo.Lookup(ctx, ip)
}
