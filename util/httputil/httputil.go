package httputil

import (
	"net"
	"net/http"
	"strings"
)

// IPAddressMatcher should return true when a desired IP address is found.
type IPAddressMatcher func(net.IP) bool

// ipSource extracts the candidate addresses of a request, most trusted first.
type ipSource func(r *http.Request) []string

// ipSources are consulted in order. Proxies are expected to set True-Client-IP or X-Forwarded-For.
var ipSources = []ipSource{
	headerSource("True-Client-IP"),
	forwardedForSource,
	headerSource("X-Real-IP"),
	remoteAddrSource,
}

// FindIP returns the first IP address found in the request matching the predicate m.
func FindIP(r *http.Request, m IPAddressMatcher) net.IP {
	for _, source := range ipSources {
		for _, candidate := range source(r) {
			if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil && m(ip) {
				return ip
			}
		}
	}
	return nil
}

func headerSource(name string) ipSource {
	name = http.CanonicalHeaderKey(name)
	return func(r *http.Request) []string {
		if value := r.Header.Get(name); value != "" {
			return []string{value}
		}
		return nil
	}
}

func forwardedForSource(r *http.Request) []string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.Split(xff, ",")
	}
	return nil
}

func remoteAddrSource(r *http.Request) []string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return []string{host}
	}
	return nil
}
