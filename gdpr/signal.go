package gdpr

import (
	"github.com/prebid/prebid-privacy/errortypes"
)

// Signal is the gdpr flag of a request. It is ambiguous until the request, the geolocation or the host
// default decides it.
type Signal int

const (
	SignalAmbiguous Signal = -1
	SignalNo        Signal = 0
	SignalYes       Signal = 1
)

var gdprSignalError = &errortypes.BadInput{Message: "GDPR signal should be integer 0 or 1"}

// SignalParse reads the gdpr request parameter. An absent parameter is ambiguous.
func SignalParse(rawSignal string) (Signal, error) {
	switch rawSignal {
	case "":
		return SignalAmbiguous, nil
	case "0":
		return SignalNo, nil
	case "1":
		return SignalYes, nil
	}
	return SignalAmbiguous, gdprSignalError
}

// SignalNormalize resolves an ambiguous signal with the host default, where only "0" opts out of gdpr.
func SignalNormalize(signal Signal, gdprDefaultValue string) Signal {
	switch {
	case signal != SignalAmbiguous:
		return signal
	case gdprDefaultValue == "0":
		return SignalNo
	default:
		return SignalYes
	}
}

// SignalFromCountry resolves the signal for a known country. An empty country leaves it ambiguous.
func SignalFromCountry(country string, inEEA func(string) bool) Signal {
	switch {
	case country == "":
		return SignalAmbiguous
	case inEEA(country):
		return SignalYes
	default:
		return SignalNo
	}
}

// String returns the value of the gdpr url macro, with ambiguous rendered empty.
func (s Signal) String() string {
	switch s {
	case SignalYes:
		return "1"
	case SignalNo:
		return "0"
	default:
		return ""
	}
}
