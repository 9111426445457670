package privacy

import (
	"github.com/prebid/prebid-privacy/privacy/ccpa"
)

const coppaApplicable = 1

// Privacy holds the raw privacy signals of a request.
type Privacy struct {
	Consent string
	GDPR    string
	CCPA    ccpa.Policy
	COPPA   int
}

// IsCOPPA returns true when the request is subject to COPPA.
func (p Privacy) IsCOPPA() bool {
	return p.COPPA == coppaApplicable
}
