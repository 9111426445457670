package cookiesync

import (
	"net/http"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/privacy"
	"github.com/prebid/prebid-privacy/privacy/enforcement"
	"github.com/prebid/prebid-privacy/usersync"
)

// Request is a parsed cookie sync request.
type Request struct {
	Bidders   []string
	GDPR      *int
	Consent   string
	USPrivacy string
	Limit     *int
	CoopSync  *bool
	Account   string
	Debug     bool
}

// Context carries a cookie sync request through ProcessContext and PrepareResponse.
type Context struct {
	Request       Request
	Account       config.Account
	Privacy       enforcement.PrivacyContext
	Activities    privacy.ActivityInfrastructure
	MethodChooser usersync.MethodChooser
	Cookie        *usersync.Cookie

	// HTTPRequest is used to read the host cookie. It may be nil.
	HTTPRequest *http.Request

	// Bidders and Limit are resolved by ProcessContext.
	Bidders BiddersContext
	Limit   int
}

// Response is the body of a cookie sync response.
type Response struct {
	Status       string         `json:"status"`
	BidderStatus []BidderStatus `json:"bidder_status"`
}

// BidderStatus describes the sync of one cookie family, or in debug mode why a bidder was left out.
type BidderStatus struct {
	Bidder   string        `json:"bidder"`
	NoCookie bool          `json:"no_cookie,omitempty"`
	UserSync *UserSyncInfo `json:"usersync,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type UserSyncInfo struct {
	URL         string `json:"url"`
	Type        string `json:"type"`
	SupportCORS bool   `json:"supportCORS"`
}

const (
	statusOK       = "ok"
	statusNoCookie = "no_cookie"
)
