package usersync

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prebid/prebid-privacy/config"
)

const uidCookieName = "uids"

// uidTTL is the default amount of time a uid stored within a cookie is considered valid. This is
// separate from the cookie ttl.
const uidTTL = 14 * 24 * time.Hour

// Cookie is the uids cookie shared by the cookie sync and setuid endpoints.
//
// To get an instance of this from a request, use ReadCookie.
type Cookie struct {
	uids   map[string]UIDEntry
	optOut bool
}

// UIDEntry bundles the UID with an Expiration date.
type UIDEntry struct {
	// UID is the ID given to a user by a particular bidder
	UID string `json:"uid"`
	// Expires is the time at which this UID should no longer apply.
	Expires time.Time `json:"expires"`
}

// NewCookie returns a new empty cookie.
func NewCookie() *Cookie {
	return &Cookie{
		uids: make(map[string]UIDEntry),
	}
}

// ReadCookie reads the cookie from the request. A host opt-out cookie yields an opted out cookie and a
// missing or corrupt uids cookie yields an empty one.
func ReadCookie(r *http.Request, decoder Decoder, host *config.HostCookie) *Cookie {
	if hostOptOutCookie := checkHostCookieOptOut(r, host); hostOptOutCookie != nil {
		return hostOptOutCookie
	}

	cookieFromRequest, err := r.Cookie(uidCookieName)
	if err != nil {
		return NewCookie()
	}
	return decoder.Decode(cookieFromRequest.Value)
}

// HostCookieUIDToSync returns the uid of the host cookie when the cookie family is the host's and the uids
// cookie does not hold that uid yet. Otherwise it returns an empty string.
func HostCookieUIDToSync(r *http.Request, cookie *Cookie, host *config.HostCookie, family string) string {
	if family == "" || family != host.Family || host.CookieName == "" {
		return ""
	}

	hostCookie, err := r.Cookie(host.CookieName)
	if err != nil || hostCookie.Value == "" {
		return ""
	}

	if uid, found, _ := cookie.GetUID(family); found && uid == hostCookie.Value {
		return ""
	}
	return hostCookie.Value
}

func checkHostCookieOptOut(r *http.Request, host *config.HostCookie) *Cookie {
	if host.OptOutCookie.Name == "" {
		return nil
	}
	optOutCookie, err := r.Cookie(host.OptOutCookie.Name)
	if err != nil || optOutCookie.Value != host.OptOutCookie.Value {
		return nil
	}
	cookie := NewCookie()
	cookie.SetOptOut(true)
	return cookie
}

var errSyncOptedOut = errors.New("the user has opted out of prebid server cookie syncs")

func (e UIDEntry) liveAt(now time.Time) bool {
	return now.Before(e.Expires)
}

// Sync stores the uid of a syncer key for uidTTL. Opted out cookies refuse it.
func (cookie *Cookie) Sync(key string, uid string) error {
	if !cookie.AllowSyncs() {
		return errSyncOptedOut
	}
	cookie.uids[key] = UIDEntry{UID: uid, Expires: time.Now().Add(uidTTL)}
	return nil
}

// Unsync removes the uid of the syncer key.
func (cookie *Cookie) Unsync(key string) {
	delete(cookie.uids, key)
}

// AllowSyncs is false for a nil or opted out cookie.
func (cookie *Cookie) AllowSyncs() bool {
	return cookie != nil && !cookie.optOut
}

// SetOptOut marks the user as opted out of syncs. Opting out drops every uid.
func (cookie *Cookie) SetOptOut(optOut bool) {
	cookie.optOut = optOut
	if optOut {
		cookie.uids = make(map[string]UIDEntry)
	}
}

// GetUID returns the uid stored for the syncer key, whether one was found and whether it is still live.
func (cookie *Cookie) GetUID(key string) (uid string, isUIDFound bool, isUIDActive bool) {
	if cookie == nil {
		return "", false, false
	}
	entry, ok := cookie.uids[key]
	return entry.UID, ok, ok && entry.liveAt(time.Now())
}

// HasLiveSync reports whether the syncer key has a live uid.
func (cookie *Cookie) HasLiveSync(key string) bool {
	_, _, live := cookie.GetUID(key)
	return live
}

// HasAnyLiveSyncs reports whether any syncer key has a live uid.
func (cookie *Cookie) HasAnyLiveSyncs() bool {
	if cookie == nil {
		return false
	}
	now := time.Now()
	for _, entry := range cookie.uids {
		if entry.liveAt(now) {
			return true
		}
	}
	return false
}

// GetUIDs returns the live uids of the cookie keyed by syncer key.
func (cookie *Cookie) GetUIDs() map[string]string {
	uids := make(map[string]string)
	if cookie == nil {
		return uids
	}
	now := time.Now()
	for key, entry := range cookie.uids {
		if entry.liveAt(now) {
			uids[key] = entry.UID
		}
	}
	return uids
}

// storedCookie is the json stored in the uids cookie. The tempUIDs name is kept so cookies written by
// earlier hosts still decode.
type storedCookie struct {
	UIDs   map[string]UIDEntry `json:"tempUIDs,omitempty"`
	OptOut bool                `json:"optout,omitempty"`
}

func (cookie *Cookie) MarshalJSON() ([]byte, error) {
	return json.Marshal(storedCookie{UIDs: cookie.uids, OptOut: cookie.optOut})
}

// UnmarshalJSON drops the uids of an opted out cookie.
func (cookie *Cookie) UnmarshalJSON(b []byte) error {
	var stored storedCookie
	if err := json.Unmarshal(b, &stored); err != nil {
		return err
	}

	cookie.optOut = stored.OptOut
	cookie.uids = stored.UIDs
	if cookie.optOut || cookie.uids == nil {
		cookie.uids = make(map[string]UIDEntry)
	}
	return nil
}

// SetCookieOnResponse writes the encoded cookie to the response. Chrome 67 and later require the SameSite
// attribute, which is only set when setSiteCookie is true.
func (cookie *Cookie) SetCookieOnResponse(w http.ResponseWriter, setSiteCookie bool, host *config.HostCookie, ttl time.Duration, encoder Encoder) error {
	value, err := encoder.Encode(cookie)
	if err != nil {
		return err
	}

	httpCookie := &http.Cookie{
		Name:    uidCookieName,
		Value:   value,
		Expires: time.Now().Add(ttl),
		Path:    "/",
	}
	if host.Domain != "" {
		httpCookie.Domain = host.Domain
	}
	if setSiteCookie {
		httpCookie.Secure = true
		httpCookie.SameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, httpCookie)
	return nil
}
