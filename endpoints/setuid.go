package endpoints

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/gdpr"
	"github.com/prebid/prebid-privacy/privacy/enforcement"
	"github.com/prebid/prebid-privacy/usersync"
)

const (
	chromeStr       = "Chrome/"
	chromeiOSStr    = "CriOS/"
	chromeMinVer    = 67
	chromeStrLen    = len(chromeStr)
	chromeiOSStrLen = len(chromeiOSStr)
)

// transparentPixel is a 1x1 transparent gif returned to image syncs.
var transparentPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// HostVendorChecker reports whether the host company may store its cookie for the user.
type HostVendorChecker interface {
	IsAllowedForHostVendorID(ctx context.Context, tcfContext gdpr.TCFContext) gdpr.HostVendorTCFResponse
}

// NewSetUIDEndpoint implements /setuid, which stores the uid a bidder assigned to the user in the uids
// cookie. Sync urls built by /cookie_sync redirect here.
func NewSetUIDEndpoint(cfg *config.Configuration, syncers map[string]usersync.Syncer, privacyBuilder SyncPrivacyContextBuilder, hostVendor HostVendorChecker) httprouter.Handle {
	validFamilyNameMap := make(map[string]struct{})
	for _, s := range syncers {
		validFamilyNameMap[s.Key()] = struct{}{}
	}

	encoder := usersync.Base64Encoder{}
	decoder := usersync.Base64Decoder{}

	return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cookie := usersync.ReadCookie(r, decoder, &cfg.HostCookie)
		if !cookie.AllowSyncs() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		query := r.URL.Query()

		familyName, err := getFamilyName(query, validFamilyNameMap)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(err.Error()))
			return
		}

		account := cfg.ResolveAccount(query.Get("account"))
		if shouldReturn, status, body := preventSyncsGDPR(r.Context(), r, query, account, privacyBuilder, hostVendor); shouldReturn {
			w.WriteHeader(status)
			w.Write([]byte(body))
			return
		}

		if uid := query.Get("uid"); uid == "" {
			cookie.Unsync(familyName)
		} else if err := cookie.Sync(familyName, uid); err != nil {
			glog.Warningf("failed to sync %s: %v", familyName, err)
		}

		setSiteCookie := siteCookieCheck(r.UserAgent())
		if err := cookie.SetCookieOnResponse(w, setSiteCookie, &cfg.HostCookie, cfg.HostCookie.TTLDuration(), encoder); err != nil {
			glog.Errorf("failed to write uids cookie: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch query.Get("f") {
		case "i":
			w.Header().Set("Content-Type", "image/gif")
			w.Write(transparentPixel)
		default:
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
		}
	})
}

func getFamilyName(query url.Values, validFamilyNameMap map[string]struct{}) (string, error) {
	// The family name is bound to the 'bidder' query param. In most cases, these values are the same.
	familyName := query.Get("bidder")

	if familyName == "" {
		return "", errors.New(`"bidder" query param is required`)
	}

	if _, ok := validFamilyNameMap[familyName]; !ok {
		return "", errors.New("The bidder name provided is not supported by Prebid Server")
	}

	return familyName, nil
}

// siteCookieCheck scans the input User Agent string to check if browser is Chrome and browser version is greater than the minimum version for adding the SameSite cookie attribute
func siteCookieCheck(ua string) bool {
	result := false

	index := strings.Index(ua, chromeStr)
	criOSIndex := strings.Index(ua, chromeiOSStr)
	if index != -1 {
		result = checkChromeBrowserVersion(ua, index, chromeStrLen)
	} else if criOSIndex != -1 {
		result = checkChromeBrowserVersion(ua, criOSIndex, chromeiOSStrLen)
	}
	return result
}

func checkChromeBrowserVersion(ua string, index int, chromeStrLength int) bool {
	vIndex := index + chromeStrLength
	dotIndex := strings.Index(ua[vIndex:], ".")
	if dotIndex == -1 {
		dotIndex = len(ua[vIndex:])
	}
	version, _ := strconv.Atoi(ua[vIndex : vIndex+dotIndex])
	return version >= chromeMinVer
}

func preventSyncsGDPR(ctx context.Context, r *http.Request, query url.Values, account config.Account, privacyBuilder SyncPrivacyContextBuilder, hostVendor HostVendorChecker) (shouldReturn bool, status int, body string) {
	gdprSignal := query.Get("gdpr")
	gdprConsent := query.Get("gdpr_consent")

	signal, err := gdpr.SignalParse(gdprSignal)
	if err != nil {
		return true, http.StatusBadRequest, "the gdpr query param must be either 0 or 1. You gave " + gdprSignal
	}

	if signal == gdpr.SignalYes && gdprConsent == "" {
		return true, http.StatusBadRequest, "gdpr_consent is required when gdpr=1"
	}

	privacyContext := privacyBuilder.ContextFromCookieSyncRequest(ctx, enforcement.SyncRequestPrivacy{
		GDPR:      gdprSignal,
		Consent:   gdprConsent,
		USPrivacy: query.Get("us_privacy"),
	}, requestIP(r), account)

	tcfContext := privacyContext.TCFContext
	if tcfContext.InGDPRScope && !tcfContext.ConsentValid {
		return true, http.StatusBadRequest, "gdpr_consent was invalid"
	}

	if !hostVendor.IsAllowedForHostVendorID(ctx, tcfContext).VendorAllowed {
		return true, http.StatusOK, "The gdpr_consent string prevents cookies from being saved"
	}

	return false, 0, ""
}
