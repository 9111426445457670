package usersync

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"text/template"

	validator "github.com/asaskevich/govalidator"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/macros"
)

// Syncer represents the user sync configuration for a bidder or a shared set of bidders.
type Syncer interface {
	// Key is the name of the syncer as stored in the user's cookie. This is not necessarily a
	// one-to-one relationship with a bidder.
	Key() string

	// DefaultSyncType is the sync type preferred when more than one is allowed.
	DefaultSyncType() SyncType

	// SupportsType returns true if the syncer supports at least one of the specified sync types.
	SupportsType(syncTypes []SyncType) bool

	// GetSync returns a user sync for the user's device to perform, or an error if none of the
	// sync types are supported or if macro substitution fails.
	GetSync(syncTypes []SyncType, userSyncPrivacy macros.UserSyncPrivacy) (Sync, error)
}

// Sync represents a user sync for the user's device to perform.
type Sync struct {
	URL         string
	Type        SyncType
	SupportCORS bool
}

type standardSyncer struct {
	key             string
	defaultSyncType SyncType
	iframe          *template.Template
	redirect        *template.Template
	supportCORS     bool
}

const (
	setuidSyncTypeIFrame   = "b"
	setuidSyncTypeRedirect = "i"
)

var errNoSyncTypesProvided = errors.New("no sync types provided")
var errNoSyncTypesSupported = errors.New("no sync types supported")

// NewSyncer creates a new Syncer instance from the provided configuration, or an error if macro
// substition fails or the url specified is invalid.
func NewSyncer(hostConfig config.UserSync, syncerConfig config.Syncer, bidder string) (Syncer, error) {
	if syncerConfig.IFrame == nil && syncerConfig.Redirect == nil {
		return nil, errors.New("at least one iframe or redirect is required")
	}

	syncer := standardSyncer{
		key:         syncerConfig.Key,
		supportCORS: syncerConfig.SupportCORS != nil && *syncerConfig.SupportCORS,
	}

	defaultSyncType, err := resolveDefaultSyncType(hostConfig, syncerConfig)
	if err != nil {
		return nil, err
	}
	syncer.defaultSyncType = defaultSyncType

	endpoints := []struct {
		name     string
		setuidF  string
		endpoint *config.SyncerEndpoint
		target   **template.Template
	}{
		{name: "iframe", setuidF: setuidSyncTypeIFrame, endpoint: syncerConfig.IFrame, target: &syncer.iframe},
		{name: "redirect", setuidF: setuidSyncTypeRedirect, endpoint: syncerConfig.Redirect, target: &syncer.redirect},
	}
	for _, e := range endpoints {
		if e.endpoint == nil {
			continue
		}
		tmpl, err := buildTemplate(syncerConfig.Key, bidder, e.setuidF, hostConfig, syncerConfig.ExternalURL, *e.endpoint)
		if err == nil {
			err = validateTemplate(tmpl)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %v", e.name, err)
		}
		*e.target = tmpl
	}

	return syncer, nil
}

func resolveDefaultSyncType(hostConfig config.UserSync, syncerConfig config.Syncer) (SyncType, error) {
	defaultType := syncerConfig.Default
	if defaultType == "" {
		defaultType = hostConfig.DefaultSyncType
	}

	switch {
	case syncerConfig.IFrame != nil && syncerConfig.Redirect == nil:
		return SyncTypeIFrame, nil
	case syncerConfig.IFrame == nil && syncerConfig.Redirect != nil:
		return SyncTypeRedirect, nil
	}

	switch strings.ToLower(defaultType) {
	case "iframe":
		return SyncTypeIFrame, nil
	case "redirect", "image":
		return SyncTypeRedirect, nil
	case "":
		return SyncTypeUnknown, errors.New("default is required if there is more than one endpoint")
	}
	return SyncTypeUnknown, fmt.Errorf("invalid default %q", defaultType)
}

var (
	macroRegexRedirect = regexp.MustCompile(`{{\s*\.RedirectURL\s*}}`)
	macroRegex         = regexp.MustCompile(`{{\s*\..*?\s*}}`)
)

func hostMacro(name string) *regexp.Regexp {
	return regexp.MustCompile(`{{\s*\.` + name + `\s*}}`)
}

// redirectMacros are resolved once when the syncer is built. The privacy macros stay in the template.
var redirectMacros = []struct {
	regex *regexp.Regexp
	value func(r redirectValues) string
}{
	{regex: hostMacro("SyncerKey"), value: func(r redirectValues) string { return r.key }},
	{regex: hostMacro("BidderName"), value: func(r redirectValues) string { return r.bidderName }},
	{regex: hostMacro("SyncType"), value: func(r redirectValues) string { return r.syncType }},
	{regex: hostMacro("UserMacro"), value: func(r redirectValues) string { return r.userMacro }},
	{regex: hostMacro("ExternalURL"), value: func(r redirectValues) string { return r.externalURL }},
}

type redirectValues struct {
	key, bidderName, syncType, userMacro, externalURL string
}

func buildTemplate(key, bidderName, syncTypeValue string, hostConfig config.UserSync, syncerExternalURL string, syncerEndpoint config.SyncerEndpoint) (*template.Template, error) {
	redirectURL := syncerEndpoint.RedirectURL
	if redirectURL == "" {
		redirectURL = hostConfig.RedirectURL
	}

	values := redirectValues{
		key:         key,
		bidderName:  bidderName,
		syncType:    syncTypeValue,
		userMacro:   syncerEndpoint.UserMacro,
		externalURL: chooseExternalURL(syncerEndpoint.ExternalURL, syncerExternalURL, hostConfig.ExternalURL),
	}
	for _, macro := range redirectMacros {
		redirectURL = macro.regex.ReplaceAllLiteralString(redirectURL, macro.value(values))
	}

	syncURL := macroRegexRedirect.ReplaceAllLiteralString(syncerEndpoint.URL, escapeTemplate(redirectURL))
	return template.New(strings.ToLower(bidderName) + "_usersync_url").Parse(syncURL)
}

// chooseExternalURL selects the external url to use for the template, where the most specific config wins.
func chooseExternalURL(syncerEndpointURL, syncerURL, hostConfigURL string) string {
	if syncerEndpointURL != "" {
		return syncerEndpointURL
	}
	if syncerURL != "" {
		return syncerURL
	}
	return hostConfigURL
}

// escapeTemplate url encodes a string template leaving the macro tags unaffected.
func escapeTemplate(x string) string {
	escaped := strings.Builder{}

	i := 0
	for _, m := range macroRegex.FindAllStringIndex(x, -1) {
		escaped.WriteString(url.QueryEscape(x[i:m[0]]))
		escaped.WriteString(x[m[0]:m[1]])
		i = m[1]
	}
	escaped.WriteString(url.QueryEscape(x[i:]))

	return escaped.String()
}

var templateTestValues = macros.UserSyncPrivacy{
	GDPR:        "anyGDPR",
	GDPRConsent: "anyGDPRConsent",
	USPrivacy:   "anyCCPAConsent",
}

func validateTemplate(template *template.Template) error {
	url, err := macros.ResolveMacros(template, templateTestValues)
	if err != nil {
		return err
	}

	if !validator.IsURL(url) || !validator.IsRequestURL(url) {
		return fmt.Errorf(`composed url: "%s" is invalid`, url)
	}

	return nil
}

func (s standardSyncer) Key() string {
	return s.key
}

func (s standardSyncer) DefaultSyncType() SyncType {
	return s.defaultSyncType
}

func (s standardSyncer) SupportsType(syncTypes []SyncType) bool {
	return len(s.filterSupportedSyncTypes(syncTypes)) > 0
}

func (s standardSyncer) filterSupportedSyncTypes(syncTypes []SyncType) []SyncType {
	supported := make([]SyncType, 0, len(syncTypes))
	for _, syncType := range syncTypes {
		if s.chooseTemplate(syncType) != nil {
			supported = append(supported, syncType)
		}
	}
	return supported
}

func (s standardSyncer) GetSync(syncTypes []SyncType, userSyncPrivacy macros.UserSyncPrivacy) (Sync, error) {
	syncType, err := s.chooseSyncType(syncTypes)
	if err != nil {
		return Sync{}, err
	}

	url, err := macros.ResolveMacros(s.chooseTemplate(syncType), userSyncPrivacy)
	if err != nil {
		return Sync{}, err
	}
	return Sync{URL: url, Type: syncType, SupportCORS: s.supportCORS}, nil
}

// chooseSyncType prefers the default type among the supported ones, then the caller's order.
func (s standardSyncer) chooseSyncType(syncTypes []SyncType) (SyncType, error) {
	if len(syncTypes) == 0 {
		return SyncTypeUnknown, errNoSyncTypesProvided
	}

	supported := s.filterSupportedSyncTypes(syncTypes)
	switch {
	case len(supported) == 0:
		return SyncTypeUnknown, errNoSyncTypesSupported
	case slices.Contains(supported, s.defaultSyncType):
		return s.defaultSyncType, nil
	}
	return supported[0], nil
}

func (s standardSyncer) chooseTemplate(syncType SyncType) *template.Template {
	switch syncType {
	case SyncTypeIFrame:
		return s.iframe
	case SyncTypeRedirect:
		return s.redirect
	}
	return nil
}
