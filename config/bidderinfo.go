package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/asaskevich/govalidator"
	"gopkg.in/yaml.v2"
)

// BidderInfos contains a mapping of bidder name to bidder info.
type BidderInfos map[string]BidderInfo

// BidderInfo specifies the privacy relevant configuration of a bidder.
type BidderInfo struct {
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`

	// AliasOf names the bidder this entry is an alias of. Aliases share the usersync configuration
	// and vendor id of their root bidder unless they configure their own.
	AliasOf string `yaml:"aliasOf" mapstructure:"alias_of"`

	GVLVendorID uint16 `yaml:"gvlVendorID" mapstructure:"gvl_vendor_id"`

	// CCPAEnforced marks bidders whose requests are masked when the user opts out of sale.
	CCPAEnforced bool `yaml:"ccpaEnforced" mapstructure:"ccpa_enforced"`

	Syncer *Syncer `yaml:"userSync" mapstructure:"usersync"`
}

// Syncer specifies the user sync settings for a bidder. This struct is shared by the yaml files
// and the host config, so it needs to have both yaml and mapstructure mappings.
type Syncer struct {
	// Key is used as the record key for the user sync cookie. We recommend using the bidder name
	// as the key for consistency, but that is not enforced as a requirement.
	Key string `yaml:"key" mapstructure:"key"`

	// Default identifies which endpoint is preferred if both are allowed by the publisher. This is
	// only required if there is more than one endpoint configured for the bidder. Valid values are
	// `iframe` and `redirect`.
	Default string `yaml:"default" mapstructure:"default"`

	// IFrame configures an iframe endpoint for user syncing.
	IFrame *SyncerEndpoint `yaml:"iframe" mapstructure:"iframe"`

	// Redirect configures an redirect endpoint for user syncing. This is also known as an image
	// endpoint in the Prebid.js project.
	Redirect *SyncerEndpoint `yaml:"redirect" mapstructure:"redirect"`

	// ExternalURL is available as a macro to the RedirectURL template.
	ExternalURL string `yaml:"externalUrl" mapstructure:"external_url"`

	// SupportCORS identifies if CORS is supported for the user syncing endpoints.
	SupportCORS *bool `yaml:"supportCors" mapstructure:"support_cors"`

	// Enabled allows the host to switch off syncing for a bidder while keeping its endpoints configured.
	Enabled *bool `yaml:"enabled" mapstructure:"enabled"`
}

// IsEnabled reports whether the syncer may be used. Syncers are enabled unless explicitly disabled.
func (s *Syncer) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// HasEndpoints reports whether at least one sync endpoint is configured.
func (s *Syncer) HasEndpoints() bool {
	return (s.IFrame != nil && s.IFrame.URL != "") || (s.Redirect != nil && s.Redirect.URL != "")
}

// Override returns a new Syncer object where values in the original are replaced by non-empty/non-default
// values in the override. No changes are made to the original or override Syncer.
func (s *Syncer) Override(original *Syncer) *Syncer {
	if s == nil && original == nil {
		return nil
	}

	var copy Syncer
	if original != nil {
		copy = *original
	}

	if s == nil {
		return &copy
	}

	if s.Key != "" {
		copy.Key = s.Key
	}

	if s.Default != "" {
		copy.Default = s.Default
	}

	if original == nil {
		copy.IFrame = s.IFrame.Override(nil)
		copy.Redirect = s.Redirect.Override(nil)
	} else {
		copy.IFrame = s.IFrame.Override(original.IFrame)
		copy.Redirect = s.Redirect.Override(original.Redirect)
	}

	if s.ExternalURL != "" {
		copy.ExternalURL = s.ExternalURL
	}

	if s.SupportCORS != nil {
		copy.SupportCORS = s.SupportCORS
	}

	if s.Enabled != nil {
		copy.Enabled = s.Enabled
	}

	return &copy
}

// SyncerEndpoint specifies the configuration of the URL returned by the /cookie_sync endpoint
// for a specific bidder.
//
// In most cases, bidders will specify a URL with a `{{.RedirectURL}}` macro for the call back to
// the host and a UserMacro which the bidder server will replace with the user's id. Example:
//
//	url: "https://sync.bidderserver.com/usersync?gdpr={{.GDPR}}&gdpr_consent={{.GDPRConsent}}&us_privacy={{.USPrivacy}}&redirect={{.RedirectURL}}"
//	userMacro: "$UID"
type SyncerEndpoint struct {
	// URL is the endpoint on the bidder server the user will be redirected to when a user sync is
	// requested. {{.RedirectURL}} is resolved at startup; {{.GDPR}}, {{.GDPRConsent}} and
	// {{.USPrivacy}} are resolved per request.
	URL string `yaml:"url" mapstructure:"url"`

	// RedirectURL overrides the host's user_sync.redirect_url template for this bidder.
	RedirectURL string `yaml:"redirectUrl" mapstructure:"redirect_url"`

	// ExternalURL is available as a macro to the RedirectURL template. If not specified, either the syncer configuration
	// value or the host configuration value is used.
	ExternalURL string `yaml:"externalUrl" mapstructure:"external_url"`

	// UserMacro is available as a macro to the RedirectURL template. This value is specific to the bidder server
	// and has no default.
	UserMacro string `yaml:"userMacro" mapstructure:"user_macro"`
}

// Override returns a new SyncerEndpoint object where values in the original are replaced by non-empty/non-default
// values in the override. No changes are made to the original or override SyncerEndpoint.
func (s *SyncerEndpoint) Override(original *SyncerEndpoint) *SyncerEndpoint {
	if s == nil && original == nil {
		return nil
	}

	var copy SyncerEndpoint
	if original != nil {
		copy = *original
	}

	if s == nil {
		return &copy
	}

	if s.URL != "" {
		copy.URL = s.URL
	}

	if s.RedirectURL != "" {
		copy.RedirectURL = s.RedirectURL
	}

	if s.ExternalURL != "" {
		copy.ExternalURL = s.ExternalURL
	}

	if s.UserMacro != "" {
		copy.UserMacro = s.UserMacro
	}

	return &copy
}

// LoadBidderInfoFromDisk parses all {bidder}.yaml files found in the directory. The bidder name is the
// file name without its extension.
func LoadBidderInfoFromDisk(path string) (BidderInfos, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bidder info directory %s: %v", path, err)
	}

	reader := infoReaderFromDisk{path}
	var bidders []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		bidders = append(bidders, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	return loadBidderInfo(reader, bidders)
}

func loadBidderInfo(r infoReader, bidders []string) (BidderInfos, error) {
	infos := BidderInfos{}

	for _, bidder := range bidders {
		data, err := r.Read(bidder)
		if err != nil {
			return nil, err
		}

		info := BidderInfo{}
		if err := yaml.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("error parsing yaml for bidder %s: %v", bidder, err)
		}
		infos[strings.ToLower(bidder)] = info
	}

	return infos, nil
}

type infoReader interface {
	Read(bidder string) ([]byte, error)
}

type infoReaderFromDisk struct {
	path string
}

func (r infoReaderFromDisk) Read(bidder string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.path, bidder+".yaml"))
}

// Override merges the host config entries onto the entries read from disk. Host config wins for every
// non-empty value, and bidders only present in the host config are added.
func (infos BidderInfos) Override(overrides BidderInfos) BidderInfos {
	merged := make(BidderInfos, len(infos)+len(overrides))
	for name, info := range infos {
		merged[name] = info
	}
	for name, override := range overrides {
		name = strings.ToLower(name)
		original, found := merged[name]
		if !found {
			merged[name] = override
			continue
		}
		if override.Disabled {
			original.Disabled = true
		}
		if override.AliasOf != "" {
			original.AliasOf = override.AliasOf
		}
		if override.GVLVendorID != 0 {
			original.GVLVendorID = override.GVLVendorID
		}
		if override.CCPAEnforced {
			original.CCPAEnforced = true
		}
		original.Syncer = override.Syncer.Override(original.Syncer)
		merged[name] = original
	}
	return merged
}

// normalize lower cases alias references and defaults the syncer key to the bidder name. Aliases without
// their own syncer share the root bidder's syncer.
func (infos BidderInfos) normalize() BidderInfos {
	if infos == nil {
		return BidderInfos{}
	}
	for name, info := range infos {
		info.AliasOf = strings.ToLower(info.AliasOf)
		if info.Syncer != nil && info.Syncer.Key == "" {
			syncer := *info.Syncer
			syncer.Key = name
			info.Syncer = &syncer
		}
		infos[name] = info
	}
	for name, info := range infos {
		if info.AliasOf == "" || info.Syncer != nil {
			continue
		}
		if root, ok := infos[info.AliasOf]; ok && root.Syncer != nil {
			syncer := *root.Syncer
			info.Syncer = &syncer
			infos[name] = info
		}
	}
	return infos
}

func (infos BidderInfos) validate(errs []error) []error {
	for _, name := range infos.Names() {
		info := infos[name]
		if info.AliasOf != "" {
			root, ok := infos[info.AliasOf]
			if !ok {
				errs = append(errs, fmt.Errorf("bidders.%s.alias_of references unknown bidder %s", name, info.AliasOf))
			} else if root.AliasOf != "" {
				errs = append(errs, fmt.Errorf("bidders.%s.alias_of must reference a root bidder. %s is an alias", name, info.AliasOf))
			}
		}
		if info.Syncer == nil {
			continue
		}
		switch info.Syncer.Default {
		case "", "iframe", "redirect":
		default:
			errs = append(errs, fmt.Errorf("bidders.%s.usersync.default must be \"iframe\" or \"redirect\". Got %s", name, info.Syncer.Default))
		}
		if info.Syncer.ExternalURL != "" && !govalidator.IsURL(info.Syncer.ExternalURL) {
			errs = append(errs, fmt.Errorf("bidders.%s.usersync.external_url must be a valid url. Got %s", name, info.Syncer.ExternalURL))
		}
	}
	return errs
}

// Names returns the configured bidder names in sorted order.
func (infos BidderInfos) Names() []string {
	names := make([]string, 0, len(infos))
	for name := range infos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidName reports whether the bidder or alias is configured.
func (infos BidderInfos) IsValidName(name string) bool {
	_, ok := infos[strings.ToLower(name)]
	return ok
}

// IsActive reports whether the bidder is configured and enabled. An alias is active only when its root is.
func (infos BidderInfos) IsActive(name string) bool {
	info, ok := infos[strings.ToLower(name)]
	if !ok || info.Disabled {
		return false
	}
	if info.AliasOf != "" {
		root, ok := infos[info.AliasOf]
		return ok && !root.Disabled
	}
	return true
}

// ResolveAlias returns the root bidder name for an alias, or the name itself otherwise.
func (infos BidderInfos) ResolveAlias(name string) string {
	name = strings.ToLower(name)
	if info, ok := infos[name]; ok && info.AliasOf != "" {
		return info.AliasOf
	}
	return name
}

// VendorID returns the GVL vendor id of the bidder. Aliases without their own id use their root's.
func (infos BidderInfos) VendorID(name string) (uint16, bool) {
	info, ok := infos[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	if info.GVLVendorID == 0 && info.AliasOf != "" {
		info = infos[info.AliasOf]
	}
	return info.GVLVendorID, info.GVLVendorID != 0
}

// NameByVendorID returns the first root bidder in name order registered under the vendor id.
func (infos BidderInfos) NameByVendorID(vendorID uint16) (string, bool) {
	for _, name := range infos.Names() {
		info := infos[name]
		if info.AliasOf == "" && info.GVLVendorID == vendorID {
			return name, true
		}
	}
	return "", false
}

// CCPAEnforced reports whether CCPA applies to the bidder, following the alias to its root.
func (infos BidderInfos) CCPAEnforced(name string) bool {
	return infos[infos.ResolveAlias(name)].CCPAEnforced
}

// ErrSyncerNotConfigured is returned by SyncerFor when a bidder has no usersync section.
var ErrSyncerNotConfigured = errors.New("usersync is not configured")

// SyncerFor returns the usersync configuration of a bidder.
func (infos BidderInfos) SyncerFor(name string) (*Syncer, error) {
	info, ok := infos[strings.ToLower(name)]
	if !ok || info.Syncer == nil {
		return nil, ErrSyncerNotConfigured
	}
	return info.Syncer, nil
}

// CookieFamily returns the uids cookie key the bidder syncs under.
func (infos BidderInfos) CookieFamily(name string) (string, bool) {
	syncer, err := infos.SyncerFor(name)
	if err != nil {
		return "", false
	}
	return syncer.Key, true
}
