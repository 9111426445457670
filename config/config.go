package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/golang/glog"
	"github.com/prebid/go-gdpr/consentconstants"
	"github.com/spf13/viper"

	"github.com/prebid/prebid-privacy/errortypes"
)

// Configuration specifies the static application config.
type Configuration struct {
	ExternalURL     string          `mapstructure:"external_url"`
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	EnableGzip      bool            `mapstructure:"enable_gzip"`
	StatusResponse  string          `mapstructure:"status_response"`
	HostCookie      HostCookie      `mapstructure:"host_cookie"`
	GDPR            GDPR            `mapstructure:"gdpr"`
	CCPA            CCPA            `mapstructure:"ccpa"`
	LMT             LMT             `mapstructure:"lmt"`
	UserSync        UserSync        `mapstructure:"user_sync"`
	GeoLocation     GeoLocation     `mapstructure:"geolocation"`
	VendorListCache VendorListCache `mapstructure:"vendorlist_cache"`
	Metrics         Metrics         `mapstructure:"metrics"`

	// BidderInfoPath points at a directory of {bidder}.yaml files merged underneath the bidders section.
	BidderInfoPath string      `mapstructure:"bidder_info_path"`
	BidderInfos    BidderInfos `mapstructure:"bidders"`

	AccountDefaults Account            `mapstructure:"account_defaults"`
	Accounts        map[string]Account `mapstructure:"accounts"`
}

type HostCookie struct {
	Domain       string `mapstructure:"domain"`
	Family       string `mapstructure:"family"`
	CookieName   string `mapstructure:"cookie_name"`
	OptOutCookie Cookie `mapstructure:"optout_cookie"`
	// TTL is the number of days a uid is considered live.
	TTL int64 `mapstructure:"ttl_days"`
}

type Cookie struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

func (cfg *HostCookie) TTLDuration() time.Duration {
	return time.Duration(cfg.TTL) * 24 * time.Hour
}

type GDPR struct {
	Enabled                   bool         `mapstructure:"enabled"`
	HostVendorID              int          `mapstructure:"host_vendor_id"`
	DefaultValue              string       `mapstructure:"default_value"`
	Timeouts                  GDPRTimeouts `mapstructure:"timeouts_ms"`
	ConsentStringMeansInScope bool         `mapstructure:"consent_string_means_in_scope"`
	VendorListURL             string       `mapstructure:"vendorlist_url"`
	VendorListLatestURL       string       `mapstructure:"vendorlist_latest_url"`
	VendorListURLV1           string       `mapstructure:"vendorlist_url_v1"`
	VendorListRefreshSeconds  int          `mapstructure:"vendorlist_refresh_seconds"`
	TCF2                      TCF2         `mapstructure:"tcf2"`
	// EEACountries (EEA = European Economic Area) are a list of countries where we should assume GDPR applies.
	// If the gdpr flag is unset in a request, but geo.country is set, we will assume GDPR applies if and only
	// if the country matches one on this list. If both the GDPR flag and country are not set, we default
	// to DefaultValue
	EEACountries    []string `mapstructure:"eea_countries"`
	EEACountriesMap map[string]struct{}
}

func (cfg *GDPR) validate(v *viper.Viper, errs []error) []error {
	if !v.IsSet("gdpr.default_value") {
		errs = append(errs, fmt.Errorf("gdpr.default_value is required and must be specified"))
	} else if cfg.DefaultValue != "0" && cfg.DefaultValue != "1" {
		errs = append(errs, fmt.Errorf("gdpr.default_value must be 0 or 1"))
	}
	if cfg.HostVendorID < 0 || cfg.HostVendorID > 0xffff {
		errs = append(errs, fmt.Errorf("gdpr.host_vendor_id must be in the range [0, %d]. Got %d", 0xffff, cfg.HostVendorID))
	}
	if cfg.HostVendorID == 0 {
		glog.Warning("gdpr.host_vendor_id was not specified. Host company GDPR checks will be skipped.")
	}
	if cfg.Timeouts.ActiveVendorlistFetch <= 0 {
		errs = append(errs, fmt.Errorf("gdpr.timeouts_ms.active_vendorlist_fetch must be positive. Got %d", cfg.Timeouts.ActiveVendorlistFetch))
	}
	if cfg.VendorListRefreshSeconds < 0 {
		errs = append(errs, fmt.Errorf("gdpr.vendorlist_refresh_seconds must be >= 0. Got %d", cfg.VendorListRefreshSeconds))
	}
	if !strings.Contains(cfg.VendorListURL, "%d") {
		errs = append(errs, fmt.Errorf("gdpr.vendorlist_url must contain a %%d version placeholder. Got %s", cfg.VendorListURL))
	}
	return cfg.TCF2.validate(errs)
}

// IsInEEA reports whether the ISO country code belongs to the configured GDPR territory.
func (cfg *GDPR) IsInEEA(country string) bool {
	_, found := cfg.EEACountriesMap[strings.ToUpper(country)]
	return found
}

type GDPRTimeouts struct {
	InitVendorlistFetch   int `mapstructure:"init_vendorlist_fetches"`
	ActiveVendorlistFetch int `mapstructure:"active_vendorlist_fetch"`
}

func (t *GDPRTimeouts) InitTimeout() time.Duration {
	return time.Duration(t.InitVendorlistFetch) * time.Millisecond
}

func (t *GDPRTimeouts) ActiveTimeout() time.Duration {
	return time.Duration(t.ActiveVendorlistFetch) * time.Millisecond
}

type CCPA struct {
	Enforce bool `mapstructure:"enforce"`
}

type LMT struct {
	Enforce bool `mapstructure:"enforce"`
}

type UserSync struct {
	ExternalURL     string              `mapstructure:"external_url"`
	RedirectURL     string              `mapstructure:"redirect_url"`
	Cooperative     UserSyncCooperative `mapstructure:"coop_sync"`
	DefaultLimit    int                 `mapstructure:"default_limit"`
	MaxLimit        int                 `mapstructure:"max_limit"`
	PriorityGroups  [][]string          `mapstructure:"priority_groups"`
	DefaultSyncType string              `mapstructure:"default_sync_type"`
}

type UserSyncCooperative struct {
	EnabledByDefault bool `mapstructure:"default"`
}

// PrioritizedBidders flattens the priority groups in order, keeping the first occurrence of each bidder.
func (cfg *UserSync) PrioritizedBidders() []string {
	seen := make(map[string]struct{})
	var bidders []string
	for _, group := range cfg.PriorityGroups {
		for _, bidder := range group {
			if _, ok := seen[bidder]; ok {
				continue
			}
			seen[bidder] = struct{}{}
			bidders = append(bidders, bidder)
		}
	}
	return bidders
}

func (cfg *UserSync) validate(errs []error) []error {
	if cfg.DefaultLimit <= 0 {
		errs = append(errs, errors.New("Default cookie-sync limit should be greater than 0"))
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		errs = append(errs, errors.New("Max cookie-sync limit should be greater or equal than limit"))
	}
	if cfg.ExternalURL != "" && !govalidator.IsURL(cfg.ExternalURL) {
		errs = append(errs, fmt.Errorf("user_sync.external_url must be a valid url. Got %s", cfg.ExternalURL))
	}
	return errs
}

type GeoLocation struct {
	Enabled bool           `mapstructure:"enabled"`
	MaxMind MaxMindGeoInfo `mapstructure:"maxmind"`
}

type MaxMindGeoInfo struct {
	DatabasePath string `mapstructure:"database_path"`
}

type VendorListCache struct {
	Redis RedisCache `mapstructure:"redis"`
}

type RedisCache struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
}

func (cfg *RedisCache) TTL() time.Duration {
	return time.Duration(cfg.TTLSeconds) * time.Second
}

func (cfg *RedisCache) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMs) * time.Millisecond
}

func (cfg *RedisCache) validate(errs []error) []error {
	if !cfg.Enabled {
		return errs
	}
	if cfg.Address == "" {
		errs = append(errs, errors.New("vendorlist_cache.redis.address must be set when the redis cache is enabled"))
	}
	if cfg.TTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("vendorlist_cache.redis.ttl_seconds must be >= 0. Got %d", cfg.TTLSeconds))
	}
	return errs
}

type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
	GoMetrics  GoMetrics         `mapstructure:"gometrics"`
	Disabled   DisabledMetrics   `mapstructure:"disabled_metrics"`
}

type PrometheusMetrics struct {
	Port             int    `mapstructure:"port"`
	Namespace        string `mapstructure:"namespace"`
	Subsystem        string `mapstructure:"subsystem"`
	TimeoutMillisRaw int    `mapstructure:"timeout_ms"`
}

func (cfg *PrometheusMetrics) validate(errs []error) []error {
	if cfg.Port > 0 && cfg.TimeoutMillisRaw <= 0 {
		errs = append(errs, fmt.Errorf("metrics.prometheus.timeout_ms must be positive if metrics.prometheus.port is defined. Got timeout=%d and port=%d", cfg.TimeoutMillisRaw, cfg.Port))
	}
	return errs
}

func (m *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(m.TimeoutMillisRaw) * time.Millisecond
}

type GoMetrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

type DisabledMetrics struct {
	// True if we don't want to collect the per adapter TCF enforcement metrics
	AdapterTCF bool `mapstructure:"adapter_tcf"`

	// True if we don't want to collect the per adapter buyeruid scrubbed metrics
	AdapterBuyerUIDScrubbed bool `mapstructure:"adapter_buyeruid_scrubbed"`
}

func (cfg *Configuration) validate(v *viper.Viper) []error {
	var errs []error
	errs = cfg.GDPR.validate(v, errs)
	errs = cfg.UserSync.validate(errs)
	errs = cfg.VendorListCache.Redis.validate(errs)
	errs = cfg.Metrics.Prometheus.validate(errs)
	errs = cfg.BidderInfos.validate(errs)
	errs = cfg.AccountDefaults.validate("account_defaults", errs)
	for id, account := range cfg.Accounts {
		errs = account.validate(fmt.Sprintf("accounts.%s", id), errs)
	}
	if cfg.GeoLocation.Enabled && cfg.GeoLocation.MaxMind.DatabasePath == "" {
		errs = append(errs, errors.New("geolocation.maxmind.database_path must be set when geolocation is enabled"))
	}
	return errs
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	if c.BidderInfoPath != "" {
		fromDisk, err := LoadBidderInfoFromDisk(c.BidderInfoPath)
		if err != nil {
			return nil, err
		}
		c.BidderInfos = fromDisk.Override(c.BidderInfos)
	}
	c.BidderInfos = c.BidderInfos.normalize()

	c.GDPR.EEACountriesMap = make(map[string]struct{}, len(c.GDPR.EEACountries))
	for _, country := range c.GDPR.EEACountries {
		c.GDPR.EEACountriesMap[strings.ToUpper(country)] = struct{}{}
	}

	c.GDPR.TCF2.build()
	c.AccountDefaults.build()
	for id, account := range c.Accounts {
		account.ID = id
		account.build()
		c.Accounts[id] = account
	}

	glog.Infof("Resolved configuration: gdpr.enabled=%t, ccpa.enforce=%t, lmt.enforce=%t, bidders=%d, accounts=%d",
		c.GDPR.Enabled, c.CCPA.Enforce, c.LMT.Enforce, len(c.BidderInfos), len(c.Accounts))

	if errs := c.validate(v); len(errs) > 0 {
		return &c, errortypes.NewAggregateErrors("validation errors", errs)
	}

	return &c, nil
}

// ResolveAccount returns the configured account merged onto the account defaults. Unknown account ids
// resolve to the defaults.
func (cfg *Configuration) ResolveAccount(accountID string) Account {
	if account, ok := cfg.Accounts[accountID]; ok {
		return account.withDefaults(cfg.AccountDefaults)
	}
	account := cfg.AccountDefaults
	account.ID = accountID
	return account
}

// SetupViper sets up viper defaults and reads the configuration file named filename when given.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("external_url", "http://localhost:8000")
	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")
	v.SetDefault("host_cookie.domain", "")
	v.SetDefault("host_cookie.family", "")
	v.SetDefault("host_cookie.cookie_name", "")
	v.SetDefault("host_cookie.optout_cookie.name", "")
	v.SetDefault("host_cookie.optout_cookie.value", "")
	v.SetDefault("host_cookie.ttl_days", 90)

	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)
	v.SetDefault("metrics.gometrics.enabled", false)
	v.SetDefault("metrics.gometrics.prefix", "prebidprivacy.")
	v.SetDefault("metrics.disabled_metrics.adapter_tcf", false)
	v.SetDefault("metrics.disabled_metrics.adapter_buyeruid_scrubbed", false)

	v.SetDefault("user_sync.external_url", "")
	v.SetDefault("user_sync.redirect_url", "{{.ExternalURL}}/setuid?bidder={{.SyncerKey}}&gdpr={{.GDPR}}&gdpr_consent={{.GDPRConsent}}&f={{.SyncType}}&uid={{.UserMacro}}")
	v.SetDefault("user_sync.coop_sync.default", false)
	v.SetDefault("user_sync.default_limit", 8)
	v.SetDefault("user_sync.max_limit", 32)
	v.SetDefault("user_sync.default_sync_type", "iframe")

	v.SetDefault("gdpr.enabled", true)
	v.SetDefault("gdpr.host_vendor_id", 0)
	v.SetDefault("gdpr.timeouts_ms.init_vendorlist_fetches", 0)
	v.SetDefault("gdpr.timeouts_ms.active_vendorlist_fetch", 1000)
	v.SetDefault("gdpr.consent_string_means_in_scope", false)
	v.SetDefault("gdpr.vendorlist_url", "https://vendor-list.consensu.org/v2/archives/vendor-list-v%d.json")
	v.SetDefault("gdpr.vendorlist_latest_url", "https://vendor-list.consensu.org/v2/vendor-list.json")
	v.SetDefault("gdpr.vendorlist_url_v1", "https://vendor-list.consensu.org/v-%d/vendorlist.json")
	v.SetDefault("gdpr.vendorlist_refresh_seconds", 3600)
	v.SetDefault("gdpr.eea_countries", []string{"ALA", "AUT", "BEL", "BGR", "HRV", "CYP", "CZE", "DNK", "EST",
		"FIN", "FRA", "GUF", "DEU", "GIB", "GRC", "GLP", "GGY", "HUN", "ISL", "IRL", "IMN", "ITA", "JEY", "LVA",
		"LIE", "LTU", "LUX", "MLT", "MTQ", "MYT", "NLD", "NOR", "POL", "PRT", "REU", "ROU", "BLM", "MAF", "SPM",
		"SVK", "SVN", "ESP", "SWE", "GBR", "AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE",
		"GR", "HU", "IS", "IE", "IT", "LV", "LI", "LT", "LU", "MT", "NL", "NO", "PL", "PT", "RO", "SK", "SI",
		"ES", "SE", "GB"})
	for i := consentconstants.Purpose(1); i <= 10; i++ {
		key := fmt.Sprintf("gdpr.tcf2.purpose%d", i)
		v.SetDefault(key+".enforce_algo", TCF2EnforceAlgoFull)
		v.SetDefault(key+".enforce_purpose", true)
		v.SetDefault(key+".enforce_vendors", true)
		v.SetDefault(key+".vendor_exceptions", []string{})
	}
	v.SetDefault("gdpr.tcf2.purpose4.eid_exceptions", []string{})
	v.SetDefault("gdpr.tcf2.special_feature1.enforce", true)
	v.SetDefault("gdpr.tcf2.special_feature1.vendor_exceptions", []string{})
	v.SetDefault("gdpr.tcf2.special_feature2.enforce", true)
	v.SetDefault("gdpr.tcf2.purpose_one_treatment.enabled", true)
	v.SetDefault("gdpr.tcf2.purpose_one_treatment.access_allowed", true)

	v.SetDefault("ccpa.enforce", false)
	v.SetDefault("lmt.enforce", true)

	v.SetDefault("geolocation.enabled", false)
	v.SetDefault("geolocation.maxmind.database_path", "")

	v.SetDefault("vendorlist_cache.redis.enabled", false)
	v.SetDefault("vendorlist_cache.redis.address", "")
	v.SetDefault("vendorlist_cache.redis.db", 0)
	v.SetDefault("vendorlist_cache.redis.key_prefix", "gvl:")
	v.SetDefault("vendorlist_cache.redis.ttl_seconds", 86400)
	v.SetDefault("vendorlist_cache.redis.timeout_ms", 100)

	v.SetDefault("bidder_info_path", "")

	v.SetDefault("account_defaults.disabled", false)

	// Set environment variable support:
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetTypeByDefaultValue(true)
	v.SetEnvPrefix("PBS")
	v.AutomaticEnv()
	v.ReadInConfig()
}
