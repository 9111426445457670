package prometheusmetrics

import (
	"strconv"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registerer prometheus.Registerer
	Gatherer   *prometheus.Registry

	// General Metrics
	cookieSync         *prometheus.CounterVec
	geoLookup          *prometheus.CounterVec
	privacyCCPA        *prometheus.CounterVec
	privacyCOPPA       *prometheus.CounterVec
	privacyLMT         *prometheus.CounterVec
	privacyTCF         *prometheus.CounterVec
	tcfRequests        *prometheus.CounterVec
	tcfGeo             *prometheus.CounterVec
	ccpaEnforcement    *prometheus.CounterVec
	userSyncTCFInvalid prometheus.Counter
	vendorListFetch    *prometheus.CounterVec

	// Adapter Metrics
	adapterCCPAMasked       *prometheus.CounterVec
	adapterTCF              *prometheus.CounterVec
	adapterBuyerUIDScrubbed *prometheus.CounterVec
	syncerRequests          *prometheus.CounterVec

	metricsDisabled config.DisabledMetrics
}

const (
	accountEnforcedLabel = "account_enforced"
	actionLabel          = "action"
	adapterLabel         = "adapter"
	hostEnabledLabel     = "host_enabled"
	inEEALabel           = "in_eea"
	noSaleLabel          = "no_sale"
	optOutLabel          = "opt_out"
	sourceLabel          = "source"
	statusLabel          = "status"
	successLabel         = "success"
	syncerLabel          = "syncer"
	versionLabel         = "version"
)

const (
	sourceRequest = "request"
	inEEAUnknown  = "unknown"
)

const (
	actionUserFpdRemoved   = "userfpd_removed"
	actionUserIdsRemoved   = "userids_removed"
	actionGeoMasked        = "geo_masked"
	actionAnalyticsBlocked = "analytics_blocked"
	actionRequestBlocked   = "request_blocked"
	actionLMTEnforced      = "lmt"
)

// NewMetrics initializes a new Prometheus metrics instance.
func NewMetrics(cfg config.PrometheusMetrics, disabledMetrics config.DisabledMetrics) *Metrics {
	metrics := Metrics{}
	reg := prometheus.NewRegistry()
	metrics.Registerer = prometheus.WrapRegistererWithPrefix("", reg)
	metrics.Gatherer = reg
	metrics.metricsDisabled = disabledMetrics

	metrics.cookieSync = newCounter(cfg, metrics.Registerer,
		"cookie_sync_requests",
		"Count of cookie sync requests to Prebid Server labeled by status.",
		[]string{statusLabel})

	metrics.geoLookup = newCounter(cfg, metrics.Registerer,
		"geolocation_lookups",
		"Count of geolocation lookups labeled by success.",
		[]string{successLabel})

	metrics.privacyCCPA = newCounter(cfg, metrics.Registerer,
		"privacy_ccpa",
		"Count of total requests to Prebid Server where CCPA was provided by source and opt-out .",
		[]string{sourceLabel, optOutLabel})

	metrics.privacyCOPPA = newCounter(cfg, metrics.Registerer,
		"privacy_coppa",
		"Count of total requests to Prebid Server where the COPPA flag was set by source",
		[]string{sourceLabel})

	metrics.privacyTCF = newCounter(cfg, metrics.Registerer,
		"privacy_tcf",
		"Count of TCF versions for requests where GDPR was enforced by source and version.",
		[]string{versionLabel, sourceLabel})

	metrics.privacyLMT = newCounter(cfg, metrics.Registerer,
		"privacy_lmt",
		"Count of total requests to Prebid Server where the LMT flag was set by source",
		[]string{sourceLabel})

	metrics.tcfRequests = newCounter(cfg, metrics.Registerer,
		"privacy_tcf_requests",
		"Count of in-scope TCF requests labeled by consent version and consent source (missing, invalid, valid).",
		[]string{versionLabel, sourceLabel})

	metrics.tcfGeo = newCounter(cfg, metrics.Registerer,
		"privacy_tcf_geo",
		"Count of in-scope TCF requests labeled by version and whether the user is in the EEA (true, false or unknown).",
		[]string{versionLabel, inEEALabel})

	metrics.ccpaEnforcement = newCounter(cfg, metrics.Registerer,
		"privacy_ccpa_enforcement",
		"Count of CCPA enforcement decisions labeled by host, account and no-sale resolution.",
		[]string{hostEnabledLabel, accountEnforcedLabel, noSaleLabel})

	metrics.userSyncTCFInvalid = newCounterWithoutLabels(cfg, metrics.Registerer,
		"usersync_tcf_invalid",
		"Count of cookie sync requests rejected because of an invalid consent string.")

	metrics.vendorListFetch = newCounter(cfg, metrics.Registerer,
		"vendorlist_fetch",
		"Count of global vendor list fetches labeled by source and success.",
		[]string{sourceLabel, successLabel})

	metrics.adapterCCPAMasked = newCounter(cfg, metrics.Registerer,
		"adapter_ccpa_masked",
		"Count of bidder requests masked because of a CCPA opt-out.",
		[]string{adapterLabel})

	if !metrics.metricsDisabled.AdapterTCF {
		metrics.adapterTCF = newCounter(cfg, metrics.Registerer,
			"adapter_tcf",
			"Count of TCF enforcement actions applied to bidder requests labeled by adapter and action.",
			[]string{adapterLabel, actionLabel})
	}

	if !metrics.metricsDisabled.AdapterBuyerUIDScrubbed {
		metrics.adapterBuyerUIDScrubbed = newCounter(cfg, metrics.Registerer,
			"adapter_buyeruids_scrubbed",
			"Count of total bidder requests with a scrubbed buyeruid due to a privacy policy",
			[]string{adapterLabel})
	}

	metrics.syncerRequests = newCounter(cfg, metrics.Registerer,
		"syncer_requests",
		"Count of cookie sync requests where a syncer is a candidate to be synced labeled by syncer key and status.",
		[]string{syncerLabel, statusLabel})

	return &metrics
}

func newCounter(cfg config.PrometheusMetrics, registry prometheus.Registerer, name, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounterVec(opts, labels)
	registry.MustRegister(counter)
	return counter
}

func newCounterWithoutLabels(cfg config.PrometheusMetrics, registry prometheus.Registerer, name, help string) prometheus.Counter {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounter(opts)
	registry.MustRegister(counter)
	return counter
}

func (m *Metrics) RecordRequestPrivacy(privacy metrics.PrivacyLabels) {
	if privacy.CCPAProvided {
		m.privacyCCPA.With(prometheus.Labels{
			sourceLabel: sourceRequest,
			optOutLabel: strconv.FormatBool(privacy.CCPAEnforced),
		}).Inc()
	}

	if privacy.COPPAEnforced {
		m.privacyCOPPA.With(prometheus.Labels{
			sourceLabel: sourceRequest,
		}).Inc()
	}

	if privacy.GDPREnforced {
		m.privacyTCF.With(prometheus.Labels{
			versionLabel: string(privacy.GDPRTCFVersion),
			sourceLabel:  sourceRequest,
		}).Inc()
	}

	if privacy.LMTEnforced {
		m.privacyLMT.With(prometheus.Labels{
			sourceLabel: sourceRequest,
		}).Inc()
	}
}

func (m *Metrics) RecordTCFRequest(version metrics.TCFVersionValue, source metrics.TCFSource) {
	m.tcfRequests.With(prometheus.Labels{
		versionLabel: string(version),
		sourceLabel:  string(source),
	}).Inc()
}

func (m *Metrics) RecordTCFGeo(version metrics.TCFVersionValue, inEEA *bool) {
	inEEAValue := inEEAUnknown
	if inEEA != nil {
		inEEAValue = strconv.FormatBool(*inEEA)
	}
	m.tcfGeo.With(prometheus.Labels{
		versionLabel: string(version),
		inEEALabel:   inEEAValue,
	}).Inc()
}

func (m *Metrics) RecordGeoLookup(success bool) {
	m.geoLookup.With(prometheus.Labels{
		successLabel: strconv.FormatBool(success),
	}).Inc()
}

func (m *Metrics) RecordCCPA(labels metrics.CCPALabels) {
	m.ccpaEnforcement.With(prometheus.Labels{
		hostEnabledLabel:     strconv.FormatBool(labels.HostEnabled),
		accountEnforcedLabel: strconv.FormatBool(labels.AccountEnforced),
		noSaleLabel:          strconv.FormatBool(labels.NoSaleApplied),
	}).Inc()
}

func (m *Metrics) RecordAdapterCCPA(adapter string) {
	m.adapterCCPAMasked.With(prometheus.Labels{
		adapterLabel: adapter,
	}).Inc()
}

func (m *Metrics) RecordAdapterTCF(labels metrics.AdapterTCFLabels) {
	if m.metricsDisabled.AdapterTCF {
		return
	}

	actions := []struct {
		applied bool
		name    string
	}{
		{labels.UserFpdRemoved, actionUserFpdRemoved},
		{labels.UserIdsRemoved, actionUserIdsRemoved},
		{labels.GeoMasked, actionGeoMasked},
		{labels.AnalyticsBlocked, actionAnalyticsBlocked},
		{labels.RequestBlocked, actionRequestBlocked},
		{labels.LMTEnforced, actionLMTEnforced},
	}

	for _, action := range actions {
		if action.applied {
			m.adapterTCF.With(prometheus.Labels{
				adapterLabel: labels.Adapter,
				actionLabel:  action.name,
			}).Inc()
		}
	}
}

func (m *Metrics) RecordAdapterBuyerUIDScrubbed(adapter string) {
	if m.metricsDisabled.AdapterBuyerUIDScrubbed {
		return
	}

	m.adapterBuyerUIDScrubbed.With(prometheus.Labels{
		adapterLabel: adapter,
	}).Inc()
}

func (m *Metrics) RecordCookieSync(status metrics.CookieSyncStatus) {
	m.cookieSync.With(prometheus.Labels{
		statusLabel: string(status),
	}).Inc()
}

func (m *Metrics) RecordSyncerRequest(key string, status metrics.SyncerCookieSyncStatus) {
	m.syncerRequests.With(prometheus.Labels{
		syncerLabel: key,
		statusLabel: string(status),
	}).Inc()
}

func (m *Metrics) RecordUserSyncTCFInvalid() {
	m.userSyncTCFInvalid.Inc()
}

func (m *Metrics) RecordVendorListFetch(source metrics.VendorListSource, success bool) {
	m.vendorListFetch.With(prometheus.Labels{
		sourceLabel:  string(source),
		successLabel: strconv.FormatBool(success),
	}).Inc()
}
