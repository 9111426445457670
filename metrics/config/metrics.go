package config

import (
	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/metrics"
	prometheusmetrics "github.com/prebid/prebid-privacy/metrics/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
)

// NewMetricsEngine reads the configuration and returns the appropriate metrics engine
// for this instance.
func NewMetricsEngine(cfg *config.Configuration, bidderNames []string) *DetailedMetricsEngine {
	// Create a list of metrics engines to use.
	// Capacity of 2, as unlikely to have more than 2 metrics backends, and in the case
	// of 1 we won't use the list so it will be garbage collected.
	engineList := make(MultiMetricsEngine, 0, 2)
	returnEngine := DetailedMetricsEngine{}

	if cfg.Metrics.GoMetrics.Enabled {
		returnEngine.GoMetrics = metrics.NewMetrics(gometrics.NewPrefixedRegistry(cfg.Metrics.GoMetrics.Prefix), bidderNames)
		engineList = append(engineList, returnEngine.GoMetrics)
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		returnEngine.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus, cfg.Metrics.Disabled)
		engineList = append(engineList, returnEngine.PrometheusMetrics)
	}

	// Now return the proper metrics engine
	if len(engineList) > 1 {
		returnEngine.MetricsEngine = &engineList
	} else if len(engineList) == 1 {
		returnEngine.MetricsEngine = engineList[0]
	} else {
		returnEngine.MetricsEngine = &NilMetricsEngine{}
	}

	return &returnEngine
}

// DetailedMetricsEngine is a MultiMetricsEngine that preserves links to underlying metrics engines.
type DetailedMetricsEngine struct {
	metrics.MetricsEngine
	GoMetrics         *metrics.Metrics
	PrometheusMetrics *prometheusmetrics.Metrics
}

// MultiMetricsEngine logs metrics to multiple metrics databases. This is useful in transitioning
// an instance from one engine to another, you can run both in parallel to verify stats match up.
type MultiMetricsEngine []metrics.MetricsEngine

func (me *MultiMetricsEngine) RecordRequestPrivacy(privacy metrics.PrivacyLabels) {
	for _, thisME := range *me {
		thisME.RecordRequestPrivacy(privacy)
	}
}

func (me *MultiMetricsEngine) RecordTCFRequest(version metrics.TCFVersionValue, source metrics.TCFSource) {
	for _, thisME := range *me {
		thisME.RecordTCFRequest(version, source)
	}
}

func (me *MultiMetricsEngine) RecordTCFGeo(version metrics.TCFVersionValue, inEEA *bool) {
	for _, thisME := range *me {
		thisME.RecordTCFGeo(version, inEEA)
	}
}

func (me *MultiMetricsEngine) RecordGeoLookup(success bool) {
	for _, thisME := range *me {
		thisME.RecordGeoLookup(success)
	}
}

func (me *MultiMetricsEngine) RecordCCPA(labels metrics.CCPALabels) {
	for _, thisME := range *me {
		thisME.RecordCCPA(labels)
	}
}

func (me *MultiMetricsEngine) RecordAdapterCCPA(adapter string) {
	for _, thisME := range *me {
		thisME.RecordAdapterCCPA(adapter)
	}
}

func (me *MultiMetricsEngine) RecordAdapterTCF(labels metrics.AdapterTCFLabels) {
	for _, thisME := range *me {
		thisME.RecordAdapterTCF(labels)
	}
}

func (me *MultiMetricsEngine) RecordAdapterBuyerUIDScrubbed(adapter string) {
	for _, thisME := range *me {
		thisME.RecordAdapterBuyerUIDScrubbed(adapter)
	}
}

func (me *MultiMetricsEngine) RecordCookieSync(status metrics.CookieSyncStatus) {
	for _, thisME := range *me {
		thisME.RecordCookieSync(status)
	}
}

func (me *MultiMetricsEngine) RecordSyncerRequest(key string, status metrics.SyncerCookieSyncStatus) {
	for _, thisME := range *me {
		thisME.RecordSyncerRequest(key, status)
	}
}

func (me *MultiMetricsEngine) RecordUserSyncTCFInvalid() {
	for _, thisME := range *me {
		thisME.RecordUserSyncTCFInvalid()
	}
}

func (me *MultiMetricsEngine) RecordVendorListFetch(source metrics.VendorListSource, success bool) {
	for _, thisME := range *me {
		thisME.RecordVendorListFetch(source, success)
	}
}

// NilMetricsEngine implements the MetricsEngine interface where no metrics are actually captured. This is
// used if no metric backend is configured and also for tests.
type NilMetricsEngine struct{}

func (me *NilMetricsEngine) RecordRequestPrivacy(privacy metrics.PrivacyLabels) {}

func (me *NilMetricsEngine) RecordTCFRequest(version metrics.TCFVersionValue, source metrics.TCFSource) {
}

func (me *NilMetricsEngine) RecordTCFGeo(version metrics.TCFVersionValue, inEEA *bool) {}

func (me *NilMetricsEngine) RecordGeoLookup(success bool) {}

func (me *NilMetricsEngine) RecordCCPA(labels metrics.CCPALabels) {}

func (me *NilMetricsEngine) RecordAdapterCCPA(adapter string) {}

func (me *NilMetricsEngine) RecordAdapterTCF(labels metrics.AdapterTCFLabels) {}

func (me *NilMetricsEngine) RecordAdapterBuyerUIDScrubbed(adapter string) {}

func (me *NilMetricsEngine) RecordCookieSync(status metrics.CookieSyncStatus) {}

func (me *NilMetricsEngine) RecordSyncerRequest(key string, status metrics.SyncerCookieSyncStatus) {}

func (me *NilMetricsEngine) RecordUserSyncTCFInvalid() {}

func (me *NilMetricsEngine) RecordVendorListFetch(source metrics.VendorListSource, success bool) {}
