package metrics

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// Metrics is the go-metrics backed implementation of MetricsEngine.
type Metrics struct {
	MetricsRegistry metrics.Registry

	PrivacyCCPARequest       metrics.Meter
	PrivacyCCPARequestOptOut metrics.Meter
	PrivacyCOPPARequest      metrics.Meter
	PrivacyLMTRequest        metrics.Meter
	PrivacyTCFRequestVersion map[TCFVersionValue]metrics.Meter

	TCFRequestSource map[TCFVersionValue]map[TCFSource]metrics.Meter
	TCFGeoInEEA      map[TCFVersionValue]metrics.Meter
	TCFGeoOutsideEEA map[TCFVersionValue]metrics.Meter
	TCFGeoUnknown    map[TCFVersionValue]metrics.Meter
	GeoLookupSuccess metrics.Meter
	GeoLookupFailure metrics.Meter

	CCPAHostEnabled     metrics.Meter
	CCPAAccountEnforced metrics.Meter
	CCPANoSaleApplied   metrics.Meter

	CookieSyncMeter    map[CookieSyncStatus]metrics.Meter
	UserSyncTCFInvalid metrics.Meter

	VendorListFetchSuccess map[VendorListSource]metrics.Meter
	VendorListFetchFailure map[VendorListSource]metrics.Meter

	// Keyed by bidder name. Names outside the configured set share the UnknownSyncer entry.
	AdapterMetrics map[string]*AdapterMetrics
}

// AdapterMetrics holds the per-bidder privacy meters.
type AdapterMetrics struct {
	CCPAMasked          metrics.Meter
	TCFUserFpdRemoved   metrics.Meter
	TCFUserIdsRemoved   metrics.Meter
	TCFGeoMasked        metrics.Meter
	TCFAnalyticsBlocked metrics.Meter
	TCFRequestBlocked   metrics.Meter
	TCFLMTEnforced      metrics.Meter
	BuyerUIDScrubbed    metrics.Meter
	SyncerRequests      map[SyncerCookieSyncStatus]metrics.Meter
}

// NewMetrics creates a new Metrics object with all the meters registered in the given registry.
// Every bidder name supplied gets its own adapter meters.
func NewMetrics(registry metrics.Registry, bidderNames []string) *Metrics {
	m := &Metrics{
		MetricsRegistry:          registry,
		PrivacyCCPARequest:       metrics.GetOrRegisterMeter("privacy.request.ccpa.specified", registry),
		PrivacyCCPARequestOptOut: metrics.GetOrRegisterMeter("privacy.request.ccpa.opt-out", registry),
		PrivacyCOPPARequest:      metrics.GetOrRegisterMeter("privacy.request.coppa", registry),
		PrivacyLMTRequest:        metrics.GetOrRegisterMeter("privacy.request.lmt", registry),
		PrivacyTCFRequestVersion: make(map[TCFVersionValue]metrics.Meter),
		TCFRequestSource:         make(map[TCFVersionValue]map[TCFSource]metrics.Meter),
		TCFGeoInEEA:              make(map[TCFVersionValue]metrics.Meter),
		TCFGeoOutsideEEA:         make(map[TCFVersionValue]metrics.Meter),
		TCFGeoUnknown:            make(map[TCFVersionValue]metrics.Meter),
		GeoLookupSuccess:         metrics.GetOrRegisterMeter("geolocation.successful", registry),
		GeoLookupFailure:         metrics.GetOrRegisterMeter("geolocation.fail", registry),
		CCPAHostEnabled:          metrics.GetOrRegisterMeter("privacy.ccpa.host-enabled", registry),
		CCPAAccountEnforced:      metrics.GetOrRegisterMeter("privacy.ccpa.account-enforced", registry),
		CCPANoSaleApplied:        metrics.GetOrRegisterMeter("privacy.ccpa.no-sale", registry),
		CookieSyncMeter:          make(map[CookieSyncStatus]metrics.Meter),
		UserSyncTCFInvalid:       metrics.GetOrRegisterMeter("usersync.tcf.invalid", registry),
		VendorListFetchSuccess:   make(map[VendorListSource]metrics.Meter),
		VendorListFetchFailure:   make(map[VendorListSource]metrics.Meter),
		AdapterMetrics:           make(map[string]*AdapterMetrics, len(bidderNames)+1),
	}

	for _, version := range TCFVersions() {
		m.PrivacyTCFRequestVersion[version] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.request.tcf.%s", version), registry)
		m.TCFGeoInEEA[version] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.tcf.%s.in-geo", version), registry)
		m.TCFGeoOutsideEEA[version] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.tcf.%s.out-geo", version), registry)
		m.TCFGeoUnknown[version] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.tcf.%s.unknown-geo", version), registry)

		m.TCFRequestSource[version] = make(map[TCFSource]metrics.Meter)
		for _, source := range TCFSources() {
			m.TCFRequestSource[version][source] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.tcf.%s.%s", version, source), registry)
		}
	}

	for _, status := range CookieSyncStatuses() {
		m.CookieSyncMeter[status] = metrics.GetOrRegisterMeter(fmt.Sprintf("cookie_sync_requests.%s", status), registry)
	}

	for _, source := range VendorListSources() {
		m.VendorListFetchSuccess[source] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.tcf.vendorlist.%s.ok", source), registry)
		m.VendorListFetchFailure[source] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.tcf.vendorlist.%s.err", source), registry)
	}

	for _, name := range bidderNames {
		m.AdapterMetrics[name] = newAdapterMetrics(registry, name)
	}
	m.AdapterMetrics[UnknownSyncer] = newAdapterMetrics(registry, UnknownSyncer)

	return m
}

func newAdapterMetrics(registry metrics.Registry, adapter string) *AdapterMetrics {
	am := &AdapterMetrics{
		CCPAMasked:          metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.ccpa.masked", adapter), registry),
		TCFUserFpdRemoved:   metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.tcf.userfpd-removed", adapter), registry),
		TCFUserIdsRemoved:   metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.tcf.userid-removed", adapter), registry),
		TCFGeoMasked:        metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.tcf.geo-masked", adapter), registry),
		TCFAnalyticsBlocked: metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.tcf.analytics-blocked", adapter), registry),
		TCFRequestBlocked:   metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.tcf.request-blocked", adapter), registry),
		TCFLMTEnforced:      metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.privacy.tcf.lmt", adapter), registry),
		BuyerUIDScrubbed:    metrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.buyeruid_scrubbed", adapter), registry),
		SyncerRequests:      make(map[SyncerCookieSyncStatus]metrics.Meter),
	}
	for _, status := range SyncerRequestStatuses() {
		am.SyncerRequests[status] = metrics.GetOrRegisterMeter(fmt.Sprintf("syncer.%s.request.%s", adapter, status), registry)
	}
	return am
}

func (me *Metrics) adapter(name string) *AdapterMetrics {
	if am, ok := me.AdapterMetrics[name]; ok {
		return am
	}
	return me.AdapterMetrics[UnknownSyncer]
}

func (me *Metrics) RecordRequestPrivacy(privacy PrivacyLabels) {
	if privacy.CCPAProvided {
		me.PrivacyCCPARequest.Mark(1)
		if privacy.CCPAEnforced {
			me.PrivacyCCPARequestOptOut.Mark(1)
		}
	}

	if privacy.COPPAEnforced {
		me.PrivacyCOPPARequest.Mark(1)
	}

	if privacy.GDPREnforced {
		if m, ok := me.PrivacyTCFRequestVersion[privacy.GDPRTCFVersion]; ok {
			m.Mark(1)
		} else {
			me.PrivacyTCFRequestVersion[TCFVersionErr].Mark(1)
		}
	}

	if privacy.LMTEnforced {
		me.PrivacyLMTRequest.Mark(1)
	}
}

func (me *Metrics) RecordTCFRequest(version TCFVersionValue, source TCFSource) {
	bySource, ok := me.TCFRequestSource[version]
	if !ok {
		bySource = me.TCFRequestSource[TCFVersionErr]
	}
	if m, ok := bySource[source]; ok {
		m.Mark(1)
	}
}

func (me *Metrics) RecordTCFGeo(version TCFVersionValue, inEEA *bool) {
	meters := me.TCFGeoUnknown
	if inEEA != nil {
		meters = me.TCFGeoOutsideEEA
		if *inEEA {
			meters = me.TCFGeoInEEA
		}
	}
	if m, ok := meters[version]; ok {
		m.Mark(1)
	} else {
		meters[TCFVersionErr].Mark(1)
	}
}

func (me *Metrics) RecordGeoLookup(success bool) {
	if success {
		me.GeoLookupSuccess.Mark(1)
	} else {
		me.GeoLookupFailure.Mark(1)
	}
}

func (me *Metrics) RecordCCPA(labels CCPALabels) {
	if labels.HostEnabled {
		me.CCPAHostEnabled.Mark(1)
	}
	if labels.AccountEnforced {
		me.CCPAAccountEnforced.Mark(1)
	}
	if labels.NoSaleApplied {
		me.CCPANoSaleApplied.Mark(1)
	}
}

func (me *Metrics) RecordAdapterCCPA(adapter string) {
	me.adapter(adapter).CCPAMasked.Mark(1)
}

func (me *Metrics) RecordAdapterTCF(labels AdapterTCFLabels) {
	am := me.adapter(labels.Adapter)
	if labels.UserFpdRemoved {
		am.TCFUserFpdRemoved.Mark(1)
	}
	if labels.UserIdsRemoved {
		am.TCFUserIdsRemoved.Mark(1)
	}
	if labels.GeoMasked {
		am.TCFGeoMasked.Mark(1)
	}
	if labels.AnalyticsBlocked {
		am.TCFAnalyticsBlocked.Mark(1)
	}
	if labels.RequestBlocked {
		am.TCFRequestBlocked.Mark(1)
	}
	if labels.LMTEnforced {
		am.TCFLMTEnforced.Mark(1)
	}
}

func (me *Metrics) RecordAdapterBuyerUIDScrubbed(adapter string) {
	me.adapter(adapter).BuyerUIDScrubbed.Mark(1)
}

func (me *Metrics) RecordCookieSync(status CookieSyncStatus) {
	if m, ok := me.CookieSyncMeter[status]; ok {
		m.Mark(1)
	}
}

func (me *Metrics) RecordSyncerRequest(key string, status SyncerCookieSyncStatus) {
	if m, ok := me.adapter(key).SyncerRequests[status]; ok {
		m.Mark(1)
	}
}

func (me *Metrics) RecordUserSyncTCFInvalid() {
	me.UserSyncTCFInvalid.Mark(1)
}

func (me *Metrics) RecordVendorListFetch(source VendorListSource, success bool) {
	meters := me.VendorListFetchFailure
	if success {
		meters = me.VendorListFetchSuccess
	}
	if m, ok := meters[source]; ok {
		m.Mark(1)
	}
}
