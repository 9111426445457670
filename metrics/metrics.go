package metrics

// PrivacyLabels defines metrics describing the result of privacy enforcement.
type PrivacyLabels struct {
	CCPAEnforced   bool
	CCPAProvided   bool
	COPPAEnforced  bool
	GDPREnforced   bool
	GDPRTCFVersion TCFVersionValue
	LMTEnforced    bool
}

// AdapterTCFLabels describes the effect of TCF enforcement on a single bidder.
type AdapterTCFLabels struct {
	Adapter          string
	UserFpdRemoved   bool
	UserIdsRemoved   bool
	GeoMasked        bool
	AnalyticsBlocked bool
	RequestBlocked   bool
	LMTEnforced      bool
}

// CCPALabels describes how CCPA enforcement was resolved for a request.
type CCPALabels struct {
	HostEnabled     bool
	AccountEnforced bool
	NoSaleApplied   bool
}

// TCFVersionValue : The possible values for TCF versions
type TCFVersionValue string

const (
	TCFVersionErr TCFVersionValue = "err"
	TCFVersionV1  TCFVersionValue = "v1"
	TCFVersionV2  TCFVersionValue = "v2"
)

// TCFVersions returns the possible values for the TCF version
func TCFVersions() []TCFVersionValue {
	return []TCFVersionValue{
		TCFVersionErr,
		TCFVersionV1,
		TCFVersionV2,
	}
}

// TCFVersionToValue takes an integer TCF version and returns the corresponding TCFVersionValue
func TCFVersionToValue(version int) TCFVersionValue {
	switch version {
	case 1:
		return TCFVersionV1
	case 2:
		return TCFVersionV2
	}
	return TCFVersionErr
}

// TCFSource describes what the consent string of an in-scope request looked like.
type TCFSource string

const (
	TCFSourceMissing TCFSource = "missing"
	TCFSourceInvalid TCFSource = "invalid"
	TCFSourceValid   TCFSource = "valid"
)

func TCFSources() []TCFSource {
	return []TCFSource{
		TCFSourceMissing,
		TCFSourceInvalid,
		TCFSourceValid,
	}
}

// VendorListSource identifies the tier which served a global vendor list.
type VendorListSource string

const (
	VendorListSourceHTTP  VendorListSource = "http"
	VendorListSourceRedis VendorListSource = "redis"
)

func VendorListSources() []VendorListSource {
	return []VendorListSource{
		VendorListSourceHTTP,
		VendorListSourceRedis,
	}
}

// CookieSyncStatus is a status code resulting from a call to the /cookie_sync endpoint.
type CookieSyncStatus string

const (
	CookieSyncOK                    CookieSyncStatus = "ok"
	CookieSyncBadRequest            CookieSyncStatus = "bad_request"
	CookieSyncOptOut                CookieSyncStatus = "opt_out"
	CookieSyncGDPRHostCookieBlocked CookieSyncStatus = "gdpr_blocked_host_cookie"
)

// CookieSyncStatuses returns possible cookie sync statuses.
func CookieSyncStatuses() []CookieSyncStatus {
	return []CookieSyncStatus{
		CookieSyncOK,
		CookieSyncBadRequest,
		CookieSyncOptOut,
		CookieSyncGDPRHostCookieBlocked,
	}
}

// SyncerCookieSyncStatus is a status code from an invocation of a syncer resulting from a call to the /cookie_sync endpoint.
type SyncerCookieSyncStatus string

const (
	SyncerCookieSyncOK               SyncerCookieSyncStatus = "ok"
	SyncerCookieSyncPrivacyBlocked   SyncerCookieSyncStatus = "privacy_blocked"
	SyncerCookieSyncTCFBlocked       SyncerCookieSyncStatus = "tcf_blocked"
	SyncerCookieSyncCCPABlocked      SyncerCookieSyncStatus = "ccpa_blocked"
	SyncerCookieSyncAlreadySynced    SyncerCookieSyncStatus = "already_synced"
	SyncerCookieSyncTypeNotSupported SyncerCookieSyncStatus = "type_not_supported"
)

// SyncerRequestStatuses returns possible syncer statuses.
func SyncerRequestStatuses() []SyncerCookieSyncStatus {
	return []SyncerCookieSyncStatus{
		SyncerCookieSyncOK,
		SyncerCookieSyncPrivacyBlocked,
		SyncerCookieSyncTCFBlocked,
		SyncerCookieSyncCCPABlocked,
		SyncerCookieSyncAlreadySynced,
		SyncerCookieSyncTypeNotSupported,
	}
}

// UnknownSyncer labels per-bidder metrics for names which do not match a configured bidder.
const UnknownSyncer = "unknown"

// MetricsEngine is a generic interface to record privacy metrics into the desired backend.
// Request level metrics fire once per incoming request. Adapter level metrics fire once per
// bidder evaluated for that request, so the two groups are not directly comparable.
type MetricsEngine interface {
	RecordRequestPrivacy(privacy PrivacyLabels)
	RecordTCFRequest(version TCFVersionValue, source TCFSource)
	RecordTCFGeo(version TCFVersionValue, inEEA *bool)
	RecordGeoLookup(success bool)
	RecordCCPA(labels CCPALabels)
	RecordAdapterCCPA(adapter string)
	RecordAdapterTCF(labels AdapterTCFLabels)
	RecordAdapterBuyerUIDScrubbed(adapter string)
	RecordCookieSync(status CookieSyncStatus)
	RecordSyncerRequest(key string, status SyncerCookieSyncStatus)
	RecordUserSyncTCFInvalid()
	RecordVendorListFetch(source VendorListSource, success bool)
}
