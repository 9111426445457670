package metrics

import (
	"github.com/stretchr/testify/mock"
)

// MetricsEngineMock is mock for the MetricsEngine interface
type MetricsEngineMock struct {
	mock.Mock
}

// RecordRequestPrivacy mock
func (me *MetricsEngineMock) RecordRequestPrivacy(privacy PrivacyLabels) {
	me.Called(privacy)
}

// RecordTCFRequest mock
func (me *MetricsEngineMock) RecordTCFRequest(version TCFVersionValue, source TCFSource) {
	me.Called(version, source)
}

// RecordTCFGeo mock
func (me *MetricsEngineMock) RecordTCFGeo(version TCFVersionValue, inEEA *bool) {
	me.Called(version, inEEA)
}

// RecordGeoLookup mock
func (me *MetricsEngineMock) RecordGeoLookup(success bool) {
	me.Called(success)
}

// RecordCCPA mock
func (me *MetricsEngineMock) RecordCCPA(labels CCPALabels) {
	me.Called(labels)
}

// RecordAdapterCCPA mock
func (me *MetricsEngineMock) RecordAdapterCCPA(adapter string) {
	me.Called(adapter)
}

// RecordAdapterTCF mock
func (me *MetricsEngineMock) RecordAdapterTCF(labels AdapterTCFLabels) {
	me.Called(labels)
}

// RecordAdapterBuyerUIDScrubbed mock
func (me *MetricsEngineMock) RecordAdapterBuyerUIDScrubbed(adapter string) {
	me.Called(adapter)
}

// RecordCookieSync mock
func (me *MetricsEngineMock) RecordCookieSync(status CookieSyncStatus) {
	me.Called(status)
}

// RecordSyncerRequest mock
func (me *MetricsEngineMock) RecordSyncerRequest(key string, status SyncerCookieSyncStatus) {
	me.Called(key, status)
}

// RecordUserSyncTCFInvalid mock
func (me *MetricsEngineMock) RecordUserSyncTCFInvalid() {
	me.Called()
}

// RecordVendorListFetch mock
func (me *MetricsEngineMock) RecordVendorListFetch(source VendorListSource, success bool) {
	me.Called(source, success)
}
