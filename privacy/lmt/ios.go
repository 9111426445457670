package lmt

import (
	"strings"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-privacy/util/iosutil"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

// IOSAppTrackingStatus is the app tracking transparency status found in device.ext.atts.
type IOSAppTrackingStatus int64

const (
	IOSAppTrackingStatusNotDetermined IOSAppTrackingStatus = 0
	IOSAppTrackingStatusRestricted    IOSAppTrackingStatus = 1
	IOSAppTrackingStatusDenied        IOSAppTrackingStatus = 2
	IOSAppTrackingStatusAuthorized    IOSAppTrackingStatus = 3
)

const zeroIFA = "00000000-0000-0000-0000-000000000000"

type modifier func(device *openrtb2.Device)

// ModifyForIOS sets the device LMT flag of iOS app requests from the signals each iOS version provides.
func ModifyForIOS(req *openrtb2.BidRequest) {
	modifiers := map[iosutil.VersionClassification]modifier{
		iosutil.Version140:          modifyForIOS14X,
		iosutil.Version141:          modifyForIOS14X,
		iosutil.Version142OrGreater: modifyForIOS142OrGreater,
	}
	modifyForIOS(req, modifiers)
}

func modifyForIOS(req *openrtb2.BidRequest, modifiers map[iosutil.VersionClassification]modifier) {
	if !isRequestForIOS(req) {
		return
	}

	versionClassification := iosutil.DetectVersionClassification(req.Device.OSV)
	if modifier, ok := modifiers[versionClassification]; ok {
		modifier(req.Device)
	}
}

func isRequestForIOS(req *openrtb2.BidRequest) bool {
	return req != nil && req.App != nil && req.Device != nil && strings.EqualFold(req.Device.OS, "ios")
}

func modifyForIOS14X(device *openrtb2.Device) {
	if device.IFA == "" || device.IFA == zeroIFA {
		device.Lmt = ptrutil.ToPtr[int8](trackingRestricted)
	} else {
		device.Lmt = ptrutil.ToPtr[int8](trackingUnrestricted)
	}
}

func modifyForIOS142OrGreater(device *openrtb2.Device) {
	atts, err := jsonparser.GetInt(device.Ext, "atts")
	if err != nil {
		return
	}

	switch IOSAppTrackingStatus(atts) {
	case IOSAppTrackingStatusNotDetermined, IOSAppTrackingStatusAuthorized:
		device.Lmt = ptrutil.ToPtr[int8](trackingUnrestricted)
	case IOSAppTrackingStatusRestricted, IOSAppTrackingStatusDenied:
		device.Lmt = ptrutil.ToPtr[int8](trackingRestricted)
	}
}
