package privacy

import (
	"math"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-privacy/util/iputil"
)

const geoDecimals = 2

// The maskers never modify their input. Users and devices are shared between bidders, so every mask
// returns a shallow copy with the masked fields replaced.

// MaskUserCOPPA removes every identifier and demographic of the user.
func MaskUserCOPPA(user *openrtb2.User) *openrtb2.User {
	if user == nil {
		return nil
	}
	masked := *user
	masked.ID = ""
	masked.BuyerUID = ""
	masked.Yob = 0
	masked.Gender = ""
	masked.Geo = nil
	masked.EIDs = nil
	masked.Data = nil
	masked.Ext = nil
	return &masked
}

// MaskDeviceCOPPA removes the device identifiers and precise location and truncates the ips.
func MaskDeviceCOPPA(device *openrtb2.Device) *openrtb2.Device {
	if device == nil {
		return nil
	}
	masked := *device
	clearDeviceIDs(&masked)
	masked.Ext = nil
	maskDeviceIPs(&masked)
	masked.Geo = dropPreciseGeo(device.Geo)
	return &masked
}

// MaskUserCCPA removes the user identifiers and coarsens its location.
func MaskUserCCPA(user *openrtb2.User) *openrtb2.User {
	return MaskUserTCF(user, true, true, false, nil)
}

// MaskDeviceCCPA removes the device identifiers, truncates the ips and coarsens the location.
func MaskDeviceCCPA(device *openrtb2.Device) *openrtb2.Device {
	return MaskDeviceTCF(device, true, true, true)
}

// MaskUserTCF applies the user side of a TCF action. EIDs from an excepted source survive id removal.
func MaskUserTCF(user *openrtb2.User, removeIDs, maskGeo, removeFPD bool, eidExceptions map[string]struct{}) *openrtb2.User {
	if user == nil || !(removeIDs || maskGeo || removeFPD) {
		return user
	}
	masked := *user
	if removeIDs {
		masked.ID = ""
		masked.BuyerUID = ""
		masked.EIDs = keepExceptedEIDs(user.EIDs, eidExceptions)
	}
	if maskGeo {
		masked.Geo = reduceGeoPrecision(user.Geo)
	}
	if removeFPD {
		masked.Yob = 0
		masked.Gender = ""
		masked.Keywords = ""
		masked.KwArray = nil
		masked.Data = nil
		masked.Ext = nil
	}
	return &masked
}

// MaskDeviceTCF applies the device side of a TCF action.
func MaskDeviceTCF(device *openrtb2.Device, maskIP, maskGeo, maskDeviceInfo bool) *openrtb2.Device {
	if device == nil || !(maskIP || maskGeo || maskDeviceInfo) {
		return device
	}
	masked := *device
	if maskIP {
		maskDeviceIPs(&masked)
	}
	if maskGeo {
		masked.Geo = reduceGeoPrecision(device.Geo)
	}
	if maskDeviceInfo {
		clearDeviceIDs(&masked)
	}
	return &masked
}

// MaskUserActivity removes the user data classes whose transmission is disallowed.
func MaskUserActivity(user *openrtb2.User, disallowUFPD, disallowPreciseGeo bool) *openrtb2.User {
	return MaskUserTCF(user, disallowUFPD, disallowPreciseGeo, disallowUFPD, nil)
}

// MaskDeviceActivity removes the device data classes whose transmission is disallowed.
func MaskDeviceActivity(device *openrtb2.Device, disallowUFPD, disallowPreciseGeo bool) *openrtb2.Device {
	return MaskDeviceTCF(device, disallowPreciseGeo, disallowPreciseGeo, disallowUFPD)
}

func clearDeviceIDs(device *openrtb2.Device) {
	device.IFA = ""
	device.DIDSHA1 = ""
	device.DIDMD5 = ""
	device.DPIDSHA1 = ""
	device.DPIDMD5 = ""
	device.MACSHA1 = ""
	device.MACMD5 = ""
}

func maskDeviceIPs(device *openrtb2.Device) {
	if device.IP != "" {
		device.IP = iputil.MaskIP(device.IP)
	}
	if device.IPv6 != "" {
		device.IPv6 = iputil.MaskIP(device.IPv6)
	}
}

func keepExceptedEIDs(eids []openrtb2.EID, exceptions map[string]struct{}) []openrtb2.EID {
	var kept []openrtb2.EID
	for _, eid := range eids {
		if _, ok := exceptions[eid.Source]; ok {
			kept = append(kept, eid)
		}
	}
	return kept
}

func reduceGeoPrecision(geo *openrtb2.Geo) *openrtb2.Geo {
	if geo == nil {
		return nil
	}
	masked := *geo
	masked.Lat = roundCoordinate(geo.Lat)
	masked.Lon = roundCoordinate(geo.Lon)
	masked.Metro = ""
	masked.City = ""
	masked.ZIP = ""
	return &masked
}

func dropPreciseGeo(geo *openrtb2.Geo) *openrtb2.Geo {
	if geo == nil {
		return nil
	}
	masked := *geo
	masked.Lat = nil
	masked.Lon = nil
	masked.Metro = ""
	masked.City = ""
	masked.ZIP = ""
	return &masked
}

func roundCoordinate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	scale := math.Pow(10, geoDecimals)
	rounded := math.Round(*v*scale) / scale
	return &rounded
}
