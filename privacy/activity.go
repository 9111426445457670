package privacy

// Activity is a data flow the publisher can allow or deny per component through account rules.
type Activity int

const (
	ActivitySyncUser Activity = iota + 1
	ActivityFetchBids
	ActivityEnrichUserFPD
	ActivityReportAnalytics
	ActivityTransmitUserFPD
	ActivityTransmitPreciseGeo
	ActivityTransmitUniqueRequestIDs
	ActivityTransmitTIDs
)

// activityNames holds the account config key of each activity.
var activityNames = map[Activity]string{
	ActivitySyncUser:                 "syncUser",
	ActivityFetchBids:                "fetchBids",
	ActivityEnrichUserFPD:            "enrichUfpd",
	ActivityReportAnalytics:          "reportAnalytics",
	ActivityTransmitUserFPD:          "transmitUfpd",
	ActivityTransmitPreciseGeo:       "transmitPreciseGeo",
	ActivityTransmitUniqueRequestIDs: "transmitUniqueRequestIds",
	ActivityTransmitTIDs:             "transmitTid",
}

func (a Activity) String() string {
	return activityNames[a]
}
