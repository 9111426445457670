package info

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/prebid/prebid-privacy/config"
)

// NewBiddersEndpoint implements /info/bidders
func NewBiddersEndpoint(catalog config.BidderInfos) httprouter.Handle {
	bidderNames := make([]string, 0, len(catalog))
	for _, name := range catalog.Names() {
		if catalog.IsActive(name) {
			bidderNames = append(bidderNames, name)
		}
	}

	biddersJson, err := json.Marshal(bidderNames)
	if err != nil {
		glog.Fatalf("error creating /info/bidders endpoint response: %v", err)
	}

	return httprouter.Handle(func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(biddersJson); err != nil {
			glog.Errorf("error writing response to /info/bidders: %v", err)
		}
	})
}

// NewBidderDetailsEndpoint implements /info/bidders/:bidderName
func NewBidderDetailsEndpoint(catalog config.BidderInfos) httprouter.Handle {
	// Build all the responses up front, since there are a finite number and it won't use much memory.
	responses := make(map[string]json.RawMessage, len(catalog))
	for _, name := range catalog.Names() {
		jsonBytes, err := json.Marshal(newBidderDetails(catalog, name))
		if err != nil {
			glog.Fatalf("error writing JSON of bidder %s: %v", name, err)
		}
		responses[name] = json.RawMessage(jsonBytes)
	}

	return httprouter.Handle(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		forBidder := ps.ByName("bidderName")
		if response, ok := responses[forBidder]; ok {
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write(response); err != nil {
				glog.Errorf("error writing response to /info/bidders/%s: %v", forBidder, err)
			}
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type bidderDetails struct {
	Status       string          `json:"status"`
	AliasOf      string          `json:"aliasOf,omitempty"`
	GVLVendorID  uint16          `json:"gvlVendorID,omitempty"`
	CCPAEnforced bool            `json:"ccpaEnforced"`
	UserSync     *userSyncDetail `json:"usersync,omitempty"`
}

type userSyncDetail struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

func newBidderDetails(catalog config.BidderInfos, name string) bidderDetails {
	details := bidderDetails{
		Status:       "ACTIVE",
		AliasOf:      catalog[name].AliasOf,
		CCPAEnforced: catalog.CCPAEnforced(name),
	}
	if !catalog.IsActive(name) {
		details.Status = "DISABLED"
	}
	if vendorID, ok := catalog.VendorID(name); ok {
		details.GVLVendorID = vendorID
	}
	if syncer, err := catalog.SyncerFor(name); err == nil {
		details.UserSync = &userSyncDetail{Key: syncer.Key, Enabled: syncer.IsEnabled()}
	}
	return details
}
