package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/usersync"
)

type userSyncs struct {
	BuyerUIDs map[string]string `json:"buyeruids,omitempty"`
}

// NewGetUIDsEndpoint implements the /getuids endpoint which returns the live syncs of the user.
func NewGetUIDsEndpoint(cfg config.HostCookie) httprouter.Handle {
	return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cookie := usersync.ReadCookie(r, usersync.Base64Decoder{}, &cfg)

		userSyncs := userSyncs{BuyerUIDs: cookie.GetUIDs()}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(userSyncs); err != nil {
			glog.Errorf("error writing /getuids response: %v", err)
		}
	})
}
