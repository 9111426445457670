package endpoints

import (
	"cmp"
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
)

const versionEndpointValueNotSet = "not-set"

type versionResponse struct {
	Revision string `json:"revision"`
	Version  string `json:"version"`
}

// NewVersionEndpoint reports the release tag and commit hash the binary was built from. Values missing
// at build time are reported as "not-set".
func NewVersionEndpoint(version, revision string) http.HandlerFunc {
	response, err := json.Marshal(versionResponse{
		Revision: cmp.Or(revision, versionEndpointValueNotSet),
		Version:  cmp.Or(version, versionEndpointValueNotSet),
	})
	if err != nil {
		glog.Fatalf("error creating /version endpoint response: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
	}
}
