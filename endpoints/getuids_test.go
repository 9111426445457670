package endpoints

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/usersync"
)

func TestGetUIDsEndpoint(t *testing.T) {
	cookie := usersync.NewCookie()
	require.NoError(t, cookie.Sync("adnxs", "123"))
	require.NoError(t, cookie.Sync("rubicon", "456"))
	encoded, err := usersync.Base64Encoder{}.Encode(cookie)
	require.NoError(t, err)

	testCases := []struct {
		description  string
		cookies      []*http.Cookie
		expectedBody string
	}{
		{
			description:  "No Cookie",
			expectedBody: `{}`,
		},
		{
			description:  "Synced",
			cookies:      []*http.Cookie{{Name: "uids", Value: encoded}},
			expectedBody: `{"buyeruids":{"adnxs":"123","rubicon":"456"}}`,
		},
		{
			description:  "Host Opt Out",
			cookies:      []*http.Cookie{{Name: "uids", Value: encoded}, {Name: "optout", Value: "true"}},
			expectedBody: `{}`,
		},
	}

	endpoint := NewGetUIDsEndpoint(config.HostCookie{OptOutCookie: config.Cookie{Name: "optout", Value: "true"}})
	for _, test := range testCases {
		request := httptest.NewRequest("GET", "/getuids", nil)
		for _, c := range test.cookies {
			request.AddCookie(c)
		}
		recorder := httptest.NewRecorder()

		endpoint(recorder, request, nil)

		assert.Equal(t, http.StatusOK, recorder.Code, test.description)
		assert.JSONEq(t, test.expectedBody, recorder.Body.String(), test.description)
	}
}

func TestVersionEndpoint(t *testing.T) {
	testCases := []struct {
		description  string
		version      string
		revision     string
		expectedBody string
	}{
		{
			description:  "Set",
			version:      "1.2.3",
			revision:     "abc",
			expectedBody: `{"revision":"abc","version":"1.2.3"}`,
		},
		{
			description:  "Not Set",
			expectedBody: `{"revision":"not-set","version":"not-set"}`,
		},
	}

	for _, test := range testCases {
		recorder := httptest.NewRecorder()
		NewVersionEndpoint(test.version, test.revision)(recorder, httptest.NewRequest("GET", "/version", nil))

		assert.JSONEq(t, test.expectedBody, recorder.Body.String(), test.description)
	}
}
