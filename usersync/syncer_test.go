package usersync

import (
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-privacy/config"
	"github.com/prebid/prebid-privacy/macros"
	"github.com/prebid/prebid-privacy/util/ptrutil"
)

func TestNewSyncer(t *testing.T) {
	var (
		hostConfig    = config.UserSync{ExternalURL: "http://host.com", RedirectURL: "{{.ExternalURL}}/setuid?bidder={{.SyncerKey}}&f={{.SyncType}}&uid={{.UserMacro}}"}
		iframeConfig  = &config.SyncerEndpoint{URL: "https://bidder.com/iframe?redirect={{.RedirectURL}}"}
		redirectCfg   = &config.SyncerEndpoint{URL: "https://bidder.com/redirect?redirect={{.RedirectURL}}"}
		invalidConfig = &config.SyncerEndpoint{URL: "not-a-url,gdpr:{{.GDPR}}"}
	)

	testCases := []struct {
		description         string
		givenHostConfig     config.UserSync
		givenSyncerConfig   config.Syncer
		expectedError       string
		expectedDefault     SyncType
		expectedSupportCORS bool
	}{
		{
			description:       "IFrame Only",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", IFrame: iframeConfig},
			expectedDefault:   SyncTypeIFrame,
		},
		{
			description:       "Redirect Only",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", Redirect: redirectCfg},
			expectedDefault:   SyncTypeRedirect,
		},
		{
			description:       "Both - Syncer Default",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", Default: "redirect", IFrame: iframeConfig, Redirect: redirectCfg},
			expectedDefault:   SyncTypeRedirect,
		},
		{
			description:       "Both - Host Default",
			givenHostConfig:   config.UserSync{ExternalURL: hostConfig.ExternalURL, RedirectURL: hostConfig.RedirectURL, DefaultSyncType: "iframe"},
			givenSyncerConfig: config.Syncer{Key: "a", IFrame: iframeConfig, Redirect: redirectCfg},
			expectedDefault:   SyncTypeIFrame,
		},
		{
			description:       "Both - Image Alias",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", Default: "image", IFrame: iframeConfig, Redirect: redirectCfg},
			expectedDefault:   SyncTypeRedirect,
		},
		{
			description:       "Both - No Default",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", IFrame: iframeConfig, Redirect: redirectCfg},
			expectedError:     "default is required if there is more than one endpoint",
		},
		{
			description:       "Both - Invalid Default",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", Default: "xhr", IFrame: iframeConfig, Redirect: redirectCfg},
			expectedError:     `invalid default "xhr"`,
		},
		{
			description:       "No Endpoints",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a"},
			expectedError:     "at least one iframe or redirect is required",
		},
		{
			description:       "Invalid URL",
			givenHostConfig:   hostConfig,
			givenSyncerConfig: config.Syncer{Key: "a", IFrame: invalidConfig},
			expectedError:     `iframe composed url: "not-a-url,gdpr:anyGDPR" is invalid`,
		},
		{
			description:         "Support CORS",
			givenHostConfig:     hostConfig,
			givenSyncerConfig:   config.Syncer{Key: "a", IFrame: iframeConfig, SupportCORS: ptrutil.ToPtr(true)},
			expectedDefault:     SyncTypeIFrame,
			expectedSupportCORS: true,
		},
	}

	for _, test := range testCases {
		result, err := NewSyncer(test.givenHostConfig, test.givenSyncerConfig, "bidderA")

		if test.expectedError != "" {
			assert.EqualError(t, err, test.expectedError, test.description+":err")
			assert.Nil(t, result, test.description+":result")
			continue
		}

		if assert.NoError(t, err, test.description+":err") {
			assert.Equal(t, "a", result.Key(), test.description+":key")
			assert.Equal(t, test.expectedDefault, result.DefaultSyncType(), test.description+":default")
			assert.Equal(t, test.expectedSupportCORS, result.(standardSyncer).supportCORS, test.description+":cors")
		}
	}
}

func TestBuildTemplate(t *testing.T) {
	macroValues := macros.UserSyncPrivacy{GDPR: "A", GDPRConsent: "B", USPrivacy: "C"}

	testCases := []struct {
		description         string
		givenHostConfig     config.UserSync
		givenSyncerURL      string
		givenSyncerEndpoint config.SyncerEndpoint
		expectedRendered    string
	}{
		{
			description:     "No Composed Macros",
			givenHostConfig: config.UserSync{ExternalURL: "externalURL", RedirectURL: "redirectURL"},
			givenSyncerEndpoint: config.SyncerEndpoint{
				URL: "hasNoMacros,gdpr={{.GDPR}}",
			},
			expectedRendered: "hasNoMacros,gdpr=A",
		},
		{
			description:     "All Composed Macros",
			givenHostConfig: config.UserSync{ExternalURL: "externalURL", RedirectURL: "redirectURL"},
			givenSyncerEndpoint: config.SyncerEndpoint{
				URL:         "https://bidder.com/sync?redirect={{.RedirectURL}}",
				RedirectURL: "{{.ExternalURL}}/setuid?bidder={{.SyncerKey}}&name={{.BidderName}}&f={{.SyncType}}&gdpr={{.GDPR}}&uid={{.UserMacro}}",
				ExternalURL: "http://host.com",
				UserMacro:   "$UID$",
			},
			expectedRendered: "https://bidder.com/sync?redirect=http%3A%2F%2Fhost.com%2Fsetuid%3Fbidder%3DanyKey%26name%3DanyBidder%26f%3Dx%26gdpr%3DA%26uid%3D%24UID%24",
		},
		{
			description:     "Host Redirect And External URL",
			givenHostConfig: config.UserSync{ExternalURL: "http://host.com", RedirectURL: "{{.ExternalURL}}/setuid?bidder={{.SyncerKey}}"},
			givenSyncerEndpoint: config.SyncerEndpoint{
				URL: "https://bidder.com/sync?redirect={{.RedirectURL}}",
			},
			expectedRendered: "https://bidder.com/sync?redirect=http%3A%2F%2Fhost.com%2Fsetuid%3Fbidder%3DanyKey",
		},
		{
			description:     "Syncer External URL Beats Host",
			givenHostConfig: config.UserSync{ExternalURL: "http://host.com", RedirectURL: "{{.ExternalURL}}"},
			givenSyncerURL:  "http://syncer.com",
			givenSyncerEndpoint: config.SyncerEndpoint{
				URL: "https://bidder.com/sync?redirect={{.RedirectURL}}",
			},
			expectedRendered: "https://bidder.com/sync?redirect=http%3A%2F%2Fsyncer.com",
		},
	}

	for _, test := range testCases {
		result, err := buildTemplate("anyKey", "anyBidder", "x", test.givenHostConfig, test.givenSyncerURL, test.givenSyncerEndpoint)

		if assert.NoError(t, err, test.description+":err") {
			rendered, err := macros.ResolveMacros(result, macroValues)
			if assert.NoError(t, err, test.description+":template_render") {
				assert.Equal(t, test.expectedRendered, rendered, test.description+":template")
			}
		}
	}
}

func TestEscapeTemplate(t *testing.T) {
	testCases := []struct {
		description string
		given       string
		expected    string
	}{
		{
			description: "Just Macro",
			given:       "{{.Macro}}",
			expected:    "{{.Macro}}",
		},
		{
			description: "Just Text",
			given:       "/a",
			expected:    "%2Fa",
		},
		{
			description: "Start / Middle / End",
			given:       "&a{{.Macro1}}/b{{.Macro2}}&c",
			expected:    "%26a{{.Macro1}}%2Fb{{.Macro2}}%26c",
		},
		{
			description: "Characters In Macros Not Escaped",
			given:       "{{.Macro&}}",
			expected:    "{{.Macro&}}",
		},
	}

	for _, test := range testCases {
		result := escapeTemplate(test.given)
		assert.Equal(t, test.expected, result, test.description)
	}
}

func TestValidateTemplate(t *testing.T) {
	testCases := []struct {
		description string
		given       *template.Template
		expectError bool
	}{
		{
			description: "Contains Unrecognized Macro",
			given:       template.Must(template.New("test").Parse("invalid:{{.DoesNotExist}}")),
			expectError: true,
		},
		{
			description: "Not A Url",
			given:       template.Must(template.New("test").Parse("not-a-url,gdpr:{{.GDPR}}")),
			expectError: true,
		},
		{
			description: "Valid",
			given:       template.Must(template.New("test").Parse("http://server.com/sync?gdpr={{.GDPR}}&gdpr_consent={{.GDPRConsent}}&us_privacy={{.USPrivacy}}")),
			expectError: false,
		},
	}

	for _, test := range testCases {
		err := validateTemplate(test.given)
		if test.expectError {
			assert.Error(t, err, test.description)
		} else {
			assert.NoError(t, err, test.description)
		}
	}
}

func TestSyncerGetSync(t *testing.T) {
	privacy := macros.UserSyncPrivacy{GDPR: "1", GDPRConsent: "consent", USPrivacy: "1YNN"}
	syncer := standardSyncer{
		key:             "a",
		defaultSyncType: SyncTypeIFrame,
		iframe:          template.Must(template.New("iframe").Parse("iframe?gdpr={{.GDPR}}&consent={{.GDPRConsent}}")),
		redirect:        template.Must(template.New("redirect").Parse("redirect?us_privacy={{.USPrivacy}}")),
		supportCORS:     true,
	}

	testCases := []struct {
		description   string
		syncTypes     []SyncType
		expectedSync  Sync
		expectedError string
	}{
		{
			description:  "Default Preferred",
			syncTypes:    []SyncType{SyncTypeRedirect, SyncTypeIFrame},
			expectedSync: Sync{URL: "iframe?gdpr=1&consent=consent", Type: SyncTypeIFrame, SupportCORS: true},
		},
		{
			description:  "Non Default",
			syncTypes:    []SyncType{SyncTypeRedirect},
			expectedSync: Sync{URL: "redirect?us_privacy=1YNN", Type: SyncTypeRedirect, SupportCORS: true},
		},
		{
			description:   "None Provided",
			syncTypes:     []SyncType{},
			expectedError: "no sync types provided",
		},
		{
			description:   "None Supported",
			syncTypes:     []SyncType{SyncTypeUnknown},
			expectedError: "no sync types supported",
		},
	}

	for _, test := range testCases {
		result, err := syncer.GetSync(test.syncTypes, privacy)
		if test.expectedError != "" {
			assert.EqualError(t, err, test.expectedError, test.description)
		} else {
			assert.NoError(t, err, test.description)
			assert.Equal(t, test.expectedSync, result, test.description)
		}
	}
}
