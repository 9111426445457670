package macros

import (
	"bytes"
	"text/template"
)

// UserSyncPrivacy specifies the privacy values substituted into a user sync url per request.
type UserSyncPrivacy struct {
	GDPR        string
	GDPRConsent string
	USPrivacy   string
}

// ResolveMacros resolves the macros of the template with the given values.
func ResolveMacros(aTemplate *template.Template, params interface{}) (string, error) {
	strBuf := bytes.Buffer{}
	if err := aTemplate.Execute(&strBuf, params); err != nil {
		return "", err
	}
	return strBuf.String(), nil
}
