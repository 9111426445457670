package usersync

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Encoder serializes the uids cookie into its cookie value.
type Encoder interface {
	Encode(c *Cookie) (string, error)
}

// Decoder restores the uids cookie from its cookie value. Values which cannot be read decode to an
// empty cookie.
type Decoder interface {
	Decode(v string) *Cookie
}

// Base64Encoder writes the cookie as url-safe base64 of its json form.
type Base64Encoder struct{}

func (Base64Encoder) Encode(c *Cookie) (string, error) {
	j, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(j), nil
}

// Base64Decoder reads values written by Base64Encoder. Padding stripped by proxies is tolerated.
type Base64Decoder struct{}

func (Base64Decoder) Decode(encodedValue string) *Cookie {
	jsonValue, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encodedValue, "="))
	if err != nil {
		return NewCookie()
	}

	var cookie Cookie
	if err := json.Unmarshal(jsonValue, &cookie); err != nil {
		return NewCookie()
	}
	return &cookie
}
