package iputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskIP(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    string
	}{
		{description: "ipv4", input: "192.168.1.123", expected: "192.168.1.0"},
		{description: "ipv6", input: "2001:db8:85a3:1234:5678:8a2e:370:7334", expected: "2001:db8:85a3:1200::"},
		{description: "invalid", input: "not-an-ip", expected: ""},
		{description: "empty", input: "", expected: ""},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, MaskIP(test.input), test.description)
	}
}

func TestMaskIPWithBits(t *testing.T) {
	assert.Equal(t, "10.20.0.0", MaskIPWithBits("10.20.30.40", 16, 64))
	assert.Equal(t, "2001:db8::", MaskIPWithBits("2001:db8:1:2:3:4:5:6", 24, 32))
}
