package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "ipv4", input: "192.168.1.47", expected: "192.168.1.0"},
		{name: "ipv4 already masked", input: "10.0.0.0", expected: "10.0.0.0"},
		{name: "ipv4 mapped ipv6", input: "::ffff:172.16.50.255", expected: "172.16.50.0"},
		{name: "ipv6", input: "2001:db8:85a3::8a2e:370:7334", expected: "2001:db8:85a3::"},
		{name: "ipv6 with zone", input: "fe80::1%eth0", expected: "fe80::"},
		{name: "empty", input: "", expected: "unknown"},
		{name: "unknown", input: "unknown", expected: "unknown"},
		{name: "garbage", input: "not-an-ip", expected: "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0", ClientIP("203.0.113.9:51234"))
	assert.Equal(t, "2001:db8::", ClientIP("[2001:db8::1]:443"))
	assert.Equal(t, "198.51.100.0", ClientIP("198.51.100.7"))
	assert.Equal(t, "unknown", ClientIP(""))
}
