package extract

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublicAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr   string
		public bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"0.0.0.0", false},
		{"::", false},
		{"224.0.0.1", false},
		{"100.64.0.1", false},
		{"::ffff:127.0.0.1", false},
		{"::ffff:8.8.8.8", true},
	}

	for _, tc := range tests {
		t.Run(tc.addr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.public, isPublicAddr(netip.MustParseAddr(tc.addr)))
		})
	}
}

func TestPublicOnlyControl(t *testing.T) {
	t.Parallel()

	assert.NoError(t, publicOnlyControl("tcp4", "93.184.216.34:443", nil))
	assert.ErrorIs(t, publicOnlyControl("tcp4", "127.0.0.1:80", nil), errBlockedAddress)
	assert.ErrorIs(t, publicOnlyControl("tcp6", "[::1]:80", nil), errBlockedAddress)
	assert.ErrorIs(t, publicOnlyControl("tcp4", "no-port", nil), errBlockedAddress)
}
