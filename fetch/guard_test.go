package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPublic(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":        true,
		"2606:4700::6810:85e5": true,
		"127.0.0.1":            false,
		"::1":                  false,
		"10.1.2.3":             false,
		"172.16.0.9":           false,
		"192.168.1.1":          false,
		"169.254.169.254":      false,
		"100.64.0.1":           false,
		"0.0.0.0":              false,
		"fe80::1":              false,
		"fd00::1":              false,
		"::ffff:127.0.0.1":     false,
	}
	for in, want := range tests {
		assert.Equal(t, want, isPublic(netip.MustParseAddr(in)), in)
	}
}

func TestPublicFetcherRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("internal"))
	}))
	defer srv.Close()

	_, err := NewPublicHTTP(5*time.Second).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBlockedAddress)
}
