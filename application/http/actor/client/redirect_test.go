package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncnet/application/http/httperr"
	"syncnet/application/http/semantic"
)

func TestDefaultRedirect(t *testing.T) {
	plain, err := semantic.Get("http://example.com", nil)
	require.NoError(t, err)
	secure, err := semantic.Get("https://example.com", nil)
	require.NoError(t, err)

	cases := []struct {
		name     string
		policy   DefaultRedirect
		request  *semantic.Request
		location string
		allowed  bool
	}{
		{"disabled", DefaultRedirect{}, plain, "http://example.com/a", false},
		{"same scheme", DefaultRedirect{Follow: true}, plain, "http://example.com/a", true},
		{"relative", DefaultRedirect{Follow: true}, secure, "/a", true},
		{"upgrade refused", DefaultRedirect{Follow: true}, plain, "https://example.com", false},
		{"downgrade refused", DefaultRedirect{Follow: true}, secure, "http://example.com", false},
		{"upgrade allowed", DefaultRedirect{Follow: true, FollowScheme: true}, plain, "https://example.com", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.policy.Allow(c.request, c.location)
			if c.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, httperr.ErrRedirect)
		})
	}
}
