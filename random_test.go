package auth_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auth "github.com/studypair/go-auth"
)

func TestNewOpaqueToken(t *testing.T) {
	token, err := auth.NewOpaqueToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err, "token should be url-safe base64")
	assert.Len(t, raw, auth.OpaqueTokenLength)

	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestNewOpaqueTokenUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token, err := auth.NewOpaqueToken()
		require.NoError(t, err)
		require.False(t, seen[token], "token repeated after %d draws", i)
		seen[token] = true
	}
}
