package jwtware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type noopValidator struct{}

func (noopValidator) Validate(string) (AuthClaims, error) { return nil, nil }

func TestGetDefaultConfigDefaults(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		SigningKey:     SigningKey{Key: []byte("key")},
		TokenValidator: noopValidator{},
	})

	require.Equal(t, "user", cfg.ContextKey)
	require.Equal(t, defaultTokenLookup, cfg.TokenLookup)
	require.Equal(t, "Bearer", cfg.AuthScheme)
	require.NotNil(t, cfg.ErrorHandler)
	require.NotNil(t, cfg.KeyFunc)
}

func TestGetDefaultConfigRequiresValidator(t *testing.T) {
	require.Panics(t, func() {
		GetDefaultConfig(Config{
			SigningKey: SigningKey{Key: []byte("key")},
		})
	})
}

func TestKeyfuncOptionsRefreshErrorHandlerIsSafe(t *testing.T) {
	opts := keyfuncOptions(nil)
	require.NotNil(t, opts.RefreshErrorHandler)
	require.NotPanics(t, func() {
		opts.RefreshErrorHandler(errors.New("refresh failed"))
	})

	require.Equal(t, time.Hour, opts.RefreshInterval)
	require.Equal(t, 5*time.Minute, opts.RefreshRateLimit)
	require.Equal(t, 10*time.Second, opts.RefreshTimeout)
	require.True(t, opts.RefreshUnknownKID)
}
