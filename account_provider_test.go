package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auth "github.com/studypair/go-auth"
)

func hashedAccount(t *testing.T, password string) *auth.Account {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &auth.Account{
		ID:           uuid.New(),
		Username:     "ada",
		Email:        "ada@example.com",
		PasswordHash: hash,
		Verified:     true,
	}
}

func TestVerifyIdentity(t *testing.T) {
	account := hashedAccount(t, "securePassword123!")

	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ada@example.com").
		Return(account, nil).Once()
	store.On("TrackSucccessfulLogin", mock.Anything, account).
		Return(nil).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	identity, err := provider.VerifyIdentity(context.Background(), "ada@example.com", "securePassword123!")
	require.NoError(t, err)

	assert.Equal(t, account.ID.String(), identity.ID())
	assert.Equal(t, "ada", identity.Username())
	assert.Equal(t, "ada@example.com", identity.Email())
	assert.True(t, identity.Verified())

	store.AssertExpectations(t)
}

func TestVerifyIdentityUnknownIdentifier(t *testing.T) {
	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ghost@example.com").
		Return(nil, auth.ErrIdentityNotFound).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	_, err := provider.VerifyIdentity(context.Background(), "ghost@example.com", "whatever")
	// same failure as a wrong password, no account enumeration
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestVerifyIdentityWrongPassword(t *testing.T) {
	account := hashedAccount(t, "securePassword123!")

	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ada@example.com").
		Return(account, nil).Once()
	store.On("TrackAttemptedLogin", mock.Anything, account).
		Return(nil).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	_, err := provider.VerifyIdentity(context.Background(), "ada@example.com", "notThePassword")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

	store.AssertExpectations(t)
}

func TestVerifyIdentityTooManyAttempts(t *testing.T) {
	account := hashedAccount(t, "securePassword123!")
	attemptAt := time.Now().Add(-time.Hour)
	account.LoginAttempts = auth.MaxLoginAttempts + 1
	account.LoginAttemptAt = &attemptAt

	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ada@example.com").
		Return(account, nil).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	_, err := provider.VerifyIdentity(context.Background(), "ada@example.com", "securePassword123!")
	assert.ErrorIs(t, err, auth.ErrTooManyLoginAttempts)

	store.AssertNotCalled(t, "TrackSucccessfulLogin", mock.Anything, mock.Anything)
}

func TestVerifyIdentityCooldownExpiryResetsAttempts(t *testing.T) {
	account := hashedAccount(t, "securePassword123!")
	attemptAt := time.Now().Add(-48 * time.Hour)
	account.LoginAttempts = auth.MaxLoginAttempts + 1
	account.LoginAttemptAt = &attemptAt

	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ada@example.com").
		Return(account, nil).Once()
	store.On("TrackSucccessfulLogin", mock.Anything, account).
		Return(nil).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	identity, err := provider.VerifyIdentity(context.Background(), "ada@example.com", "securePassword123!")
	require.NoError(t, err)
	assert.Equal(t, "ada", identity.Username())

	store.AssertExpectations(t)
}

func TestVerifyIdentityUnverifiedAccountStillAuthenticates(t *testing.T) {
	account := hashedAccount(t, "securePassword123!")
	account.Verified = false

	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ada@example.com").
		Return(account, nil).Once()
	store.On("TrackSucccessfulLogin", mock.Anything, account).
		Return(nil).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	// the verification gate lives in the authenticator, not here
	identity, err := provider.VerifyIdentity(context.Background(), "ada@example.com", "securePassword123!")
	require.NoError(t, err)
	assert.False(t, identity.Verified())
}

func TestFindIdentityByIdentifier(t *testing.T) {
	account := hashedAccount(t, "securePassword123!")

	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, account.ID.String()).
		Return(account, nil).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	identity, err := provider.FindIdentityByIdentifier(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), identity.ID())
	assert.Equal(t, "ada@example.com", identity.Email())
}

func TestFindIdentityByIdentifierNotFound(t *testing.T) {
	store := &MockAccounts{}
	store.On("GetByIdentifier", mock.Anything, "ghost").
		Return(nil, auth.ErrIdentityNotFound).Once()

	provider := auth.NewAccountProvider(store).WithLogger(testLogger{})

	_, err := provider.FindIdentityByIdentifier(context.Background(), "ghost")
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
}
