package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auth "github.com/studypair/go-auth"
)

func TestSessionObject(t *testing.T) {
	userID := uuid.New().String()
	now := time.Now()
	later := now.Add(time.Hour)
	sessionData := map[string]any{
		"plan": "premium",
	}

	session := &auth.SessionObject{
		UserID:         userID,
		Audience:       []string{"studypair-api"},
		Issuer:         "studypair-test",
		IssuedAt:       &now,
		ExpirationDate: &later,
		Data:           sessionData,
	}

	assert.Equal(t, userID, session.GetUserID())

	userUUID, err := session.GetUserUUID()
	assert.NoError(t, err)
	assert.Equal(t, userID, userUUID.String())

	assert.Equal(t, []string{"studypair-api"}, session.GetAudience())
	assert.Equal(t, "studypair-test", session.GetIssuer())
	assert.Equal(t, &now, session.GetIssuedAt())
	assert.Equal(t, &later, session.GetExpiration())
	assert.Equal(t, sessionData, session.GetData())

	stringRep := session.String()
	assert.Contains(t, stringRep, userID)
	assert.Contains(t, stringRep, "studypair-api")
	assert.Contains(t, stringRep, "studypair-test")
}

func TestSessionObjectGetUserUUIDInvalid(t *testing.T) {
	session := &auth.SessionObject{UserID: "not-a-uuid"}
	_, err := session.GetUserUUID()
	assert.Error(t, err)
}

func TestSessionFromTokenMetadata(t *testing.T) {
	cfg := newTestConfig()
	userID := uuid.NewString()
	now := time.Now()

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   "ada",
			Issuer:    cfg.issuer,
			Audience:  jwt.ClaimStrings(cfg.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID: userID,
		Metadata: map[string]any{
			"plan": "premium",
		},
	}

	svc := newTestTokenService()
	token, err := svc.SignClaims(claims)
	require.NoError(t, err)

	provider := &MockIdentityProvider{}
	authenticator := auth.NewAuthenticator(provider, cfg).WithLogger(testLogger{})

	session, err := authenticator.SessionFromToken(token)
	require.NoError(t, err)

	assert.Equal(t, userID, session.GetUserID())
	assert.Equal(t, cfg.issuer, session.GetIssuer())
	assert.Equal(t, cfg.audience, session.GetAudience())

	data := session.GetData()
	require.NotNil(t, data)
	metadata, ok := data["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "premium", metadata["plan"])
}
