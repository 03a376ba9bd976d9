package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager([]byte("0123456789abcdef"), "kart-store", time.Hour)

	tests := []struct {
		name string
		id   Identity
	}{
		{name: "user", id: Identity{UserID: 1, Role: RoleUser}},
		{name: "admin", id: Identity{UserID: 2, Role: RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.Issue(tt.id)
			require.NoError(t, err)

			got, err := m.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, tt.id, got)
			assert.Equal(t, tt.id.Role == RoleAdmin, got.IsAdmin())
		})
	}
}

func TestTokenManager_Issue_UnknownRole(t *testing.T) {
	m := NewTokenManager([]byte("0123456789abcdef"), "kart-store", time.Hour)
	_, err := m.Issue(Identity{UserID: 1, Role: "ROOT"})
	require.Error(t, err)
}

func TestTokenManager_Verify_Rejects(t *testing.T) {
	secret := []byte("0123456789abcdef")
	m := NewTokenManager(secret, "kart-store", time.Hour)
	valid, err := m.Issue(Identity{UserID: 7, Role: RoleUser})
	require.NoError(t, err)

	expired := NewTokenManager(secret, "kart-store", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue(Identity{UserID: 7, Role: RoleUser})
	require.NoError(t, err)

	otherIssuer, err := NewTokenManager(secret, "someone-else", time.Hour).
		Issue(Identity{UserID: 7, Role: RoleUser})
	require.NoError(t, err)

	otherSecret, err := NewTokenManager([]byte("fedcba9876543210"), "kart-store", time.Hour).
		Issue(Identity{UserID: 7, Role: RoleUser})
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "kart-store",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expiredToken},
		{name: "wrong issuer", token: otherIssuer},
		{name: "wrong secret", token: otherSecret},
		{name: "non-numeric subject", token: badSubject},
		{name: "tampered", token: valid + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := t.Context()
	_, ok := FromContext(ctx)
	assert.False(t, ok)

	ctx = WithIdentity(ctx, Identity{UserID: 3, Role: RoleUser})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), id.UserID)
}
