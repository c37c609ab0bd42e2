package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sodam/server/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:    uuid.New(),
		Email: "test@sodam.kr",
		Name:  "Tester",
	}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := NewJWTManager(&JWTConfig{Secret: "test-secret", AccessTokenExpiry: time.Hour})
	user := testUser()

	token, expiresAt, err := manager.GenerateAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.False(t, claims.IsAdmin)
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager(&JWTConfig{Secret: "secret-a", AccessTokenExpiry: time.Hour})
	other := NewJWTManager(&JWTConfig{Secret: "secret-b", AccessTokenExpiry: time.Hour})

	token, _, err := manager.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpiredAccessToken(t *testing.T) {
	manager := NewJWTManager(&JWTConfig{Secret: "test-secret", AccessTokenExpiry: time.Hour})
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := manager.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = NewJWTManager(&JWTConfig{Secret: "test-secret"}).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateGarbageToken(t *testing.T) {
	manager := NewJWTManager(&JWTConfig{Secret: "test-secret"})

	_, err := manager.ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminClaimRoundTrips(t *testing.T) {
	manager := NewJWTManager(&JWTConfig{Secret: "test-secret"})
	user := testUser()
	user.IsAdmin = true

	token, _, err := manager.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}
