package util

import (
	"arithmo_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-for-unit-tests-only-0123"

func testUser() *model.User {
	u := &model.User{Username: "alice"}
	u.ID = 42
	return u
}

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "a-completely-different-secret-value")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, testSecret)
	assert.Error(t, err)
}

func TestParseJWTAllowExpired(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, -time.Minute)
	require.NoError(t, err)

	claims, err := ParseJWTAllowExpired(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseJWTAllowExpiredStillChecksSignature(t *testing.T) {
	token, err := GenerateJWT(testUser(), "a-completely-different-secret-value", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWTAllowExpired(token, testSecret)
	assert.Error(t, err)

	_, err = ParseJWTAllowExpired("not.a.token", testSecret)
	assert.Error(t, err)
}

func TestGenerateRecoveryCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateRecoveryCode()
		require.NoError(t, err)
		assert.Len(t, code, 12)
		for _, r := range code {
			assert.Contains(t, "0123456789ABCDEF", string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45, "恢复码应当基本不重复")
}

func TestRecoveryCodeMatches(t *testing.T) {
	assert.True(t, RecoveryCodeMatches("A1B2C3D4E5F6", "A1B2C3D4E5F6"))
	assert.True(t, RecoveryCodeMatches("A1B2C3D4E5F6", "a1b2c3d4e5f6"))
	assert.False(t, RecoveryCodeMatches("A1B2C3D4E5F6", "A1B2C3D4E5F7"))
	assert.False(t, RecoveryCodeMatches("", ""))
}
