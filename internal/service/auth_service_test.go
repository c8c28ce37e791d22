package service

import (
	"arithmo_backend/internal/config"
	"arithmo_backend/internal/model"
	"arithmo_backend/internal/repository"
	"arithmo_backend/internal/util"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ProgressRecord{}))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:     "test-secret-for-unit-tests-only-0123",
			ExpireTime: time.Hour,
		},
	}
}

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(repository.NewUserRepository(newTestDB(t)), newTestConfig())
}

func TestSignup(t *testing.T) {
	svc := newAuthService(t)

	token, recoveryCode, err := svc.Signup("alice", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Len(t, recoveryCode, 12)

	claims, err := util.ParseJWT(token, svc.Cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.NotZero(t, claims.UserID)

	// 密码和恢复码不得明文入库
	user, err := svc.UserRepo.FindByUsername("alice")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.Password)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
}

func TestSignupDuplicateUsername(t *testing.T) {
	svc := newAuthService(t)

	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	_, _, err = svc.Signup("alice", "otherpassword")
	assert.ErrorIs(t, err, util.ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)
	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	token, err := svc.Login("alice", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	user, err := svc.UserRepo.FindByUsername("alice")
	require.NoError(t, err)
	assert.False(t, user.LastLogin.IsZero())
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := newAuthService(t)
	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	// 密码错误和用户不存在返回同一个错误，避免枚举用户名
	_, err = svc.Login("alice", "wrongpassword")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, err = svc.Login("nobody", "password123")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestRefreshToken(t *testing.T) {
	svc := newAuthService(t)
	token, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	newToken, user, err := svc.RefreshToken(token)
	require.NoError(t, err)
	assert.NotEmpty(t, newToken)
	assert.Equal(t, "alice", user.Username)
}

func TestRefreshTokenAcceptsExpired(t *testing.T) {
	svc := newAuthService(t)
	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)
	user, err := svc.UserRepo.FindByUsername("alice")
	require.NoError(t, err)

	expired, err := util.GenerateJWT(user, svc.Cfg.JWT.Secret, -time.Hour)
	require.NoError(t, err)

	newToken, refreshed, err := svc.RefreshToken(expired)
	require.NoError(t, err)
	assert.NotEmpty(t, newToken)
	assert.Equal(t, user.ID, refreshed.ID)

	claims, err := util.ParseJWT(newToken, svc.Cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRefreshTokenRejectsBadSignature(t *testing.T) {
	svc := newAuthService(t)
	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)
	user, err := svc.UserRepo.FindByUsername("alice")
	require.NoError(t, err)

	forged, err := util.GenerateJWT(user, "another-secret-entirely-0123456789", time.Hour)
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(forged)
	assert.ErrorIs(t, err, util.ErrInvalidToken)

	_, _, err = svc.RefreshToken("not-a-token")
	assert.ErrorIs(t, err, util.ErrInvalidToken)
}

func TestResetPassword(t *testing.T) {
	svc := newAuthService(t)
	_, recoveryCode, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword("alice", recoveryCode, "newpassword1"))

	_, err = svc.Login("alice", "password123")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = svc.Login("alice", "newpassword1")
	assert.NoError(t, err)
}

func TestResetPasswordCaseInsensitiveCode(t *testing.T) {
	svc := newAuthService(t)
	_, recoveryCode, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	lower := ""
	for _, r := range recoveryCode {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		lower += string(r)
	}
	require.NoError(t, svc.ResetPassword("alice", lower, "newpassword1"))
}

func TestResetPasswordWrongCode(t *testing.T) {
	svc := newAuthService(t)
	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	err = svc.ResetPassword("alice", "FFFFFFFFFFFF", "newpassword1")
	assert.ErrorIs(t, err, util.ErrInvalidRecoveryCode)

	err = svc.ResetPassword("nobody", "FFFFFFFFFFFF", "newpassword1")
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestRecoverLookup(t *testing.T) {
	svc := newAuthService(t)
	_, _, err := svc.Signup("alice", "password123")
	require.NoError(t, err)

	assert.NoError(t, svc.RecoverLookup("alice"))
	assert.ErrorIs(t, svc.RecoverLookup("nobody"), util.ErrUserNotFound)
}
