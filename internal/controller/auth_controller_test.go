package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupEndpoint(t *testing.T) {
	router := newTestRouter(t)

	token, recoveryCode := signupUser(t, router, "alice")
	assert.NotEmpty(t, token)
	assert.Len(t, recoveryCode, 12)
}

func TestSignupValidation(t *testing.T) {
	router := newTestRouter(t)

	// 用户名太短
	w, _ := doRequest(t, router, http.MethodPost, "/api/signup", "", gin.H{
		"username": "ab", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 密码太短
	w, _ = doRequest(t, router, http.MethodPost, "/api/signup", "", gin.H{
		"username": "alice", "password": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignupDuplicate(t *testing.T) {
	router := newTestRouter(t)
	signupUser(t, router, "alice")

	w, _ := doRequest(t, router, http.MethodPost, "/api/signup", "", gin.H{
		"username": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)
	signupUser(t, router, "alice")

	w, resp := doRequest(t, router, http.MethodPost, "/api/login", "", gin.H{
		"username": "alice", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "alice", data.Username)

	w, _ = doRequest(t, router, http.MethodPost, "/api/login", "", gin.H{
		"username": "alice", "password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshTokenEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token, _ := signupUser(t, router, "alice")

	w, resp := doRequest(t, router, http.MethodPost, "/api/refresh-token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Token     string `json:"token"`
		Username  string `json:"username"`
		UserID    uint   `json:"userId"`
		ExpiresIn int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "alice", data.Username)
	assert.NotZero(t, data.UserID)
	assert.Equal(t, 3600, data.ExpiresIn)

	// 新令牌能访问受保护接口
	w, _ = doRequest(t, router, http.MethodGet, "/api/progress/load-progress", data.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	router := newTestRouter(t)

	w, _ := doRequest(t, router, http.MethodPost, "/api/refresh-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doRequest(t, router, http.MethodPost, "/api/refresh-token", "garbage.token.here", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecoverAndResetPassword(t *testing.T) {
	router := newTestRouter(t)
	_, recoveryCode := signupUser(t, router, "alice")

	w, _ := doRequest(t, router, http.MethodPost, "/api/recover-lookup", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, router, http.MethodPost, "/api/recover-lookup", "", gin.H{"username": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, router, http.MethodPost, "/api/reset-password", "", gin.H{
		"username": "alice", "recoveryCode": recoveryCode, "newPassword": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// 旧密码失效，新密码可登录
	w, _ = doRequest(t, router, http.MethodPost, "/api/login", "", gin.H{
		"username": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = doRequest(t, router, http.MethodPost, "/api/login", "", gin.H{
		"username": "alice", "password": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResetPasswordWrongCodeEndpoint(t *testing.T) {
	router := newTestRouter(t)
	signupUser(t, router, "alice")

	w, _ := doRequest(t, router, http.MethodPost, "/api/reset-password", "", gin.H{
		"username": "alice", "recoveryCode": "000000000000", "newPassword": "newpassword1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileRequiresAuth(t *testing.T) {
	router := newTestRouter(t)
	token, _ := signupUser(t, router, "alice")

	w, _ := doRequest(t, router, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := doRequest(t, router, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "alice", data.Username)
}

func TestContactSendWithoutSMTPConfig(t *testing.T) {
	router := newTestRouter(t)

	w, _ := doRequest(t, router, http.MethodPost, "/api/contact/send", "", gin.H{
		"name": "Alice", "email": "alice@example.com", "message": "hello",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, _ = doRequest(t, router, http.MethodPost, "/api/contact/send", "", gin.H{
		"name": "Alice", "email": "not-an-email", "message": "hello",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContactSendOptionalAuth(t *testing.T) {
	router := newTestRouter(t)
	token, _ := signupUser(t, router, "alice")
	body := gin.H{"name": "Alice", "email": "alice@example.com", "message": "hello"}

	// 带有效令牌照常进入处理器（SMTP未配置时到配置检查为止）
	w, _ := doRequest(t, router, http.MethodPost, "/api/contact/send", token, body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// 无效令牌按游客处理，不得返回401
	w, _ = doRequest(t, router, http.MethodPost, "/api/contact/send", "garbage", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
