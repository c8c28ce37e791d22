package controller

import (
	"arithmo_backend/internal/config"
	"arithmo_backend/internal/middleware"
	"arithmo_backend/internal/model"
	"arithmo_backend/internal/repository"
	"arithmo_backend/internal/service"
	"arithmo_backend/pkg/logger"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestRouter 按生产路由表组装一个接在 sqlite 上的最小服务。
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if logger.Log == nil {
		logger.Log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ProgressRecord{}))

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:     "test-secret-for-unit-tests-only-0123",
			ExpireTime: time.Hour,
		},
	}

	authSvc := service.NewAuthService(repository.NewUserRepository(db), cfg)
	progressSvc := service.NewProgressService(repository.NewProgressRepository(db), nil)
	contactSvc := service.NewContactService(&cfg.SMTP)

	authCtl := NewAuthController(authSvc)
	progressCtl := NewProgressController(progressSvc)
	contactCtl := NewContactController(contactSvc)

	router := gin.New()
	public := router.Group("/api")
	{
		public.POST("/signup", authCtl.Signup)
		public.POST("/login", authCtl.Login)
		public.POST("/recover-lookup", authCtl.RecoverLookup)
		public.POST("/reset-password", authCtl.ResetPassword)
		public.POST("/contact/send", middleware.TryAuthMiddleware(cfg), contactCtl.Send)
		public.POST("/refresh-token", authCtl.RefreshToken)
	}
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", authCtl.GetProfile)
		progress := authGroup.Group("/progress")
		progress.GET("/load-progress", progressCtl.LoadProgress)
		progress.POST("/update-activity", progressCtl.UpdateActivity)
		progress.POST("/save-progress", progressCtl.SaveProgress)
		progress.POST("/force-sync", progressCtl.ForceSync)
		progress.POST("/reset", progressCtl.ResetProgress)
	}
	return router
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func signupUser(t *testing.T, router *gin.Engine, username string) (token, recoveryCode string) {
	t.Helper()
	w, resp := doRequest(t, router, http.MethodPost, "/api/signup", "", gin.H{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		Token        string `json:"token"`
		RecoveryCode string `json:"recoveryCode"`
		Username     string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, username, data.Username)
	return data.Token, data.RecoveryCode
}
