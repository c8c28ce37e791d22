package app

import (
	"arithmo_backend/docs"
	"arithmo_backend/internal/config"
	"arithmo_backend/internal/middleware"

	"arithmo_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	router.Use(middleware.RequestID())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerProgressRoutes(authGroup, c)
		authGroup.GET("/profile", c.auth.GetProfile)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/signup", c.auth.Signup)
		public.POST("/login", c.auth.Login)
		public.POST("/recover-lookup", c.auth.RecoverLookup)
		public.POST("/reset-password", c.auth.ResetPassword)

		// 游客可用；带令牌时来信会标注账号
		public.POST("/contact/send", middleware.TryAuthMiddleware(cfg), c.contact.Send)

		// 刷新接口自己校验签名，允许已过期的令牌
		public.POST("/refresh-token", c.auth.RefreshToken)
	}
}

func (a *App) registerProgressRoutes(rg *gin.RouterGroup, c *controllers) {
	progress := rg.Group("/progress")
	{
		progress.GET("/load-progress", c.progress.LoadProgress)
		progress.POST("/update-activity", c.progress.UpdateActivity)
		progress.POST("/save-progress", c.progress.SaveProgress)
		progress.POST("/force-sync", c.progress.ForceSync)
		progress.POST("/reset", c.progress.ResetProgress)
	}
}
