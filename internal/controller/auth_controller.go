package controller

import (
	"arithmo_backend/internal/service"
	"arithmo_backend/internal/util"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{
		AuthService: authService,
	}
}

// SignupRequest defines model for signup
// swagger:model SignupRequest
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
}

// Signup godoc
// @Summary 注册新用户
// @Description 使用用户名和密码注册，返回令牌与一次性恢复码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body SignupRequest true "注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "用户名已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /signup [post]
func (c *AuthController) Signup(ctx *gin.Context) {
	var req SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, recoveryCode, err := c.AuthService.Signup(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, util.ErrUsernameTaken) {
			util.Error(ctx, 409, "该用户名已被注册")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{
		"token":        token,
		"recoveryCode": recoveryCode,
		"username":     req.Username,
	})
}

// swagger:model LoginRequest
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 用户登录
// @Description 验证用户身份并返回JWT令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录凭据"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, err := c.AuthService.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		util.Unauthorized(ctx)
		return
	}

	util.Success(ctx, gin.H{
		"token":    token,
		"username": req.Username,
	})
}

// RefreshToken godoc
// @Summary 刷新令牌
// @Description 接受签名有效（可已过期）的令牌，重新签发
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 401 {object} util.Response "令牌无效"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /refresh-token [post]
func (c *AuthController) RefreshToken(ctx *gin.Context) {
	oldToken := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	if oldToken == "" {
		util.Unauthorized(ctx)
		return
	}

	token, user, err := c.AuthService.RefreshToken(oldToken)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidToken):
			util.Unauthorized(ctx)
		case errors.Is(err, util.ErrUserNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"token":     token,
		"username":  user.Username,
		"userId":    user.ID,
		"expiresIn": int(c.AuthService.Cfg.JWT.ExpireTime.Seconds()),
	})
}

// swagger:model RecoverLookupRequest
type RecoverLookupRequest struct {
	Username string `json:"username" binding:"required"`
}

// RecoverLookup godoc
// @Summary 找回账号
// @Description 重置密码前确认用户存在
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RecoverLookupRequest true "用户名"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /recover-lookup [post]
func (c *AuthController) RecoverLookup(ctx *gin.Context) {
	var req RecoverLookupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.RecoverLookup(strings.TrimSpace(req.Username)); err != nil {
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, gin.H{"success": true})
}

// swagger:model ResetPasswordRequest
type ResetPasswordRequest struct {
	Username     string `json:"username" binding:"required"`
	RecoveryCode string `json:"recoveryCode" binding:"required"`
	NewPassword  string `json:"newPassword" binding:"required,min=6"`
}

// ResetPassword godoc
// @Summary 重置密码
// @Description 使用注册时下发的恢复码设置新密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body ResetPasswordRequest true "重置信息"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "恢复码错误"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /reset-password [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.AuthService.ResetPassword(strings.TrimSpace(req.Username), req.RecoveryCode, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUserNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidRecoveryCode):
			util.BadRequest(ctx, "Invalid code")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"success": true})
}

// GetProfile godoc
// @Summary 获取当前用户资料
// @Description 获取当前已认证用户的个人资料
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 401 {object} util.Response "Unauthorized"
// @Router /profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	util.Success(ctx, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"createdAt": user.CreatedAt,
		"lastLogin": user.LastLogin,
	})
}
