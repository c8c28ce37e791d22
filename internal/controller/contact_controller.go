package controller

import (
	"arithmo_backend/internal/service"
	"arithmo_backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"arithmo_backend/pkg/logger"
)

type ContactController struct {
	ContactService *service.ContactService
}

func NewContactController(contactService *service.ContactService) *ContactController {
	return &ContactController{ContactService: contactService}
}

// swagger:model ContactRequest
type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required"`
}

// Send godoc
// @Summary 发送联系消息
// @Description 将联系表单内容通过邮件转发给管理员
// @Tags 联系
// @Accept  json
// @Produce  json
// @Param   body body ContactRequest true "联系信息"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Failure 500 {object} util.Response "邮件发送失败"
// @Router /contact/send [post]
func (c *ContactController) Send(ctx *gin.Context) {
	var req ContactRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if !c.ContactService.Configured() {
		logger.Log.Error("SMTP credentials missing, contact form disabled")
		util.Error(ctx, 500, "Server config error")
		return
	}

	// 带有效令牌的来信标注账号，游客来信照常转发
	username := ""
	if claims := util.GetUserFromContext(ctx); claims != nil {
		username = claims.Username
	}

	if err := c.ContactService.Send(req.Name, req.Email, req.Message, username); err != nil {
		logger.Log.Error("Contact mail send failed", zap.Error(err))
		util.Error(ctx, 500, "Connection failed. Please try again.")
		return
	}

	util.Success(ctx, gin.H{"success": true})
}
