package controller

import (
	"arithmo_backend/internal/model"
	"arithmo_backend/internal/service"
	"arithmo_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{
		ProgressService: progressService,
	}
}

// LoadProgress godoc
// @Summary 加载进度
// @Description 返回当前用户的进度文档，首次访问时创建默认文档
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /progress/load-progress [get]
func (c *ProgressController) LoadProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	data, err := c.ProgressService.Load(ctx.Request.Context(), claims.Username)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"progressData": data})
}

// swagger:model UpdateActivityRequest
type UpdateActivityRequest struct {
	Level       int           `json:"level" binding:"required,min=1,max=5"`
	Activity    int           `json:"activity" binding:"required,min=1"`
	Rewards     model.Rewards `json:"rewards"`
	IsCompleted bool          `json:"isCompleted"`
}

// UpdateActivity godoc
// @Summary 记录活动完成
// @Description 幂等记录一次活动完成并累计奖励；isCompleted 为真时解锁下一关
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body UpdateActivityRequest true "活动信息"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /progress/update-activity [post]
func (c *ProgressController) UpdateActivity(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateActivityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	data, err := c.ProgressService.UpdateActivity(ctx.Request.Context(), claims.Username, req.Level, req.Activity, req.Rewards, req.IsCompleted)
	if err != nil {
		if errors.Is(err, model.ErrInvalidActivity) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"progressData": data})
}

// swagger:model SaveProgressRequest
type SaveProgressRequest struct {
	ProgressData model.ProgressData `json:"progressData" binding:"required"`
}

// SaveProgress godoc
// @Summary 保存完整进度
// @Description 整文档覆盖写，离线回放批量同步用
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SaveProgressRequest true "完整进度文档"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /progress/save-progress [post]
func (c *ProgressController) SaveProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SaveProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lastUpdated, err := c.ProgressService.SaveProgress(ctx.Request.Context(), claims.Username, req.ProgressData)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"lastUpdated": lastUpdated})
}

// ForceSync godoc
// @Summary 强制同步
// @Description 推送完整本地文档；后端较新时返回409并携带两侧数据，不做自动合并
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body SaveProgressRequest true "本地进度文档"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 409 {object} util.Response{data=service.SyncConflict} "同步冲突"
// @Router /progress/force-sync [post]
func (c *ProgressController) ForceSync(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SaveProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	data, conflict, err := c.ProgressService.ForceSync(ctx.Request.Context(), claims.Username, req.ProgressData)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if conflict != nil {
		util.Conflict(ctx, util.ErrSyncConflict.Error(), conflict)
		return
	}

	util.Success(ctx, gin.H{"progressData": data})
}

// ResetProgress godoc
// @Summary 重置进度
// @Description 用默认文档替换当前进度
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /progress/reset [post]
func (c *ProgressController) ResetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if _, err := c.ProgressService.Reset(ctx.Request.Context(), claims.Username); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"success": true})
}
