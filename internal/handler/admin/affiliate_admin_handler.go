package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// AffiliateHandler 推广员管理处理器
type AffiliateHandler struct {
	affiliateService   *affiliate.AffiliateService
	statsService       *affiliate.StatsService
	leaderboardService *affiliate.LeaderboardService
}

// NewAffiliateHandler 创建推广员管理处理器
func NewAffiliateHandler(
	affiliateSvc *affiliate.AffiliateService,
	statsSvc *affiliate.StatsService,
	leaderboardSvc *affiliate.LeaderboardService,
) *AffiliateHandler {
	return &AffiliateHandler{
		affiliateService:   affiliateSvc,
		statsService:       statsSvc,
		leaderboardService: leaderboardSvc,
	}
}

// List 获取推广员列表
// @Summary 获取推广员列表
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param status query string false "状态过滤"
// @Param code query string false "推广码"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/affiliates [get]
func (h *AffiliateHandler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	p := handler.BindPagination(c)
	filters := map[string]interface{}{
		"status": c.Query("status"),
		"code":   c.Query("code"),
	}

	list, total, err := h.affiliateService.List(c.Request.Context(), p.GetOffset(), p.PageSize, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// Get 获取推广员详情
// @Summary 获取推广员详情
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id} [get]
func (h *AffiliateHandler) Get(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByID(c.Request.Context(), id)
	if handler.HandleError(c, err) {
		return
	}

	overview, err := h.statsService.GetOverview(c.Request.Context(), id)
	if handler.HandleError(c, err) {
		return
	}

	response.Success(c, gin.H{
		"affiliate":      affiliateInfo,
		"overview":       overview,
		"payout_account": h.affiliateService.MaskedPayoutAccount(affiliateInfo),
	})
}

// Approve 审核通过推广员申请
// @Summary 审核通过推广员申请
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id}/approve [post]
func (h *AffiliateHandler) Approve(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	err := h.affiliateService.Approve(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, nil)
}

// Reject 拒绝推广员申请
// @Summary 拒绝推广员申请
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id}/reject [post]
func (h *AffiliateHandler) Reject(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	err := h.affiliateService.Reject(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, nil)
}

// Suspend 停用推广员
// @Summary 停用推广员
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id}/suspend [post]
func (h *AffiliateHandler) Suspend(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	err := h.affiliateService.Suspend(c.Request.Context(), id)
	handler.MustSucceed(c, err, nil)
}

// Resume 恢复推广员
// @Summary 恢复推广员
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id}/resume [post]
func (h *AffiliateHandler) Resume(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	err := h.affiliateService.Resume(c.Request.Context(), id)
	handler.MustSucceed(c, err, nil)
}

// UpdateRateRequest 调整佣金比例请求
type UpdateRateRequest struct {
	CommissionRate float64 `json:"commission_rate" binding:"required"`
}

// UpdateRate 调整佣金比例
// 只影响之后的归因，已有记录的快照不变
// @Summary 调整佣金比例
// @Tags 管理后台-推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Param request body UpdateRateRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id}/rate [put]
func (h *AffiliateHandler) UpdateRate(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	var req UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	err := h.affiliateService.UpdateRate(c.Request.Context(), id, req.CommissionRate)
	handler.MustSucceed(c, err, nil)
}

// Leaderboard 管理端排行榜
// 管理端视图包含收益金额
// @Summary 推广排行榜（含收益）
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Param metric query string false "排行指标 earnings/referrals"
// @Param period query string false "排行时段 all/monthly/weekly"
// @Success 200 {object} response.Response{data=affiliate.Snapshot}
// @Router /api/v1/admin/leaderboard [get]
func (h *AffiliateHandler) Leaderboard(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	metric := c.DefaultQuery("metric", affiliate.MetricEarnings)
	period := c.DefaultQuery("period", affiliate.PeriodAll)
	snapshot, err := h.leaderboardService.Rank(c.Request.Context(), metric, period, affiliate.MaxLeaderboardSize, true)
	handler.MustSucceed(c, err, snapshot)
}

// AuditStats 触发统计自愈重算
// @Summary 触发统计自愈重算
// @Tags 管理后台-推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/admin/stats/audit [post]
func (h *AffiliateHandler) AuditStats(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	audited, err := h.statsService.AuditAll(c.Request.Context())
	handler.MustSucceed(c, err, gin.H{"audited": audited})
}
