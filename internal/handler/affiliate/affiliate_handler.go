package affiliate

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// Handler 推广员自助处理器
type Handler struct {
	affiliateService *affiliate.AffiliateService
	statsService     *affiliate.StatsService
	referralService  *affiliate.ReferralService
	inviteService    *affiliate.InviteService
}

// NewHandler 创建推广员处理器
func NewHandler(
	affiliateSvc *affiliate.AffiliateService,
	statsSvc *affiliate.StatsService,
	referralSvc *affiliate.ReferralService,
	inviteSvc *affiliate.InviteService,
) *Handler {
	return &Handler{
		affiliateService: affiliateSvc,
		statsService:     statsSvc,
		referralService:  referralSvc,
		inviteService:    inviteSvc,
	}
}

// ApplyRequest 申请成为推广员请求
type ApplyRequest struct {
	Code string `json:"code"` // 自定义推广码（可选）
}

// Apply 申请成为推广员
// @Summary 申请成为推广员
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ApplyRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/affiliate/apply [post]
func (h *Handler) Apply(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	applyReq := &affiliate.ApplyRequest{UserID: userID}
	if req.Code != "" {
		applyReq.Code = &req.Code
	}

	result, err := h.affiliateService.Apply(c.Request.Context(), applyReq)
	handler.MustSucceed(c, err, result)
}

// GetInfo 获取推广员档案
// @Summary 获取推广员档案
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/affiliate/info [get]
func (h *Handler) GetInfo(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	handler.MustSucceed(c, err, affiliateInfo)
}

// GetDashboard 获取推广数据总览
// @Summary 获取推广数据总览
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliate.Overview}
// @Router /api/v1/affiliate/dashboard [get]
func (h *Handler) GetDashboard(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	overview, err := h.statsService.GetOverview(c.Request.Context(), affiliateInfo.ID)
	handler.MustSucceed(c, err, overview)
}

// GetDailyVisits 获取按天访问量
// @Summary 获取按天访问量
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param days query int false "天数（默认 7）"
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/affiliate/visits/daily [get]
func (h *Handler) GetDailyVisits(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	counts, err := h.statsService.DailyVisits(c.Request.Context(), affiliateInfo.ID, days)
	handler.MustSucceed(c, err, counts)
}

// ListReferrals 获取归因记录列表
// @Summary 获取归因记录列表
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param status query string false "状态过滤"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/referrals [get]
func (h *Handler) ListReferrals(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.referralService.ListByAffiliate(
		c.Request.Context(), affiliateInfo.ID, c.Query("status"), p.GetOffset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// GetInvite 获取推广物料
// @Summary 获取推广链接与二维码
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliate.InviteInfo}
// @Router /api/v1/affiliate/invite [get]
func (h *Handler) GetInvite(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	info, err := h.inviteService.GetInviteInfo(c.Request.Context(), affiliateInfo.ID)
	handler.MustSucceed(c, err, info)
}

// UpdatePayoutRequest 更新收款信息请求
type UpdatePayoutRequest struct {
	PayoutMethod  string `json:"payout_method" binding:"required"`
	PayoutAccount string `json:"payout_account" binding:"required"`
}

// UpdatePayout 更新收款信息
// @Summary 更新收款信息
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body UpdatePayoutRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/affiliate/payout [put]
func (h *Handler) UpdatePayout(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req UpdatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	err = h.affiliateService.UpdatePayout(c.Request.Context(), affiliateInfo.ID, req.PayoutMethod, req.PayoutAccount)
	handler.MustSucceed(c, err, nil)
}
