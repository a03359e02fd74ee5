package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// ReferralHandler 归因审核处理器
type ReferralHandler struct {
	referralService *affiliate.ReferralService
}

// NewReferralHandler 创建归因审核处理器
func NewReferralHandler(referralSvc *affiliate.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralService: referralSvc}
}

// List 获取归因记录列表
// @Summary 获取归因记录列表
// @Tags 管理后台-归因
// @Produce json
// @Security Bearer
// @Param status query string false "状态过滤"
// @Param conversion_type query string false "转化类型"
// @Param order_no query string false "订单号"
// @Param affiliate_id query int false "推广员ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/referrals [get]
func (h *ReferralHandler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	affiliateID, ok := handler.ParseQueryID(c, "affiliate_id", "推广员")
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	filters := map[string]interface{}{
		"status":          c.Query("status"),
		"conversion_type": c.Query("conversion_type"),
		"order_no":        c.Query("order_no"),
	}
	if affiliateID != nil {
		filters["affiliate_id"] = *affiliateID
	}

	list, total, err := h.referralService.List(c.Request.Context(), p.GetOffset(), p.PageSize, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// ListPending 获取待审核队列
// @Summary 获取待审核归因队列
// @Tags 管理后台-归因
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/referrals/pending [get]
func (h *ReferralHandler) ListPending(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.referralService.GetPendingList(c.Request.Context(), p.GetOffset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// Get 获取归因记录详情
// @Summary 获取归因记录详情
// @Tags 管理后台-归因
// @Produce json
// @Security Bearer
// @Param id path int true "归因记录ID"
// @Success 200 {object} response.Response{data=models.Referral}
// @Router /api/v1/admin/referrals/{id} [get]
func (h *ReferralHandler) Get(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "归因记录")
	if !ok {
		return
	}

	referral, err := h.referralService.GetByID(c.Request.Context(), id)
	handler.MustSucceed(c, err, referral)
}

// ReviewRequest 归因审核请求
type ReviewRequest struct {
	Status string `json:"status" binding:"required"` // approved/rejected/paid
	Notes  string `json:"notes"`
}

// Review 审核归因记录
// @Summary 审核归因记录
// @Tags 管理后台-归因
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "归因记录ID"
// @Param request body ReviewRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Referral}
// @Router /api/v1/admin/referrals/{id}/review [post]
func (h *ReferralHandler) Review(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "归因记录")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	transitionReq := &affiliate.TransitionRequest{
		ReferralID: id,
		NewStatus:  req.Status,
		ActorID:    adminID,
	}
	if req.Notes != "" {
		transitionReq.Notes = &req.Notes
	}

	referral, err := h.referralService.Transition(c.Request.Context(), transitionReq)
	handler.MustSucceed(c, err, referral)
}
