package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// WithdrawHandler 提现处理处理器
type WithdrawHandler struct {
	withdrawService *affiliate.WithdrawService
}

// NewWithdrawHandler 创建提现处理处理器
func NewWithdrawHandler(withdrawSvc *affiliate.WithdrawService) *WithdrawHandler {
	return &WithdrawHandler{withdrawService: withdrawSvc}
}

// List 获取提现列表
// @Summary 获取提现列表
// @Tags 管理后台-提现
// @Produce json
// @Security Bearer
// @Param status query string false "状态过滤"
// @Param payout_method query string false "提现方式"
// @Param affiliate_id query int false "推广员ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/withdrawals [get]
func (h *WithdrawHandler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	affiliateID, ok := handler.ParseQueryID(c, "affiliate_id", "推广员")
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	filters := map[string]interface{}{
		"status":        c.Query("status"),
		"payout_method": c.Query("payout_method"),
	}
	if affiliateID != nil {
		filters["affiliate_id"] = *affiliateID
	}

	list, total, err := h.withdrawService.List(c.Request.Context(), p.GetOffset(), p.PageSize, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// ListPending 获取待处理队列
// @Summary 获取待处理提现队列
// @Tags 管理后台-提现
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/withdrawals/pending [get]
func (h *WithdrawHandler) ListPending(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.withdrawService.GetPendingList(c.Request.Context(), p.GetOffset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// Get 获取提现详情
// @Summary 获取提现详情
// @Tags 管理后台-提现
// @Produce json
// @Security Bearer
// @Param id path int true "提现ID"
// @Success 200 {object} response.Response{data=models.Withdrawal}
// @Router /api/v1/admin/withdrawals/{id} [get]
func (h *WithdrawHandler) Get(c *gin.Context) {
	_, id, ok := handler.RequireAdminAndParseID(c, "提现记录")
	if !ok {
		return
	}

	withdrawal, err := h.withdrawService.GetByID(c.Request.Context(), id)
	handler.MustSucceed(c, err, withdrawal)
}

// ProcessRequest 提现处理请求
type ProcessRequest struct {
	Status         string `json:"status" binding:"required"` // processing/completed/failed
	TransactionRef string `json:"transaction_ref"`
	Notes          string `json:"notes"`
}

// Process 推进提现状态
// 完成必须携带交易流水号；对终态的重复操作返回非法流转
// @Summary 推进提现状态
// @Tags 管理后台-提现
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "提现ID"
// @Param request body ProcessRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Withdrawal}
// @Router /api/v1/admin/withdrawals/{id}/process [post]
func (h *WithdrawHandler) Process(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "提现记录")
	if !ok {
		return
	}

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	processReq := &affiliate.ProcessRequest{
		WithdrawalID: id,
		NewStatus:    req.Status,
		ActorID:      adminID,
	}
	if req.TransactionRef != "" {
		processReq.TransactionRef = &req.TransactionRef
	}
	if req.Notes != "" {
		processReq.Notes = &req.Notes
	}

	withdrawal, err := h.withdrawService.Process(c.Request.Context(), processReq)
	handler.MustSucceed(c, err, withdrawal)
}
