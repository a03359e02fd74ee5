package affiliate

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// WithdrawHandler 推广员提现处理器
type WithdrawHandler struct {
	affiliateService *affiliate.AffiliateService
	withdrawService  *affiliate.WithdrawService
}

// NewWithdrawHandler 创建提现处理器
func NewWithdrawHandler(affiliateSvc *affiliate.AffiliateService, withdrawSvc *affiliate.WithdrawService) *WithdrawHandler {
	return &WithdrawHandler{
		affiliateService: affiliateSvc,
		withdrawService:  withdrawSvc,
	}
}

// ApplyWithdrawRequest 提现申请请求
type ApplyWithdrawRequest struct {
	Amount        float64 `json:"amount" binding:"required"`
	PayoutMethod  string  `json:"payout_method" binding:"required"`
	PayoutAccount string  `json:"payout_account" binding:"required"`
}

// Apply 申请提现
// @Summary 申请提现
// @Tags 提现
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ApplyWithdrawRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Withdrawal}
// @Router /api/v1/affiliate/withdrawals [post]
func (h *WithdrawHandler) Apply(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req ApplyWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	withdrawal, err := h.withdrawService.Apply(c.Request.Context(), &affiliate.ApplyWithdrawRequest{
		AffiliateID:   affiliateInfo.ID,
		Amount:        req.Amount,
		PayoutMethod:  req.PayoutMethod,
		PayoutAccount: req.PayoutAccount,
	})
	handler.MustSucceed(c, err, withdrawal)
}

// List 获取提现记录
// @Summary 获取提现记录
// @Tags 提现
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/withdrawals [get]
func (h *WithdrawHandler) List(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	affiliateInfo, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.withdrawService.ListByAffiliate(
		c.Request.Context(), affiliateInfo.ID, p.GetOffset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// GetConfig 获取提现配置
// @Summary 获取提现限额配置
// @Tags 提现
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/affiliate/withdrawals/config [get]
func (h *WithdrawHandler) GetConfig(c *gin.Context) {
	response.Success(c, h.withdrawService.GetConfig())
}
