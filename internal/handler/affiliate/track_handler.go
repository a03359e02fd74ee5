// Package affiliate 提供推广相关的 HTTP Handler
package affiliate

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// TrackHandler 公开访问埋点处理器
// 访问埋点与订单归因是外部系统和访问者直接触达的入口
type TrackHandler struct {
	attributionService *affiliate.AttributionService
	leaderboardService *affiliate.LeaderboardService
	landingURL         string
}

// NewTrackHandler 创建访问埋点处理器
func NewTrackHandler(
	attributionSvc *affiliate.AttributionService,
	leaderboardSvc *affiliate.LeaderboardService,
	landingURL string,
) *TrackHandler {
	if landingURL == "" {
		landingURL = "/"
	}
	return &TrackHandler{
		attributionService: attributionSvc,
		leaderboardService: leaderboardSvc,
		landingURL:         landingURL,
	}
}

// Track 推广链接着陆
// 记录访问后 302 跳转到落地页。埋点失败也照常跳转，
// 访问者的浏览永远优先于统计
// @Summary 推广链接着陆跳转
// @Tags 推广
// @Param code path string true "推广码"
// @Success 302
// @Router /t/{code} [get]
func (h *TrackHandler) Track(c *gin.Context) {
	visitorKey, err := c.Cookie("visitor_key")
	if err != nil {
		visitorKey = ""
	}

	visit, err := h.attributionService.RecordVisit(c.Request.Context(), &affiliate.RecordVisitRequest{
		Code:        c.Param("code"),
		VisitorKey:  visitorKey,
		LandingPage: c.Query("to"),
		Referrer:    c.GetHeader("Referer"),
		UserAgent:   c.GetHeader("User-Agent"),
		Country:     c.GetHeader("CF-IPCountry"),
	})
	if err == nil && visitorKey == "" {
		// 30 天访客标识
		c.SetCookie("visitor_key", visit.VisitorKey, 30*24*3600, "/", "", false, true)
	}

	c.Redirect(http.StatusFound, h.landingURL)
}

// RecordVisitRequest 访问上报请求
type RecordVisitRequest struct {
	Code        string `json:"code" binding:"required"`
	VisitorKey  string `json:"visitor_key"`
	LandingPage string `json:"landing_page"`
	Referrer    string `json:"referrer"`
}

// RecordVisit 访问上报
// 前端 SPA 无法走 302 跳转时的埋点接口
// @Summary 访问上报
// @Tags 推广
// @Accept json
// @Produce json
// @Param request body RecordVisitRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Visit}
// @Router /api/v1/track/visit [post]
func (h *TrackHandler) RecordVisit(c *gin.Context) {
	var req RecordVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	visit, err := h.attributionService.RecordVisit(c.Request.Context(), &affiliate.RecordVisitRequest{
		Code:        req.Code,
		VisitorKey:  req.VisitorKey,
		LandingPage: req.LandingPage,
		Referrer:    req.Referrer,
		UserAgent:   c.GetHeader("User-Agent"),
		Country:     c.GetHeader("CF-IPCountry"),
	})
	handler.MustSucceed(c, err, visit)
}

// AttributeRequest 订单归因请求
type AttributeRequest struct {
	Code           string  `json:"code" binding:"required"`
	OrderNo        string  `json:"order_no" binding:"required"`
	OrderAmount    float64 `json:"order_amount" binding:"required"`
	ConversionType string  `json:"conversion_type" binding:"required"`
	VisitorKey     string  `json:"visitor_key"`
}

// Attribute 订单归因
// 订单系统回调接口，幂等：同一订单重复上报返回同一条归因记录
// @Summary 订单归因
// @Tags 推广
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body AttributeRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Referral}
// @Router /api/v1/track/conversion [post]
func (h *TrackHandler) Attribute(c *gin.Context) {
	var req AttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	referral, err := h.attributionService.Attribute(c.Request.Context(), &affiliate.AttributeRequest{
		Code:           req.Code,
		OrderNo:        req.OrderNo,
		OrderAmount:    req.OrderAmount,
		ConversionType: req.ConversionType,
		VisitorKey:     req.VisitorKey,
	})
	handler.MustSucceed(c, err, referral)
}

// Leaderboard 公开排行榜
// 公开视图不含收益金额
// @Summary 推广排行榜
// @Tags 推广
// @Produce json
// @Param metric query string false "排行指标 earnings/referrals"
// @Param period query string false "排行时段 all/monthly/weekly"
// @Param limit query int false "条数"
// @Success 200 {object} response.Response{data=affiliate.Snapshot}
// @Router /api/v1/leaderboard [get]
func (h *TrackHandler) Leaderboard(c *gin.Context) {
	metric := c.DefaultQuery("metric", affiliate.MetricEarnings)
	period := c.DefaultQuery("period", affiliate.PeriodAll)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	snapshot, err := h.leaderboardService.Rank(c.Request.Context(), metric, period, limit, false)
	handler.MustSucceed(c, err, snapshot)
}
