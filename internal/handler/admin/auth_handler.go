// Package admin 提供管理后台的 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/auth"
)

// AuthHandler 管理员认证处理器
type AuthHandler struct {
	authService *auth.AdminAuthService
}

// NewAuthHandler 创建管理员认证处理器
func NewAuthHandler(authSvc *auth.AdminAuthService) *AuthHandler {
	return &AuthHandler{authService: authSvc}
}

// Login 管理员登录
// @Summary 管理员登录
// @Tags 管理后台
// @Accept json
// @Produce json
// @Param request body auth.LoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=auth.LoginResponse}
// @Router /api/v1/admin/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	req.IP = c.ClientIP()

	resp, err := h.authService.Login(c.Request.Context(), &req)
	handler.MustSucceed(c, err, resp)
}

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新令牌
// @Summary 刷新令牌
// @Tags 管理后台
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "请求参数"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/v1/admin/token/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	pair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	handler.MustSucceed(c, err, pair)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body auth.ChangePasswordRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	req.AdminID = adminID

	err := h.authService.ChangePassword(c.Request.Context(), &req)
	handler.MustSucceed(c, err, nil)
}

// CreateAdmin 创建管理员账号
// @Summary 创建管理员账号
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body auth.CreateAdminRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Admin}
// @Router /api/v1/admin/admins [post]
func (h *AuthHandler) CreateAdmin(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	var req auth.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	admin, err := h.authService.CreateAdmin(c.Request.Context(), &req)
	handler.MustSucceed(c, err, admin)
}
