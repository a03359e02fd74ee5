package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// LogHandler 操作日志处理器
type LogHandler struct {
	logRepo *repository.OperationLogRepository
}

// NewLogHandler 创建操作日志处理器
func NewLogHandler(logRepo *repository.OperationLogRepository) *LogHandler {
	return &LogHandler{logRepo: logRepo}
}

// List 获取操作日志列表
// @Summary 获取操作日志列表
// @Tags 管理后台-日志
// @Produce json
// @Security Bearer
// @Param module query string false "模块"
// @Param action query string false "动作"
// @Param admin_id query int false "管理员ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/logs [get]
func (h *LogHandler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	adminID, ok := handler.ParseQueryID(c, "admin_id", "管理员")
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	filters := map[string]interface{}{
		"module": c.Query("module"),
		"action": c.Query("action"),
	}
	if adminID != nil {
		filters["admin_id"] = *adminID
	}

	list, total, err := h.logRepo.List(c.Request.Context(), p.GetOffset(), p.PageSize, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// ListByTarget 获取针对某个目标的操作日志
// @Summary 获取目标操作日志
// @Tags 管理后台-日志
// @Produce json
// @Security Bearer
// @Param target_type path string true "目标类型"
// @Param target_id path int true "目标ID"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/logs/{target_type}/{target_id} [get]
func (h *LogHandler) ListByTarget(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	targetType := c.Param("target_type")
	targetID, ok := handler.ParseParamID(c, "target_id", "目标")
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.logRepo.ListByTarget(c.Request.Context(), targetType, targetID, p.GetOffset(), p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}
