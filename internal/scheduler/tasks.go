package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// 操作日志保留期
const operationLogRetention = 90 * 24 * time.Hour

// TaskHandler 任务处理器
type TaskHandler struct {
	statsService       *affiliate.StatsService
	leaderboardService *affiliate.LeaderboardService
	logRepo            *repository.OperationLogRepository
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(
	statsSvc *affiliate.StatsService,
	leaderboardSvc *affiliate.LeaderboardService,
	logRepo *repository.OperationLogRepository,
) *TaskHandler {
	return &TaskHandler{
		statsService:       statsSvc,
		leaderboardService: leaderboardSvc,
		logRepo:            logRepo,
	}
}

// RefreshLeaderboard 重建排行榜快照
func (h *TaskHandler) RefreshLeaderboard(ctx context.Context) error {
	return h.leaderboardService.Refresh(ctx)
}

// AuditStats 全量重算推广员统计，修复计数漂移
func (h *TaskHandler) AuditStats(ctx context.Context) error {
	n, err := h.statsService.AuditAll(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("统计自愈完成", zap.Int("audited", n))
	}
	return nil
}

// CleanupOperationLogs 清理过期操作日志
func (h *TaskHandler) CleanupOperationLogs(ctx context.Context) error {
	before := time.Now().Add(-operationLogRetention)
	deleted, err := h.logRepo.DeleteBefore(ctx, before)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info("操作日志清理完成", zap.Int64("deleted", deleted))
	}
	return nil
}
