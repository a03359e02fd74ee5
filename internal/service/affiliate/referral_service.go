package affiliate

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// legalReferralTransitions 归因状态机的合法边
// pending→approved|rejected，approved→paid，approved→rejected（冲正/拒付）
var legalReferralTransitions = map[string][]string{
	models.ReferralStatusPending:  {models.ReferralStatusApproved, models.ReferralStatusRejected},
	models.ReferralStatusApproved: {models.ReferralStatusPaid, models.ReferralStatusRejected},
}

// ReferralService 归因账本
// 归因记录状态的唯一写入方；每次成功流转都在同一事务内重算推广员统计
type ReferralService struct {
	referralRepo  *repository.ReferralRepository
	affiliateRepo *repository.AffiliateRepository
	stats         *StatsService
	authz         Authorizer
	notifier      Notifier
	db            *gorm.DB
}

// NewReferralService 创建归因账本服务
func NewReferralService(
	referralRepo *repository.ReferralRepository,
	affiliateRepo *repository.AffiliateRepository,
	stats *StatsService,
	authz Authorizer,
	notifier Notifier,
	db *gorm.DB,
) *ReferralService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReferralService{
		referralRepo:  referralRepo,
		affiliateRepo: affiliateRepo,
		stats:         stats,
		authz:         authz,
		notifier:      notifier,
		db:            db,
	}
}

// TransitionRequest 状态流转请求
type TransitionRequest struct {
	ReferralID int64   `json:"referral_id"`
	NewStatus  string  `json:"new_status" binding:"required"`
	Notes      *string `json:"notes,omitempty"`
	ActorID    int64   `json:"-"`
}

// Transition 执行归因状态流转
// 仅管理员可调用；非法边返回 InvalidTransition；
// 状态写入与统计重算在持有归因记录行锁的同一事务内完成
func (s *ReferralService) Transition(ctx context.Context, req *TransitionRequest) (*models.Referral, error) {
	if err := s.authz.CanReviewReferral(ctx, req.ActorID); err != nil {
		return nil, err
	}
	if !isReferralStatus(req.NewStatus) {
		return nil, errors.ErrInvalidParams.WithMessage("无效的目标状态")
	}

	var referral models.Referral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&referral, req.ReferralID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrReferralNotFound
			}
			return err
		}

		if !isLegalReferralTransition(referral.Status, req.NewStatus) {
			return errors.ErrInvalidTransition
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":      req.NewStatus,
			"reviewed_by": req.ActorID,
			"reviewed_at": now,
		}
		if req.Notes != nil {
			updates["review_notes"] = *req.Notes
		}

		// 状态条件兜底，防止并发流转双写
		result := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", referral.ID, referral.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.ErrInvalidTransition
		}

		referral.Status = req.NewStatus
		referral.ReviewedBy = &req.ActorID
		referral.ReviewedAt = &now
		if req.Notes != nil {
			referral.ReviewNotes = req.Notes
		}

		return s.stats.RecomputeTx(tx, referral.AffiliateID)
	})
	if err != nil {
		return nil, err
	}

	metrics.GetMetrics().RecordConversion(referral.ConversionType, referral.Status)

	if referral.Status == models.ReferralStatusApproved {
		// 通知只记日志，不影响账本
		go func(affiliateID int64, orderNo string, amount float64) {
			defer func() {
				if r := recover(); r != nil {
					logger.GetLogger().Error("佣金通知发送异常")
				}
			}()
			nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.notifier.NotifyReferralApproved(nctx, affiliateID, orderNo, amount)
		}(referral.AffiliateID, referral.OrderNo, referral.CommissionAmount)
	}

	return &referral, nil
}

// Approve 审核通过归因记录
func (s *ReferralService) Approve(ctx context.Context, referralID, actorID int64, notes *string) (*models.Referral, error) {
	return s.Transition(ctx, &TransitionRequest{
		ReferralID: referralID,
		NewStatus:  models.ReferralStatusApproved,
		Notes:      notes,
		ActorID:    actorID,
	})
}

// Reject 拒绝归因记录（含对已通过记录的冲正）
func (s *ReferralService) Reject(ctx context.Context, referralID, actorID int64, notes *string) (*models.Referral, error) {
	return s.Transition(ctx, &TransitionRequest{
		ReferralID: referralID,
		NewStatus:  models.ReferralStatusRejected,
		Notes:      notes,
		ActorID:    actorID,
	})
}

// MarkPaid 标记佣金已结算
func (s *ReferralService) MarkPaid(ctx context.Context, referralID, actorID int64, notes *string) (*models.Referral, error) {
	return s.Transition(ctx, &TransitionRequest{
		ReferralID: referralID,
		NewStatus:  models.ReferralStatusPaid,
		Notes:      notes,
		ActorID:    actorID,
	})
}

// GetByID 获取归因记录详情
func (s *ReferralService) GetByID(ctx context.Context, id int64) (*models.Referral, error) {
	referral, err := s.referralRepo.GetByIDWithAffiliate(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrReferralNotFound
		}
		return nil, err
	}
	return referral, nil
}

// ListByAffiliate 获取推广员的归因记录
func (s *ReferralService) ListByAffiliate(ctx context.Context, affiliateID int64, status string, offset, limit int) ([]*models.Referral, int64, error) {
	return s.referralRepo.ListByAffiliate(ctx, affiliateID, status, offset, limit)
}

// List 获取归因记录列表
func (s *ReferralService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Referral, int64, error) {
	return s.referralRepo.List(ctx, offset, limit, filters)
}

// GetPendingList 获取待审核队列
func (s *ReferralService) GetPendingList(ctx context.Context, offset, limit int) ([]*models.Referral, int64, error) {
	return s.referralRepo.GetPendingList(ctx, offset, limit)
}

func isReferralStatus(status string) bool {
	switch status {
	case models.ReferralStatusPending, models.ReferralStatusApproved,
		models.ReferralStatusRejected, models.ReferralStatusPaid:
		return true
	}
	return false
}

func isLegalReferralTransition(from, to string) bool {
	for _, allowed := range legalReferralTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
