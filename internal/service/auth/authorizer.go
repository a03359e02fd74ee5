package auth

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// RoleAuthorizer 基于管理员角色的授权器
// 归因审核放给运营，提现打款放给财务，超级管理员两者皆可
type RoleAuthorizer struct {
	adminRepo     *repository.AdminRepository
	affiliateRepo *repository.AffiliateRepository
}

// NewRoleAuthorizer 创建角色授权器
func NewRoleAuthorizer(adminRepo *repository.AdminRepository, affiliateRepo *repository.AffiliateRepository) *RoleAuthorizer {
	return &RoleAuthorizer{
		adminRepo:     adminRepo,
		affiliateRepo: affiliateRepo,
	}
}

// CanReviewReferral 归因审核权限
func (a *RoleAuthorizer) CanReviewReferral(ctx context.Context, actorID int64) error {
	return a.requireRole(ctx, actorID, models.AdminRoleSuper, models.AdminRoleOperator)
}

// CanProcessWithdrawal 提现处理权限
func (a *RoleAuthorizer) CanProcessWithdrawal(ctx context.Context, actorID int64) error {
	return a.requireRole(ctx, actorID, models.AdminRoleSuper, models.AdminRoleFinance)
}

// OwnsAffiliate 校验用户是否持有该推广员档案
func (a *RoleAuthorizer) OwnsAffiliate(ctx context.Context, actorID, affiliateID int64) error {
	affiliate, err := a.affiliateRepo.GetByUserID(ctx, actorID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrPermissionDenied
		}
		return err
	}
	if affiliate.ID != affiliateID {
		return errors.ErrPermissionDenied
	}
	return nil
}

func (a *RoleAuthorizer) requireRole(ctx context.Context, actorID int64, roles ...string) error {
	admin, err := a.adminRepo.GetByID(ctx, actorID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrPermissionDenied
		}
		return err
	}
	if admin.Status != models.AdminStatusActive {
		return errors.ErrAccountDisabled
	}
	for _, role := range roles {
		if admin.Role == role {
			return nil
		}
	}
	return errors.ErrPermissionDenied
}
