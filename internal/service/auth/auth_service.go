// Package auth 提供管理员认证与授权服务
package auth

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// AdminAuthService 管理员认证服务
type AdminAuthService struct {
	adminRepo  *repository.AdminRepository
	jwtManager *jwt.Manager
}

// NewAdminAuthService 创建管理员认证服务
func NewAdminAuthService(adminRepo *repository.AdminRepository, jwtManager *jwt.Manager) *AdminAuthService {
	return &AdminAuthService{
		adminRepo:  adminRepo,
		jwtManager: jwtManager,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Admin     *AdminInfo     `json:"admin"`
	TokenPair *jwt.TokenPair `json:"token"`
}

// AdminInfo 管理员信息（不含敏感字段）
type AdminInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Login 管理员登录
func (s *AdminAuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPasswordError
		}
		return nil, err
	}

	if admin.Status != models.AdminStatusActive {
		return nil, errors.ErrAccountDisabled
	}

	if !crypto.VerifyPassword(req.Password, admin.PasswordHash) {
		return nil, errors.ErrPasswordError
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(admin.ID, jwt.UserTypeAdmin, admin.Role)
	if err != nil {
		return nil, err
	}

	// 登录信息更新失败不阻塞登录
	if err := s.adminRepo.UpdateLastLogin(ctx, admin.ID, req.IP); err != nil {
		logger.GetLogger().Warn("登录信息更新失败", logger.Err(err))
	}

	return &LoginResponse{
		Admin: &AdminInfo{
			ID:       admin.ID,
			Username: admin.Username,
			Name:     admin.Name,
			Role:     admin.Role,
		},
		TokenPair: tokenPair,
	}, nil
}

// RefreshToken 用刷新令牌换取新的令牌对
func (s *AdminAuthService) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	tokenPair, err := s.jwtManager.RefreshToken(refreshToken)
	if err != nil {
		return nil, errors.ErrTokenInvalid.WithError(err)
	}
	return tokenPair, nil
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
	AdminID     int64  `json:"-"`
}

// ChangePassword 修改管理员密码
func (s *AdminAuthService) ChangePassword(ctx context.Context, req *ChangePasswordRequest) error {
	admin, err := s.adminRepo.GetByID(ctx, req.AdminID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrNotFound.WithMessage("管理员不存在")
		}
		return err
	}

	if !crypto.VerifyPassword(req.OldPassword, admin.PasswordHash) {
		return errors.ErrPasswordError.WithMessage("原密码错误")
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	return s.adminRepo.UpdatePassword(ctx, admin.ID, hash)
}

// CreateAdminRequest 创建管理员请求
type CreateAdminRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// CreateAdmin 创建管理员账号
func (s *AdminAuthService) CreateAdmin(ctx context.Context, req *CreateAdminRequest) (*models.Admin, error) {
	if !isAdminRole(req.Role) {
		return nil, errors.ErrInvalidParams.WithMessage("无效的角色")
	}

	if _, err := s.adminRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, errors.ErrAlreadyExists.WithMessage("用户名已存在")
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	admin := &models.Admin{
		Username:     req.Username,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
		Status:       models.AdminStatusActive,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

func isAdminRole(role string) bool {
	switch role {
	case models.AdminRoleSuper, models.AdminRoleOperator, models.AdminRoleFinance:
		return true
	}
	return false
}
