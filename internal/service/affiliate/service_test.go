// Package affiliate 服务层单元测试公共设施
package affiliate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// setupServiceTestDB 创建服务测试数据库
func setupServiceTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Affiliate{},
		&models.Visit{},
		&models.Referral{},
		&models.Withdrawal{},
		&models.Admin{},
	)
	require.NoError(t, err)

	return db
}

// testEnv 服务测试环境，聚合全部依赖
type testEnv struct {
	db             *gorm.DB
	affiliateRepo  *repository.AffiliateRepository
	userRepo       *repository.UserRepository
	visitRepo      *repository.VisitRepository
	referralRepo   *repository.ReferralRepository
	withdrawalRepo *repository.WithdrawalRepository
	stats          *StatsService
	notifier       *recordingNotifier

	affiliates  *AffiliateService
	attribution *AttributionService
	referrals   *ReferralService
	withdrawals *WithdrawService
}

// newTestEnv 构建完整的服务测试环境
func newTestEnv(t *testing.T) *testEnv {
	db := setupServiceTestDB(t)

	aes, err := crypto.NewAES("0123456789abcdef")
	require.NoError(t, err)

	env := &testEnv{
		db:             db,
		affiliateRepo:  repository.NewAffiliateRepository(db),
		userRepo:       repository.NewUserRepository(db),
		visitRepo:      repository.NewVisitRepository(db),
		referralRepo:   repository.NewReferralRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		notifier:       &recordingNotifier{},
	}
	env.stats = NewStatsService(env.affiliateRepo, env.referralRepo, env.visitRepo, env.withdrawalRepo, db)
	env.affiliates = NewAffiliateService(env.affiliateRepo, env.userRepo, aes, 10.0)
	env.attribution = NewAttributionService(env.affiliateRepo, env.visitRepo, env.referralRepo, env.stats, db)
	env.referrals = NewReferralService(env.referralRepo, env.affiliateRepo, env.stats, allowAllAuthorizer{}, env.notifier, db)
	env.withdrawals = NewWithdrawService(env.withdrawalRepo, env.affiliateRepo, env.stats, allowAllAuthorizer{}, env.notifier, aes, db)
	return env
}

// allowAllAuthorizer 放行全部操作的鉴权桩
type allowAllAuthorizer struct{}

func (allowAllAuthorizer) CanReviewReferral(ctx context.Context, actorID int64) error    { return nil }
func (allowAllAuthorizer) CanProcessWithdrawal(ctx context.Context, actorID int64) error { return nil }
func (allowAllAuthorizer) OwnsAffiliate(ctx context.Context, actorID, affiliateID int64) error {
	return nil
}

// denyAllAuthorizer 拒绝全部操作的鉴权桩
type denyAllAuthorizer struct{}

func (denyAllAuthorizer) CanReviewReferral(ctx context.Context, actorID int64) error {
	return errors.ErrPermissionDenied
}

func (denyAllAuthorizer) CanProcessWithdrawal(ctx context.Context, actorID int64) error {
	return errors.ErrPermissionDenied
}

func (denyAllAuthorizer) OwnsAffiliate(ctx context.Context, actorID, affiliateID int64) error {
	return errors.ErrPermissionDenied
}

// recordingNotifier 记录全部通知调用的通知桩
type recordingNotifier struct {
	mu          sync.Mutex
	approvals   []string
	withdrawals []string
}

func (n *recordingNotifier) NotifyReferralApproved(ctx context.Context, affiliateID int64, orderNo string, amount float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvals = append(n.approvals, orderNo)
}

func (n *recordingNotifier) NotifyWithdrawalStatus(ctx context.Context, affiliateID int64, withdrawalNo, status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.withdrawals = append(n.withdrawals, withdrawalNo+":"+status)
}

func (n *recordingNotifier) approvalCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.approvals)
}

func (n *recordingNotifier) withdrawalCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.withdrawals)
}

// createServiceTestUser 创建测试用户
func createServiceTestUser(db *gorm.DB) *models.User {
	phone := fmt.Sprintf("139%08d", time.Now().UnixNano()%100000000)
	user := &models.User{
		Phone:    &phone,
		Nickname: "测试用户",
		Status:   models.UserStatusActive,
	}
	db.Create(user)
	return user
}

// createServiceTestAffiliate 创建指定状态的测试推广员
func createServiceTestAffiliate(db *gorm.DB, userID int64, code, status string, rate float64) *models.Affiliate {
	affiliate := &models.Affiliate{
		UserID:         userID,
		Code:           code,
		CommissionRate: rate,
		Status:         status,
	}
	db.Create(affiliate)
	return affiliate
}

// createActiveAffiliate 创建一个已审核通过的推广员及其用户
func createActiveAffiliate(db *gorm.DB, code string, rate float64) *models.Affiliate {
	user := createServiceTestUser(db)
	return createServiceTestAffiliate(db, user.ID, code, models.AffiliateStatusActive, rate)
}
