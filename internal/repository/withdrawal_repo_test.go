// Package repository 提现仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

func setupWithdrawalTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Withdrawal{}, &models.Affiliate{}, &models.Admin{})
	require.NoError(t, err)

	return db
}

func newTestWithdrawal(affiliateID int64, no string, amount float64, status string) *models.Withdrawal {
	return &models.Withdrawal{
		WithdrawalNo:  no,
		AffiliateID:   affiliateID,
		Amount:        amount,
		PayoutMethod:  models.PayoutMethodWechat,
		PayoutAccount: "wx_acct_001",
		Status:        status,
	}
}

// ==== 基础 CRUD ====

func TestWithdrawalRepository_Create(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	withdrawal := newTestWithdrawal(1, "WD20260101120000000001", 100.0, models.WithdrawalStatusPending)
	err := repo.Create(ctx, withdrawal)
	require.NoError(t, err)
	assert.NotZero(t, withdrawal.ID)
}

func TestWithdrawalRepository_GetByWithdrawalNo(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD20260101120000000001", 100.0, models.WithdrawalStatusPending))

	found, err := repo.GetByWithdrawalNo(ctx, "WD20260101120000000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.AffiliateID)

	_, err = repo.GetByWithdrawalNo(ctx, "WD0000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWithdrawalRepository_GetByIDWithRelations(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	affiliate := &models.Affiliate{UserID: 1, Code: "ACME10", CommissionRate: 10, Status: models.AffiliateStatusActive}
	db.Create(affiliate)

	withdrawal := newTestWithdrawal(affiliate.ID, "WD20260101120000000001", 100.0, models.WithdrawalStatusPending)
	db.Create(withdrawal)

	found, err := repo.GetByIDWithRelations(ctx, withdrawal.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Affiliate)
	assert.Equal(t, affiliate.ID, found.Affiliate.ID)
}

// ==== 状态流转 ====

func TestWithdrawalRepository_MarkProcessing(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	withdrawal := newTestWithdrawal(1, "WD20260101120000000001", 100.0, models.WithdrawalStatusPending)
	db.Create(withdrawal)

	err := repo.MarkProcessing(ctx, withdrawal.ID, 100)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusProcessing, found.Status)
	require.NotNil(t, found.OperatorID)
	assert.Equal(t, int64(100), *found.OperatorID)
	assert.NotNil(t, found.ProcessedAt)
}

func TestWithdrawalRepository_MarkProcessing_OnlyFromPending(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	withdrawal := newTestWithdrawal(1, "WD20260101120000000001", 100.0, models.WithdrawalStatusCompleted)
	db.Create(withdrawal)

	// 已完成的提现不允许回到打款中
	err := repo.MarkProcessing(ctx, withdrawal.ID, 100)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, found.Status)
	assert.Nil(t, found.OperatorID)
}

// ==== 列表与汇总 ====

func TestWithdrawalRepository_GetPendingList_OrderedByID(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD0001", 10.0, models.WithdrawalStatusPending))
	db.Create(newTestWithdrawal(1, "WD0002", 20.0, models.WithdrawalStatusCompleted))
	db.Create(newTestWithdrawal(2, "WD0003", 30.0, models.WithdrawalStatusPending))

	list, total, err := repo.GetPendingList(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "WD0001", list[0].WithdrawalNo)
	assert.Equal(t, "WD0003", list[1].WithdrawalNo)
}

func TestWithdrawalRepository_List_Filters(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD0001", 10.0, models.WithdrawalStatusPending))
	alipay := newTestWithdrawal(1, "WD0002", 20.0, models.WithdrawalStatusPending)
	alipay.PayoutMethod = models.PayoutMethodAlipay
	db.Create(alipay)

	list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{
		"payout_method": models.PayoutMethodAlipay,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "WD0002", list[0].WithdrawalNo)
}

func TestWithdrawalRepository_SumByAffiliate(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD0001", 30.0, models.WithdrawalStatusCompleted))
	db.Create(newTestWithdrawal(1, "WD0002", 20.0, models.WithdrawalStatusPending))
	db.Create(newTestWithdrawal(1, "WD0003", 50.0, models.WithdrawalStatusFailed))

	// 失败的提现不占用余额
	sum, err := repo.SumByAffiliate(ctx, 1, []string{
		models.WithdrawalStatusPending,
		models.WithdrawalStatusProcessing,
		models.WithdrawalStatusCompleted,
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, sum, 0.001)
}

func TestWithdrawalRepository_CountInFlightByAffiliate(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD0001", 10.0, models.WithdrawalStatusPending))
	db.Create(newTestWithdrawal(1, "WD0002", 20.0, models.WithdrawalStatusProcessing))
	db.Create(newTestWithdrawal(1, "WD0003", 30.0, models.WithdrawalStatusCompleted))
	db.Create(newTestWithdrawal(1, "WD0004", 40.0, models.WithdrawalStatusFailed))

	count, err := repo.CountInFlightByAffiliate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWithdrawalRepository_GetStatsByAffiliate(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD0001", 30.0, models.WithdrawalStatusCompleted))
	db.Create(newTestWithdrawal(1, "WD0002", 20.0, models.WithdrawalStatusPending))
	db.Create(newTestWithdrawal(1, "WD0003", 10.0, models.WithdrawalStatusProcessing))

	stats, err := repo.GetStatsByAffiliate(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, stats["total_amount"].(float64), 0.001)
	assert.InDelta(t, 30.0, stats["completed_amount"].(float64), 0.001)
	assert.InDelta(t, 30.0, stats["in_flight_amount"].(float64), 0.001)
	assert.Equal(t, int64(3), stats["total_count"])
	assert.Equal(t, int64(1), stats["completed_count"])
}

func TestWithdrawalRepository_ExistsWithdrawalNo(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	db.Create(newTestWithdrawal(1, "WD0001", 10.0, models.WithdrawalStatusPending))

	exists, err := repo.ExistsWithdrawalNo(ctx, "WD0001")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsWithdrawalNo(ctx, "WD9999")
	require.NoError(t, err)
	assert.False(t, exists)
}
