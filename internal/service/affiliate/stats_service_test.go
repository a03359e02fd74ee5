package affiliate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// ==================== 重算测试 ====================

func TestStatsService_Recompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "STAT001", 10)

	createServiceTestReferral(env, affiliate.ID, "ORD-S1", models.ReferralStatusPending, 10)
	createServiceTestReferral(env, affiliate.ID, "ORD-S2", models.ReferralStatusApproved, 20)
	createServiceTestReferral(env, affiliate.ID, "ORD-S3", models.ReferralStatusPaid, 30)
	createServiceTestReferral(env, affiliate.ID, "ORD-S4", models.ReferralStatusRejected, 40)

	require.NoError(t, env.stats.Recompute(ctx, affiliate.ID))

	got, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	// approved + paid 计入收益，pending/rejected 不计
	assert.Equal(t, 50.0, got.TotalEarnings)
	assert.Equal(t, int64(4), got.TotalReferrals)
}

func TestStatsService_Recompute_DeductsCompletedWithdrawals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "STAT002", 10)
	createServiceTestReferral(env, affiliate.ID, "ORD-S5", models.ReferralStatusApproved, 100)

	env.db.Create(&models.Withdrawal{
		WithdrawalNo: "W-STAT-1",
		AffiliateID:  affiliate.ID,
		Amount:       60,
		PayoutMethod: models.PayoutMethodAlipay,
		Status:       models.WithdrawalStatusCompleted,
	})
	// 在途提现不扣减
	env.db.Create(&models.Withdrawal{
		WithdrawalNo: "W-STAT-2",
		AffiliateID:  affiliate.ID,
		Amount:       30,
		PayoutMethod: models.PayoutMethodAlipay,
		Status:       models.WithdrawalStatusPending,
	})

	require.NoError(t, env.stats.Recompute(ctx, affiliate.ID))

	got, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.TotalEarnings)
}

func TestStatsService_Recompute_ClampsNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "STAT003", 10)

	// 历史异常：完成提现超过已确认佣金
	env.db.Create(&models.Withdrawal{
		WithdrawalNo: "W-STAT-3",
		AffiliateID:  affiliate.ID,
		Amount:       50,
		PayoutMethod: models.PayoutMethodAlipay,
		Status:       models.WithdrawalStatusCompleted,
	})

	require.NoError(t, env.stats.Recompute(ctx, affiliate.ID))

	got, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.TotalEarnings)
}

func TestStatsService_Recompute_SelfHealsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "STAT004", 10)
	createServiceTestReferral(env, affiliate.ID, "ORD-S6", models.ReferralStatusApproved, 25)

	// 人为制造漂移
	env.db.Model(&models.Affiliate{}).Where("id = ?", affiliate.ID).
		Update("total_earnings", 999)

	require.NoError(t, env.stats.Recompute(ctx, affiliate.ID))

	got, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.TotalEarnings)
}

func TestStatsService_AuditAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a1 := createActiveAffiliate(env.db, "AUDT001", 10)
	a2 := createActiveAffiliate(env.db, "AUDT002", 10)
	createServiceTestReferral(env, a1.ID, "ORD-A1", models.ReferralStatusApproved, 10)
	createServiceTestReferral(env, a2.ID, "ORD-A2", models.ReferralStatusApproved, 20)

	audited, err := env.stats.AuditAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, audited)

	got1, _ := env.affiliateRepo.GetByID(ctx, a1.ID)
	got2, _ := env.affiliateRepo.GetByID(ctx, a2.ID)
	assert.Equal(t, 10.0, got1.TotalEarnings)
	assert.Equal(t, 20.0, got2.TotalEarnings)
}

// ==================== 总览测试 ====================

func TestStatsService_GetOverview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "OVRW001", 10)

	createServiceTestReferral(env, affiliate.ID, "ORD-O1", models.ReferralStatusPending, 10)
	createServiceTestReferral(env, affiliate.ID, "ORD-O2", models.ReferralStatusApproved, 20)
	createServiceTestReferral(env, affiliate.ID, "ORD-O3", models.ReferralStatusPaid, 30)

	for i, converted := range []bool{true, false, false, false} {
		env.db.Create(&models.Visit{
			AffiliateID: &affiliate.ID,
			Code:        affiliate.Code,
			VisitorKey:  fmt.Sprintf("%s-v%d", affiliate.Code, i),
			Converted:   converted,
		})
	}

	env.db.Create(&models.Withdrawal{
		WithdrawalNo: "W-OVRW-1",
		AffiliateID:  affiliate.ID,
		Amount:       15,
		PayoutMethod: models.PayoutMethodAlipay,
		Status:       models.WithdrawalStatusProcessing,
	})

	require.NoError(t, env.stats.Recompute(ctx, affiliate.ID))

	overview, err := env.stats.GetOverview(ctx, affiliate.ID)
	require.NoError(t, err)

	assert.Equal(t, 50.0, overview.TotalEarnings)
	assert.Equal(t, 10.0, overview.PendingAmount)
	assert.Equal(t, 20.0, overview.ApprovedAmount)
	assert.Equal(t, 30.0, overview.PaidAmount)
	assert.Equal(t, int64(3), overview.TotalReferrals)
	assert.Equal(t, int64(4), overview.TotalVisits)
	assert.Equal(t, int64(1), overview.ConvertedCount)
	assert.Equal(t, 25.0, overview.ConversionRate)
	assert.Equal(t, int64(4), overview.TodayVisits)
	assert.Equal(t, 15.0, overview.InFlightAmount)
}

func TestStatsService_DailyVisits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "DALY001", 10)

	env.db.Create(&models.Visit{
		AffiliateID: &affiliate.ID,
		Code:        affiliate.Code,
		VisitorKey:  "daily-a",
	})

	counts, err := env.stats.DailyVisits(ctx, affiliate.ID, 7)
	require.NoError(t, err)

	var total int64
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, int64(1), total)
}
