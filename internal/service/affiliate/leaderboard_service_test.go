package affiliate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// setupLeaderboardTest 构建带 miniredis 的排行榜测试环境
func setupLeaderboardTest(t *testing.T) (*testEnv, *LeaderboardService, *miniredis.Miniredis) {
	env := newTestEnv(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return env, NewLeaderboardService(env.affiliateRepo, env.referralRepo, rdb), mr
}

// setAffiliateTotals 直接写入排行所需的统计值
func setAffiliateTotals(env *testEnv, affiliateID int64, earnings float64, referrals int64) {
	env.db.Model(&models.Affiliate{}).Where("id = ?", affiliateID).
		Updates(map[string]interface{}{
			"total_earnings":  earnings,
			"total_referrals": referrals,
		})
}

// ==================== 排名测试 ====================

func TestLeaderboardService_Rank_ByEarnings(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	a1 := createActiveAffiliate(env.db, "RANK001", 10)
	a2 := createActiveAffiliate(env.db, "RANK002", 10)
	a3 := createActiveAffiliate(env.db, "RANK003", 10)
	setAffiliateTotals(env, a1.ID, 50, 1)
	setAffiliateTotals(env, a2.ID, 200, 2)
	setAffiliateTotals(env, a3.ID, 100, 3)

	snapshot, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 3)

	assert.Equal(t, "RANK002", snapshot.Entries[0].Code)
	assert.Equal(t, 1, snapshot.Entries[0].Rank)
	require.NotNil(t, snapshot.Entries[0].TotalEarnings)
	assert.Equal(t, 200.0, *snapshot.Entries[0].TotalEarnings)
	assert.Equal(t, "RANK003", snapshot.Entries[1].Code)
	assert.Equal(t, "RANK001", snapshot.Entries[2].Code)
}

func TestLeaderboardService_Rank_DenseTies(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	a1 := createActiveAffiliate(env.db, "TIES001", 10)
	a2 := createActiveAffiliate(env.db, "TIES002", 10)
	a3 := createActiveAffiliate(env.db, "TIES003", 10)
	setAffiliateTotals(env, a1.ID, 100, 0)
	setAffiliateTotals(env, a2.ID, 100, 0)
	setAffiliateTotals(env, a3.ID, 50, 0)

	snapshot, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 3)

	// 并列密集排名：100, 100, 50 → 1, 1, 2
	assert.Equal(t, 1, snapshot.Entries[0].Rank)
	assert.Equal(t, 1, snapshot.Entries[1].Rank)
	assert.Equal(t, 2, snapshot.Entries[2].Rank)
}

func TestLeaderboardService_Rank_ByReferrals(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	a1 := createActiveAffiliate(env.db, "REFR001", 10)
	a2 := createActiveAffiliate(env.db, "REFR002", 10)
	setAffiliateTotals(env, a1.ID, 10, 5)
	setAffiliateTotals(env, a2.ID, 999, 2)

	snapshot, err := svc.Rank(ctx, MetricReferrals, PeriodAll, 10, true)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 2)
	assert.Equal(t, "REFR001", snapshot.Entries[0].Code)
	assert.Equal(t, int64(5), snapshot.Entries[0].TotalReferrals)
}

func TestLeaderboardService_Rank_RedactsEarnings(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	a := createActiveAffiliate(env.db, "HIDE001", 10)
	setAffiliateTotals(env, a.ID, 123.45, 1)

	// 公开视图隐去金额
	snapshot, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, false)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 1)
	assert.Nil(t, snapshot.Entries[0].TotalEarnings)
	assert.Equal(t, "HIDE001", snapshot.Entries[0].Code)
}

func TestLeaderboardService_Rank_LimitClamp(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	for _, code := range []string{"LIMI001", "LIMI002", "LIMI003"} {
		a := createActiveAffiliate(env.db, code, 10)
		setAffiliateTotals(env, a.ID, 10, 0)
	}

	snapshot, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 2, true)
	require.NoError(t, err)
	assert.Len(t, snapshot.Entries, 2)
}

func TestLeaderboardService_Rank_InvalidMetric(t *testing.T) {
	_, svc, _ := setupLeaderboardTest(t)

	_, err := svc.Rank(context.Background(), "clicks", PeriodAll, 10, true)
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestLeaderboardService_ExcludesSuspended(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	active := createActiveAffiliate(env.db, "EXCL001", 10)
	user := createServiceTestUser(env.db)
	suspended := createServiceTestAffiliate(env.db, user.ID, "EXCL002", models.AffiliateStatusSuspended, 10)
	setAffiliateTotals(env, active.ID, 10, 0)
	setAffiliateTotals(env, suspended.ID, 9999, 0)

	snapshot, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "EXCL001", snapshot.Entries[0].Code)
}

// ==================== 时段排行测试 ====================

// createRankReferral 写入指定创建时间的归因记录
func createRankReferral(env *testEnv, affiliateID int64, orderNo, status string, amount float64, createdAt time.Time) {
	referral := &models.Referral{
		AffiliateID:      affiliateID,
		OrderNo:          orderNo,
		OrderAmount:      amount * 10,
		CommissionRate:   10,
		CommissionAmount: amount,
		ConversionType:   models.ConversionTypePurchase,
		Status:           status,
	}
	env.db.Create(referral)
	env.db.Model(&models.Referral{}).Where("id = ?", referral.ID).
		Update("created_at", createdAt)
}

func TestLeaderboardService_Rank_MonthlyScopesToPeriod(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	a1 := createActiveAffiliate(env.db, "PERI001", 10)
	a2 := createActiveAffiliate(env.db, "PERI002", 10)

	now := time.Now()
	// a1 历史收益高，但本月无归因；a2 收益全部在本月
	createRankReferral(env, a1.ID, "PERI-OLD-1", models.ReferralStatusApproved, 900, now.AddDate(0, -2, 0))
	createRankReferral(env, a2.ID, "PERI-NEW-1", models.ReferralStatusApproved, 30, now)
	createRankReferral(env, a2.ID, "PERI-NEW-2", models.ReferralStatusPaid, 20, now)
	// 本月的 pending 佣金计入归因数，不计入收益
	createRankReferral(env, a2.ID, "PERI-NEW-3", models.ReferralStatusPending, 999, now)

	snapshot, err := svc.Rank(ctx, MetricEarnings, PeriodMonthly, 10, true)
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, snapshot.Period)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "PERI002", snapshot.Entries[0].Code)
	require.NotNil(t, snapshot.Entries[0].TotalEarnings)
	assert.Equal(t, 50.0, *snapshot.Entries[0].TotalEarnings)
	assert.Equal(t, int64(3), snapshot.Entries[0].TotalReferrals)
}

func TestLeaderboardService_Rank_WeeklyByReferrals(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)
	ctx := context.Background()

	a1 := createActiveAffiliate(env.db, "WEEK001", 10)
	a2 := createActiveAffiliate(env.db, "WEEK002", 10)

	now := time.Now()
	createRankReferral(env, a1.ID, "WEEK-1", models.ReferralStatusApproved, 10, now)
	createRankReferral(env, a1.ID, "WEEK-2", models.ReferralStatusPending, 10, now)
	createRankReferral(env, a2.ID, "WEEK-3", models.ReferralStatusApproved, 500, now.AddDate(0, 0, -14))

	snapshot, err := svc.Rank(ctx, MetricReferrals, PeriodWeekly, 10, true)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "WEEK001", snapshot.Entries[0].Code)
	assert.Equal(t, int64(2), snapshot.Entries[0].TotalReferrals)
}

func TestLeaderboardService_Rank_InvalidPeriod(t *testing.T) {
	_, svc, _ := setupLeaderboardTest(t)

	_, err := svc.Rank(context.Background(), MetricEarnings, "yearly", 10, true)
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestLeaderboardService_Rank_EmptyPeriodDefaultsToAll(t *testing.T) {
	env, svc, _ := setupLeaderboardTest(t)

	a := createActiveAffiliate(env.db, "DFLT001", 10)
	setAffiliateTotals(env, a.ID, 100, 1)

	snapshot, err := svc.Rank(context.Background(), MetricEarnings, "", 10, true)
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, snapshot.Period)
	assert.Len(t, snapshot.Entries, 1)
}

// ==================== 快照缓存测试 ====================

func TestLeaderboardService_SnapshotCached(t *testing.T) {
	env, svc, mr := setupLeaderboardTest(t)
	ctx := context.Background()

	a := createActiveAffiliate(env.db, "CACH001", 10)
	setAffiliateTotals(env, a.ID, 100, 1)

	first, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	// 数据变了但快照仍在有效期内
	setAffiliateTotals(env, a.ID, 500, 1)
	cached, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 100.0, *cached.Entries[0].TotalEarnings)

	// 过期后重建
	mr.FastForward(DefaultLeaderboardTTL + time.Second)
	rebuilt, err := svc.Rank(ctx, MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 500.0, *rebuilt.Entries[0].TotalEarnings)
}

func TestLeaderboardService_Refresh(t *testing.T) {
	env, svc, mr := setupLeaderboardTest(t)
	ctx := context.Background()

	a := createActiveAffiliate(env.db, "RFSH001", 10)
	setAffiliateTotals(env, a.ID, 100, 1)

	require.NoError(t, svc.Refresh(ctx))
	assert.True(t, mr.Exists("leaderboard:earnings"))
	assert.True(t, mr.Exists("leaderboard:referrals"))
	assert.True(t, mr.Exists("leaderboard:earnings:monthly"))
	assert.True(t, mr.Exists("leaderboard:earnings:weekly"))
	assert.True(t, mr.Exists("leaderboard:referrals:monthly"))
	assert.True(t, mr.Exists("leaderboard:referrals:weekly"))
}

func TestLeaderboardService_NilRedis(t *testing.T) {
	env := newTestEnv(t)
	a := createActiveAffiliate(env.db, "NORD001", 10)
	setAffiliateTotals(env, a.ID, 100, 1)

	// 无 Redis 时每次实时构建
	svc := NewLeaderboardService(env.affiliateRepo, env.referralRepo, nil)
	snapshot, err := svc.Rank(context.Background(), MetricEarnings, PeriodAll, 10, true)
	require.NoError(t, err)
	assert.Len(t, snapshot.Entries, 1)
}
