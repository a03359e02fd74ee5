package affiliate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// setEarnings 直接写入推广员累计收益，并补一条等额已通过佣金保证重算一致
func setEarnings(t *testing.T, env *testEnv, affiliate *models.Affiliate, amount float64) {
	t.Helper()
	referral := &models.Referral{
		AffiliateID:      affiliate.ID,
		OrderNo:          "SEED-" + affiliate.Code,
		OrderAmount:      amount * 10,
		CommissionRate:   10,
		CommissionAmount: amount,
		ConversionType:   models.ConversionTypePurchase,
		Status:           models.ReferralStatusApproved,
	}
	require.NoError(t, env.db.Create(referral).Error)
	require.NoError(t, env.stats.Recompute(context.Background(), affiliate.ID))
}

func withdrawRequest(affiliateID int64, amount float64) *ApplyWithdrawRequest {
	return &ApplyWithdrawRequest{
		AffiliateID:   affiliateID,
		Amount:        amount,
		PayoutMethod:  models.PayoutMethodAlipay,
		PayoutAccount: "pay@example.com",
	}
}

// ==================== 申请测试 ====================

func TestWithdrawService_Apply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "WDRW001", 10)
	setEarnings(t, env, affiliate, 200)

	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)
	assert.Equal(t, 100.0, withdrawal.Amount)
	assert.True(t, strings.HasPrefix(withdrawal.WithdrawalNo, "W"))
	// 收款账号密文落库
	assert.NotEqual(t, "pay@example.com", withdrawal.PayoutAccount)

	assert.Eventually(t, func() bool {
		return env.notifier.withdrawalCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWithdrawService_Apply_BelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	affiliate := createActiveAffiliate(env.db, "WDRW002", 10)
	setEarnings(t, env, affiliate, 200)

	_, err := env.withdrawals.Apply(context.Background(), withdrawRequest(affiliate.ID, 5))
	assert.ErrorIs(t, err, errors.ErrBelowMinimum)
}

func TestWithdrawService_Apply_InvalidMethod(t *testing.T) {
	env := newTestEnv(t)
	affiliate := createActiveAffiliate(env.db, "WDRW003", 10)
	setEarnings(t, env, affiliate, 200)

	_, err := env.withdrawals.Apply(context.Background(), &ApplyWithdrawRequest{
		AffiliateID:   affiliate.ID,
		Amount:        50,
		PayoutMethod:  "cash",
		PayoutAccount: "x",
	})
	assert.ErrorIs(t, err, errors.ErrInvalidPayoutMethod)
}

func TestWithdrawService_Apply_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	affiliate := createActiveAffiliate(env.db, "WDRW004", 10)
	setEarnings(t, env, affiliate, 100)

	_, err := env.withdrawals.Apply(context.Background(), withdrawRequest(affiliate.ID, 150))
	assert.ErrorIs(t, err, errors.ErrInsufficientBalance)
}

func TestWithdrawService_Apply_ReservesInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "WDRW005", 10)
	setEarnings(t, env, affiliate, 150)

	// 第一笔 100 预留后，可用余额只剩 50
	_, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	require.NoError(t, err)

	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	assert.ErrorIs(t, err, errors.ErrInsufficientBalance)

	// 剩余额度内仍可申请
	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	assert.NoError(t, err)
}

func TestWithdrawService_Apply_FailedReleasesReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "WDRW006", 10)
	setEarnings(t, env, affiliate, 100)

	first, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	require.NoError(t, err)

	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	require.ErrorIs(t, err, errors.ErrInsufficientBalance)

	// 打款失败释放预留，余额不减
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID: first.ID,
		NewStatus:    models.WithdrawalStatusFailed,
		ActorID:      1,
	})
	require.NoError(t, err)

	a, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.TotalEarnings)

	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	assert.NoError(t, err)
}

func TestWithdrawService_Apply_TooManyPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "WDRW007", 10)
	setEarnings(t, env, affiliate, 1000)
	env.withdrawals.SetConfig(10, 2)

	_, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	require.NoError(t, err)
	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	require.NoError(t, err)

	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	assert.ErrorIs(t, err, errors.ErrTooManyPending)
}

func TestWithdrawService_Apply_InactiveAffiliate(t *testing.T) {
	env := newTestEnv(t)
	user := createServiceTestUser(env.db)
	affiliate := createServiceTestAffiliate(env.db, user.ID, "WDRW008", models.AffiliateStatusSuspended, 10)

	_, err := env.withdrawals.Apply(context.Background(), withdrawRequest(affiliate.ID, 50))
	assert.ErrorIs(t, err, errors.ErrAffiliateNotActive)
}

// ==================== 处理测试 ====================

func TestWithdrawService_Process_CompleteFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "PROC001", 10)
	setEarnings(t, env, affiliate, 200)

	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 150))
	require.NoError(t, err)

	processing, err := env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID: withdrawal.ID,
		NewStatus:    models.WithdrawalStatusProcessing,
		ActorID:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusProcessing, processing.Status)
	assert.NotNil(t, processing.ProcessedAt)

	ref := "TXN-20260831-0001"
	completed, err := env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID:   withdrawal.ID,
		NewStatus:      models.WithdrawalStatusCompleted,
		TransactionRef: &ref,
		ActorID:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	// 完成后收益扣减恰好一次
	a, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, a.TotalEarnings)
}

func TestWithdrawService_Process_NoDoublePayout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "PROC002", 10)
	setEarnings(t, env, affiliate, 100)

	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 100))
	require.NoError(t, err)

	ref := "TXN-1"
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID: withdrawal.ID,
		NewStatus:    models.WithdrawalStatusProcessing,
		ActorID:      1,
	})
	require.NoError(t, err)
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID:   withdrawal.ID,
		NewStatus:      models.WithdrawalStatusCompleted,
		TransactionRef: &ref,
		ActorID:        1,
	})
	require.NoError(t, err)

	// 终态提现再次完成被拒绝，余额不会被扣两次
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID:   withdrawal.ID,
		NewStatus:      models.WithdrawalStatusCompleted,
		TransactionRef: &ref,
		ActorID:        1,
	})
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	a, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.TotalEarnings)
}

func TestWithdrawService_Process_CompleteRequiresRef(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "PROC003", 10)
	setEarnings(t, env, affiliate, 100)

	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	require.NoError(t, err)
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID: withdrawal.ID,
		NewStatus:    models.WithdrawalStatusProcessing,
		ActorID:      1,
	})
	require.NoError(t, err)

	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID: withdrawal.ID,
		NewStatus:    models.WithdrawalStatusCompleted,
		ActorID:      1,
	})
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
}

func TestWithdrawService_Process_SkipProcessingIllegal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "PROC004", 10)
	setEarnings(t, env, affiliate, 100)

	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	require.NoError(t, err)

	ref := "TXN-2"
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID:   withdrawal.ID,
		NewStatus:      models.WithdrawalStatusCompleted,
		TransactionRef: &ref,
		ActorID:        1,
	})
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestWithdrawService_Process_PermissionDenied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "PROC005", 10)
	setEarnings(t, env, affiliate, 100)

	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	require.NoError(t, err)

	aes := env.withdrawals.aes
	denied := NewWithdrawService(env.withdrawalRepo, env.affiliateRepo, env.stats, denyAllAuthorizer{}, nil, aes, env.db)
	_, err = denied.Process(ctx, &ProcessRequest{
		WithdrawalID: withdrawal.ID,
		NewStatus:    models.WithdrawalStatusProcessing,
		ActorID:      2,
	})
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
}

// ==================== 全链路测试 ====================

// TestWithdrawService_EndToEnd 覆盖从归因到提现清零的完整生命周期
func TestWithdrawService_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	affiliate := createActiveAffiliate(env.db, "ACME10", 10)

	// 访问 → 下单归因
	_, err := env.attribution.RecordVisit(ctx, &RecordVisitRequest{
		Code:       "ACME10",
		VisitorKey: "visitor-e2e",
	})
	require.NoError(t, err)

	referral, err := env.attribution.Attribute(ctx, &AttributeRequest{
		Code:           "ACME10",
		OrderNo:        "ORD-E2E",
		OrderAmount:    500,
		ConversionType: models.ConversionTypePurchase,
		VisitorKey:     "visitor-e2e",
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, referral.CommissionAmount)

	// 审核通过 → 收益入账
	_, err = env.referrals.Approve(ctx, referral.ID, 1, nil)
	require.NoError(t, err)

	a, err := env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, a.TotalEarnings)

	// 全额提现 → 完成 → 余额清零
	withdrawal, err := env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 50))
	require.NoError(t, err)

	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID: withdrawal.ID,
		NewStatus:    models.WithdrawalStatusProcessing,
		ActorID:      1,
	})
	require.NoError(t, err)

	ref := "TXN-E2E"
	_, err = env.withdrawals.Process(ctx, &ProcessRequest{
		WithdrawalID:   withdrawal.ID,
		NewStatus:      models.WithdrawalStatusCompleted,
		TransactionRef: &ref,
		ActorID:        1,
	})
	require.NoError(t, err)

	a, err = env.affiliateRepo.GetByID(ctx, affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.TotalEarnings)

	// 余额已清零，新的提现申请被拒
	_, err = env.withdrawals.Apply(ctx, withdrawRequest(affiliate.ID, 10))
	assert.ErrorIs(t, err, errors.ErrInsufficientBalance)
}
