package affiliate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/affiliate-backend/internal/common/cache"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// 排行榜指标
const (
	MetricEarnings  = "earnings"
	MetricReferrals = "referrals"
)

// 排行榜时段
const (
	PeriodAll     = "all"     // 全部（基于档案累计值）
	PeriodMonthly = "monthly" // 本月（自然月，基于归因记录聚合）
	PeriodWeekly  = "weekly"  // 本周（周一起算，基于归因记录聚合）
)

// 排行榜默认参数
const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
	DefaultLeaderboardTTL  = 5 * time.Minute
)

// RankedAffiliate 排行榜条目
// 名次为密集排名：并列者同名次，下一名次紧随其后
type RankedAffiliate struct {
	Rank           int      `json:"rank"`
	AffiliateID    int64    `json:"affiliate_id"`
	Code           string   `json:"code"`
	TotalEarnings  *float64 `json:"total_earnings,omitempty"` // 公开调用时脱敏为空
	TotalReferrals int64    `json:"total_referrals"`
}

// Snapshot 排行榜快照
type Snapshot struct {
	Metric      string            `json:"metric"`
	Period      string            `json:"period"`
	GeneratedAt time.Time         `json:"generated_at"`
	Entries     []RankedAffiliate `json:"entries"`
}

// LeaderboardService 排行榜服务
// 只读派生视图：全时段读推广员档案累计值，月/周时段按归因记录聚合；
// Redis 快照只是缓存层，丢失时回退实时查询，不构成正确性依赖
type LeaderboardService struct {
	affiliateRepo *repository.AffiliateRepository
	referralRepo  *repository.ReferralRepository
	rdb           *redis.Client
	ttl           time.Duration
}

// NewLeaderboardService 创建排行榜服务
func NewLeaderboardService(affiliateRepo *repository.AffiliateRepository, referralRepo *repository.ReferralRepository, rdb *redis.Client) *LeaderboardService {
	return &LeaderboardService{
		affiliateRepo: affiliateRepo,
		referralRepo:  referralRepo,
		rdb:           rdb,
		ttl:           DefaultLeaderboardTTL,
	}
}

// SetTTL 设置快照有效期
func (s *LeaderboardService) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Rank 获取排行榜
// period 为空时取全时段；revealEarnings 为 false 时隐去收益金额（公开调用）
func (s *LeaderboardService) Rank(ctx context.Context, metric, period string, limit int, revealEarnings bool) (*Snapshot, error) {
	if metric != MetricEarnings && metric != MetricReferrals {
		return nil, errors.ErrInvalidParams.WithMessage("无效的排行指标")
	}
	if period == "" {
		period = PeriodAll
	}
	if period != PeriodAll && period != PeriodMonthly && period != PeriodWeekly {
		return nil, errors.ErrInvalidParams.WithMessage("无效的排行时段")
	}
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	snapshot, err := s.loadSnapshot(ctx, metric, period)
	if err != nil {
		metrics.RecordCacheMissGlobal("leaderboard")
		snapshot, err = s.buildSnapshot(ctx, metric, period)
		if err != nil {
			return nil, err
		}
		s.storeSnapshot(ctx, snapshot)
	} else {
		metrics.RecordCacheHitGlobal("leaderboard")
	}

	result := &Snapshot{
		Metric:      snapshot.Metric,
		Period:      snapshot.Period,
		GeneratedAt: snapshot.GeneratedAt,
	}
	for _, entry := range snapshot.Entries {
		if len(result.Entries) >= limit {
			break
		}
		if !revealEarnings {
			entry.TotalEarnings = nil
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// Refresh 重建并写入各指标、各时段的快照
// 调度器周期调用
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	for _, metric := range []string{MetricEarnings, MetricReferrals} {
		for _, period := range []string{PeriodAll, PeriodMonthly, PeriodWeekly} {
			snapshot, err := s.buildSnapshot(ctx, metric, period)
			if err != nil {
				return err
			}
			s.storeSnapshot(ctx, snapshot)
		}
	}
	return nil
}

// periodStart 时段起点
// 月为自然月首日零点，周为本周一零点
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		day := now.AddDate(0, 0, -(weekday - 1))
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

// buildSnapshot 实时构建排行榜快照
func (s *LeaderboardService) buildSnapshot(ctx context.Context, metric, period string) (*Snapshot, error) {
	snapshot := &Snapshot{
		Metric:      metric,
		Period:      period,
		GeneratedAt: time.Now(),
	}

	if period == PeriodAll {
		var affiliates []*models.Affiliate
		var err error
		switch metric {
		case MetricReferrals:
			affiliates, err = s.affiliateRepo.TopByReferrals(ctx, MaxLeaderboardSize)
		default:
			affiliates, err = s.affiliateRepo.TopByEarnings(ctx, MaxLeaderboardSize)
		}
		if err != nil {
			return nil, err
		}

		rank := 0
		var prev float64
		for i, a := range affiliates {
			value := a.TotalEarnings
			if metric == MetricReferrals {
				value = float64(a.TotalReferrals)
			}
			if i == 0 || value != prev {
				rank++
				prev = value
			}
			earnings := a.TotalEarnings
			snapshot.Entries = append(snapshot.Entries, RankedAffiliate{
				Rank:           rank,
				AffiliateID:    a.ID,
				Code:           a.Code,
				TotalEarnings:  &earnings,
				TotalReferrals: a.TotalReferrals,
			})
		}
		return snapshot, nil
	}

	rows, err := s.referralRepo.RankSince(ctx, periodStart(period, snapshot.GeneratedAt), metric == MetricEarnings, MaxLeaderboardSize)
	if err != nil {
		return nil, err
	}

	rank := 0
	var prev float64
	for i, row := range rows {
		value := row.Earnings
		if metric == MetricReferrals {
			value = float64(row.Referrals)
		}
		if i == 0 || value != prev {
			rank++
			prev = value
		}
		earnings := row.Earnings
		snapshot.Entries = append(snapshot.Entries, RankedAffiliate{
			Rank:           rank,
			AffiliateID:    row.AffiliateID,
			Code:           row.Code,
			TotalEarnings:  &earnings,
			TotalReferrals: row.Referrals,
		})
	}
	return snapshot, nil
}

func (s *LeaderboardService) snapshotKey(metric, period string) string {
	if period == PeriodAll {
		return cache.BuildKey(cache.KeyPrefixLeaderboard, metric)
	}
	return cache.BuildKey(cache.KeyPrefixLeaderboard, metric, period)
}

// loadSnapshot 读取 Redis 快照
func (s *LeaderboardService) loadSnapshot(ctx context.Context, metric, period string) (*Snapshot, error) {
	if s.rdb == nil {
		return nil, redis.Nil
	}
	data, err := s.rdb.Get(ctx, s.snapshotKey(metric, period)).Bytes()
	if err != nil {
		return nil, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// storeSnapshot 写入 Redis 快照，失败只记日志
func (s *LeaderboardService) storeSnapshot(ctx context.Context, snapshot *Snapshot) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, s.snapshotKey(snapshot.Metric, snapshot.Period), data, s.ttl).Err(); err != nil {
		logger.GetLogger().Warn("排行榜快照写入失败",
			logger.String("metric", snapshot.Metric),
			logger.String("period", snapshot.Period),
			logger.Err(err),
		)
	}
}
