// Package cache Redis 缓存模块单元测试
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
)

// setupMiniRedis 创建 miniredis 测试实例
func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// setupTestRedis 初始化测试 Redis 客户端
func setupTestRedis(t *testing.T, s *miniredis.Miniredis) {
	rdb = redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
		rdb = nil
	})
}

// ==================== Init 函数测试 ====================

func TestInit_Success(t *testing.T) {
	s := setupMiniRedis(t)

	cfg := &config.RedisConfig{
		Host:         s.Host(),
		Port:         s.Server().Addr().Port,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5,
		ReadTimeout:  3,
		WriteTimeout: 3,
	}

	client, err := Init(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, client)
	t.Cleanup(func() {
		_ = Close()
	})
}

func TestInit_ConnectionFailed(t *testing.T) {
	cfg := &config.RedisConfig{
		Host:        "invalid-host",
		Port:        9999,
		DialTimeout: 1,
	}

	client, err := Init(cfg)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect redis")
}

// ==================== 基础操作测试 ====================

func TestSetGet(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	type payload struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	require.NoError(t, Set(ctx, "affiliate:1", payload{ID: 1, Name: "alice"}, time.Minute))

	var got payload
	require.NoError(t, Get(ctx, "affiliate:1", &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "alice", got.Name)
}

func TestGet_Miss(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)

	var dest map[string]interface{}
	err := Get(context.Background(), "missing", &dest)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestSetGetString(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	require.NoError(t, SetString(ctx, "code:ACME10", "42", time.Minute))
	v, err := GetString(ctx, "code:ACME10")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestDeleteExists(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	require.NoError(t, SetString(ctx, "k1", "v1", 0))

	exists, err := Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, Delete(ctx, "k1"))

	exists, err = Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExpireAndTTL(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	require.NoError(t, SetString(ctx, "k", "v", 0))
	require.NoError(t, Expire(ctx, "k", 10*time.Second))

	ttl, err := TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestIncr(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	n, err := Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = IncrBy(ctx, "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestSetNX(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	ok, err := SetNX(ctx, "lock:stats:1", "holder", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = SetNX(ctx, "lock:stats:1", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "已被占用的锁不应再次获取成功")
}

func TestHashOperations(t *testing.T) {
	s := setupMiniRedis(t)
	setupTestRedis(t, s)
	ctx := context.Background()

	require.NoError(t, HSet(ctx, "affiliate:stats:1", "visits", "10", "conversions", "2"))

	v, err := HGet(ctx, "affiliate:stats:1", "visits")
	require.NoError(t, err)
	assert.Equal(t, "10", v)

	all, err := HGetAll(ctx, "affiliate:stats:1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// ==================== BuildKey 测试 ====================

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "affiliate:1", BuildKey(KeyPrefixAffiliate, "1"))
	assert.Equal(t, "leaderboard:earnings:monthly", BuildKey(KeyPrefixLeaderboard, "earnings", "monthly"))
	assert.Equal(t, "lock:stats", BuildKey(KeyPrefixLock, "stats"))
}
