// Package repository 操作日志仓储单元测试
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

func setupOperationLogTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.OperationLog{}, &models.Admin{})
	require.NoError(t, err)

	return db
}

func TestOperationLogRepository_Create(t *testing.T) {
	db := setupOperationLogTestDB(t)
	repo := NewOperationLogRepository(db)
	ctx := context.Background()

	targetType := "referral"
	targetID := int64(7)
	log := &models.OperationLog{
		AdminID:    1,
		Module:     "referral",
		Action:     "review",
		TargetType: &targetType,
		TargetID:   &targetID,
		BeforeData: models.JSON{"status": "pending"},
		AfterData:  models.JSON{"status": "approved"},
		IP:         "127.0.0.1",
	}

	err := repo.Create(ctx, log)
	require.NoError(t, err)
	assert.NotZero(t, log.ID)

	found, err := repo.GetByID(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", found.AfterData["status"])
}

func TestOperationLogRepository_List_Filters(t *testing.T) {
	db := setupOperationLogTestDB(t)
	repo := NewOperationLogRepository(db)
	ctx := context.Background()

	db.Create(&models.OperationLog{AdminID: 1, Module: "referral", Action: "review", IP: "127.0.0.1"})
	db.Create(&models.OperationLog{AdminID: 1, Module: "withdrawal", Action: "process", IP: "127.0.0.1"})
	db.Create(&models.OperationLog{AdminID: 2, Module: "referral", Action: "review", IP: "127.0.0.1"})

	_, total, err := repo.List(ctx, 0, 10, map[string]interface{}{
		"module": "referral",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.List(ctx, 0, 10, map[string]interface{}{
		"admin_id": int64(1),
		"module":   "withdrawal",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestOperationLogRepository_ListByTarget(t *testing.T) {
	db := setupOperationLogTestDB(t)
	repo := NewOperationLogRepository(db)
	ctx := context.Background()

	targetType := "withdrawal"
	targetID := int64(9)
	db.Create(&models.OperationLog{AdminID: 1, Module: "withdrawal", Action: "process", TargetType: &targetType, TargetID: &targetID, IP: "127.0.0.1"})
	db.Create(&models.OperationLog{AdminID: 2, Module: "withdrawal", Action: "complete", TargetType: &targetType, TargetID: &targetID, IP: "127.0.0.1"})
	db.Create(&models.OperationLog{AdminID: 1, Module: "referral", Action: "review", IP: "127.0.0.1"})

	logs, total, err := repo.ListByTarget(ctx, "withdrawal", 9, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	// 最近的操作在前
	assert.Equal(t, "complete", logs[0].Action)
}

func TestOperationLogRepository_CountByAdmin(t *testing.T) {
	db := setupOperationLogTestDB(t)
	repo := NewOperationLogRepository(db)
	ctx := context.Background()

	db.Create(&models.OperationLog{AdminID: 1, Module: "referral", Action: "review", IP: "127.0.0.1"})
	db.Create(&models.OperationLog{AdminID: 1, Module: "referral", Action: "review", IP: "127.0.0.1"})

	count, err := repo.CountByAdmin(ctx, 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestOperationLogRepository_DeleteBefore(t *testing.T) {
	db := setupOperationLogTestDB(t)
	repo := NewOperationLogRepository(db)
	ctx := context.Background()

	db.Create(&models.OperationLog{AdminID: 1, Module: "referral", Action: "review", IP: "127.0.0.1"})
	db.Create(&models.OperationLog{AdminID: 1, Module: "referral", Action: "review", IP: "127.0.0.1"})

	deleted, err := repo.DeleteBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, total, err := repo.List(ctx, 0, 10, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
