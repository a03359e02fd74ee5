// Package repository 推广访问仓储单元测试
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

func setupVisitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Visit{}, &models.Affiliate{})
	require.NoError(t, err)

	return db
}

func newTestVisit(affiliateID int64, visitorKey string) *models.Visit {
	return &models.Visit{
		AffiliateID: &affiliateID,
		Code:        "ACME10",
		VisitorKey:  visitorKey,
		LandingPage: "/pricing",
		Device:      models.DeviceDesktop,
	}
}

func TestVisitRepository_Create(t *testing.T) {
	db := setupVisitTestDB(t)
	repo := NewVisitRepository(db)
	ctx := context.Background()

	visit := newTestVisit(1, "visitor-a")
	err := repo.Create(ctx, visit)
	require.NoError(t, err)
	assert.NotZero(t, visit.ID)
	assert.False(t, visit.Converted)
}

func TestVisitRepository_GetLatestByVisitor(t *testing.T) {
	db := setupVisitTestDB(t)
	repo := NewVisitRepository(db)
	ctx := context.Background()

	first := newTestVisit(1, "visitor-a")
	db.Create(first)
	second := newTestVisit(1, "visitor-a")
	second.LandingPage = "/checkout"
	db.Create(second)

	found, err := repo.GetLatestByVisitor(ctx, 1, "visitor-a")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
	assert.Equal(t, "/checkout", found.LandingPage)
}

func TestVisitRepository_GetLatestByVisitor_NotFound(t *testing.T) {
	db := setupVisitTestDB(t)
	repo := NewVisitRepository(db)
	ctx := context.Background()

	_, err := repo.GetLatestByVisitor(ctx, 1, "visitor-x")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestVisitRepository_MarkConverted(t *testing.T) {
	db := setupVisitTestDB(t)
	repo := NewVisitRepository(db)
	ctx := context.Background()

	visit := newTestVisit(1, "visitor-a")
	db.Create(visit)

	err := repo.MarkConverted(ctx, visit.ID)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, visit.ID)
	require.NoError(t, err)
	assert.True(t, found.Converted)
}

func TestVisitRepository_Counts(t *testing.T) {
	db := setupVisitTestDB(t)
	repo := NewVisitRepository(db)
	ctx := context.Background()

	db.Create(newTestVisit(1, "visitor-a"))
	converted := newTestVisit(1, "visitor-b")
	converted.Converted = true
	db.Create(converted)
	db.Create(newTestVisit(2, "visitor-c"))

	count, err := repo.CountByAffiliate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountConvertedByAffiliate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountByAffiliateSince(ctx, 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestVisitRepository_DailyCounts(t *testing.T) {
	db := setupVisitTestDB(t)
	repo := NewVisitRepository(db)
	ctx := context.Background()

	db.Create(newTestVisit(1, "visitor-a"))
	db.Create(newTestVisit(1, "visitor-b"))

	counts, err := repo.DailyCounts(ctx, 1, time.Now().Add(-24*time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	for _, c := range counts {
		assert.Equal(t, int64(2), c)
	}
}
