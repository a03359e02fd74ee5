package affiliate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// ==================== 推广物料测试 ====================

func TestInviteService_GetInviteInfo(t *testing.T) {
	env := newTestEnv(t)
	affiliate := createActiveAffiliate(env.db, "INVT001", 10)

	svc := NewInviteService(env.affiliateRepo, "https://promo.example.com")
	info, err := svc.GetInviteInfo(context.Background(), affiliate.ID)
	require.NoError(t, err)

	assert.Equal(t, "INVT001", info.Code)
	assert.Equal(t, "https://promo.example.com/t/INVT001", info.InviteLink)
	assert.True(t, strings.HasPrefix(info.QRCode, "data:image/png;base64,"))
}

func TestInviteService_GetInviteInfo_NotActive(t *testing.T) {
	env := newTestEnv(t)
	user := createServiceTestUser(env.db)
	affiliate := createServiceTestAffiliate(env.db, user.ID, "INVT002", models.AffiliateStatusPending, 10)

	svc := NewInviteService(env.affiliateRepo, "")
	_, err := svc.GetInviteInfo(context.Background(), affiliate.ID)
	assert.ErrorIs(t, err, errors.ErrAffiliateNotActive)
}

func TestInviteService_QRCodePNG(t *testing.T) {
	env := newTestEnv(t)
	affiliate := createActiveAffiliate(env.db, "INVT003", 10)

	svc := NewInviteService(env.affiliateRepo, "")
	png, err := svc.QRCodePNG(context.Background(), affiliate.ID)
	require.NoError(t, err)
	// PNG 魔数
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestInviteService_DefaultBaseURL(t *testing.T) {
	env := newTestEnv(t)
	svc := NewInviteService(env.affiliateRepo, "")
	assert.Equal(t, "https://app.example.com/t/ABC", svc.InviteLink("ABC"))
}
