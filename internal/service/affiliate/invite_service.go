package affiliate

import (
	"context"
	"fmt"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/qrcode"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// InviteService 推广物料服务
// 生成推广链接与二维码，供推广员分发
type InviteService struct {
	affiliateRepo *repository.AffiliateRepository
	qr            *qrcode.Generator
	baseURL       string
}

// NewInviteService 创建推广物料服务
func NewInviteService(affiliateRepo *repository.AffiliateRepository, baseURL string) *InviteService {
	if baseURL == "" {
		baseURL = "https://app.example.com"
	}
	return &InviteService{
		affiliateRepo: affiliateRepo,
		qr:            qrcode.NewGenerator(qrcode.WithSize(256)),
		baseURL:       baseURL,
	}
}

// InviteInfo 推广物料
type InviteInfo struct {
	Code       string `json:"code"`        // 推广码
	InviteLink string `json:"invite_link"` // 推广链接
	QRCode     string `json:"qrcode"`      // 二维码（data URL）
}

// GetInviteInfo 生成推广员的推广物料
func (s *InviteService) GetInviteInfo(ctx context.Context, affiliateID int64) (*InviteInfo, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		return nil, errors.ErrAffiliateNotFound
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return nil, errors.ErrAffiliateNotActive
	}

	link := s.InviteLink(affiliate.Code)
	dataURL, err := s.qr.GenerateDataURL(link)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	return &InviteInfo{
		Code:       affiliate.Code,
		InviteLink: link,
		QRCode:     dataURL,
	}, nil
}

// InviteLink 拼接推广链接
func (s *InviteService) InviteLink(code string) string {
	return fmt.Sprintf("%s/t/%s", s.baseURL, code)
}

// QRCodePNG 生成推广链接二维码的 PNG 字节
func (s *InviteService) QRCodePNG(ctx context.Context, affiliateID int64) ([]byte, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		return nil, errors.ErrAffiliateNotFound
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return nil, errors.ErrAffiliateNotActive
	}
	return s.qr.GeneratePNG(s.InviteLink(affiliate.Code))
}
