package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/vendors/zoho"
)

// ==================== 令牌持久化 ====================

// DBTokenStore 将 Zoho 令牌持久化到 vendor_tokens 表
type DBTokenStore struct {
	repo   repository.TokenRepository
	vendor string
}

// NewDBTokenStore 创建数据库令牌存储
func NewDBTokenStore(repo repository.TokenRepository) *DBTokenStore {
	return &DBTokenStore{repo: repo, vendor: model.VendorZoho}
}

// Load 无记录或已标记失效时返回 nil, nil，由客户端重新刷新
func (s *DBTokenStore) Load(ctx context.Context) (*zoho.Token, error) {
	t, err := s.repo.Get(ctx, s.vendor)
	if err != nil {
		return nil, fmt.Errorf("读取令牌失败: %w", err)
	}
	if t == nil || t.Status == model.TokenStatusInvalid || t.AccessToken == "" {
		return nil, nil
	}
	return &zoho.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	}, nil
}

func (s *DBTokenStore) Save(ctx context.Context, token *zoho.Token) error {
	return s.repo.Save(ctx, &model.VendorToken{
		Vendor:       s.vendor,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		Status:       model.TokenStatusValid,
	})
}

func (s *DBTokenStore) MarkInvalid(ctx context.Context, reason string) error {
	logrus.WithField("vendor", s.vendor).Warnf("[TokenStore] 令牌失效: %s", reason)
	return s.repo.MarkInvalid(ctx, s.vendor, reason)
}

// ==================== 令牌保活 ====================

// TokenRefresher 可提前刷新令牌的客户端
type TokenRefresher interface {
	EnsureToken(ctx context.Context, within time.Duration) error
}

// TokenService 令牌保活
type TokenService struct {
	client TokenRefresher
	within time.Duration
}

// NewTokenService within 为提前刷新窗口
func NewTokenService(client TokenRefresher, within time.Duration) *TokenService {
	if within <= 0 {
		within = 10 * time.Minute
	}
	return &TokenService{client: client, within: within}
}

// KeepAlive 令牌将在窗口内过期时刷新
func (s *TokenService) KeepAlive(ctx context.Context) error {
	if err := s.client.EnsureToken(ctx, s.within); err != nil {
		return fmt.Errorf("刷新 Zoho 令牌失败: %w", err)
	}
	return nil
}
