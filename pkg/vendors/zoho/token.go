package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ExpiryBuffer 距离过期不足该时长即视为过期
const ExpiryBuffer = time.Minute

// Token 访问令牌
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenStore 令牌持久化，进程重启后复用
type TokenStore interface {
	// Load 无记录时返回 nil, nil
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, token *Token) error
	MarkInvalid(ctx context.Context, reason string) error
}

// MemoryTokenStore 进程内令牌存储
type MemoryTokenStore struct {
	mu      sync.Mutex
	token   *Token
	Invalid string
}

func (s *MemoryTokenStore) Load(context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, nil
	}
	t := *s.token
	return &t, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	s.token = &t
	s.Invalid = ""
	return nil
}

func (s *MemoryTokenStore) MarkInvalid(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Invalid = reason
	return nil
}

// tokenResponse OAuth 刷新响应
// 注意 Zoho 在刷新失败时也可能返回 200，需检查 error 字段
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	APIDomain   string `json:"api_domain"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}

// tokenSource 管理访问令牌的缓存与刷新
type tokenSource struct {
	mu           sync.Mutex
	http         *resty.Client
	clientID     string
	clientSecret string
	refreshToken string
	store        TokenStore
	cached       *Token
	loaded       bool
	now          func() time.Time
}

// accessToken 返回可用令牌
// force 为 true 时忽略缓存强制刷新 (401 重试场景)
func (s *tokenSource) accessToken(ctx context.Context, force bool) (string, error) {
	return s.ensure(ctx, ExpiryBuffer, force)
}

func (s *tokenSource) ensure(ctx context.Context, buffer time.Duration, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded && s.store != nil {
		stored, err := s.store.Load(ctx)
		if err != nil {
			logrus.WithError(err).Warn("[ZohoClient] 读取已保存令牌失败，将重新刷新")
		}
		s.cached = stored
		s.loaded = true
	}

	if !force && s.cached != nil && s.cached.AccessToken != "" && s.now().Add(buffer).Before(s.cached.ExpiresAt) {
		return s.cached.AccessToken, nil
	}

	token, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	s.cached = token
	return token.AccessToken, nil
}

func (s *tokenSource) refresh(ctx context.Context) (*Token, error) {
	refreshToken := s.refreshToken
	if s.cached != nil && s.cached.RefreshToken != "" {
		refreshToken = s.cached.RefreshToken
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"refresh_token": refreshToken,
			"client_id":     s.clientID,
			"client_secret": s.clientSecret,
			"grant_type":    "refresh_token",
		}).
		Post("/oauth/v2/token")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return nil, fmt.Errorf("%w: 解析响应失败 (HTTP %d): %v", ErrTokenRefresh, resp.StatusCode(), err)
	}
	if !resp.IsSuccess() || tr.Error != "" || tr.AccessToken == "" {
		reason := tr.Error
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode())
		}
		if s.store != nil {
			if markErr := s.store.MarkInvalid(ctx, reason); markErr != nil {
				logrus.WithError(markErr).Warn("[ZohoClient] 标记令牌失效失败")
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrTokenRefresh, reason)
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	token := &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(expiresIn),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, token); err != nil {
			// 保存失败不影响本次使用
			logrus.WithError(err).Warn("[ZohoClient] 保存令牌失败")
		}
	}
	logrus.WithField("expires_at", token.ExpiresAt.Format(time.RFC3339)).Info("[ZohoClient] 访问令牌已刷新")
	return token, nil
}
