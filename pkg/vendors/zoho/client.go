package zoho

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config Zoho Inventory 配置
type Config struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	OrganizationID string
	AccountsURL    string // e.g. https://accounts.zoho.com
	APIBaseURL     string // e.g. https://www.zohoapis.com/inventory/v1
	RateLimit      float64
	Timeout        time.Duration
}

// Client Zoho Inventory API 客户端
// 由入口显式创建并注入，不使用全局单例
type Client struct {
	cfg     Config
	http    *resty.Client
	tokens  *tokenSource
	limiter *rate.Limiter
}

// Option 客户端选项
type Option func(*Client)

// WithClock 替换时钟 (测试用)
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.tokens.now = now }
}

// WithRetry 配置 429/5xx 重试
func WithRetry(count int, wait time.Duration) Option {
	return func(c *Client) {
		c.http.SetRetryCount(count).SetRetryWaitTime(wait)
	}
}

// NewClient 创建客户端
func NewClient(cfg Config, store TokenStore, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}

	httpClient := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	c := &Client{
		cfg:  cfg,
		http: httpClient,
		tokens: &tokenSource{
			http:         resty.New().SetBaseURL(cfg.AccountsURL).SetTimeout(cfg.Timeout),
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			refreshToken: cfg.RefreshToken,
			store:        store,
			now:          time.Now,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessToken 返回可用访问令牌，临近过期时自动刷新
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.tokens.accessToken(ctx, false)
}

// EnsureToken 令牌在 within 内过期时提前刷新 (定时保活)
func (c *Client) EnsureToken(ctx context.Context, within time.Duration) error {
	_, err := c.tokens.ensure(ctx, within, false)
	return err
}

// ==================== 请求封装 ====================

type request struct {
	method string
	path   string
	query  map[string]string
	body   interface{}
}

// do 发送请求并解析响应
// 401 时强制刷新令牌并重试一次，再次 401 返回 ErrUnauthorized
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		token, err := c.tokens.accessToken(ctx, attempt > 0)
		if err != nil {
			return err
		}

		r := c.http.R().
			SetContext(ctx).
			SetHeader("Authorization", "Zoho-oauthtoken "+token).
			SetQueryParam("organization_id", c.cfg.OrganizationID).
			SetQueryParams(req.query)
		if req.body != nil {
			r.SetHeader("Content-Type", "application/json").SetBody(req.body)
		}

		resp, err := r.Execute(req.method, req.path)
		if err != nil {
			return fmt.Errorf("请求 Zoho %s %s 失败: %w", req.method, req.path, err)
		}

		if resp.StatusCode() == http.StatusUnauthorized {
			if attempt == 0 {
				logrus.WithField("path", req.path).Warn("[ZohoClient] 收到 401，刷新令牌后重试")
				continue
			}
			return fmt.Errorf("%w: %s %s", ErrUnauthorized, req.method, req.path)
		}

		return decode(resp, out)
	}
	return ErrUnauthorized
}

func decode(resp *resty.Response, out interface{}) error {
	var env envelope
	_ = json.Unmarshal(resp.Body(), &env)

	if !resp.IsSuccess() {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return &APIError{StatusCode: resp.StatusCode(), Code: env.Code, Message: msg}
	}
	if env.Code != 0 {
		return &APIError{StatusCode: resp.StatusCode(), Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// IsAuthError 是否为认证类错误 (需中止整个同步)
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTokenRefresh)
}
