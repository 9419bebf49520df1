package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Config Airtable 配置
type Config struct {
	APIKey  string
	BaseID  string
	Table   string
	BaseURL string // 默认 https://api.airtable.com/v0
	Timeout time.Duration
}

// APIError Airtable 非成功响应
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Airtable API 错误 (HTTP %d, %s): %s", e.StatusCode, e.Type, e.Message)
}

// Client Airtable REST 客户端
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient 创建客户端
// Airtable 限制每个 base 每秒 5 次请求
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.airtable.com/v0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.APIKey).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
			}),
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
}

// ListOptions 列表参数
type ListOptions struct {
	PageSize int
	Offset   string
	View     string
	Filter   string // filterByFormula
	Fields   []string
}

// RecordPage 一页记录，Offset 为空表示最后一页
type RecordPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// ListRecords 获取一页记录
func (c *Client) ListRecords(ctx context.Context, opts ListOptions) (*RecordPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	if opts.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Offset != "" {
		params.Set("offset", opts.Offset)
	}
	if opts.View != "" {
		params.Set("view", opts.View)
	}
	if opts.Filter != "" {
		params.Set("filterByFormula", opts.Filter)
	}
	for _, f := range opts.Fields {
		params.Add("fields[]", f)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetPathParams(map[string]string{"base": c.cfg.BaseID, "table": c.cfg.Table}).
		Get("/{base}/{table}")
	if err != nil {
		return nil, fmt.Errorf("请求 Airtable 失败: %w", err)
	}

	if !resp.IsSuccess() {
		var body struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		return nil, &APIError{StatusCode: resp.StatusCode(), Type: body.Error.Type, Message: body.Error.Message}
	}

	var page RecordPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("解析 Airtable 响应失败: %w", err)
	}
	return &page, nil
}

// ListAll 按 offset 游标遍历全部记录
// maxPages 为翻页安全上限
func (c *Client) ListAll(ctx context.Context, opts ListOptions, maxPages int) ([]Record, error) {
	var all []Record
	for page := 0; page < maxPages; page++ {
		result, err := c.ListRecords(ctx, opts)
		if err != nil {
			return all, err
		}
		all = append(all, result.Records...)
		if result.Offset == "" {
			return all, nil
		}
		opts.Offset = result.Offset
	}
	return all, nil
}
