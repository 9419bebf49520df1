package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"vipsmoke_erp/internal/metrics"
	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
)

// ErrEmptyAIResponse 模型未返回可用内容
var ErrEmptyAIResponse = errors.New("AI 返回为空")

// ==================== 配置 ====================

// AIConfig AI 服务配置
type AIConfig struct {
	APIKey         string
	TextModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

func (c *AIConfig) applyDefaults() {
	if c.TextModel == "" {
		c.TextModel = "gemini-2.0-flash"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-004"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// ==================== 抽象 ====================

// Attachment 随提示词发送的二进制内容 (PDF/图片)
type Attachment struct {
	MIMEType string
	Data     []byte
}

// LLMRequest 结构化生成请求
type LLMRequest struct {
	Purpose     string
	ProductID   *uuid.UUID
	Prompt      string
	Attachments []Attachment
}

// LLM 大模型能力，分类/COA/推荐共用
type LLM interface {
	// GenerateJSON 生成 JSON 并解码到 out
	GenerateJSON(ctx context.Context, req LLMRequest, out interface{}) error
	// GenerateText 生成纯文本 (用于 OCR)
	GenerateText(ctx context.Context, req LLMRequest) (string, error)
	// Embed 文本向量
	Embed(ctx context.Context, purpose, text string) ([]float32, error)
	// EmbeddingModelName 向量模型名，用于判断缓存是否可复用
	EmbeddingModelName() string
}

// ==================== 服务 ====================

// AIService Gemini 实现
type AIService struct {
	Config      AIConfig
	client      *genai.Client
	callLogRepo repository.AICallLogRepository
}

// NewAIService 创建 AI 服务
func NewAIService(ctx context.Context, cfg AIConfig, callLogRepo repository.AICallLogRepository) (*AIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key 未配置")
	}
	cfg.applyDefaults()

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("Gemini 初始化失败: %w", err)
	}

	return &AIService{
		Config:      cfg,
		client:      client,
		callLogRepo: callLogRepo,
	}, nil
}

// Close 释放底层连接
func (s *AIService) Close() error {
	return s.client.Close()
}

// EmbeddingModelName 向量模型名
func (s *AIService) EmbeddingModelName() string {
	return s.Config.EmbeddingModel
}

// GenerateJSON 要求模型以 JSON 输出并解析
func (s *AIService) GenerateJSON(ctx context.Context, req LLMRequest, out interface{}) error {
	raw, err := s.generate(ctx, req, "application/json")
	if err != nil {
		return err
	}
	return parseJSONText(raw, out)
}

// GenerateText 纯文本输出
func (s *AIService) GenerateText(ctx context.Context, req LLMRequest) (string, error) {
	return s.generate(ctx, req, "")
}

func (s *AIService) generate(ctx context.Context, req LLMRequest, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Config.Timeout)
	defer cancel()

	m := s.client.GenerativeModel(s.Config.TextModel)
	if mimeType != "" {
		m.ResponseMIMEType = mimeType
	}
	temperature := float32(0.1)
	m.Temperature = &temperature

	parts := []genai.Part{genai.Text(req.Prompt)}
	callType := model.AICallTypeText
	for _, a := range req.Attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
		callType = model.AICallTypeVision
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, parts...)
	log := &model.AICallLog{
		ProductID:  req.ProductID,
		CallType:   callType,
		Purpose:    req.Purpose,
		ModelName:  s.Config.TextModel,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if resp != nil && resp.UsageMetadata != nil {
		log.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		log.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	var text string
	if err == nil {
		text = responseText(resp)
		if text == "" {
			err = ErrEmptyAIResponse
		}
	}
	s.recordCall(log, err)
	if err != nil {
		return "", fmt.Errorf("AI 生成失败: %w", err)
	}
	return text, nil
}

// Embed 生成文本向量
func (s *AIService) Embed(ctx context.Context, purpose, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Config.Timeout)
	defer cancel()

	em := s.client.EmbeddingModel(s.Config.EmbeddingModel)
	start := time.Now()
	res, err := em.EmbedContent(ctx, genai.Text(text))

	log := &model.AICallLog{
		CallType:   model.AICallTypeEmbedding,
		Purpose:    purpose,
		ModelName:  s.Config.EmbeddingModel,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err == nil && (res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0) {
		err = ErrEmptyAIResponse
	}
	s.recordCall(log, err)
	if err != nil {
		return nil, fmt.Errorf("向量生成失败: %w", err)
	}
	return res.Embedding.Values, nil
}

// recordCall 写调用日志，失败只记录不影响主流程
func (s *AIService) recordCall(log *model.AICallLog, callErr error) {
	log.Status = model.AICallStatusSuccess
	if callErr != nil {
		log.Status = model.AICallStatusFailed
		log.ErrorMsg = truncate(callErr.Error(), 1000)
	}
	metrics.RecordAICall(log.CallType, callErr == nil)

	if s.callLogRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.callLogRepo.Create(ctx, log); err != nil {
		logrus.WithError(err).Warn("[AIService] 写入调用日志失败")
	}
}

// ==================== 工具函数 ====================

// responseText 拼接第一个候选的全部文本片段
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// parseJSONText 去除可能存在的 markdown 代码块后解析
func parseJSONText(raw string, out interface{}) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrEmptyAIResponse
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("JSON 解析失败: %w | 原始数据: %s", err, truncate(s, 200))
	}
	return nil
}
