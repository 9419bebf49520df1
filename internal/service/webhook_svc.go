package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidSignature = errors.New("签名校验失败")
	ErrInvalidPayload   = errors.New("无效的 webhook 报文")
)

// WebhookSignatureHeader Zoho 推送签名头
const WebhookSignatureHeader = "X-Zoho-Webhook-Signature"

// Webhook 处理动作
const (
	WebhookActionProduct = "product"
	WebhookActionOrder   = "order"
	WebhookActionIgnored = "ignored"
)

// RecordSyncer 单条记录重新同步
type RecordSyncer interface {
	SyncProductByID(ctx context.Context, itemID string) (*SyncResult, error)
	SyncOrderByID(ctx context.Context, salesOrderID string) (*SyncResult, error)
}

// WebhookEvent Zoho 推送报文
// data 可能是扁平 ID，也可能嵌套完整对象
type WebhookEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		ItemID       string `json:"item_id"`
		SalesOrderID string `json:"salesorder_id"`
		Item         *struct {
			ItemID string `json:"item_id"`
		} `json:"item"`
		SalesOrder *struct {
			SalesOrderID string `json:"salesorder_id"`
		} `json:"salesorder"`
	} `json:"data"`
}

func (e *WebhookEvent) itemID() string {
	if e.Data.ItemID != "" {
		return e.Data.ItemID
	}
	if e.Data.Item != nil {
		return e.Data.Item.ItemID
	}
	return ""
}

func (e *WebhookEvent) salesOrderID() string {
	if e.Data.SalesOrderID != "" {
		return e.Data.SalesOrderID
	}
	if e.Data.SalesOrder != nil {
		return e.Data.SalesOrder.SalesOrderID
	}
	return ""
}

// WebhookResult 处理结果
type WebhookResult struct {
	EventType string      `json:"event_type"`
	Action    string      `json:"action"`
	RecordID  string      `json:"record_id,omitempty"`
	Result    *SyncResult `json:"result,omitempty"`
}

// WebhookService 处理 Zoho 推送
type WebhookService struct {
	syncer RecordSyncer
	secret []byte
}

// NewWebhookService secret 为空时跳过签名校验
func NewWebhookService(syncer RecordSyncer, secret string) *WebhookService {
	return &WebhookService{syncer: syncer, secret: []byte(secret)}
}

// Handle 校验签名并按事件类型重新同步对应记录
func (s *WebhookService) Handle(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !s.VerifySignature(body, signature) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	eventType := strings.ToLower(strings.TrimSpace(event.EventType))
	if eventType == "" {
		return nil, fmt.Errorf("%w: 缺少 event_type", ErrInvalidPayload)
	}

	res := &WebhookResult{EventType: eventType, Action: WebhookActionIgnored}
	log := logrus.WithField("event_type", eventType)

	// 删除事件无法回源，忽略
	if strings.HasSuffix(eventType, "_deleted") {
		log.Info("[Webhook] 忽略删除事件")
		return res, nil
	}

	var err error
	switch {
	case strings.HasPrefix(eventType, "item"):
		res.RecordID = event.itemID()
		if res.RecordID == "" {
			return nil, fmt.Errorf("%w: 缺少 item_id", ErrInvalidPayload)
		}
		res.Action = WebhookActionProduct
		res.Result, err = s.syncer.SyncProductByID(ctx, res.RecordID)
	case strings.HasPrefix(eventType, "salesorder"):
		res.RecordID = event.salesOrderID()
		if res.RecordID == "" {
			return nil, fmt.Errorf("%w: 缺少 salesorder_id", ErrInvalidPayload)
		}
		res.Action = WebhookActionOrder
		res.Result, err = s.syncer.SyncOrderByID(ctx, res.RecordID)
	default:
		log.Info("[Webhook] 未处理的事件类型")
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"action":    res.Action,
		"record_id": res.RecordID,
		"success":   res.Result.Success,
	}).Info("[Webhook] 已处理")
	return res, nil
}

// VerifySignature hex(HMAC-SHA256(secret, body))，常量时间比较
func (s *WebhookService) VerifySignature(body []byte, signature string) bool {
	if len(s.secret) == 0 {
		return true
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, SignWebhook(s.secret, body))
}

// SignWebhook 计算签名
func SignWebhook(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
