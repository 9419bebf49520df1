package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/api/dto"
	"vipsmoke_erp/internal/service"
)

const maxWebhookBody = 1 << 20

// WebhookHandler webhook 处理
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, signature string) (*service.WebhookResult, error)
}

// WebhookController Zoho 推送入口
type WebhookController struct {
	webhook WebhookHandler
}

func NewWebhookController(webhook WebhookHandler) *WebhookController {
	return &WebhookController{webhook: webhook}
}

// Receive 接收 Zoho 推送
// @Summary Zoho webhook
// @Tags Webhook
// @Accept json
// @Param X-Zoho-Webhook-Signature header string false "hex(HMAC-SHA256(secret, body))"
// @Success 200 {object} dto.SyncResp
// @Failure 400 {object} dto.SyncResp "报文错误"
// @Failure 401 {object} dto.SyncResp "签名错误"
// @Router /api/webhook [post]
func (ctl *WebhookController) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.SyncResp{Success: false, Message: "读取请求体失败"})
		return
	}

	res, err := ctl.webhook.Handle(c.Request.Context(), body, c.GetHeader(service.WebhookSignatureHeader))
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		logrus.WithField("client_ip", c.ClientIP()).Warn("[Webhook] 签名校验失败")
		c.JSON(http.StatusUnauthorized, dto.SyncResp{Success: false, Message: err.Error()})
		return
	case errors.Is(err, service.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, dto.SyncResp{Success: false, Message: err.Error()})
		return
	case err != nil:
		logrus.WithError(err).Error("[Webhook] 处理失败")
		c.JSON(http.StatusInternalServerError, dto.SyncResp{Success: false, Message: err.Error()})
		return
	}

	msg := "已处理"
	if res.Action == service.WebhookActionIgnored {
		msg = "已忽略"
	}
	c.JSON(http.StatusOK, dto.SyncResp{Success: true, Message: msg, Result: res})
}
