package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/api/dto"
	"vipsmoke_erp/internal/service"
)

// ==================== 依赖接口 ====================

// ZohoSyncer Zoho 同步编排
type ZohoSyncer interface {
	SyncProducts(ctx context.Context, opts service.SyncOptions) (*service.SyncResult, error)
	SyncCategories(ctx context.Context) (*service.SyncResult, error)
	SyncInventory(ctx context.Context) (*service.SyncResult, error)
	SyncOrders(ctx context.Context, opts service.OrderSyncOptions) (*service.SyncResult, error)
	SyncFull(ctx context.Context) (*service.SyncResult, error)
}

// AirtableSyncer Airtable 对账
type AirtableSyncer interface {
	SyncImagesAndBrands(ctx context.Context) (*service.SyncResult, error)
}

// ShipmentSyncer ShipStation 履约
type ShipmentSyncer interface {
	PushOrders(ctx context.Context) (*service.SyncResult, error)
	PullShipments(ctx context.Context, since *time.Time) (*service.SyncResult, error)
	SyncShipments(ctx context.Context, since *time.Time) (*service.SyncResult, error)
}

// SyncController 手动同步控制器
// airtable / shipping 未配置时为 nil，对应接口返回 503
type SyncController struct {
	zoho     ZohoSyncer
	airtable AirtableSyncer
	shipping ShipmentSyncer
}

// NewSyncController 创建同步控制器
func NewSyncController(zoho ZohoSyncer, airtable AirtableSyncer, shipping ShipmentSyncer) *SyncController {
	return &SyncController{zoho: zoho, airtable: airtable, shipping: shipping}
}

// ==================== Handler 实现 ====================

// SyncProducts 同步商品
// @Summary 手动同步 Zoho 商品
// @Tags Sync
// @Accept json
// @Param body body dto.SyncProductsReq false "fullSync 为 true 时全量同步"
// @Success 200 {object} dto.SyncResp
// @Failure 409 {object} dto.SyncResp "同步进行中"
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Router /api/sync/products [post]
func (ctl *SyncController) SyncProducts(c *gin.Context) {
	var req dto.SyncProductsReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	since, err := dto.ParseDate(req.Since)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := ctl.zoho.SyncProducts(syncContext(c), service.SyncOptions{FullSync: req.FullSync, Since: since})
	writeSyncResult(c, result, err)
}

// SyncCategories 同步分类
// @Summary 手动同步 Zoho 分类
// @Tags Sync
// @Success 200 {object} dto.SyncResp
// @Failure 409 {object} dto.SyncResp "同步进行中"
// @Router /api/sync/categories [post]
func (ctl *SyncController) SyncCategories(c *gin.Context) {
	result, err := ctl.zoho.SyncCategories(syncContext(c))
	writeSyncResult(c, result, err)
}

// SyncInventory 同步库存
// @Summary 手动同步 Zoho 库存
// @Tags Sync
// @Success 200 {object} dto.SyncResp
// @Failure 409 {object} dto.SyncResp "同步进行中"
// @Router /api/sync/inventory [post]
func (ctl *SyncController) SyncInventory(c *gin.Context) {
	result, err := ctl.zoho.SyncInventory(syncContext(c))
	writeSyncResult(c, result, err)
}

// SyncOrders 同步销售订单
// @Summary 手动同步 Zoho 销售订单
// @Tags Sync
// @Accept json
// @Param body body dto.SyncOrdersReq false "startDate 起始日期"
// @Success 200 {object} dto.SyncResp
// @Failure 409 {object} dto.SyncResp "同步进行中"
// @Router /api/sync/orders [post]
func (ctl *SyncController) SyncOrders(c *gin.Context) {
	var req dto.SyncOrdersReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	start, err := dto.ParseDate(req.StartDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := ctl.zoho.SyncOrders(syncContext(c), service.OrderSyncOptions{StartDate: start})
	writeSyncResult(c, result, err)
}

// SyncFull 全量同步
// @Summary 依次同步分类、商品、库存、订单
// @Tags Sync
// @Success 200 {object} dto.SyncResp
// @Failure 409 {object} dto.SyncResp "同步进行中"
// @Router /api/sync/full [post]
func (ctl *SyncController) SyncFull(c *gin.Context) {
	result, err := ctl.zoho.SyncFull(syncContext(c))
	writeSyncResult(c, result, err)
}

// SyncAirtable Airtable 图片与品牌对账
// @Summary 从 Airtable 补齐商品图片与品牌
// @Tags Sync
// @Success 200 {object} dto.SyncResp
// @Failure 503 {object} dto.SyncResp "未配置"
// @Router /api/sync/airtable [post]
func (ctl *SyncController) SyncAirtable(c *gin.Context) {
	if ctl.airtable == nil {
		notConfigured(c, "Airtable")
		return
	}
	result, err := ctl.airtable.SyncImagesAndBrands(syncContext(c))
	writeSyncResult(c, result, err)
}

// SyncShipments ShipStation 推单与物流回传
// @Summary 推送订单到 ShipStation 并回传物流单号
// @Tags Sync
// @Accept json
// @Param body body dto.SyncShipmentsReq false "direction: push / pull / both"
// @Success 200 {object} dto.SyncResp
// @Failure 503 {object} dto.SyncResp "未配置"
// @Router /api/sync/shipments [post]
func (ctl *SyncController) SyncShipments(c *gin.Context) {
	if ctl.shipping == nil {
		notConfigured(c, "ShipStation")
		return
	}
	var req dto.SyncShipmentsReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	since, err := dto.ParseDate(req.Since)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := syncContext(c)
	var result *service.SyncResult
	switch req.Direction {
	case "push":
		result, err = ctl.shipping.PushOrders(ctx)
	case "pull":
		result, err = ctl.shipping.PullShipments(ctx, since)
	default:
		result, err = ctl.shipping.SyncShipments(ctx, since)
	}
	writeSyncResult(c, result, err)
}

// ==================== 响应封装 ====================

// writeSyncResult 锁冲突 409，中止的运行 500，其余 200
func writeSyncResult(c *gin.Context, result *service.SyncResult, err error) {
	if errors.Is(err, service.ErrSyncInProgress) {
		c.JSON(http.StatusConflict, dto.SyncResp{Success: false, Message: err.Error()})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("[SyncController] 同步失败")
		c.JSON(http.StatusInternalServerError, dto.SyncResp{Success: false, Message: err.Error()})
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, dto.SyncResp{Success: result.Success, Message: result.Message, Result: result})
}

// syncContext 客户端断开后同步继续执行，运行记录与锁正常收尾
func syncContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func notConfigured(c *gin.Context, name string) {
	c.JSON(http.StatusServiceUnavailable, dto.SyncResp{Success: false, Message: name + " 未配置"})
}
