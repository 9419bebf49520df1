package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vipsmoke_erp/internal/api/dto"
	"vipsmoke_erp/internal/service"
)

// HealthChecker 健康检查
type HealthChecker interface {
	Check(ctx context.Context) *service.HealthReport
}

// HealthController 健康检查控制器
type HealthController struct {
	health HealthChecker
}

func NewHealthController(health HealthChecker) *HealthController {
	return &HealthController{health: health}
}

// Health 供应商连通性与同步时效
// @Summary 健康检查
// @Tags System
// @Success 200 {object} dto.SyncResp
// @Failure 503 {object} dto.SyncResp "关键依赖不可用"
// @Router /api/health [get]
func (ctl *HealthController) Health(c *gin.Context) {
	report := ctl.health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == service.HealthDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.SyncResp{
		Success: report.Status != service.HealthDown,
		Message: report.Status,
		Result:  report,
	})
}
