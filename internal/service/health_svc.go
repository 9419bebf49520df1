package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
)

// 健康状态
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// Pinger 连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 函数适配为 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DBPinger 数据库连通性
func DBPinger(db *gorm.DB) Pinger {
	return PingFunc(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

// ComponentHealth 单个依赖的状态
type ComponentHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Critical  bool   `json:"critical"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// ResourceHealth 资源同步时效
type ResourceHealth struct {
	Resource      string     `json:"resource"`
	LastSuccessAt *time.Time `json:"last_success_at"`
	Stale         bool       `json:"stale"`
}

// HealthReport 健康检查报告
type HealthReport struct {
	Status     string            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Resources  []ResourceHealth  `json:"resources"`
	CheckedAt  time.Time         `json:"checked_at"`
}

type healthCheck struct {
	name     string
	pinger   Pinger
	critical bool
}

// HealthService 检查供应商连通性和同步时效
type HealthService struct {
	checks     []healthCheck
	runs       repository.SyncRunRepository
	resources  []string
	staleAfter time.Duration
	timeout    time.Duration
	now        func() time.Time
}

// NewHealthService 创建健康检查服务
func NewHealthService(runs repository.SyncRunRepository, staleAfter time.Duration) *HealthService {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &HealthService{
		runs: runs,
		resources: []string{
			model.ResourceProducts,
			model.ResourceCategories,
			model.ResourceInventory,
			model.ResourceOrders,
		},
		staleAfter: staleAfter,
		timeout:    5 * time.Second,
		now:        time.Now,
	}
}

// AddCheck 注册依赖检查，critical 失败时整体为 down
func (h *HealthService) AddCheck(name string, p Pinger, critical bool) {
	h.checks = append(h.checks, healthCheck{name: name, pinger: p, critical: critical})
}

// Check 执行全部检查
func (h *HealthService) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{Status: HealthOK, CheckedAt: h.now()}

	for _, c := range h.checks {
		ch := h.ping(ctx, c)
		if ch.Status != HealthOK {
			if c.critical {
				report.Status = HealthDown
			} else if report.Status == HealthOK {
				report.Status = HealthDegraded
			}
		}
		report.Components = append(report.Components, ch)
	}

	for _, resource := range h.resources {
		rh := ResourceHealth{Resource: resource, Stale: true}
		last, err := h.runs.LastSuccessful(ctx, resource)
		if err != nil {
			report.Components = append(report.Components, ComponentHealth{
				Name:   "sync_runs",
				Status: HealthDown,
				Error:  fmt.Sprintf("%s: %v", resource, err),
			})
		} else if last != nil {
			at := last.StartedAt
			if last.FinishedAt != nil {
				at = *last.FinishedAt
			}
			rh.LastSuccessAt = &at
			rh.Stale = h.now().Sub(at) > h.staleAfter
		}
		if rh.Stale && report.Status == HealthOK {
			report.Status = HealthDegraded
		}
		report.Resources = append(report.Resources, rh)
	}
	return report
}

func (h *HealthService) ping(ctx context.Context, c healthCheck) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.pinger.Ping(ctx)
	ch := ComponentHealth{
		Name:      c.name,
		Status:    HealthOK,
		Critical:  c.critical,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		ch.Status = HealthDown
		ch.Error = err.Error()
	}
	return ch
}
