package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/service"
	"vipsmoke_erp/pkg/logger"
)

// ==================== 依赖接口 ====================

// ScheduledSyncer 定时同步所需的 Zoho 同步能力
type ScheduledSyncer interface {
	SyncProducts(ctx context.Context, opts service.SyncOptions) (*service.SyncResult, error)
	SyncInventory(ctx context.Context) (*service.SyncResult, error)
	SyncFull(ctx context.Context) (*service.SyncResult, error)
}

// ShipmentSyncer ShipStation 推送与回传
type ShipmentSyncer interface {
	SyncShipments(ctx context.Context, since *time.Time) (*service.SyncResult, error)
}

// AirtableSyncer Airtable 对账
type AirtableSyncer interface {
	SyncImagesAndBrands(ctx context.Context) (*service.SyncResult, error)
}

// ==================== SyncTask 定时同步任务 ====================

// SyncTask 定时同步
// 同步策略：
//   - 增量：商品 -> 库存 -> (可选) ShipStation，顺序执行
//   - 全量：每日一次 Zoho 全量，随后 (可选) Airtable 对账
//
// 与手动触发共用同一把资源锁，锁被占用时本轮跳过
type SyncTask struct {
	zoho     ScheduledSyncer
	shipping ShipmentSyncer
	airtable AirtableSyncer

	cron            *cron.Cron
	incrementalSpec string
	fullSpec        string
	log             *logrus.Entry
}

type syncStep struct {
	name string
	run  func(context.Context) (*service.SyncResult, error)
}

// NewSyncTask 创建定时同步任务，shipping / airtable 可为 nil
func NewSyncTask(zoho ScheduledSyncer, shipping ShipmentSyncer, airtable AirtableSyncer, incrementalSpec, fullSpec string) *SyncTask {
	return &SyncTask{
		zoho:            zoho,
		shipping:        shipping,
		airtable:        airtable,
		cron:            cron.New(cron.WithSeconds()),
		incrementalSpec: incrementalSpec,
		fullSpec:        fullSpec,
		log:             logger.WithComponent("SyncTask"),
	}
}

// Start 注册增量与全量作业
func (t *SyncTask) Start() error {
	if t.incrementalSpec != "" {
		if _, err := t.cron.AddFunc(t.incrementalSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			t.RunIncremental(ctx)
		}); err != nil {
			return fmt.Errorf("无法注册增量同步任务: %w", err)
		}
	}
	if t.fullSpec != "" {
		if _, err := t.cron.AddFunc(t.fullSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
			defer cancel()
			t.RunFull(ctx)
		}); err != nil {
			return fmt.Errorf("无法注册全量同步任务: %w", err)
		}
	}

	t.cron.Start()
	t.log.Infof("已启动 (增量 %q / 全量 %q)", t.incrementalSpec, t.fullSpec)
	return nil
}

// Stop 停止任务
func (t *SyncTask) Stop() {
	<-t.cron.Stop().Done()
	t.log.Info("已停止")
}

// RunIncremental 执行一轮增量同步，返回各步骤结果 (被跳过的步骤不计入)
func (t *SyncTask) RunIncremental(ctx context.Context) []*service.SyncResult {
	var results []*service.SyncResult
	steps := []syncStep{
		{"products", func(ctx context.Context) (*service.SyncResult, error) {
			return t.zoho.SyncProducts(ctx, service.SyncOptions{})
		}},
		{"inventory", t.zoho.SyncInventory},
	}
	if t.shipping != nil {
		steps = append(steps, syncStep{"shipments", func(ctx context.Context) (*service.SyncResult, error) {
			return t.shipping.SyncShipments(ctx, nil)
		}})
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			t.log.Warn("任务超时停止")
			break
		}
		if res := t.runStep(ctx, step.name, step.run); res != nil {
			results = append(results, res)
		}
	}
	return results
}

// RunFull 执行一轮全量同步
func (t *SyncTask) RunFull(ctx context.Context) []*service.SyncResult {
	t.log.Info("开始每日全量同步...")

	var results []*service.SyncResult
	if res := t.runStep(ctx, "full", t.zoho.SyncFull); res != nil {
		results = append(results, res)
	}
	if t.airtable != nil && ctx.Err() == nil {
		if res := t.runStep(ctx, "airtable", t.airtable.SyncImagesAndBrands); res != nil {
			results = append(results, res)
		}
	}
	return results
}

func (t *SyncTask) runStep(ctx context.Context, name string, run func(context.Context) (*service.SyncResult, error)) *service.SyncResult {
	res, err := run(ctx)
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		t.log.Infof("%s 同步正在进行，本轮跳过", name)
		return nil
	case err != nil:
		t.log.WithError(err).Errorf("%s 同步失败", name)
		return res
	}

	entry := t.log.WithFields(logrus.Fields{
		"resource":  name,
		"processed": res.Processed,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	})
	if res.Success {
		entry.Info("同步完成")
	} else {
		entry.Warn(res.Message)
	}
	return res
}
