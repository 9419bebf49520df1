package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/pkg/logger"
)

// Pruner 按时间清理历史记录
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RetentionTask 清理过期的同步运行记录和 AI 调用日志
type RetentionTask struct {
	targets   map[string]Pruner
	retention time.Duration
	cron      *cron.Cron
	spec      string
	now       func() time.Time
	log       *logrus.Entry
}

// NewRetentionTask targets 的 key 为日志中的名称
func NewRetentionTask(targets map[string]Pruner, retention time.Duration, spec string) *RetentionTask {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &RetentionTask{
		targets:   targets,
		retention: retention,
		cron:      cron.New(cron.WithSeconds()),
		spec:      spec,
		now:       time.Now,
		log:       logger.WithComponent("RetentionTask"),
	}
}

func (t *RetentionTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.Run(ctx)
	}); err != nil {
		return fmt.Errorf("无法注册清理任务: %w", err)
	}
	t.cron.Start()
	t.log.Infof("已启动 (%s，保留 %s)", t.spec, t.retention)
	return nil
}

func (t *RetentionTask) Stop() {
	<-t.cron.Stop().Done()
}

// Run 执行一次清理，返回每个目标删除的行数
// 单个目标失败不影响其他目标
func (t *RetentionTask) Run(ctx context.Context) map[string]int64 {
	cutoff := t.now().Add(-t.retention)
	deleted := make(map[string]int64, len(t.targets))
	for name, target := range t.targets {
		n, err := target.DeleteBefore(ctx, cutoff)
		if err != nil {
			t.log.WithError(err).Errorf("清理 %s 失败", name)
			continue
		}
		deleted[name] = n
		if n > 0 {
			t.log.Infof("清理 %s: %d 条", name, n)
		}
	}
	return deleted
}
