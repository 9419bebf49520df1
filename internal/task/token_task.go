package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/pkg/logger"
)

// TokenKeeper 在 token 即将过期时提前刷新
type TokenKeeper interface {
	KeepAlive(ctx context.Context) error
}

// TokenTask Zoho access token 保活任务
type TokenTask struct {
	keeper  TokenKeeper
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	log     *logrus.Entry
}

// NewTokenTask 创建保活任务，spec 为 6 段 cron 表达式 (含秒)
func NewTokenTask(keeper TokenKeeper, spec string) *TokenTask {
	if spec == "" {
		spec = "0 */20 * * * *"
	}
	return &TokenTask{
		keeper:  keeper,
		cron:    cron.New(cron.WithSeconds()), // 支持秒级控制
		spec:    spec,
		timeout: time.Minute,
		log:     logger.WithComponent("TokenTask"),
	}
}

// Start 启动定时任务，启动时立即执行一次
func (t *TokenTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, func() { t.RunOnce() }); err != nil {
		return fmt.Errorf("无法注册 Token 定时任务: %w", err)
	}

	go func() {
		t.log.Info("服务启动，正在执行首次 Token 检查...")
		t.RunOnce()
	}()

	t.cron.Start()
	t.log.Infof("Token 保活任务已启动 (%s)", t.spec)
	return nil
}

// RunOnce 执行一次保活，失败只记录日志，下个周期重试
func (t *TokenTask) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if err := t.keeper.KeepAlive(ctx); err != nil {
		t.log.WithError(err).Error("Token 刷新失败")
	}
}

// Stop 停止任务并等待正在执行的作业结束
func (t *TokenTask) Stop() {
	<-t.cron.Stop().Done()
	t.log.Info("已停止")
}
