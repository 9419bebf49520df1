package task

import (
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/pkg/logger"
)

// ==================== TaskManager 后台任务管理器 ====================

type job interface {
	Start() error
	Stop()
}

// TaskManager 统一管理后台定时任务
// Token 保活总是启用；定时同步由 SYNC_CRON_ENABLED 控制
type TaskManager struct {
	jobs    []job
	names   []string
	started []job
	log     *logrus.Entry
}

// TaskManagerDeps 任务管理器依赖，nil 的任务不注册
type TaskManagerDeps struct {
	Token     *TokenTask
	Sync      *SyncTask
	Retention *RetentionTask
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps TaskManagerDeps) *TaskManager {
	tm := &TaskManager{log: logger.WithComponent("TaskManager")}
	if deps.Token != nil {
		tm.add("token", deps.Token)
	}
	if deps.Sync != nil {
		tm.add("sync", deps.Sync)
	}
	if deps.Retention != nil {
		tm.add("retention", deps.Retention)
	}
	return tm
}

func (tm *TaskManager) add(name string, j job) {
	tm.names = append(tm.names, name)
	tm.jobs = append(tm.jobs, j)
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务，任一失败时停止已启动的任务
func (tm *TaskManager) Start() error {
	tm.log.Info("正在启动后台任务...")
	for i, j := range tm.jobs {
		if err := j.Start(); err != nil {
			tm.Stop()
			return err
		}
		tm.started = append(tm.started, j)
		tm.log.Debugf("%s 已启动", tm.names[i])
	}
	tm.log.Infof("后台任务已全部启动: %v", tm.names)
	return nil
}

// Stop 停止所有已启动的任务
func (tm *TaskManager) Stop() {
	for i := len(tm.started) - 1; i >= 0; i-- {
		tm.started[i].Stop()
	}
	tm.started = nil
	tm.log.Info("后台任务已全部停止")
}

// ==================== 状态查询 ====================

// Status 获取任务注册状态
func (tm *TaskManager) Status() map[string]bool {
	status := map[string]bool{"token": false, "sync": false, "retention": false}
	for _, name := range tm.names {
		status[name] = true
	}
	return status
}
