package task

import (
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// PresaleStatusJob 预售过期兜底任务。
// 过期判定由业务入口惰性完成，本任务只负责把长期无人访问的
// 过期预售也推进到failed，保证列表状态不滞后。
type PresaleStatusJob struct {
	presaleLogic *logic.PresaleLogic
	config       *config.Config
}

// NewPresaleStatusJob 创建预售状态任务
func NewPresaleStatusJob(presaleLogic *logic.PresaleLogic, cfg *config.Config) *PresaleStatusJob {
	return &PresaleStatusJob{
		presaleLogic: presaleLogic,
		config:       cfg,
	}
}

// GetName 获取任务名称
func (j *PresaleStatusJob) GetName() string {
	return "presale_status_updater"
}

// GetSchedule 获取调度配置
func (j *PresaleStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *PresaleStatusJob) Execute() {
	expired, err := j.presaleLogic.SweepExpired()
	if err != nil {
		logger.Error("Failed to list expired presales: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	updated := 0
	for _, presale := range expired {
		if err := j.presaleLogic.ExpirePresale(presale.Id); err != nil {
			logger.Error("Failed to expire presale %s: %v", presale.Id, err)
			continue
		}
		updated++
	}

	logger.Info("Presale status task completed. Expired %d/%d presales", updated, len(expired))
}
