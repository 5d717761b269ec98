package task

import (
	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/BAGS69FUN/BAGS69/internal/store"
	"github.com/go-co-op/gocron/v2"
)

// Job 定时任务接口
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler    gocron.Scheduler
	store        *store.Store
	presaleLogic *logic.PresaleLogic
	config       *config.Config
}

// NewManager 创建新的任务管理器
func NewManager(s *store.Store, presaleLogic *logic.PresaleLogic, cfg *config.Config) *Manager {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler:    scheduler,
		store:        s,
		presaleLogic: presaleLogic,
		config:       cfg,
	}
}

// Start 启动任务管理器
func Start(s *store.Store, presaleLogic *logic.PresaleLogic, cfg *config.Config) *Manager {
	manager := NewManager(s, presaleLogic, cfg)

	manager.RegisterJobs()
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	m.registerJob(NewPresaleStatusJob(m.presaleLogic, m.config))
	m.registerJob(NewRefundWorkerJob(m.store, m.presaleLogic, m.config))
}

func (m *Manager) registerJob(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
