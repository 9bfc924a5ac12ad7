package cron

import (
	"Helpdesk/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine       *cron.Cron
	autoCloseJob *job.ConversationAutoCloseJob
}

func NewCronManager(autoCloseJob *job.ConversationAutoCloseJob) *Manager {
	return &Manager{
		engine:       cron.New(cron.WithSeconds()),
		autoCloseJob: autoCloseJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob("@hourly", s.autoCloseJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	s.engine.Stop()
}
