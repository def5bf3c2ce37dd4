package cron

import (
	"fmt"
	log "log/slog"

	"github.com/robfig/cron/v3"

	"Ephemera/internal/job"
)

const defaultPruneSpec = "@every 1m"

type Manager struct {
	engine          *cron.Cron
	messagePruneJob *job.MessagePruneJob
	pruneSpec       string
	entries         []cron.EntryID
}

// NewCronManager 消息清理任务调度，pruneSpec 为空时每分钟一次
func NewCronManager(messagePruneJob *job.MessagePruneJob, pruneSpec string) *Manager {
	if pruneSpec == "" {
		pruneSpec = defaultPruneSpec
	}
	return &Manager{
		engine:          cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		messagePruneJob: messagePruneJob,
		pruneSpec:       pruneSpec,
	}
}

// RegisterJobs 注册定时任务，重复调用不会重复注册
func (s *Manager) RegisterJobs() error {
	if len(s.entries) > 0 {
		return nil
	}
	id, err := s.engine.AddJob(s.pruneSpec, s.messagePruneJob)
	if err != nil {
		return fmt.Errorf("register message prune job %q: %w", s.pruneSpec, err)
	}
	s.entries = append(s.entries, id)
	return nil
}

// InitCron 注册并启动全部任务
func (s *Manager) InitCron() error {
	if err := s.RegisterJobs(); err != nil {
		return err
	}
	s.Start()
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动", "jobs", len(s.entries), "prune_spec", s.pruneSpec)
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
