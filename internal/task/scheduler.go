package task

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"sotags/backend/internal/logger"
)

// Parser 接受 5 段或带秒的 6 段 cron 表达式，以及 @every 等描述符
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler 封装 cron 实例，负责任务的注册、启动和停止
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler 创建调度器
//
// 任务依次经过 panic 恢复、日志包装；上一次未结束时跳过本次触发。
func NewScheduler(log *zap.Logger) *Scheduler {
	log = logger.OrNop(log).With(zap.String("system", "cron"))

	c := cron.New(
		cron.WithParser(Parser),
		cron.WithChain(
			NewPanicRecoveryWrapper(log),
			NewLoggingWrapper(log),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)

	return &Scheduler{cron: c, logger: log}
}

// Register 按表达式注册任务
func (s *Scheduler) Register(spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, getJobName(job), err)
	}
	s.logger.Info("registered periodic job",
		zap.String("job_name", getJobName(job)),
		zap.String("schedule", spec),
	)
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.logger.Info("cron scheduler started")
	s.cron.Start()
}

// Stop 停止调度器并等待正在运行的任务结束
func (s *Scheduler) Stop() {
	s.logger.Info("stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}
