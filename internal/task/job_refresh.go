package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sotags/backend/internal/logger"
)

// Refresher 可刷新标签快照的服务
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// RefreshTagsJob 定时从标签源刷新快照
type RefreshTagsJob struct {
	refresher Refresher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRefreshTagsJob 创建刷新任务
func NewRefreshTagsJob(refresher Refresher, timeout time.Duration, log *zap.Logger) *RefreshTagsJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RefreshTagsJob{
		refresher: refresher,
		timeout:   timeout,
		logger:    logger.OrNop(log),
	}
}

// Run 实现 cron.Job
func (j *RefreshTagsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	count, err := j.refresher.Refresh(ctx)
	if err != nil {
		j.logger.Error("scheduled tag refresh failed", zap.Error(err))
		return
	}
	j.logger.Info("scheduled tag refresh completed", zap.Int("tags", count))
}

// Name 任务名
func (j *RefreshTagsJob) Name() string {
	return "RefreshTagsJob"
}
