package task

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// NewLoggingWrapper 记录每次执行的开始与结束，附带唯一执行 ID
func NewLoggingWrapper(log *zap.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			jobLogger := log.With(
				zap.String("job_name", getJobName(j)),
				zap.String("execution_id", uuid.New().String()),
			)

			start := time.Now()
			jobLogger.Info("job execution started")

			j.Run()

			jobLogger.Info("job execution finished", zap.Duration("duration", time.Since(start)))
		})
	}
}

// NewPanicRecoveryWrapper 捕获任务 panic，记录后继续调度
func NewPanicRecoveryWrapper(log *zap.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("job panicked",
						zap.String("job_name", getJobName(j)),
						zap.Any("panic", r),
						zap.Stack("stack"),
					)
				}
			}()

			j.Run()
		})
	}
}

// getJobName 优先使用任务的 Name()，否则取类型名
func getJobName(j cron.Job) string {
	if named, ok := j.(interface{ Name() string }); ok {
		return named.Name()
	}
	t := reflect.TypeOf(j)
	if t.Kind() == reflect.Ptr {
		return t.Elem().String()
	}
	return t.String()
}
