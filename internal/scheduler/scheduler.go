// Package scheduler 按设置驱动自动整批刷新。
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/artcityconsulting/propwatch/internal/pipeline"
	"github.com/artcityconsulting/propwatch/internal/pkg/metrics"
)

// Settings 提供自动刷新相关的设置读取。
type Settings interface {
	AutoRefreshEnabled(ctx context.Context) bool
	RefreshIntervalDays(ctx context.Context) int
	LastRefresh(ctx context.Context) time.Time
}

// BatchRunner 执行一次整批刷新。
type BatchRunner interface {
	RefreshAll(ctx context.Context, progress pipeline.ProgressFunc) (pipeline.BatchResult, error)
}

// Scheduler 周期性检查自动刷新条件，满足时静默执行整批刷新。
//
// 条件检查间隔远小于刷新间隔（默认 10 分钟对 1 天），所以刷新
// 的触发精度由检查间隔决定，和原来"打开应用时检查一次"的语义
// 一致但不依赖有人打开页面。
type Scheduler struct {
	settings Settings
	runner   BatchRunner
	logger   *slog.Logger
	interval time.Duration

	running atomic.Bool
	now     func() time.Time
}

// New 创建调度器。interval 是条件检查间隔。
func New(settings Settings, runner BatchRunner, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		settings: settings,
		runner:   runner,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// ShouldAutoRefresh 判断当前是否到达自动刷新时机。
//
// 开关关闭时永远为否；从未刷新过时立即刷新；否则按
// last_refresh + interval_days 推算下次时间。
func (s *Scheduler) ShouldAutoRefresh(ctx context.Context) bool {
	if !s.settings.AutoRefreshEnabled(ctx) {
		return false
	}
	last := s.settings.LastRefresh(ctx)
	if last.IsZero() {
		return true
	}
	days := s.settings.RefreshIntervalDays(ctx)
	next := last.Add(time.Duration(days) * 24 * time.Hour)
	return !s.now().Before(next)
}

// Run 启动调度循环，阻塞到 ctx 取消。启动时先检查一次。
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.ShouldAutoRefresh(ctx) {
		return
	}
	// 上一轮还没跑完就跳过，不排队。
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	s.logger.Info("auto refresh starting")
	metrics.BatchRunsTotal.WithLabelValues("auto").Inc()

	result, err := s.runner.RefreshAll(ctx, nil)
	if err != nil {
		s.logger.Error("auto refresh failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("auto refresh finished",
		slog.Int("total", result.Total),
		slog.Int("changed", result.Changed),
		slog.Int("failed", len(result.Errors)),
	)
}
