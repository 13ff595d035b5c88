package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/artcityconsulting/propwatch/internal/model"
	"github.com/artcityconsulting/propwatch/internal/pkg/metrics"
)

// ErrBatchRunning 已有一次整批刷新在进行中。
var ErrBatchRunning = errors.New("batch refresh already running")

// ProgressFunc 在整批刷新中逐条回调进度。index 从 1 开始，
// err 为 nil 表示该条成功。回调为 nil 时整批静默执行。
type ProgressFunc func(index, total int, l *model.Listing, outcome Outcome, err error)

// ItemError 记录整批刷新中单条失败。
type ItemError struct {
	ListingID uint
	InputText string
	Err       error
}

// BatchResult 汇总一次整批刷新。
type BatchResult struct {
	Total   int         // 参与刷新的房源数
	Changed int         // 检测到状态变更的条数
	Errors  []ItemError // 失败条目，和原始输入一一对应
}

// RefreshAll 顺序刷新全部房源。
//
// 刻意单线程加固定间隔，目标站点对并发抓取很敏感。同一时间
// 只允许一次整批刷新，手动触发撞上自动刷新时直接拒绝。单条
// 失败不中断整批，取消只在条目边界生效，正在进行的条目会做
// 完。整批走完后记录 last_refresh 时间戳。
func (t *Tracker) RefreshAll(ctx context.Context, progress ProgressFunc) (BatchResult, error) {
	if !t.batchInFlight.CompareAndSwap(false, true) {
		return BatchResult{}, ErrBatchRunning
	}
	defer t.batchInFlight.Store(false)

	listings, err := t.store.ListListings(ctx)
	if err != nil {
		return BatchResult{}, wrapErr(KindReconciliation, "", err)
	}

	result := BatchResult{Total: len(listings)}
	if len(listings) == 0 {
		return result, nil
	}

	start := t.now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	for i := range listings {
		if i > 0 {
			// 条目间隔，顺带作为取消点。
			if err := t.sleep(ctx); err != nil {
				return result, err
			}
		} else if err := ctx.Err(); err != nil {
			return result, err
		}

		l := &listings[i]
		outcome, err := t.refreshListing(ctx, l)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				ListingID: l.ID,
				InputText: l.InputText,
				Err:       err,
			})
			t.logger.Warn("refresh failed",
				slog.Uint64("id", uint64(l.ID)),
				slog.String("input", l.InputText),
				slog.String("error", err.Error()),
			)
		} else if outcome.Changed {
			result.Changed++
		}

		if progress != nil {
			progress(i+1, result.Total, l, outcome, err)
		}
	}

	if err := t.store.SetLastRefresh(ctx, t.now()); err != nil {
		t.logger.Warn("record last refresh failed", slog.String("error", err.Error()))
	}

	t.logger.Info("batch refresh finished",
		slog.Int("total", result.Total),
		slog.Int("changed", result.Changed),
		slog.Int("failed", len(result.Errors)),
	)
	return result, nil
}

func (t *Tracker) sleep(ctx context.Context) error {
	if t.batchDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
