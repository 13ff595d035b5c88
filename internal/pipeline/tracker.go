// Package pipeline 串联解析、抓取、抽取和对账，对外提供
// 添加房源、单条刷新和整批刷新三个操作。
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/artcityconsulting/propwatch/internal/extract"
	"github.com/artcityconsulting/propwatch/internal/model"
	"github.com/artcityconsulting/propwatch/internal/pkg/metrics"
	"github.com/artcityconsulting/propwatch/internal/pkg/notify"
	"github.com/artcityconsulting/propwatch/internal/resolver"
)

// Store 是管线需要的持久化能力。
type Store interface {
	CreateListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id uint) (*model.Listing, error)
	ListListings(ctx context.Context) ([]model.Listing, error)
	SaveListing(ctx context.Context, l *model.Listing) error
	AppendStatusChange(ctx context.Context, c *model.StatusChange) error
	SetLastRefresh(ctx context.Context, t time.Time) error
}

// PageFetcher 抓取单个页面原文。
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Limiter 控制出站抓取的节奏。
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Tracker 是房源监控管线。
type Tracker struct {
	store       Store
	fetcher     PageFetcher
	limiter     Limiter
	notifier    notify.Notifier
	notifyEmail string
	logger      *slog.Logger
	batchDelay  time.Duration

	batchInFlight atomic.Bool
	now           func() time.Time
}

// Option 调整 Tracker 的可选行为。
type Option func(*Tracker)

// WithNotifier 设置状态变更通知器及接收邮箱。
func WithNotifier(n notify.Notifier, toEmail string) Option {
	return func(t *Tracker) {
		t.notifier = n
		t.notifyEmail = toEmail
	}
}

// WithBatchDelay 设置整批刷新的条目间隔。
func WithBatchDelay(d time.Duration) Option {
	return func(t *Tracker) { t.batchDelay = d }
}

// WithRateLimiter 在每次抓取前申请限流令牌。
func WithRateLimiter(l Limiter) Option {
	return func(t *Tracker) { t.limiter = l }
}

// withClock 仅测试用。
func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker 创建管线。
func NewTracker(store Store, fetcher PageFetcher, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:      store,
		fetcher:    fetcher,
		notifier:   notify.Noop{},
		logger:     logger,
		batchDelay: 2 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// probe 执行解析→抓取→抽取，不碰数据库。
func (t *Tracker) probe(ctx context.Context, inputText string) (resolver.Resolution, extract.Fields, error) {
	res, err := resolver.Resolve(inputText)
	if err != nil {
		return resolver.Resolution{}, extract.Fields{}, wrapErr(KindInput, inputText, err)
	}

	e, ok := extract.ForSource(res.Source)
	if !ok {
		return resolver.Resolution{}, extract.Fields{}, wrapErr(KindInput, inputText, resolver.ErrUnsupportedSource)
	}

	if t.limiter != nil {
		if err := t.limiter.Acquire(ctx); err != nil {
			return resolver.Resolution{}, extract.Fields{}, wrapErr(KindTransport, inputText, err)
		}
	}

	html, err := t.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return resolver.Resolution{}, extract.Fields{}, wrapErr(KindTransport, inputText, err)
	}

	fields, err := e.Extract(html)
	if err != nil {
		return resolver.Resolution{}, extract.Fields{}, wrapErr(KindExtraction, inputText, err)
	}

	return res, fields, nil
}

// Add 按用户输入添加一条新房源：解析、抓取、抽取，全部成功才入库。
func (t *Tracker) Add(ctx context.Context, inputText string) (*model.Listing, error) {
	res, fields, err := t.probe(ctx, inputText)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(ErrKind(err).String()).Inc()
		return nil, err
	}

	now := t.now()
	l := &model.Listing{InputText: inputText}
	reconcile(l, res, fields, now)
	// 新记录没有"上一个状态"，首次抽取不算变更。
	l.PreviousStatus = ""
	l.LastChangedAt = nil

	if err := t.store.CreateListing(ctx, l); err != nil {
		return nil, wrapErr(KindReconciliation, inputText, err)
	}

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	t.logger.Info("listing added",
		slog.Uint64("id", uint64(l.ID)),
		slog.String("source", l.Source),
		slog.String("status", l.Status),
	)
	return l, nil
}

// Refresh 刷新单条房源并落库。
//
// 任何一步失败都让存量记录保持原样。检测到状态变更时追加
// 历史记录并触发通知，通知失败只记日志，不影响刷新结果。
func (t *Tracker) Refresh(ctx context.Context, id uint) (Outcome, error) {
	l, err := t.store.GetListing(ctx, id)
	if err != nil {
		return Outcome{}, wrapErr(KindReconciliation, "", err)
	}
	return t.refreshListing(ctx, l)
}

func (t *Tracker) refreshListing(ctx context.Context, l *model.Listing) (Outcome, error) {
	res, fields, err := t.probe(ctx, l.InputText)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(ErrKind(err).String()).Inc()
		return Outcome{}, err
	}

	outcome := reconcile(l, res, fields, t.now())
	if err := t.store.SaveListing(ctx, l); err != nil {
		return Outcome{}, wrapErr(KindReconciliation, l.InputText, err)
	}
	metrics.RefreshTotal.WithLabelValues("success").Inc()

	if outcome.Changed {
		metrics.StatusChangeTotal.Inc()
		t.logger.Info("status change detected",
			slog.Uint64("id", uint64(l.ID)),
			slog.String("from", outcome.From),
			slog.String("to", outcome.To),
		)
		if err := t.store.AppendStatusChange(ctx, &model.StatusChange{
			ListingID:  l.ID,
			FromStatus: outcome.From,
			ToStatus:   outcome.To,
		}); err != nil {
			t.logger.Warn("append status change failed", slog.String("error", err.Error()))
		}
		if err := t.notifier.SendStatusChange(ctx, l, outcome.From, t.notifyEmail); err != nil {
			t.logger.Warn("status change notification failed", slog.String("error", err.Error()))
		}
	}

	return outcome, nil
}
