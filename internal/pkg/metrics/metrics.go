// Package metrics 定义 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal 按结果统计单条房源刷新次数。
	// result: success / input_error / transport_error / extraction_error / unknown
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propwatch_refresh_total",
		Help: "Listing refreshes by result.",
	}, []string{"result"})

	// StatusChangeTotal 检测到的状态变更次数。
	StatusChangeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propwatch_status_change_total",
		Help: "Detected listing status changes.",
	})

	// BatchRunsTotal 按触发方式统计整批刷新次数。
	// trigger: manual / auto
	BatchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propwatch_batch_runs_total",
		Help: "Batch refresh runs by trigger.",
	}, []string{"trigger"})

	// BatchDuration 整批刷新耗时。
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "propwatch_batch_duration_seconds",
		Help:    "Batch refresh duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// ImportSkippedTotal 批量导入中被去重跳过的条目数。
	ImportSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propwatch_import_skipped_total",
		Help: "Bulk import entries skipped as duplicates.",
	})

	// CRMSyncTotal 按结果统计 CRM 同步次数。
	CRMSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propwatch_crm_sync_total",
		Help: "CRM sync attempts by result.",
	}, []string{"result"})

	// TrackedListings 当前跟踪的房源总数。
	TrackedListings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "propwatch_tracked_listings",
		Help: "Listings currently tracked.",
	})

	// RateLimitWaitDuration 出站抓取等待限流令牌的耗时。
	RateLimitWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "propwatch_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a fetch rate limit token.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// RateLimitTimeoutTotal 等待令牌超时的次数。
	RateLimitTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propwatch_ratelimit_timeout_total",
		Help: "Fetches abandoned while waiting for a rate limit token.",
	})
)
