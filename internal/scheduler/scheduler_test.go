package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/artcityconsulting/propwatch/internal/pipeline"
)

type fakeSettings struct {
	enabled      bool
	intervalDays int
	lastRefresh  time.Time
}

func (f *fakeSettings) AutoRefreshEnabled(context.Context) bool { return f.enabled }
func (f *fakeSettings) RefreshIntervalDays(context.Context) int { return f.intervalDays }
func (f *fakeSettings) LastRefresh(context.Context) time.Time   { return f.lastRefresh }

type fakeRunner struct {
	calls int
}

func (f *fakeRunner) RefreshAll(context.Context, pipeline.ProgressFunc) (pipeline.BatchResult, error) {
	f.calls++
	return pipeline.BatchResult{Total: 1}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShouldAutoRefresh(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		settings fakeSettings
		want     bool
	}{
		{"disabled", fakeSettings{enabled: false, intervalDays: 1}, false},
		{"never refreshed", fakeSettings{enabled: true, intervalDays: 1}, true},
		{"due", fakeSettings{enabled: true, intervalDays: 1, lastRefresh: now.Add(-25 * time.Hour)}, true},
		{"not due", fakeSettings{enabled: true, intervalDays: 1, lastRefresh: now.Add(-23 * time.Hour)}, false},
		{"longer interval", fakeSettings{enabled: true, intervalDays: 7, lastRefresh: now.Add(-48 * time.Hour)}, false},
		{"exactly due", fakeSettings{enabled: true, intervalDays: 1, lastRefresh: now.Add(-24 * time.Hour)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := tc.settings
			s := New(&settings, &fakeRunner{}, testLogger(), time.Minute)
			s.now = func() time.Time { return now }
			if got := s.ShouldAutoRefresh(context.Background()); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTickRunsBatchWhenDue(t *testing.T) {
	settings := &fakeSettings{enabled: true, intervalDays: 1}
	runner := &fakeRunner{}
	s := New(settings, runner, testLogger(), time.Minute)

	s.tick(context.Background())
	if runner.calls != 1 {
		t.Errorf("runner calls = %d, want 1", runner.calls)
	}

	settings.enabled = false
	s.tick(context.Background())
	if runner.calls != 1 {
		t.Errorf("runner calls after disable = %d, want 1", runner.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	settings := &fakeSettings{enabled: false}
	s := New(settings, &fakeRunner{}, testLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
