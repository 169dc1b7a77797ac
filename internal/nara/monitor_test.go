package nara

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

type fakeSearcher struct {
	source   string
	failures int
	bids     func(q Query) []model.BidItem

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSearcher) Source() string { return f.source }

func (f *fakeSearcher) Search(ctx context.Context, q Query) ([]model.BidItem, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if int(f.calls.Add(1)) <= f.failures {
		return nil, errors.New("temporary failure")
	}
	if f.bids == nil {
		return nil, nil
	}
	return f.bids(q), nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]model.BidItem
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _ Config, bids []model.BidItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bids)
	return f.err
}

type fakeLocker struct{ grant bool }

func (f fakeLocker) Acquire(context.Context, string, time.Duration) (bool, error) {
	return f.grant, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Keywords = []string{"케이블", "변압기"}
	cfg.Sources = []string{model.SourceNaraMarket}
	cfg.SearchDelaySeconds = 0
	cfg.MaxRetries = 1
	return cfg
}

func bidsFor(q Query) []model.BidItem {
	// Both keywords return the shared bid; each also has its own.
	return []model.BidItem{
		{Source: model.SourceNaraMarket, ExternalID: "shared", Title: "케이블 및 변압기"},
		{Source: model.SourceNaraMarket, ExternalID: "only-" + q.Keyword, Title: q.Keyword},
	}
}

func TestSearchAllDedupesAndRetries(t *testing.T) {
	s := &fakeSearcher{source: model.SourceNaraMarket, failures: 1, bids: bidsFor}
	cfg := testConfig()
	cfg.MaxConcurrentSearches = 1

	res := searchAll(context.Background(), cfg, []Searcher{s}, time.Now(), 0)
	if len(res.errors) != 0 {
		t.Fatalf("expected retry to recover, got errors %v", res.errors)
	}
	if len(res.bids) != 3 {
		t.Errorf("expected 3 unique bids, got %d", len(res.bids))
	}
	if s.calls.Load() != 3 {
		t.Errorf("expected 3 calls (one retry), got %d", s.calls.Load())
	}
	if s.maxSeen.Load() > 1 {
		t.Errorf("concurrency limit exceeded: %d", s.maxSeen.Load())
	}
}

func TestSearchAllGivesUpAfterRetries(t *testing.T) {
	s := &fakeSearcher{source: model.SourceNaraMarket, failures: 100}
	cfg := testConfig()
	cfg.Keywords = []string{"케이블"}
	cfg.MaxRetries = 2

	res := searchAll(context.Background(), cfg, []Searcher{s}, time.Now(), 0)
	if len(res.errors) != 1 {
		t.Fatalf("expected one error, got %v", res.errors)
	}
	if s.calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", s.calls.Load())
	}
}

type timedSearcher struct {
	failures int
	attempts []time.Time
}

func (s *timedSearcher) Source() string { return model.SourceNaraMarket }

func (s *timedSearcher) Search(context.Context, Query) ([]model.BidItem, error) {
	s.attempts = append(s.attempts, time.Now())
	if len(s.attempts) <= s.failures {
		return nil, errors.New("temporary failure")
	}
	return nil, nil
}

func TestSearchWithRetryBacksOffExponentially(t *testing.T) {
	s := &timedSearcher{failures: 3}
	cfg := testConfig()
	cfg.MaxRetries = 3

	base := 20 * time.Millisecond
	if _, err := searchWithRetry(context.Background(), s, Query{Keyword: "케이블"}, cfg, base); err != nil {
		t.Fatalf("searchWithRetry: %v", err)
	}
	if len(s.attempts) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(s.attempts))
	}
	for i := 1; i < len(s.attempts); i++ {
		gap := s.attempts[i].Sub(s.attempts[i-1])
		want := base << (i - 1)
		if gap < want {
			t.Errorf("wait before attempt %d = %v, want at least %v", i+1, gap, want)
		}
	}
}

func TestRetryBackoffHasFloor(t *testing.T) {
	cfg := testConfig()
	cfg.SearchDelaySeconds = 0
	if got := retryBackoff(cfg); got != time.Second {
		t.Errorf("retryBackoff with no delay = %v, want 1s", got)
	}
	cfg.SearchDelaySeconds = 5
	if got := retryBackoff(cfg); got != 5*time.Second {
		t.Errorf("retryBackoff = %v, want 5s", got)
	}
}

func TestSearchAllSkipsDisabledSources(t *testing.T) {
	korail := &fakeSearcher{source: model.SourceKorail}
	res := searchAll(context.Background(), testConfig(), []Searcher{korail}, time.Now(), 0)
	if korail.calls.Load() != 0 || len(res.bids) != 0 {
		t.Error("disabled source should not be searched")
	}
}

func TestRunOncePersistsAndNotifiesNewBids(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	notifier := &fakeNotifier{}
	m := NewMonitor(database, []Searcher{&fakeSearcher{source: model.SourceNaraMarket, bids: bidsFor}}, notifier, nil)
	cfg := testConfig()
	cfg.TelegramEnabled = true
	cfg.TelegramChatID = "42"
	if err := m.SetConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	report, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Found != 3 || report.New != 3 {
		t.Errorf("unexpected first report %+v", report)
	}

	report, _ = m.RunOnce(ctx)
	if report.New != 0 {
		t.Errorf("second pass should find nothing new, got %d", report.New)
	}
	if len(notifier.calls) != 1 || len(notifier.calls[0]) != 3 {
		t.Errorf("expected a single notification with 3 bids, got %v", notifier.calls)
	}

	st, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Enabled || st.TotalBids != 3 || st.NewBids != 3 || st.LastCheck == nil || st.NextCheck != nil {
		t.Errorf("unexpected status %+v", st)
	}

	bids, _ := m.Bids(ctx, model.BidFilter{Keywords: []string{"변압기"}})
	if len(bids) != 2 {
		t.Errorf("expected 2 bids matching keyword, got %d", len(bids))
	}
}

func TestRunOnceRecordsNotifierError(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	m := NewMonitor(database, []Searcher{&fakeSearcher{source: model.SourceNaraMarket, bids: bidsFor}},
		&fakeNotifier{err: errors.New("chat not found")}, nil)
	cfg := testConfig()
	cfg.TelegramEnabled = true
	cfg.TelegramChatID = "42"
	m.SetConfig(ctx, cfg)

	report, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected telegram error in report, got %v", report.Errors)
	}
	st, _ := m.Status(ctx)
	if len(st.Errors) != 1 {
		t.Errorf("expected error in status, got %v", st.Errors)
	}
	m.ClearErrors()
	st, _ = m.Status(ctx)
	if len(st.Errors) != 0 {
		t.Error("errors should be cleared")
	}
}

func TestRunOnceSkips(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	t.Run("outside work hours", func(t *testing.T) {
		s := &fakeSearcher{source: model.SourceNaraMarket}
		m := NewMonitor(database, []Searcher{s}, nil, nil)
		m.now = func() time.Time { return time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC) }
		cfg := testConfig()
		cfg.WorkHoursOnly = true
		m.SetConfig(ctx, cfg)

		report, err := m.RunOnce(ctx)
		if err != nil || report.Skipped == "" || s.calls.Load() != 0 {
			t.Errorf("expected skip on saturday, got %+v %v", report, err)
		}
	})

	t.Run("lease held elsewhere", func(t *testing.T) {
		s := &fakeSearcher{source: model.SourceNaraMarket}
		m := NewMonitor(database, []Searcher{s}, nil, fakeLocker{grant: false})
		m.SetConfig(ctx, testConfig())

		report, err := m.RunOnce(ctx)
		if err != nil || report.Skipped == "" || s.calls.Load() != 0 {
			t.Errorf("expected skip without lease, got %+v %v", report, err)
		}
	})
}

func TestStartStop(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	s := &fakeSearcher{source: model.SourceNaraMarket, bids: bidsFor}
	m := NewMonitor(database, []Searcher{s}, nil, nil)

	bad := testConfig()
	bad.Keywords = nil
	if err := m.Start(ctx, bad); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}

	if err := m.Start(ctx, testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx, testConfig()); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := m.Status(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.TotalBids == 3 {
			if !st.Enabled || st.NextCheck == nil {
				t.Errorf("running monitor should report enabled with next check: %+v", st)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("immediate search did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("monitor should be stopped")
	}

	cfg, err := m.Config(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(cfg.Keywords) != fmt.Sprint(testConfig().Keywords) {
		t.Errorf("started config should be persisted, got %v", cfg.Keywords)
	}
}

func TestCleanup(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m := NewMonitor(database, nil, nil, nil)

	if _, err := m.Cleanup(ctx, 0); err == nil {
		t.Error("expected error for zero days")
	}
	n, err := m.Cleanup(ctx, 30)
	if err != nil || n != 0 {
		t.Errorf("Cleanup = %d, %v", n, err)
	}
}
