// Package nara watches public bid boards for keywords and records new
// tenders.
package nara

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

const (
	maxErrors = 100
	lockKey   = "jaego:nara:search"
)

// ErrSearchInProgress is returned by RunOnce while another search runs.
var ErrSearchInProgress = errors.New("search already in progress")

// Status is the monitor state reported to clients.
type Status struct {
	Enabled   bool       `json:"enabled"`
	LastCheck *time.Time `json:"last_check"`
	TotalBids int        `json:"total_bids"`
	NewBids   int        `json:"new_bids"`
	Errors    []string   `json:"errors"`
	NextCheck *time.Time `json:"next_check"`
}

// Report summarizes one search pass.
type Report struct {
	Skipped string   `json:"skipped,omitempty"`
	Found   int      `json:"found"`
	New     int      `json:"new"`
	Errors  []string `json:"errors"`
}

// Monitor periodically searches the configured sources.
type Monitor struct {
	db        *sqlx.DB
	searchers []Searcher
	notifier  Notifier
	locker    Locker
	now       func() time.Time

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	cfg       Config
	searching bool
	lastCheck time.Time
	nextCheck time.Time
	errors    []string
}

// NewMonitor creates a stopped monitor. notifier and locker may be nil.
func NewMonitor(database *sqlx.DB, searchers []Searcher, notifier Notifier, locker Locker) *Monitor {
	return &Monitor{
		db:        database,
		searchers: searchers,
		notifier:  notifier,
		locker:    locker,
		now:       time.Now,
		cfg:       DefaultConfig(),
	}
}

// Start saves cfg and begins monitoring: one search right away, then one
// per interval. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if err := SaveConfig(ctx, m.db, cfg); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cfg = cfg
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.errors = nil
	m.nextCheck = m.now().Add(cfg.Interval())

	go m.loop(runCtx, cfg.Interval(), m.done)

	slog.Info("bid monitoring started", "keywords", cfg.Keywords, "interval", cfg.Interval())
	return nil
}

// Stop halts monitoring and waits for an in-flight search to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done
	slog.Info("bid monitoring stopped")
}

// Running reports whether the monitor loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	m.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			m.nextCheck = m.now().Add(interval)
			m.mu.Unlock()
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	report, err := m.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrSearchInProgress):
		slog.Info("bid search skipped", "reason", "previous search still running")
	case err != nil:
		slog.Error("bid search failed", "error", err)
	case report.Skipped != "":
		slog.Info("bid search skipped", "reason", report.Skipped)
	default:
		slog.Info("bid search finished", "found", report.Found, "new", report.New, "errors", len(report.Errors))
	}
}

// RunOnce performs a single search pass with the current configuration.
func (m *Monitor) RunOnce(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	if m.searching {
		m.mu.Unlock()
		return nil, ErrSearchInProgress
	}
	m.searching = true
	cfg := m.cfg
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.searching = false
		m.mu.Unlock()
	}()

	now := m.now()
	if cfg.WorkHoursOnly && !cfg.IsWorkTime(now) {
		return &Report{Skipped: "outside work hours", Errors: []string{}}, nil
	}

	if m.locker != nil {
		ok, err := m.locker.Acquire(ctx, lockKey, cfg.Interval()*9/10)
		if err != nil {
			m.recordErrors(err.Error())
			return nil, err
		}
		if !ok {
			return &Report{Skipped: "another instance holds the search lease", Errors: []string{}}, nil
		}
	}

	m.mu.Lock()
	m.lastCheck = now
	m.mu.Unlock()

	since := now.AddDate(0, 0, -cfg.ImmediateSearchDays)
	res := searchAll(ctx, cfg, m.searchers, since, retryBackoff(cfg))

	report := &Report{Found: len(res.bids), Errors: res.errors}
	if report.Errors == nil {
		report.Errors = []string{}
	}

	var fresh []model.BidItem
	for i := range res.bids {
		bid := res.bids[i]
		isNew, err := store.InsertBid(ctx, m.db, &bid)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		if isNew {
			fresh = append(fresh, bid)
		}
	}
	report.New = len(fresh)

	if len(fresh) > 0 && cfg.TelegramEnabled && m.notifier != nil {
		if err := m.notifier.Notify(ctx, cfg, fresh); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("telegram: %v", err))
		}
	}

	m.recordErrors(report.Errors...)
	return report, nil
}

func (m *Monitor) recordErrors(errs ...string) {
	if len(errs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, errs...)
	if len(m.errors) > maxErrors {
		m.errors = m.errors[len(m.errors)-maxErrors:]
	}
}

// SetConfig validates, saves and applies cfg. A running monitor picks the
// new keywords up on its next tick; a new interval needs a restart.
func (m *Monitor) SetConfig(ctx context.Context, cfg Config) error {
	if err := SaveConfig(ctx, m.db, cfg); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Config returns the configuration in use, loading the saved one when the
// monitor has not been started.
func (m *Monitor) Config(ctx context.Context) (Config, error) {
	if m.Running() {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.cfg, nil
	}
	cfg, err := LoadConfig(ctx, m.db)
	if err != nil {
		return Config{}, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Status reports the monitor state and bid counts.
func (m *Monitor) Status(ctx context.Context) (*Status, error) {
	total, recent, err := store.CountBids(ctx, m.db, m.now().Add(-time.Hour))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := &Status{
		Enabled:   m.running,
		TotalBids: total,
		NewBids:   recent,
		Errors:    append([]string{}, m.errors...),
	}
	if !m.lastCheck.IsZero() {
		t := m.lastCheck
		st.LastCheck = &t
	}
	if m.running {
		t := m.nextCheck
		st.NextCheck = &t
	}
	return st, nil
}

// ClearErrors empties the error log.
func (m *Monitor) ClearErrors() {
	m.mu.Lock()
	m.errors = nil
	m.mu.Unlock()
}

// Bids returns stored bids matching the filter.
func (m *Monitor) Bids(ctx context.Context, f model.BidFilter) ([]model.BidItem, error) {
	return store.ListBids(ctx, m.db, f)
}

// Cleanup removes bids older than days and returns how many were removed.
func (m *Monitor) Cleanup(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, model.InvalidArgument("days must be at least 1")
	}
	n, err := store.DeleteBidsBefore(ctx, m.db, m.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, err
	}
	slog.Info("old bids removed", "days", days, "count", n)
	return n, nil
}
