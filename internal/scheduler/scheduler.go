package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/recorder"
	"QuantSentinel/internal/watch"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Refresher forces a refetch of one key; satisfied by the cache.
type Refresher interface {
	Refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error)
}

// Analyst builds a report from cached data.
type Analyst interface {
	Analyze(ctx context.Context, symbol string) (*model.AnalysisReport, error)
}

// History is the part of the history store the scheduler maintains.
type History interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
	Purge(ctx context.Context, barsBefore, eventsBefore time.Time) (recorder.PurgeResult, error)
}

// Notifier delivers alerts. May be nil.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options tune batch refresh and cleanup.
type Options struct {
	Symbols          []string      // always refreshed, in addition to stored symbols
	Fallback         []string      // used when no symbol is known at all
	Workers          int           // concurrent refresh tasks
	TaskTimeout      time.Duration // per symbol
	RetentionDays    int           // quotes and refresh events
	BarRetentionDays int
	Tracker          *watch.Tracker // last signal per symbol; nil keeps it in memory
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Refresher
	Analyst   Analyst
	History   History
	Notifier  Notifier
	Live      collector.Connector
	Metrics   *metrics.Metrics
	Ctx       context.Context
	Now       func() time.Time

	opts Options

	signals *watch.Tracker

	mu      sync.Mutex
	last    model.BatchResult
	running sync.WaitGroup
}

// NewScheduler creates a new Scheduler. notifier and live may be nil.
func NewScheduler(ctx context.Context, refresher Refresher, analyst Analyst, history History,
	n Notifier, live collector.Connector, m *metrics.Metrics, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	signals := opts.Tracker
	if signals == nil {
		signals, _ = watch.NewTracker("")
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Refresher: refresher,
		Analyst:   analyst,
		History:   history,
		Notifier:  n,
		Live:      live,
		Metrics:   m,
		Ctx:       ctx,
		Now:       time.Now,
		opts:      opts,
		signals:   signals,
	}
}

// RegisterAll registers the batch refresh and the nightly cleanup.
func (s *Scheduler) RegisterAll(refreshCron, cleanupCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.RunRefreshNow); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(cleanupCron, s.cleanup); err != nil {
		return fmt.Errorf("register cleanup task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running batches.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.running.Wait()
	log.Println("[INFO] scheduler stopped")
}

// Symbols returns the watch list: configured symbols plus every symbol with
// stored history, or the fallback list when both are empty.
func (s *Scheduler) Symbols(ctx context.Context) []string {
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, sym := range list {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				seen[sym] = true
			}
		}
	}
	add(s.opts.Symbols)
	stored, err := s.History.ActiveSymbols(ctx)
	if err != nil {
		log.Printf("[WARN] list stored symbols: %v", err)
	}
	add(stored)
	if len(seen) == 0 {
		add(s.opts.Fallback)
	}

	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// RunRefreshNow refreshes the whole watch list.
func (s *Scheduler) RunRefreshNow() {
	s.RefreshBatch(s.Ctx, uuid.NewString(), s.Symbols(s.Ctx))
}

// Trigger starts a background refresh of symbols and returns its run id.
func (s *Scheduler) Trigger(symbols []string) string {
	id := uuid.NewString()
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.RefreshBatch(s.Ctx, id, symbols)
	}()
	return id
}

// RefreshBatch refreshes every symbol as an independent task. A failing or
// slow symbol never aborts the others.
func (s *Scheduler) RefreshBatch(ctx context.Context, runID string, symbols []string) model.BatchResult {
	start := time.Now()
	ctx = collector.WithRunID(ctx, runID)
	log.Printf("[INFO] batch %s: refreshing %d symbols", runID, len(symbols))

	var (
		mu     sync.Mutex
		failed []string
		g      errgroup.Group
	)
	g.SetLimit(s.opts.Workers)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			if err := s.refreshSymbol(ctx, sym); err != nil {
				log.Printf("[WARN] batch %s: %s: %v", runID, sym, err)
				mu.Lock()
				failed = append(failed, sym)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	sort.Strings(failed)

	res := model.BatchResult{RunID: runID, Symbols: len(symbols), Failed: failed, Duration: time.Since(start), At: s.Now()}
	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	s.Metrics.BatchRefresh(res.Duration)
	if s.Live != nil {
		s.Metrics.SetLiveConnected(s.Live.Status().Connected)
	}
	log.Printf("[INFO] batch %s: done in %s, %d failed", runID, res.Duration.Round(time.Millisecond), len(failed))
	return res
}

func (s *Scheduler) refreshSymbol(ctx context.Context, symbol string) error {
	if s.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TaskTimeout)
		defer cancel()
	}
	if _, err := s.Refresher.Refresh(ctx, symbol, model.KindSeries); err != nil {
		return err
	}
	if _, err := s.Refresher.Refresh(ctx, symbol, model.KindQuote); err != nil {
		log.Printf("[WARN] refresh quote %s: %v", symbol, err)
	}
	s.checkSignal(ctx, symbol)
	return nil
}

// checkSignal alerts when a symbol's signal differs from the previous run.
// The first observation only records the signal.
func (s *Scheduler) checkSignal(ctx context.Context, symbol string) {
	report, err := s.Analyst.Analyze(ctx, symbol)
	if err != nil {
		return
	}
	prev, changed := s.signals.Observe(symbol, report.Signal, report.Trend)
	if !changed {
		return
	}
	log.Printf("[INFO] %s signal changed: %s -> %s", symbol, prev, report.Signal)
	s.trySend(s.Ctx, notifier.FormatSignalChange(prev, report))
}

func (s *Scheduler) cleanup() {
	now := s.Now()
	barsBefore := now.AddDate(0, 0, -s.opts.BarRetentionDays)
	eventsBefore := now.AddDate(0, 0, -s.opts.RetentionDays)
	res, err := s.History.Purge(s.Ctx, barsBefore, eventsBefore)
	if err != nil {
		log.Printf("[ERROR] cleanup: %v", err)
		return
	}
	log.Printf("[INFO] cleanup: removed %d bars, %d quotes, %d refresh events", res.Bars, res.Quotes, res.Events)
}

// LastBatch returns the summary of the most recent batch run.
func (s *Scheduler) LastBatch() model.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.Help
	}
	switch strings.ToLower(fields[0]) {
	case "/analyze":
		if len(fields) < 2 {
			return "usage: /analyze SYMBOL"
		}
		symbol := strings.ToUpper(fields[1])
		report, err := s.Analyst.Analyze(ctx, symbol)
		if err != nil {
			return fmt.Sprintf("❌ %s: %v", symbol, err)
		}
		return notifier.FormatReport(report)
	case "/status":
		st := collector.Status{Source: "none"}
		if s.Live != nil {
			st = s.Live.Status()
		}
		return notifier.FormatStatus(st, s.Symbols(ctx), s.LastBatch())
	case "/signals":
		marks := make(map[string]model.SignalMark)
		for _, sym := range s.signals.Symbols() {
			marks[sym], _ = s.signals.Get(sym)
		}
		return notifier.FormatSignals(marks)
	default:
		return notifier.Help
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
		return
	}
	s.Metrics.AlertSent()
}
