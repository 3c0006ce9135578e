package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mkofler/tickpoll/internal/batch"
	"github.com/mkofler/tickpoll/internal/calendar"
	"github.com/mkofler/tickpoll/internal/feed"
	"github.com/mkofler/tickpoll/internal/model"
	"github.com/mkofler/tickpoll/internal/worker"
)

// ConfigSource supplies the static configuration each cycle reads.
type ConfigSource interface {
	LoadConfiguration() (windows []model.MarketWindow, groups []model.InstrumentGroup, aliases map[string]string, err error)
}

// ConfigSourceFunc is a function adapter for ConfigSource.
type ConfigSourceFunc func() ([]model.MarketWindow, []model.InstrumentGroup, map[string]string, error)

func (f ConfigSourceFunc) LoadConfiguration() ([]model.MarketWindow, []model.InstrumentGroup, map[string]string, error) {
	return f()
}

// Config holds scheduler configuration.
type Config struct {
	CycleInterval time.Duration // Time between dispatch rounds
	Worker        worker.Config // Passed to every dispatched worker
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CycleInterval: 6 * time.Hour,
		Worker:        worker.DefaultConfig(),
	}
}

// Scheduler owns the outer cycle: every CycleInterval it reloads
// configuration, checks which exchanges are open, and dispatches one
// poll worker per open (group, exchange) pair. Workers from the
// previous cycle are canceled at the boundary; each cycle starts from
// a cold symbol cache.
type Scheduler struct {
	cfg       Config
	source    ConfigSource
	feeds     feed.Directory
	seeder    worker.Seeder
	flusher   *batch.Flusher
	crossings worker.CrossingHandler
	logger    *slog.Logger
	now       func() time.Time

	// Sinks are keyed by exchange and survive cycles so the flush
	// mutex identity is stable.
	sinksMu sync.Mutex
	sinks   map[string]*batch.Sink

	liveWorkers atomic.Int64
	cycleID     atomic.Value // string

	cycleCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(
	cfg Config,
	source ConfigSource,
	feeds feed.Directory,
	seeder worker.Seeder,
	flusher *batch.Flusher,
	crossings worker.CrossingHandler,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		source:    source,
		feeds:     feeds,
		seeder:    seeder,
		flusher:   flusher,
		crossings: crossings,
		logger:    logger,
		now:       time.Now,
		sinks:     make(map[string]*batch.Sink),
	}
}

// Start runs the first cycle synchronously, then continues in the
// background. A configuration failure on the first cycle is fatal: the
// engine must not come up with no exchanges.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.runCycle(); err != nil {
		s.cancel()
		return err
	}

	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started", "cycle_interval", s.cfg.CycleInterval)
	return nil
}

// Stop cancels all workers and waits for them to finish their
// teardown flushes.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.flusher.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LiveWorkers returns the number of currently running poll workers.
func (s *Scheduler) LiveWorkers() int64 {
	return s.liveWorkers.Load()
}

// CurrentCycle returns the ID of the most recently dispatched cycle.
func (s *Scheduler) CurrentCycle() string {
	if v, ok := s.cycleID.Load().(string); ok {
		return v
	}
	return ""
}

// run dispatches a cycle every CycleInterval.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.runCycle(); err != nil {
				// Later cycles are not fatal; the next tick retries.
				s.logger.Error("cycle aborted", "error", err)
			}
		}
	}
}

// runCycle reloads configuration and dispatches workers for every open
// pair. A failed window lookup skips only that pair.
func (s *Scheduler) runCycle() error {
	windows, groups, aliases, err := s.source.LoadConfiguration()
	if err != nil {
		return err
	}

	// Workers still running from the previous cycle are stale; tell
	// them to stop rather than abandoning them.
	if s.cycleCancel != nil {
		s.cycleCancel()
	}
	cycleCtx, cancel := context.WithCancel(s.ctx)
	s.cycleCancel = cancel

	cal := calendar.New(windows)
	cycleID := uuid.New().String()
	s.cycleID.Store(cycleID)
	now := s.now()

	logger := s.logger.With("cycle", cycleID)

	var dispatched, closed, skipped int
	for _, group := range groups {
		open, err := cal.IsOpen(group.ExchangeID, now)
		if err != nil {
			logger.Warn("skipping pair, window lookup failed",
				"group", group.DisplayAlias,
				"exchange", group.ExchangeID,
				"error", err,
			)
			skipped++
			continue
		}
		if !open {
			closed++
			continue
		}

		src, err := s.feeds.For(group.Provider)
		if err != nil {
			logger.Warn("skipping pair, no feed for provider",
				"group", group.DisplayAlias,
				"provider", group.Provider,
				"error", err,
			)
			skipped++
			continue
		}

		w := worker.New(
			s.cfg.Worker,
			group,
			aliases,
			src,
			s.seeder,
			s.sinkFor(group.ExchangeID, group.DatabaseTarget),
			s.flusher,
			s.crossings,
			logger,
		)

		s.wg.Add(1)
		s.liveWorkers.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.liveWorkers.Add(-1)
			w.Run(cycleCtx)
		}()
		dispatched++
	}

	logger.Info("cycle dispatched",
		"workers", dispatched,
		"closed", closed,
		"skipped", skipped,
	)
	return nil
}

// sinkFor returns the persistent sink for an exchange, creating it on
// first use.
func (s *Scheduler) sinkFor(exchangeID, target string) *batch.Sink {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()

	sink, ok := s.sinks[exchangeID]
	if !ok {
		sink = batch.NewSink(exchangeID, target)
		s.sinks[exchangeID] = sink
	} else if sink.Target != target {
		s.logger.Warn("exchange sink target mismatch, keeping original",
			"exchange", exchangeID,
			"have", sink.Target,
			"want", target,
		)
	}
	return sink
}
