package worker

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mkofler/tickpoll/internal/batch"
	"github.com/mkofler/tickpoll/internal/feed"
	"github.com/mkofler/tickpoll/internal/model"
)

// Seeder supplies historical extremes when a symbol is first seen in a
// cycle.
type Seeder interface {
	GetHighLow(ctx context.Context, canonicalName, target string) (high, low float64)
}

// CrossingEvent is a price update that moved past the cached high or
// low for a symbol. Informational; nothing downstream depends on it.
type CrossingEvent struct {
	Symbol   string
	Day      string
	Instant  string
	Price    float64
	PrevHigh float64
	PrevLow  float64
}

// CrossingHandler receives crossing events.
type CrossingHandler interface {
	HandleCrossing(ev CrossingEvent)
}

// CrossingHandlerFunc is a function adapter for CrossingHandler.
type CrossingHandlerFunc func(CrossingEvent)

func (f CrossingHandlerFunc) HandleCrossing(ev CrossingEvent) {
	f(ev)
}

// Config holds poll worker configuration.
type Config struct {
	FlushEvery    int             // Iterations between async flushes
	JitterMax     time.Duration   // Upper bound of the per-iteration random sleep
	FetchTimeout  time.Duration   // Deadline applied to each quote fetch
	BackoffDelays []time.Duration // Escalating sleeps on stalled data; exhaustion stops the worker
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FlushEvery:    50,
		JitterMax:     2 * time.Second,
		FetchTimeout:  10 * time.Second,
		BackoffDelays: DefaultBackoffDelays(),
	}
}

// DefaultBackoffDelays returns the escalation sequence applied when
// repeated polls yield no price movement.
func DefaultBackoffDelays() []time.Duration {
	return []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second, 60 * time.Second}
}

// Worker polls one instrument group for as long as its exchange keeps
// producing fresh prices. Each symbol's cached state is owned solely by
// this worker and discarded when the worker stops; a new cycle starts
// cold.
type Worker struct {
	cfg       Config
	group     model.InstrumentGroup
	aliases   map[string]string
	source    feed.Source
	seeder    Seeder
	sink      *batch.Sink
	flusher   *batch.Flusher
	crossings CrossingHandler
	logger    *slog.Logger
}

// workerState is everything one run mutates: the symbol cache, the
// stall counter, and the iteration count driving periodic flushes.
type workerState struct {
	symbols  map[string]*model.SymbolState
	attempts int
	iter     int
}

// New creates a poll worker bound to one instrument group.
func New(
	cfg Config,
	group model.InstrumentGroup,
	aliases map[string]string,
	source feed.Source,
	seeder Seeder,
	sink *batch.Sink,
	flusher *batch.Flusher,
	crossings CrossingHandler,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.BackoffDelays) == 0 {
		cfg.BackoffDelays = DefaultBackoffDelays()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	return &Worker{
		cfg:       cfg,
		group:     group,
		aliases:   aliases,
		source:    source,
		seeder:    seeder,
		sink:      sink,
		flusher:   flusher,
		crossings: crossings,
		logger: logger.With(
			"group", group.DisplayAlias,
			"exchange", group.ExchangeID,
		),
	}
}

// Run polls until the backoff sequence is exhausted (the exchange has
// stopped producing data, presumed closed) or the context is canceled.
// Whatever is pending gets flushed on the way out.
func (w *Worker) Run(ctx context.Context) {
	st := &workerState{symbols: make(map[string]*model.SymbolState)}

	start := time.Now()
	w.logger.Info("poll worker started", "symbols", len(w.group.Symbols))

	// The final flush must survive cycle cancellation.
	defer func() {
		w.flusher.Flush(context.WithoutCancel(ctx), w.sink)
		w.logger.Info("poll worker stopped",
			"iterations", st.iter,
			"duration", time.Since(start),
		)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if st.attempts >= len(w.cfg.BackoffDelays) {
			w.logger.Info("no price movement across backoff sequence, presuming exchange closed")
			return
		}

		moved := w.poll(ctx, st)
		st.iter++

		if w.cfg.FlushEvery > 0 && st.iter%w.cfg.FlushEvery == 0 {
			w.flusher.FlushAsync(ctx, w.sink)
		}

		if moved {
			st.attempts = 0
		} else {
			if !sleep(ctx, w.cfg.BackoffDelays[st.attempts]) {
				return
			}
			st.attempts++
		}

		// Small random delay so many workers hitting the same upstream
		// source stay desynchronized.
		if w.cfg.JitterMax > 0 {
			if !sleep(ctx, rand.N(w.cfg.JitterMax)) {
				return
			}
		}
	}
}

// poll runs one fetch-and-evaluate iteration. Returns true if any
// symbol's price changed. A failed fetch counts as no movement.
func (w *Worker) poll(ctx context.Context, st *workerState) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	samples, err := w.source.FetchQuotes(fetchCtx, w.group.Symbols)
	cancel()
	if err != nil {
		w.logger.Warn("quote fetch failed", "error", err)
		return false
	}

	moved := false
	for _, sample := range samples {
		if w.apply(ctx, st, sample) {
			moved = true
		}
	}
	return moved
}

// apply folds one sample into the symbol cache. Returns true when the
// price changed and a row was emitted.
func (w *Worker) apply(ctx context.Context, st *workerState, sample model.QuoteSample) bool {
	canonical := model.ResolveCanonical(sample.Symbol, w.aliases)
	if canonical == "" {
		w.logger.Warn("symbol resolves to empty canonical name, dropping", "symbol", sample.Symbol)
		return false
	}

	s, ok := st.symbols[canonical]
	if !ok {
		high, low := w.seeder.GetHighLow(ctx, canonical, w.group.DatabaseTarget)
		st.symbols[canonical] = model.NewSymbolState(sample, high, low)
		return false
	}

	if sample.Price == s.LastPrice {
		return false
	}

	if sample.Price > s.High || sample.Price < s.Low {
		if w.crossings != nil {
			w.crossings.HandleCrossing(CrossingEvent{
				Symbol:   canonical,
				Day:      sample.Day,
				Instant:  sample.Instant,
				Price:    sample.Price,
				PrevHigh: s.High,
				PrevLow:  s.Low,
			})
		}
		if sample.Price > s.High {
			s.High = sample.Price
		}
		if sample.Price < s.Low {
			s.Low = sample.Price
		}
	}

	s.Day = sample.Day
	s.Instant = sample.Instant
	s.LastPrice = sample.Price

	w.sink.Append(batch.InsertStatement(canonical, sample.Day, sample.Instant, sample.Price))
	return true
}

// sleep waits for d or until the context is canceled. Returns false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
