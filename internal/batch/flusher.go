package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Executor persists a batch of statements against a named target.
type Executor interface {
	ExecuteBatch(ctx context.Context, target string, statements string) error
}

// Flusher drains pending batches to storage. Workers hand off a sink
// and continue polling immediately; the write happens on a separate
// goroutine under the sink's flush mutex, so two flushes for the same
// exchange never interleave while different exchanges proceed in
// parallel.
type Flusher struct {
	exec   Executor
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewFlusher creates a Flusher over an executor.
func NewFlusher(exec Executor, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{exec: exec, logger: logger}
}

// Flush synchronously drains the sink. A failed write restores the
// batch so the next flush attempt retries it.
func (f *Flusher) Flush(ctx context.Context, sink *Sink) {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	batch := sink.pending.Take()
	if batch == "" {
		return
	}

	start := time.Now()
	if err := f.exec.ExecuteBatch(ctx, sink.Target, batch); err != nil {
		f.logger.Error("flush failed, batch retained",
			"exchange", sink.ExchangeID,
			"target", sink.Target,
			"error", err,
		)
		sink.pending.Restore(batch)
		return
	}

	f.logger.Debug("flushed batch",
		"exchange", sink.ExchangeID,
		"target", sink.Target,
		"duration", time.Since(start),
	)
}

// FlushAsync drains the sink on a background goroutine. The caller
// does not block on I/O latency.
func (f *Flusher) FlushAsync(ctx context.Context, sink *Sink) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.Flush(ctx, sink)
	}()
}

// Wait blocks until all in-flight async flushes complete.
func (f *Flusher) Wait() {
	f.wg.Wait()
}
