package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeExecutor records executed batches and can inject latency/errors.
type fakeExecutor struct {
	mu      sync.Mutex
	batches map[string][]string // target -> batches

	delay time.Duration
	err   error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{batches: make(map[string][]string)}
}

func (f *fakeExecutor) ExecuteBatch(ctx context.Context, target string, statements string) error {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		old := f.maxInFlight.Load()
		if current <= old || f.maxInFlight.CompareAndSwap(old, current) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return f.err
	}

	f.mu.Lock()
	f.batches[target] = append(f.batches[target], statements)
	f.mu.Unlock()
	return nil
}

func TestFlusherWritesBatch(t *testing.T) {
	exec := newFakeExecutor()
	f := NewFlusher(exec, nil)

	sink := NewSink("NYSE", "quotes")
	sink.Append("INSERT 1;")
	sink.Append("INSERT 2;")

	f.Flush(context.Background(), sink)

	if got := len(exec.batches["quotes"]); got != 1 {
		t.Fatalf("executed batches = %d, want 1", got)
	}
	if exec.batches["quotes"][0] != "INSERT 1;\nINSERT 2;" {
		t.Errorf("batch = %q", exec.batches["quotes"][0])
	}
	if sink.PendingLen() != 0 {
		t.Errorf("PendingLen() after flush = %d, want 0", sink.PendingLen())
	}
}

func TestFlusherEmptySinkIsNoop(t *testing.T) {
	exec := newFakeExecutor()
	f := NewFlusher(exec, nil)

	f.Flush(context.Background(), NewSink("NYSE", "quotes"))

	if len(exec.batches) != 0 {
		t.Errorf("executed batches = %v, want none", exec.batches)
	}
}

func TestFlusherRetainsBatchOnError(t *testing.T) {
	exec := newFakeExecutor()
	exec.err = errors.New("connection lost")
	f := NewFlusher(exec, nil)

	sink := NewSink("NYSE", "quotes")
	sink.Append("INSERT 1;")

	f.Flush(context.Background(), sink)

	if sink.PendingLen() != 1 {
		t.Fatalf("PendingLen() after failed flush = %d, want 1", sink.PendingLen())
	}

	// Next flush succeeds and carries the retained rows.
	exec.err = nil
	f.Flush(context.Background(), sink)

	if got := len(exec.batches["quotes"]); got != 1 {
		t.Fatalf("executed batches = %d, want 1", got)
	}
	if exec.batches["quotes"][0] != "INSERT 1;" {
		t.Errorf("batch = %q", exec.batches["quotes"][0])
	}
}

func TestSameExchangeFlushesNeverInterleave(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = 30 * time.Millisecond
	f := NewFlusher(exec, nil)

	sink := NewSink("NYSE", "quotes")

	for i := 0; i < 4; i++ {
		sink.Append("INSERT 1;")
		f.FlushAsync(context.Background(), sink)
	}
	f.Wait()

	if got := exec.maxInFlight.Load(); got > 1 {
		t.Errorf("maxInFlight = %d, want 1 for a single exchange", got)
	}
}

func TestDifferentExchangesFlushInParallel(t *testing.T) {
	exec := newFakeExecutor()
	exec.delay = 50 * time.Millisecond
	f := NewFlusher(exec, nil)

	a := NewSink("NYSE", "quotes")
	b := NewSink("SYD", "quotes")
	a.Append("INSERT 1;")
	b.Append("INSERT 2;")

	start := time.Now()
	f.FlushAsync(context.Background(), a)
	f.FlushAsync(context.Background(), b)
	f.Wait()
	elapsed := time.Since(start)

	if got := exec.maxInFlight.Load(); got < 2 {
		t.Errorf("maxInFlight = %d, want 2 for independent exchanges", got)
	}
	if elapsed > 95*time.Millisecond {
		t.Errorf("elapsed = %v, want parallel flushes well under 2x delay", elapsed)
	}
}
