package batch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mkofler/tickpoll/internal/model"
)

// InsertStatement renders one change row. The statement shape is stable
// for downstream consumers; values never contain semicolons, which the
// store relies on when splitting a batch.
func InsertStatement(canonicalName, day, instant string, price float64) string {
	rounded := decimal.NewFromFloat(price).Round(2).StringFixed(2)
	return fmt.Sprintf(
		"INSERT INTO %stable (ONNN, ATTT, PRIC) VALUES ('%s', '%s', %s);",
		model.SanitizeIdentifier(canonicalName), day, instant, rounded,
	)
}

// Pending accumulates serialized insert statements for one exchange.
// Append holds an internal lock so multiple workers can share a sink;
// the flush-and-clear cycle is additionally serialized by the owning
// Sink's flush mutex.
type Pending struct {
	mu    sync.Mutex
	stmts []string
}

// Append adds one statement to the batch.
func (p *Pending) Append(stmt string) {
	p.mu.Lock()
	p.stmts = append(p.stmts, stmt)
	p.mu.Unlock()
}

// Len returns the number of buffered statements.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stmts)
}

// Take removes and returns the buffered statements as one batch string.
// Returns "" when nothing is pending.
func (p *Pending) Take() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stmts) == 0 {
		return ""
	}
	batch := strings.Join(p.stmts, "\n")
	p.stmts = nil
	return batch
}

// Restore puts a previously taken batch back at the front, ahead of
// anything appended since. Used when a flush fails so rows are retried
// rather than dropped.
func (p *Pending) Restore(batch string) {
	if batch == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stmts = append([]string{batch}, p.stmts...)
}

// Sink pairs an exchange's pending batch with its flush mutex and the
// database target its rows belong to. One Sink per exchange, shared by
// every worker polling that exchange and kept across scheduler cycles
// so the mutex identity is stable.
type Sink struct {
	ExchangeID string
	Target     string

	mu      sync.Mutex // serializes flushes for this exchange
	pending Pending
}

// NewSink creates a sink for one exchange.
func NewSink(exchangeID, target string) *Sink {
	return &Sink{ExchangeID: exchangeID, Target: target}
}

// Append buffers one statement.
func (s *Sink) Append(stmt string) {
	s.pending.Append(stmt)
}

// PendingLen returns the number of buffered statements.
func (s *Sink) PendingLen() int {
	return s.pending.Len()
}
