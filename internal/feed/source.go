package feed

import (
	"context"
	"fmt"

	"github.com/mkofler/tickpoll/internal/model"
)

// Source provides the latest quotes for a symbol list.
type Source interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]model.QuoteSample, error)
}

// SourceFunc is a function adapter for Source.
type SourceFunc func(ctx context.Context, symbols []string) ([]model.QuoteSample, error)

func (f SourceFunc) FetchQuotes(ctx context.Context, symbols []string) ([]model.QuoteSample, error) {
	return f(ctx, symbols)
}

// Directory maps provider codes to their configured sources.
type Directory map[model.Provider]Source

// For returns the source serving a provider.
func (d Directory) For(p model.Provider) (Source, error) {
	src, ok := d[p]
	if !ok {
		return nil, fmt.Errorf("no quote source configured for provider %q", p)
	}
	return src, nil
}
