package repo

import (
	"context"
	"log/slog"

	"morehradar/server/internal/model"
)

// Fallback degrades reads to the seed dataset when the primary store
// fails or returns nothing, instead of surfacing an error to the user.
// Writes always target the primary.
type Fallback struct {
	primary Repository
	seed    *Seed
	logger  *slog.Logger
}

// NewFallback wraps a primary repository with demo-mode degradation.
func NewFallback(primary Repository, seed *Seed, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, seed: seed, logger: logger}
}

// FetchAll returns the primary's signals, or the seed data on failure or
// an empty result.
func (f *Fallback) FetchAll(ctx context.Context) ([]model.Signal, error) {
	signals, err := f.primary.FetchAll(ctx)
	if err != nil {
		f.logger.Warn("primary fetch failed, serving seed data", "error", err)
		return f.seed.FetchAll(ctx)
	}
	if len(signals) == 0 {
		return f.seed.FetchAll(ctx)
	}
	return signals, nil
}

// Insert writes to the primary store.
func (f *Fallback) Insert(ctx context.Context, draft model.Draft) error {
	return f.primary.Insert(ctx, draft)
}

// Update writes to the primary store.
func (f *Fallback) Update(ctx context.Context, id int64, fields Fields) error {
	return f.primary.Update(ctx, id, fields)
}

// Subscribe registers the callback with both sources.
func (f *Fallback) Subscribe(fn func()) func() {
	unsubPrimary := f.primary.Subscribe(fn)
	unsubSeed := f.seed.Subscribe(fn)
	return func() {
		unsubPrimary()
		unsubSeed()
	}
}
