package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"morehradar/server/internal/model"
	"morehradar/server/internal/repo"
)

// AlertFunc receives each newly appeared ACTIVE signal.
type AlertFunc func(model.Signal)

// Refresher runs the refetch-and-recompute cycle behind the feed. Every
// change notification triggers a full refetch; a cycle that resolves after
// a newer cycle has already been applied is discarded, so only the most
// recently completed cycle's snapshot is ever visible.
type Refresher struct {
	repo    repo.Repository
	tracker *Tracker
	onAlert AlertFunc
	logger  *slog.Logger

	gen atomic.Uint64

	mu      sync.Mutex
	applied uint64
	latest  []model.Signal
	ready   bool
}

// NewRefresher wires a refresher over the repository. onAlert may be nil.
func NewRefresher(r repo.Repository, onAlert AlertFunc, logger *slog.Logger) *Refresher {
	return &Refresher{
		repo:    r,
		tracker: NewTracker(),
		onAlert: onAlert,
		logger:  logger,
	}
}

// Start performs the initial refresh and subscribes to repository changes.
// The returned function unsubscribes.
func (r *Refresher) Start(ctx context.Context) func() {
	r.Refresh(ctx)
	return r.repo.Subscribe(func() {
		go r.Refresh(ctx)
	})
}

// Refresh runs one refetch-and-recompute cycle. Safe for concurrent use;
// stale cycles are suppressed by generation number.
func (r *Refresher) Refresh(ctx context.Context) {
	gen := r.gen.Add(1)

	signals, err := r.repo.FetchAll(ctx)
	if err != nil {
		r.logger.Warn("feed refresh failed", "error", err)
		return
	}

	r.mu.Lock()
	if gen <= r.applied {
		r.mu.Unlock()
		r.logger.Debug("discarding stale refresh cycle", "gen", gen)
		return
	}
	r.applied = gen
	r.latest = signals
	r.ready = true
	fresh := r.tracker.Observe(signals)
	r.mu.Unlock()

	for _, s := range fresh {
		r.logger.Info("new active signal", "id", s.ID, "name", s.Name, "pax", s.Pax)
		if r.onAlert != nil {
			r.onAlert(s)
		}
	}
}

// Snapshot returns a copy of the most recently applied collection.
func (r *Refresher) Snapshot() []model.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Signal, len(r.latest))
	copy(out, r.latest)
	return out
}

// Lookup finds one signal in the latest snapshot.
func (r *Refresher) Lookup(id int64) (model.Signal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.latest {
		if s.ID == id {
			return s, true
		}
	}
	return model.Signal{}, false
}

// Ready reports whether a first cycle has completed.
func (r *Refresher) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}
