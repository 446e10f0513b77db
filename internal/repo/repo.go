// Package repo implements the signal repository boundary: fetch-all,
// insert-one, update-one and a payloadless change subscription, backed by
// SQLite or, in demo mode, an in-memory seed collection.
package repo

import (
	"context"
	"sync"
	"time"

	"morehradar/server/internal/model"
)

// Fields lists the mutable columns of a signal; nil members are left
// untouched by Update.
type Fields struct {
	Pax         *int
	Claims      *int
	Status      *model.Status
	LastUpdated *time.Time
}

// Repository is the store boundary consumed by the rest of the server.
// FetchAll delivers signals ordered by last_updated descending; the feed
// engine re-sorts and does not rely on that ordering.
type Repository interface {
	FetchAll(ctx context.Context) ([]model.Signal, error)
	Insert(ctx context.Context, draft model.Draft) error
	Update(ctx context.Context, id int64, fields Fields) error

	// Subscribe registers a callback fired after every successful local
	// mutation. The callback carries no payload; subscribers refetch.
	Subscribe(fn func()) (unsubscribe func())
}

// notifier implements the shared subscriber bookkeeping.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func (n *notifier) subscribe(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func())
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
