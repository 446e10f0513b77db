package repo

import (
	"context"
	"sync"
	"time"

	"morehradar/server/internal/model"
)

// Seed is the in-memory demo-mode repository. It starts from the fixed
// seed dataset and mutates a local in-process collection.
type Seed struct {
	mu      sync.Mutex
	signals []model.Signal
	nextID  int64
	notifier
}

// NewSeed returns a repository pre-populated with the demo dataset.
func NewSeed(now time.Time) *Seed {
	signals := model.SeedSignals(now)
	var maxID int64
	for _, s := range signals {
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	return &Seed{signals: signals, nextID: maxID + 1}
}

// FetchAll returns a copy of the current collection, newest first.
func (s *Seed) FetchAll(ctx context.Context) ([]model.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Signal, len(s.signals))
	copy(out, s.signals)
	return out, nil
}

// Insert prepends a new signal, assigning the next id.
func (s *Seed) Insert(ctx context.Context, draft model.Draft) error {
	s.mu.Lock()

	lastUpdated := draft.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	sig := model.Signal{
		ID:            s.nextID,
		Name:          draft.Name,
		Position:      draft.Position,
		FoodDesc:      draft.FoodDesc,
		Pax:           draft.Pax,
		Status:        draft.Status,
		PostedByName:  draft.PostedByName,
		PostedByEmail: draft.PostedByEmail,
		LastUpdated:   lastUpdated,
	}
	s.nextID++
	s.signals = append([]model.Signal{sig}, s.signals...)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Update mutates the provided fields of one signal; an unknown id is a
// no-op, matching the hosted store's behavior.
func (s *Seed) Update(ctx context.Context, id int64, fields Fields) error {
	s.mu.Lock()
	changed := false
	for i := range s.signals {
		if s.signals[i].ID != id {
			continue
		}
		if fields.Pax != nil {
			s.signals[i].Pax = *fields.Pax
		}
		if fields.Claims != nil {
			s.signals[i].Claims = *fields.Claims
		}
		if fields.Status != nil {
			s.signals[i].Status = *fields.Status
		}
		if fields.LastUpdated != nil {
			s.signals[i].LastUpdated = *fields.LastUpdated
		}
		changed = true
		break
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Subscribe registers a change callback.
func (s *Seed) Subscribe(fn func()) func() {
	return s.subscribe(fn)
}
