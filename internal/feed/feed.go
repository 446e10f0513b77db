// Package feed turns the raw signal collection into the filtered, sorted,
// distance-annotated view consumed by the map and list presentations, and
// owns the new-signal diffing used for Rezeki alerts.
package feed

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"morehradar/server/internal/geo"
	"morehradar/server/internal/model"
	"morehradar/server/internal/timefmt"
)

// ComputeView annotates each signal with the viewer-relative distance,
// drops signals beyond maxDistanceKm, and orders the remainder: ACTIVE
// before FINISHED, then ascending distance when both distances are known.
//
// Signals with an unknown distance (nil viewer) always pass the filter and
// are never reordered by the distance key; the sort is stable, so a fixed
// input always yields the same sequence.
func ComputeView(signals []model.Signal, viewer *model.Coordinate, maxDistanceKm float64) []model.RankedSignal {
	view := make([]model.RankedSignal, 0, len(signals))
	for _, s := range signals {
		ranked := model.RankedSignal{Signal: s}
		if viewer != nil {
			d := geo.DistanceKm(*viewer, s.Position)
			ranked.DistanceKm = &d
		}
		if ranked.DistanceKm != nil && *ranked.DistanceKm > maxDistanceKm {
			continue
		}
		view = append(view, ranked)
	}

	sort.SliceStable(view, func(i, j int) bool {
		a, b := view[i], view[j]
		if a.Status != b.Status {
			return a.Status == model.StatusActive
		}
		if a.DistanceKm == nil || b.DistanceKm == nil {
			return false
		}
		return *a.DistanceKm < *b.DistanceKm
	})

	return view
}

// Stats holds the aggregate counters shown in the stats bar.
type Stats struct {
	Active    int `json:"active"`
	ActivePax int `json:"active_pax"`
	TotalPax  int `json:"total_pax"`
}

// Summarize computes the stats-bar aggregates over the full collection.
func Summarize(signals []model.Signal) Stats {
	var st Stats
	for _, s := range signals {
		st.TotalPax += s.Pax
		if s.Status == model.StatusActive {
			st.Active++
			st.ActivePax += s.Pax
		}
	}
	return st
}

// TickerLines renders the bottom-ticker text for each signal.
func TickerLines(signals []model.Signal, now time.Time) []string {
	lines := make([]string, 0, len(signals))
	for _, s := range signals {
		age := timefmt.ShortAge(s.LastUpdated, now)
		if s.Status == model.StatusActive {
			lines = append(lines, fmt.Sprintf(">> %s — %s (%d pax) [%s]", s.Name, s.FoodDesc, s.Pax, age))
		} else {
			lines = append(lines, fmt.Sprintf(">> %s — HABIS [%s]", s.Name, age))
		}
	}
	return lines
}

// Tracker retains the set of signal ids observed on the previous refresh
// and reports signals that have newly appeared in ACTIVE state.
type Tracker struct {
	mu     sync.Mutex
	seen   map[int64]struct{}
	primed bool
}

// NewTracker returns an unprimed tracker; its first observation is a
// baseline and reports nothing.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[int64]struct{})}
}

// Observe diffs the snapshot against the previously retained id set and
// returns the signals that are ACTIVE and previously unseen, in collection
// order. The retained set is replaced with the snapshot's full id set
// under the same lock, so an interleaved refresh cannot read a stale set.
func (t *Tracker) Observe(signals []model.Signal) []model.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []model.Signal
	if t.primed {
		for _, s := range signals {
			if s.Status != model.StatusActive {
				continue
			}
			if _, ok := t.seen[s.ID]; !ok {
				fresh = append(fresh, s)
			}
		}
	}

	next := make(map[int64]struct{}, len(signals))
	for _, s := range signals {
		next[s.ID] = struct{}{}
	}
	t.seen = next
	t.primed = true

	return fresh
}

// Reset drops the retained set so the next observation is a baseline again.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[int64]struct{})
	t.primed = false
}
