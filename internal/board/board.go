// Package board orchestrates the user-facing operations (claim, broadcast,
// mark finished) over the repository and the local claim ledger. All three
// are fire-and-confirm: repository effects are not rolled back when a later
// local step fails.
package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"morehradar/server/internal/ledger"
	"morehradar/server/internal/links"
	"morehradar/server/internal/model"
	"morehradar/server/internal/repo"
)

// ErrInvalidDraft marks a broadcast refused before any repository call.
var ErrInvalidDraft = errors.New("broadcast requires a name and a food description")

// Board owns the claim/broadcast/finish flows.
type Board struct {
	repo   repo.Repository
	ledger *ledger.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a board. now may be nil for the wall clock.
func New(r repo.Repository, l *ledger.Ledger, logger *slog.Logger, now func() time.Time) *Board {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Board{repo: r, ledger: l, logger: logger, now: now}
}

// ClaimResult reports what a claim attempt did.
type ClaimResult struct {
	Claimed     bool   `json:"claimed"`
	NavigateURL string `json:"navigate_url,omitempty"`
}

// Claim declares intent to attend. A signal already claimed by this node,
// or one with no remaining capacity, is a silent no-op. Otherwise the pax
// count drops by one, the claims counter rises by one, and the ledger
// records the id so a second attempt from this node cannot double-spend.
func (b *Board) Claim(ctx context.Context, s model.Signal, mobile bool) (ClaimResult, error) {
	if b.ledger.Contains(s.ID) || s.Pax <= 0 {
		return ClaimResult{}, nil
	}

	pax := s.Pax - 1
	claims := s.Claims + 1
	now := b.now()
	fields := repo.Fields{Pax: &pax, Claims: &claims, LastUpdated: &now}

	if err := b.repo.Update(ctx, s.ID, fields); err != nil {
		return ClaimResult{}, err
	}

	if err := b.ledger.Record(s.ID); err != nil {
		b.logger.Warn("claim recorded remotely but ledger write failed", "id", s.ID, "error", err)
	}

	b.logger.Info("claim recorded", "id", s.ID, "name", s.Name, "pax_left", pax)
	return ClaimResult{
		Claimed:     true,
		NavigateURL: links.NavigationURL(s.Position, mobile),
	}, nil
}

// MarkFinished transitions a signal to FINISHED with pax zeroed. The
// transition is unconditional and idempotent; callers without the operator
// capability get a silent no-op.
func (b *Board) MarkFinished(ctx context.Context, id int64, allowed bool) error {
	if !allowed {
		return nil
	}

	pax := 0
	status := model.StatusFinished
	now := b.now()

	if err := b.repo.Update(ctx, id, repo.Fields{Pax: &pax, Status: &status, LastUpdated: &now}); err != nil {
		return err
	}

	b.logger.Info("signal marked finished", "id", id)
	return nil
}

// Broadcast validates and inserts a new signal. An empty name or food
// description refuses the submission locally with ErrInvalidDraft. The
// name is stored upper-cased by convention and a missing position falls
// back to the KL city-centre constant.
func (b *Board) Broadcast(ctx context.Context, draft model.Draft) error {
	if strings.TrimSpace(draft.Name) == "" || strings.TrimSpace(draft.FoodDesc) == "" {
		return ErrInvalidDraft
	}

	draft.Name = strings.ToUpper(strings.TrimSpace(draft.Name))
	if draft.Pax < 0 {
		draft.Pax = 0
	}
	if draft.Status == "" {
		draft.Status = model.StatusActive
	}
	if draft.Position == (model.Coordinate{}) {
		draft.Position = model.FallbackPosition
	}
	draft.LastUpdated = b.now()

	if err := b.repo.Insert(ctx, draft); err != nil {
		return err
	}

	b.logger.Info("broadcast published", "name", draft.Name, "pax", draft.Pax)
	return nil
}
