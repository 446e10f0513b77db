package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"morehradar/server/internal/board"
	"morehradar/server/internal/config"
	"morehradar/server/internal/feed"
	"morehradar/server/internal/ledger"
	"morehradar/server/internal/links"
	"morehradar/server/internal/model"
	"morehradar/server/internal/push"
	"morehradar/server/internal/repo"
)

// App wires together the Moreh Radar services and manages their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	repo      repo.Repository
	board     *board.Board
	refresher *feed.Refresher
	pusher    *push.Client
	mdns      *zeroconf.Server
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run starts all configured services and blocks until the context is
// cancelled or an error occurs.
func (a *App) Run(ctx context.Context) error {
	now := time.Now().UTC()
	seed := repo.NewSeed(now)

	var closeStore func() error
	if a.cfg.DatabasePath != "" {
		db, err := repo.OpenSQLite(a.cfg.DatabasePath)
		if err != nil {
			return err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return err
		}
		closeStore = db.Close
		a.repo = repo.NewFallback(db, seed, a.logger)
		a.logger.Info("signal store opened", "path", a.cfg.DatabasePath)
	} else {
		a.repo = seed
		a.logger.Info("no database configured, running in demo mode")
	}

	if closeStore != nil {
		defer func() {
			if cerr := closeStore(); cerr != nil {
				a.logger.Error("close store", "error", cerr)
			}
		}()
	}

	claimLedger := ledger.New(ledger.NewFileStorage(a.cfg.LedgerPath))
	a.board = board.New(a.repo, claimLedger, a.logger, nil)

	if a.cfg.MQTTBrokerURL != "" {
		pusher, err := push.Connect(a.cfg.MQTTBrokerURL, a.logger)
		if err != nil {
			// The push channel is best-effort: alerting and cross-node
			// refresh are skipped, local operation continues.
			a.logger.Warn("push channel unavailable", "broker", a.cfg.MQTTBrokerURL, "error", err)
		} else {
			a.pusher = pusher
			defer a.pusher.Disconnect()
		}
	}

	a.refresher = feed.NewRefresher(a.repo, a.alertNewSignal, a.logger)
	unsubscribe := a.refresher.Start(ctx)
	defer unsubscribe()

	unsubscribePush := a.repo.Subscribe(func() {
		if a.pusher != nil {
			a.pusher.PublishChange()
		}
	})
	defer unsubscribePush()

	if a.pusher != nil {
		if err := a.pusher.SubscribeChanges(func() {
			go a.refresher.Refresh(ctx)
		}); err != nil {
			a.logger.Warn("subscribe change markers failed", "error", err)
		}
		if err := a.pusher.SubscribeBroadcasts(func(draft model.Draft) {
			if err := a.board.Broadcast(ctx, draft); err != nil {
				a.logger.Warn("ingested broadcast rejected", "name", draft.Name, "error", err)
			}
		}); err != nil {
			a.logger.Warn("subscribe broadcasts failed", "error", err)
		}
	}

	if a.cfg.MDNSEnabled {
		if err := a.startMDNS(a.cfg.HTTPPort); err != nil {
			a.logger.Warn("mDNS advertisement failed", "error", err)
		}
		defer a.stopMDNS()
	}

	httpErrCh := make(chan error, 1)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler: a.routes(),
	}

	go func() {
		a.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			a.logger.Info("http server stopped")
			return nil
		case err := <-httpErrCh:
			if err != nil {
				return err
			}
		}
	}
}

// alertNewSignal handles each newly appeared ACTIVE signal from the feed
// engine. Without a push channel the alert is logged by the refresher and
// otherwise dropped.
func (a *App) alertNewSignal(s model.Signal) {
	if a.pusher == nil {
		return
	}
	a.pusher.PublishAlert(s)
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.HandleFunc("/api/feed", a.handleFeed)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/ticker", a.handleTicker)
	mux.HandleFunc("/api/signals", a.handleBroadcast)
	mux.HandleFunc("/api/signals/{id}/claim", a.handleClaim)
	mux.HandleFunc("/api/signals/{id}/finish", a.handleFinish)
	mux.HandleFunc("/api/export/signals", a.handleExportSignals)
	mux.HandleFunc("/api/config", a.handleConfig)
	return mux
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if a.refresher == nil || !a.refresher.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (a *App) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var viewer *model.Coordinate
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			http.Error(w, "invalid lat/lng", http.StatusBadRequest)
			return
		}
		viewer = &model.Coordinate{Lat: lat, Lng: lng}
	}

	maxKm := a.cfg.MaxDistanceKm
	if v := r.URL.Query().Get("max_km"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid max_km", http.StatusBadRequest)
			return
		}
		maxKm = parsed
	}

	view := feed.ComputeView(a.refresher.Snapshot(), viewer, maxKm)

	response := struct {
		Signals []model.RankedSignal `json:"signals"`
		Count   int                  `json:"count"`
	}{Signals: view, Count: len(view)}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		a.logger.Error("failed to encode feed response", "error", err)
	}
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(feed.Summarize(a.refresher.Snapshot())); err != nil {
		a.logger.Error("failed to encode stats response", "error", err)
	}
}

func (a *App) handleTicker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := struct {
		Lines []string `json:"lines"`
	}{Lines: feed.TickerLines(a.refresher.Snapshot(), time.Now().UTC())}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		a.logger.Error("failed to encode ticker response", "error", err)
	}
}

func (a *App) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name          string   `json:"name"`
		FoodDesc      string   `json:"food_desc"`
		Pax           int      `json:"pax"`
		Status        string   `json:"status"`
		Lat           *float64 `json:"lat"`
		Lng           *float64 `json:"lng"`
		PostedByName  string   `json:"posted_by_name"`
		PostedByEmail string   `json:"posted_by_email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	draft := model.Draft{
		Name:          req.Name,
		FoodDesc:      req.FoodDesc,
		Pax:           req.Pax,
		Status:        model.Status(req.Status),
		PostedByName:  req.PostedByName,
		PostedByEmail: req.PostedByEmail,
	}
	if req.Lat != nil && req.Lng != nil {
		draft.Position = model.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.board.Broadcast(ctx, draft); err != nil {
		if errors.Is(err, board.ErrInvalidDraft) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		a.logger.Error("broadcast failed", "error", err)
		http.Error(w, "failed to publish broadcast", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"status":"broadcast"}`))
}

func (a *App) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid signal id", http.StatusBadRequest)
		return
	}

	signal, ok := a.refresher.Lookup(id)
	if !ok {
		http.Error(w, "signal not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result, err := a.board.Claim(ctx, signal, isMobile(r.UserAgent()))
	if err != nil {
		a.logger.Error("claim failed", "id", id, "error", err)
		http.Error(w, "failed to claim", http.StatusInternalServerError)
		return
	}

	response := struct {
		board.ClaimResult
		ShareURL string `json:"share_url"`
	}{ClaimResult: result, ShareURL: links.WhatsAppShareURL(signal)}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		a.logger.Error("failed to encode claim response", "error", err)
	}
}

func (a *App) handleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid signal id", http.StatusBadRequest)
		return
	}

	allowed := a.cfg.OperatorToken == "" || r.Header.Get("X-Operator-Token") == a.cfg.OperatorToken
	if !allowed {
		http.Error(w, "operator token required", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.board.MarkFinished(ctx, id, allowed); err != nil {
		a.logger.Error("mark finished failed", "id", id, "error", err)
		http.Error(w, "failed to mark finished", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleExportSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	signals, err := a.repo.FetchAll(ctx)
	if err != nil {
		a.logger.Error("export: failed to load signals", "error", err)
		http.Error(w, "failed to load signals", http.StatusInternalServerError)
		return
	}

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].LastUpdated.Before(signals[j].LastUpdated)
	})

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=morehradar_signals.csv")

	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write([]string{
		"id",
		"name",
		"lat",
		"lng",
		"food_desc",
		"pax",
		"claims",
		"status",
		"posted_by_name",
		"last_updated",
	}); err != nil {
		a.logger.Error("export: failed to write header", "error", err)
		return
	}

	for _, s := range signals {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			fmt.Sprintf("%.4f", s.Position.Lat),
			fmt.Sprintf("%.4f", s.Position.Lng),
			s.FoodDesc,
			strconv.Itoa(s.Pax),
			strconv.Itoa(s.Claims),
			string(s.Status),
			s.PostedByName,
			s.LastUpdated.UTC().Format(time.RFC3339Nano),
		}
		if err := csvWriter.Write(row); err != nil {
			a.logger.Error("export: failed to write row", "error", err)
			return
		}
	}

	if err := csvWriter.Error(); err != nil {
		a.logger.Error("export: writer error", "error", err)
	}
}

func (a *App) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := map[string]any{
		"http_port":       a.cfg.HTTPPort,
		"mqtt_broker":     a.cfg.MQTTBrokerURL,
		"database_path":   a.cfg.DatabasePath,
		"ledger_path":     a.cfg.LedgerPath,
		"log_level":       a.cfg.LogLevel,
		"max_distance_km": a.cfg.MaxDistanceKm,
		"mdns":            a.cfg.MDNSEnabled,
		"operator_gated":  a.cfg.OperatorToken != "",
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"active": active}); err != nil {
		a.logger.Error("failed to encode config response", "error", err)
	}
}

func isMobile(userAgent string) bool {
	for _, marker := range []string{"Android", "iPhone", "iPad"} {
		if strings.Contains(userAgent, marker) {
			return true
		}
	}
	return false
}
