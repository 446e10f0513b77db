package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morehradar/server/internal/board"
	"morehradar/server/internal/config"
	"morehradar/server/internal/feed"
	"morehradar/server/internal/ledger"
	"morehradar/server/internal/model"
	"morehradar/server/internal/repo"
)

var testNow = time.Date(2026, time.March, 10, 22, 0, 0, 0, time.UTC)

// newTestApp wires an App over the in-memory seed repository, primed and
// ready, without the network services Run would start.
func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seed := repo.NewSeed(testNow)
	claimLedger := ledger.New(ledger.NewFileStorage(filepath.Join(t.TempDir(), "claimed.json")))

	a := New(cfg, logger)
	a.repo = seed
	a.board = board.New(seed, claimLedger, logger, func() time.Time { return testNow })
	a.refresher = feed.NewRefresher(seed, nil, logger)
	a.refresher.Refresh(context.Background())
	return a
}

func defaultTestConfig() config.Config {
	return config.Config{HTTPPort: 8080, MaxDistanceKm: model.DefaultMaxDistanceKm}
}

func doRequest(t *testing.T, a *App, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())
	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())
	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := New(defaultTestConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec = httptest.NewRecorder()
	notReady.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFeed_SortsActiveByDistance(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	// Viewer at the KL fallback position; KLCC-area mosques rank by
	// distance and the finished Bangsar entry sinks to the bottom.
	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/feed?lat=3.1390&lng=101.6869", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Signals []model.RankedSignal `json:"signals"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 6, resp.Count)

	last := resp.Signals[len(resp.Signals)-1]
	assert.Equal(t, model.StatusFinished, last.Status)

	prev := -1.0
	for _, rs := range resp.Signals[:len(resp.Signals)-1] {
		require.NotNil(t, rs.DistanceKm)
		assert.GreaterOrEqual(t, *rs.DistanceKm, prev)
		prev = *rs.DistanceKm
	}
}

func TestFeed_WithoutViewerKeepsNilDistances(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Signals []model.RankedSignal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Signals, 6)
	for _, rs := range resp.Signals {
		assert.Nil(t, rs.DistanceKm)
	}
}

func TestFeed_RejectsBadParams(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/feed?lat=abc&lng=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/feed?max_km=-2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats feed.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.Active)
	assert.Equal(t, 480, stats.ActivePax)
}

func TestClaimFlow(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/signals/3/claim", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)")
	rec := doRequest(t, a, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Claimed     bool   `json:"claimed"`
		NavigateURL string `json:"navigate_url"`
		ShareURL    string `json:"share_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Claimed)
	assert.Contains(t, resp.NavigateURL, "waze.com")
	assert.Contains(t, resp.ShareURL, "wa.me")

	// The refresher snapshot lags until the next cycle; refresh and check
	// the decrement landed.
	a.refresher.Refresh(context.Background())
	got, ok := a.refresher.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, 49, got.Pax)

	// Second claim from the same node is a silent no-op.
	rec = doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals/3/claim", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Claimed)
}

func TestClaim_UnknownSignal(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())
	rec := doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals/999/claim", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBroadcastEndpoint(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	body := `{"name":"surau baru","food_desc":"Bubur Lambuk","pax":40,"lat":3.2,"lng":101.7}`
	rec := doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	a.refresher.Refresh(context.Background())
	got, ok := a.refresher.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, "SURAU BARU", got.Name)
	assert.Equal(t, 40, got.Pax)
}

func TestBroadcastEndpoint_InvalidDraft(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(`{"name":"","food_desc":"x"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinish_TokenGating(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.OperatorToken = "sesame"
	a := newTestApp(t, cfg)

	rec := doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals/4/finish", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/signals/4/finish", nil)
	req.Header.Set("X-Operator-Token", "sesame")
	rec = doRequest(t, a, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	a.refresher.Refresh(context.Background())
	got, ok := a.refresher.Lookup(4)
	require.True(t, ok)
	assert.Equal(t, model.StatusFinished, got.Status)
	assert.Equal(t, 0, got.Pax)
}

func TestFinish_UngatedWhenNoToken(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/signals/6/finish", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExportSignals(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/export/signals", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "id,name,lat,lng,food_desc,pax,claims,status,posted_by_name,last_updated", lines[0])
	// Oldest first: Bangsar's 90-minute-old entry leads.
	assert.Contains(t, lines[1], "SURAU BANGSAR")
}

func TestConfigEndpoint(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.OperatorToken = "secret"
	a := newTestApp(t, cfg)

	rec := doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Active map[string]any `json:"active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp.Active["operator_gated"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestMethodNotAllowed(t *testing.T) {
	a := newTestApp(t, defaultTestConfig())

	rec := doRequest(t, a, httptest.NewRequest(http.MethodPost, "/api/feed", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))

	rec = doRequest(t, a, httptest.NewRequest(http.MethodGet, "/api/signals/3/claim", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIsMobile(t *testing.T) {
	assert.True(t, isMobile("Mozilla/5.0 (Linux; Android 14)"))
	assert.True(t, isMobile("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"))
	assert.False(t, isMobile("Mozilla/5.0 (Macintosh; Intel Mac OS X)"))
}
