package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commercial-analytics/internal/config"
	"commercial-analytics/internal/middleware"
	"commercial-analytics/internal/observability"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const dataset = "Data;Região;Vendedor;Produto;CNPJ;Cliente;Preço;Qtd;Alíquota;Custo\n" +
	"03/02/2025;Sul;Ana;Sabão;11.111.111/0001-11;Alfa;10,00;10;10;5,00\n" +
	"10/02/2025;Sul;Caio;Arroz;22.222.222/0001-22;Beta;5,00;4;10;2,50\n" +
	"05/01/2025;Norte;Eva;Sabão;11.111.111/0001-11;Alfa;10,00;5;10;5,00\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Data.File = filepath.Join(dir, "sales.csv")
	cfg.Data.CacheDir = filepath.Join(dir, "cache")
	cfg.Data.GoalsFile = filepath.Join(dir, "goals.yaml")
	cfg.Data.MappingFile = filepath.Join(dir, "mapping.yaml")
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimitRPS = 1
	cfg.Security.RateLimitBurst = 3

	require.NoError(t, os.WriteFile(cfg.Data.File, []byte(dataset), 0o644))
	require.NoError(t, os.WriteFile(cfg.Data.GoalsFile, []byte("months:\n  \"2025-02\":\n    goal: 500\n"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Data.MappingFile, []byte("customerName: Cliente\n"), 0o644))
	return &cfg
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig(t)
	metrics := observability.NewMetrics()

	analytics, err := newAnalytics(cfg, quiet, metrics)
	require.NoError(t, err)
	require.NoError(t, analytics.LoadFromFile(t.Context(), cfg.Data.File))

	return newHandler(cfg, analytics, quiet, metrics, middleware.NewRateLimiter(cfg.Security))
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(w, req)
	return w
}

func TestHandleDashboard(t *testing.T) {
	w := httptest.NewRecorder()
	handleDashboard(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cacheMaxAge, w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), "overview-content")
}

func TestNewAnalytics_MissingFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.GoalsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := newAnalytics(cfg, quiet, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Data.MappingFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = newAnalytics(cfg, quiet, nil)
	assert.Error(t, err)
}

func TestIntegration_Projection(t *testing.T) {
	h := newTestHandler(t)

	w := get(h, "/api/projection?start=2025-02-01&end=2025-02-19")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body struct {
		Data struct {
			Projection struct {
				Realized float64 `json:"realized"`
				Goal     float64 `json:"goal"`
				HasGoal  bool    `json:"has_goal"`
			} `json:"projection"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 120, body.Data.Projection.Realized, 1e-9)
	assert.True(t, body.Data.Projection.HasGoal)
	assert.InDelta(t, 500, body.Data.Projection.Goal, 1e-9)
}

func TestIntegration_MetricsAndRateLimit(t *testing.T) {
	h := newTestHandler(t)

	w := get(h, "/api/overview")
	require.Equal(t, http.StatusOK, w.Code)
	w = get(h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "cascade_rows_imported_total"))

	w = get(h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	w = get(h, "/health")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
