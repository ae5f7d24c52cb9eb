package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/gem-pricer/internal/config"
	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/model"
	"github.com/kartoza/gem-pricer/internal/models"
)

// writeArtifacts stores the default schema and a model that sums its input
func writeArtifacts(t *testing.T, dir string) (modelPath, featuresPath string) {
	t.Helper()

	names := features.DefaultFeatureNames()
	data, err := json.Marshal(names)
	require.NoError(t, err)
	featuresPath = filepath.Join(dir, "features.json")
	require.NoError(t, os.WriteFile(featuresPath, data, 0o644))

	coef := make([]float64, len(names))
	for i := range coef {
		coef[i] = 1
	}
	modelPath = filepath.Join(dir, "model.gob")
	require.NoError(t, model.Save(modelPath, &model.Linear{Coefficients: coef}))

	return modelPath, featuresPath
}

func newTestServer(t *testing.T, withArtifacts, withHistory bool) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Version = "test"
	cfg.ModelPath = filepath.Join(dir, "missing.gob")
	cfg.FeaturesPath = filepath.Join(dir, "missing.json")
	if withArtifacts {
		cfg.ModelPath, cfg.FeaturesPath = writeArtifacts(t, dir)
	}
	cfg.History.Enabled = withHistory
	cfg.History.DSN = filepath.Join(dir, "history.db")

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(s, req)
}

func TestNewLoadsArtifacts(t *testing.T) {
	s := newTestServer(t, true, false)

	assert.True(t, s.Service().Ready())
	assert.Equal(t, 26, s.Service().Schema().Len())
}

func TestNewWithoutArtifactsKeepsServing(t *testing.T) {
	s := newTestServer(t, false, false)

	assert.False(t, s.Service().Ready())

	w := serve(s, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), WarningModelMissing)

	w = serve(s, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestIndexListsOptions(t *testing.T) {
	s := newTestServer(t, true, false)

	w := serve(s, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.NotContains(t, body, WarningModelMissing)
	for _, opt := range features.ClarityOptions {
		assert.Contains(t, body, `value="`+opt.Value+`"`)
	}
}

func TestPredictRoute(t *testing.T) {
	s := newTestServer(t, true, false)

	req := httptest.NewRequest("POST", "/predict", strings.NewReader(`{"carat": 1.0, "cut": "Ideal", "color": "D", "clarity": "IF",
		"depth": 61.5, "table": 55.0, "x": 5.0, "y": 5.0, "z": 3.0}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(s, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PredictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "$133.50", resp.PredictedPrice)
	assert.InDelta(t, 133.5, resp.RawPrice, 1e-9)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPredictRouteGateClosed(t *testing.T) {
	s := newTestServer(t, false, false)

	w := postForm(s, "/predict", url.Values{"carat": {"1"}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Model not loaded on the server."}`, w.Body.String())
}

func TestDashboardDefaults(t *testing.T) {
	s := newTestServer(t, true, true)

	w := serve(s, httptest.NewRequest("GET", "/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `name="carat" min="0.2" max="5" step="0.01" value="1"`)
	assert.Contains(t, body, `<option value="Ideal" selected>`)
	assert.Contains(t, body, "Recent predictions")
	assert.NotContains(t, body, "Estimated Price")
}

func TestDashboardPredicts(t *testing.T) {
	s := newTestServer(t, true, true)

	w := postForm(s, "/dashboard", url.Values{
		"carat": {"2"}, "depth": {"60"}, "table": {"55"},
		"x": {"5"}, "y": {"5"}, "z": {"3"},
		"cut": {"Good"}, "color": {"H"}, "clarity": {"VS1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "$133.00")
	assert.Contains(t, body, "cut_Good")
	assert.Contains(t, body, `<option value="H" selected>`)
	assert.Contains(t, body, "1 predictions, 0 failed")
}

func TestDashboardGateClosed(t *testing.T) {
	s := newTestServer(t, false, false)

	w := postForm(s, "/dashboard", url.Values{"carat": {"1"}})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, WarningModelMissing)
	assert.Contains(t, body, "Model not loaded on the server.")
	assert.NotContains(t, body, "Recent predictions")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, true, false)

	postForm(s, "/predict", url.Values{"carat": {"1"}})
	postForm(s, "/predict", url.Values{})

	w := serve(s, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `ml_prediction_requests_total{endpoint="/predict",method="POST"} 2`)
	assert.Contains(t, body, `ml_prediction_outcomes_total{outcome="success"} 1`)
	assert.Contains(t, body, `ml_prediction_outcomes_total{outcome="bad_request"} 1`)
	assert.Contains(t, body, "ml_model_load_status 1")
}

func TestHistoryUnavailableFallsBack(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ModelPath, cfg.FeaturesPath = writeArtifacts(t, dir)
	cfg.History.DSN = filepath.Join(dir, "no", "such", "dir", "history.db")

	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Stop()

	assert.True(t, s.Service().Ready())
	w := serve(s, httptest.NewRequest("GET", "/api/history", nil))
	assert.JSONEq(t, `[]`, w.Body.String())
}
