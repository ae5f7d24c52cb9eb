package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/gem-pricer/internal/apperr"
	"github.com/kartoza/gem-pricer/internal/predict"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {}).Methods("POST")

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/predict", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/predict")))
}

func TestObserveRecordsOutcomes(t *testing.T) {
	m := New()

	m.Observe(predict.Observation{Duration: 20 * time.Millisecond})
	m.Observe(predict.Observation{Err: apperr.New(apperr.BadRequest, "no data")})
	m.Observe(predict.Observation{Err: errors.New("unclassified")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues(string(apperr.BadRequest))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestModelLoadedGauge(t *testing.T) {
	m := New()

	m.SetModelLoaded(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoaded))

	m.SetModelLoaded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.modelLoaded))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetModelLoaded(true)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "ml_model_load_status 1"))
	assert.Contains(t, body, "ml_prediction_latency_seconds_bucket")
}

func TestRegistryGathersCollectors(t *testing.T) {
	m := New()
	m.Observe(predict.Observation{Duration: time.Millisecond})

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"ml_prediction_latency_seconds",
		"ml_prediction_outcomes_total",
		"ml_model_load_status",
		"go_goroutines",
	} {
		assert.True(t, names[name], "missing %s", name)
	}

	count, err := testutil.GatherAndCount(m.Registry(), "ml_prediction_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
