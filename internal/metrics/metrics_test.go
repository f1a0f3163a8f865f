package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetScoreKeepsOneSeriesPerWorkstream(t *testing.T) {
	m := New()
	m.SetScore("ws-1", "green", 91)
	m.SetScore("ws-1", "amber", 55)
	assert.Equal(t, 1, testutil.CollectAndCount(m.CompositeScore))
	assert.Equal(t, 55.0, testutil.ToFloat64(m.CompositeScore.WithLabelValues("ws-1", "amber")))
}

func TestRecordEvaluation(t *testing.T) {
	m := New()
	m.RecordEvaluation("mutation", "ok", 0.01)
	m.RecordEvaluation("sweep", "error", 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("mutation", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("sweep", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordEvaluation("sweep", "ok", 1)
	m.SetScore("ws-1", "red", 10)
	m.SetStale(2)
	m.RecordPublishError()
	m.RecordRequest("GET", "200")
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.SetStale(3)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "meridian_stale_workstreams 3")
}
