package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCycle(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveEvent()
	m.ObserveEvent()
	m.ObserveCycle(CycleStats{Outcome: "merged", Duration: time.Second, Pages: 6, ReadFailures: 1})
	m.ObserveCycle(CycleStats{Outcome: "skipped"})
	m.ObserveCycle(CycleStats{Outcome: "merged", Pages: 4, MoveFailures: 2})

	assert.InDelta(t, 2, testutil.ToFloat64(m.events), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cycles.WithLabelValues("merged")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cycles.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(m.pagesMerged), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.readFailures), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.moveFailures), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveEvent()
		m.ObserveCycle(CycleStats{Outcome: "merged", Pages: 3})
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveCycle(CycleStats{Outcome: "merged", Pages: 2})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pdfwatch_cycles_total{outcome="merged"} 1`)
	assert.Contains(t, rec.Body.String(), "pdfwatch_pages_merged_total 2")
}
