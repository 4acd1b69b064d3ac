package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/errors"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SettingWritten("alerts", "updated")
	m.SettingWritten("alerts", "updated")
	m.JobFinished("utilities.reprocess", "succeeded", 2*time.Second)
	m.SetQueueDepth(3)
	m.AlertFired("sync_failures")
	m.ObserveHTTP(http.MethodGet, "/api/v1/settings/:category", 404, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.settingWrites.WithLabelValues("alerts", "updated")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.jobsTotal.WithLabelValues("utilities.reprocess", "succeeded")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.queueDepth), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.alertsFired.WithLabelValues("sync_failures")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/settings/:category", "4xx")), 0)
}

func TestMetrics_JobDurationHistogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.JobFinished("utilities.reset_types", "succeeded", 200*time.Millisecond)
	m.JobFinished("utilities.reset_types", "failed", 10*time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "propops_jobs_duration_seconds" {
			require.Len(t, mf.GetMetric(), 1)
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 10.2, hist.GetSampleSum(), 1e-9)

	// 0.25s bucket holds only the fast run.
	for _, b := range hist.GetBucket() {
		if b.GetUpperBound() == 0.25 {
			assert.Equal(t, uint64(1), b.GetCumulativeCount())
		}
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.SettingWritten("sync", "created")
		m.JobFinished("x", "failed", time.Second)
		m.SetQueueDepth(1)
		m.AlertFired("x")
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(nil)
	require.NoError(t, err)
	m.AlertFired("vacancy_count")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `propops_alerts_fired_total{metric="vacancy_count"} 1`)
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2xx", statusLabel(204))
	assert.Equal(t, "3xx", statusLabel(302))
	assert.Equal(t, "4xx", statusLabel(409))
	assert.Equal(t, "5xx", statusLabel(503))
}

func TestReporter_Disabled(t *testing.T) {
	t.Parallel()

	r, err := InitSentry(conf.SentryConfig{}, "test")
	require.NoError(t, err)
	assert.False(t, r.Enabled())
	assert.NotPanics(t, func() {
		r.CaptureError(errors.New("boom"), map[string]string{"job": "x"})
		r.Flush(time.Millisecond)
	})

	var nilReporter *Reporter
	assert.False(t, nilReporter.Enabled())
	assert.NotPanics(t, func() { nilReporter.CaptureError(errors.New("boom"), nil) })
}
