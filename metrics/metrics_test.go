package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.RecordCycle("nordpool", ResultOk, 200*time.Millisecond)
	r.RecordCycle("nordpool", ResultError, time.Second)
	r.RecordCycle("nordpool", ResultError, time.Second)
	r.RecordSnapshot(48)
	r.RecordCurrentPrice("LV", "EUR", 95.12)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("nordpool", ResultOk)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cycles.WithLabelValues("nordpool", ResultError)))
	assert.Equal(t, 48.0, testutil.ToFloat64(r.windows))
	assert.Equal(t, 95.12, testutil.ToFloat64(r.currentPrice.WithLabelValues("LV", "EUR")))
	assert.Greater(t, testutil.ToFloat64(r.lastSuccess), 0.0)

	r.ClearCurrentPrice("LV", "EUR")
	assert.Equal(t, 0, testutil.CollectAndCount(r.currentPrice))
}

func TestHandler(t *testing.T) {
	// Two recorders must not collide on registration.
	New()
	r := New()
	r.RecordSnapshot(24)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spotprice_snapshot_windows 24")
}
