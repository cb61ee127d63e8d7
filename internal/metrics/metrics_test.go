package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/casegest/internal/extract"
	"github.com/dgallion1/casegest/internal/pipeline"
)

var (
	_ extract.Observer  = (*Collector)(nil)
	_ pipeline.Observer = (*Collector)(nil)
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector("casegest")

	c.ObserveLLMCall("llamacpp", "ok", time.Second)
	c.ObserveLLMCall("llamacpp", "timeout", 2*time.Minute)
	c.ItemProcessed("ok")
	c.ItemProcessed("extraction_failure")
	c.BatchFinished("partial", 3*time.Second)
	c.ObserveHTTP(http.MethodGet, "/health", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.LLMCalls.WithLabelValues("llamacpp", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ItemsProcessed.WithLabelValues("extraction_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Batches.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/health", "200")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("casegest")
	b := NewCollector("casegest")
	a.ItemProcessed("ok")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ItemsProcessed.WithLabelValues("ok")))
}

func TestCollector_HandlerExposesGauges(t *testing.T) {
	c := NewCollector("casegest")
	c.RegisterGauge("casegest", "timeline_events", "Events on the timeline", func() float64 { return 42 })
	c.ItemProcessed("ok")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "casegest_timeline_events 42")
	assert.Contains(t, string(body), `casegest_upload_items_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
