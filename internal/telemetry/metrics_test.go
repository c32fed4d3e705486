package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIngestBatchCounters(t *testing.T) {
	m := NewMetrics()
	m.IngestBatch("files", OutcomeOK, 120)
	m.IngestBatch("files", OutcomeRejected, 500)
	m.IngestBatch("websites", OutcomeOK, 30)

	if got := testutil.ToFloat64(m.ingestBatches.WithLabelValues("files", OutcomeOK)); got != 1 {
		t.Fatalf("expected one ok files batch, got %v", got)
	}
	if got := testutil.ToFloat64(m.ingestTokens.WithLabelValues("files")); got != 120 {
		t.Fatalf("rejected batches must not count tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.ingestTokens.WithLabelValues("websites")); got != 30 {
		t.Fatalf("unexpected website tokens %v", got)
	}
}

func TestQueryMetricsAndHandler(t *testing.T) {
	m := NewMetrics()
	m.Query(OutcomeOK, 1500*time.Millisecond)
	m.Query(OutcomeNotFound, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`researcher_queries_total{outcome="ok"} 1`,
		`researcher_queries_total{outcome="not_found"} 1`,
		`researcher_query_duration_seconds_count 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IngestBatch("files", OutcomeOK, 1)
	m.Query(OutcomeOK, time.Second)
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
}
