package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("exprd-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordConnOpened("exprd-a")
	RecordEval("exprd-a", "ok", 3*time.Microsecond)
	RecordEval("exprd-a", "division_by_zero", 2*time.Microsecond)
	RecordFrameError("exprd-a", "too_large")
	RecordConnClosed("exprd-a")

	log.Debug().Msg("observability/metrics: registration idempotent and recording paths executed")
}

func TestRecordEvalCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(evalRequests.WithLabelValues("exprd-count", "ok"))
	RecordEval("exprd-count", "ok", time.Microsecond)
	RecordEval("exprd-count", "ok", time.Microsecond)
	after := testutil.ToFloat64(evalRequests.WithLabelValues("exprd-count", "ok"))
	if after-before != 2 {
		t.Fatalf("unexpected ok delta: %v", after-before)
	}
}

func TestActiveConnectionsGauge(t *testing.T) {
	RecordConnOpened("exprd-gauge")
	RecordConnOpened("exprd-gauge")
	RecordConnClosed("exprd-gauge")
	if got := testutil.ToFloat64(activeConnections.WithLabelValues("exprd-gauge")); got != 1 {
		t.Fatalf("unexpected active gauge: %v", got)
	}
}
