package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/health", "200"))
	RecordHTTPRequest("GET", "/api/health", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/health", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to advance by 1, got %v", after-before)
	}
}

func TestSubmissionAndPageGauges(t *testing.T) {
	beforePosted := testutil.ToFloat64(commentsPosted.WithLabelValues(SubmitPosted))
	RecordSubmission(SubmitPosted)
	if got := testutil.ToFloat64(commentsPosted.WithLabelValues(SubmitPosted)) - beforePosted; got != 1 {
		t.Fatalf("expected posted counter +1, got %v", got)
	}

	beforePages := testutil.ToFloat64(activePages)
	PageMounted()
	PageMounted()
	PageUnmounted()
	if got := testutil.ToFloat64(activePages) - beforePages; got != 1 {
		t.Fatalf("expected active pages +1, got %v", got)
	}
}

func TestStreamGauge(t *testing.T) {
	before := testutil.ToFloat64(activeStreams)
	StreamOpened()
	if got := testutil.ToFloat64(activeStreams) - before; got != 1 {
		t.Fatalf("expected open streams +1, got %v", got)
	}
	StreamClosed()
	if got := testutil.ToFloat64(activeStreams) - before; got != 0 {
		t.Fatalf("expected open streams back to baseline, got %v", got)
	}
}
