package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RecordImported(ActionInserted)
	m.RecordImported(ActionInserted)
	m.RecordImported(ActionReplaced)
	m.BatchFinished(OutcomeOK)
	m.ValidationFailed("projects")
	m.ObserveFetch(time.Now())

	if got := testutil.ToFloat64(m.RecordsImported.WithLabelValues(ActionInserted)); got != 2 {
		t.Errorf("inserted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsImported.WithLabelValues(ActionReplaced)); got != 1 {
		t.Errorf("replaced = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ImportBatches.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("ok batches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ValidationFailures.WithLabelValues("projects")); got != 1 {
		t.Errorf("projects failures = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.FetchDuration); n != 1 {
		t.Errorf("fetch histogram collected %d series, want 1", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordImported(ActionInserted)
	m.BatchFinished(OutcomeFailed)
	m.ValidationFailed("title")
	m.ObserveFetch(time.Now())
	if err := m.Push(context.Background(), "http://unused", "pubs"); err != nil {
		t.Errorf("Push() on nil Metrics = %v", err)
	}
	if m.Registry() != nil {
		t.Error("Registry() on nil Metrics should be nil")
	}
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.BatchFinished(OutcomeOK)
	if err := m.Push(context.Background(), srv.URL, "pubs"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if gotPath != "/metrics/job/pubs" {
		t.Errorf("push path = %q", gotPath)
	}
	if gotBody == "" {
		t.Error("push body is empty")
	}
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := New().Push(context.Background(), srv.URL, "pubs"); err == nil {
		t.Error("Push() to failing gateway succeeded")
	}
}
