package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ObservationsIndexer/internal/domain"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.Record(domain.ActionInsert)
	c.Record(domain.ActionInsert)
	c.Record(domain.ActionUpdate)
	c.Failed("missing_field")
	c.BatchDone()

	if got := testutil.ToFloat64(c.records.WithLabelValues("insert")); got != 2 {
		t.Fatalf("expected 2 inserts, got %v", got)
	}
	if got := testutil.ToFloat64(c.records.WithLabelValues("update")); got != 1 {
		t.Fatalf("expected 1 update, got %v", got)
	}
	if got := testutil.ToFloat64(c.failures.WithLabelValues("missing_field")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(c.batches); got != 1 {
		t.Fatalf("expected 1 batch, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.Record(domain.ActionSkip)

	path := filepath.Join(t.TempDir(), "obsindexer.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `obsindexer_records_total{action="skip"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", raw)
	}
}

func TestWriteTextfileDisabled(t *testing.T) {
	t.Parallel()

	if err := NewCollector().WriteTextfile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
