package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry(reg)

	c.RecordTransaction(ResultApplied, 10*time.Millisecond)
	c.RecordTransaction(ResultApplied, 20*time.Millisecond)
	c.RecordTransaction(ResultConflict, time.Millisecond)
	c.RecordObjectsLoaded(3)
	c.RecordCache("object", true)
	c.RecordCache("object", false)
	c.RecordCache("object", false)

	if got := counterValue(t, reg, "consonant_transactions_total", map[string]string{"result": "applied"}); got != 2 {
		t.Errorf("applied = %v, want 2", got)
	}
	if got := counterValue(t, reg, "consonant_transactions_total", map[string]string{"result": "conflict"}); got != 1 {
		t.Errorf("conflict = %v, want 1", got)
	}
	if got := counterValue(t, reg, "consonant_objects_loaded_total", nil); got != 3 {
		t.Errorf("objects loaded = %v, want 3", got)
	}
	if got := counterValue(t, reg, "consonant_cache_requests_total", map[string]string{"kind": "object", "result": "miss"}); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordTransaction(ResultError, time.Second)
	c.RecordObjectsLoaded(1)
	c.RecordCache("raw", true)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry(reg)
	c.RecordTransaction(ResultInvalid, time.Millisecond)

	path := filepath.Join(t.TempDir(), "consonant.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `consonant_transactions_total{result="invalid"} 1`) {
		t.Fatalf("textfile missing counter:\n%s", data)
	}
}
