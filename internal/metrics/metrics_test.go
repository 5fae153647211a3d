package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg))

	m.FileResolved("neverUpdate", "unchanged")
	m.FileResolved("neverUpdate", "unchanged")
	m.FileResolved("useProposed", "updated")
	m.Reconciled("done")
	m.Failed("load_state", "E201")
	m.Override()
	m.ObserveState("apply_filesystem", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.filesResolved.WithLabelValues("neverUpdate", "unchanged")); got != 2 {
		t.Errorf("files_resolved{neverUpdate,unchanged} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.reconciliations.WithLabelValues("done")); got != 1 {
		t.Errorf("reconciliations{done} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.overrides); got != 1 {
		t.Errorf("overrides = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.stateDuration); got != 1 {
		t.Errorf("state_duration series = %d, want 1", got)
	}

	names, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range names {
		if mf.GetName()[:len("blueprint_resynth_")] != "blueprint_resynth_" {
			t.Errorf("unexpected metric name %s", mf.GetName())
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.FileResolved("x", "y")
	m.Reconciled("done")
	m.Failed("s", "c")
	m.Override()
	m.ObserveState("s", time.Second)
}

func TestNamespaceOption(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("acme"), WithConstLabels(prometheus.Labels{"env": "test"}))
	m.Reconciled("done")

	count, err := testutil.GatherAndCount(reg, "acme_resynth_reconciliations_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
