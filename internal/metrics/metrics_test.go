package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if c := out.GetCounter(); c != nil {
		return c.GetValue()
	}
	return out.GetGauge().GetValue()
}

func countSeries(c prometheus.Collector) int {
	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)
	n := 0
	for range ch {
		n++
	}
	return n
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric any
	}{
		{"ColdScansTotal", ColdScansTotal},
		{"ColdScanDuration", ColdScanDuration},
		{"ColdScanFiles", ColdScanFiles},
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"WatcherErrors", WatcherErrors},
		{"WatcherStrategy", WatcherStrategy},
		{"WatcherPassesTotal", WatcherPassesTotal},
		{"CompletenessChecksTotal", CompletenessChecksTotal},
		{"FilesEmittedTotal", FilesEmittedTotal},
		{"QueueDroppedTotal", QueueDroppedTotal},
		{"QueueDepth", QueueDepth},
		{"TrackerRunning", TrackerRunning},
		{"StoreOperationsTotal", StoreOperationsTotal},
		{"KnownFiles", KnownFiles},
		{"HTTPRequestsTotal", HTTPRequestsTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestObserveStoreLabelsStatus(t *testing.T) {
	okBefore := value(t, StoreOperationsTotal.WithLabelValues("probe", "ok"))
	errBefore := value(t, StoreOperationsTotal.WithLabelValues("probe", "error"))

	ObserveStore("probe", nil)
	ObserveStore("probe", errors.New("boom"))
	ObserveStore("probe", errors.New("boom"))

	if got := value(t, StoreOperationsTotal.WithLabelValues("probe", "ok")) - okBefore; got != 1 {
		t.Fatalf("ok delta = %v, want 1", got)
	}
	if got := value(t, StoreOperationsTotal.WithLabelValues("probe", "error")) - errBefore; got != 2 {
		t.Fatalf("error delta = %v, want 2", got)
	}
}

func TestSetStrategyKeepsSingleActiveLabel(t *testing.T) {
	SetStrategy("native")
	SetStrategy("poll")

	if got := countSeries(WatcherStrategy); got != 1 {
		t.Fatalf("expected one strategy series, got %d", got)
	}
	if got := value(t, WatcherStrategy.WithLabelValues("poll")); got != 1 {
		t.Fatalf("poll strategy = %v, want 1", got)
	}
	SetStrategy("")
}
