package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWorkflowMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.Observe("grant", nil, 20*time.Millisecond)
	m.Observe("grant", nil, 10*time.Millisecond)
	m.Observe("accounts_check", errors.New("not granted"), time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "licensedesk_workflow_operations_total", map[string]string{"op": "grant", "outcome": OutcomeSuccess}); err != nil {
		t.Fatalf("fetch grant: %v", err)
	} else if got != 2 {
		t.Fatalf("expected grant success=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "licensedesk_workflow_operations_total", map[string]string{"op": "accounts_check", "outcome": OutcomeFailure}); err != nil {
		t.Fatalf("fetch accounts_check: %v", err)
	} else if got != 1 {
		t.Fatalf("expected accounts_check failure=1, got %f", got)
	}
	if got, err := fetchHistogramCount(mfs, "licensedesk_workflow_operation_duration_seconds", map[string]string{"op": "grant"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 grant samples, got %d", got)
	}
}

func TestBusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBusMetrics(reg)
	m.SetSubscribers(3)
	m.IncPublished()
	m.AddCoalesced(2)
	m.AddCoalesced(0)
	m.IncRelayed(RelayInbound)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	gauge := findMetricFamily(mfs, "licensedesk_bus_subscribers")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected subscribers gauge 3")
	}
	if got, _ := fetchCounterValue(mfs, "licensedesk_bus_coalesced_total", nil); got != 2 {
		t.Fatalf("expected coalesced=2, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "licensedesk_bus_relayed_total", map[string]string{"direction": RelayInbound}); got != 1 {
		t.Fatalf("expected inbound relay=1, got %f", got)
	}
}

func TestNilRecordersAreSafe(t *testing.T) {
	var w *WorkflowMetrics
	w.Observe("create", nil, time.Second)
	NewWorkflowMetrics(nil).Observe("create", nil, time.Second)

	var b *BusMetrics
	b.SetSubscribers(1)
	b.IncPublished()
	NewBusMetrics(nil).IncRelayed(RelayOutbound)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramCount(mfs []*dto.MetricFamily, name string, labels map[string]string) (uint64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleCount(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
