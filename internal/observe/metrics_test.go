package observe

import (
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.ServiceDuration == nil || m.LLMRequests == nil || m.Chunks == nil ||
		m.ServiceErrors == nil || m.ActiveAnalyses == nil || m.HTTPRequestDuration == nil {
		t.Fatal("instrument left nil")
	}
}

func TestRecordLLMRequest(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := t.Context()
	m.RecordLLMRequest(ctx, "gemini-2.0-flash", "query_json", "ok", 1.2)
	m.RecordLLMRequest(ctx, "gemini-2.0-flash", "query_json", "error", 0.5)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}
	for _, name := range []string{"candor.llm.requests", "candor.llm.duration", "candor.llm.errors"} {
		if !found[name] {
			t.Errorf("metric %q not recorded", name)
		}
	}
}

func TestRecordServiceDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := t.Context()
	m.RecordServiceDuration(ctx, "credibility", 0.042)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name == "candor.service.duration" {
				return
			}
		}
	}
	t.Error("metric \"candor.service.duration\" not recorded")
}
