package observability

import (
	"context"
	"testing"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

func TestInitOTelDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	if shutdown := InitOTel(context.Background(), logger.NewNop(), OtelConfig{}); shutdown != nil {
		t.Fatal("tracing must stay off without OTEL_ENABLED")
	}
}

func TestOtelSampleRatioClamped(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_PERCENT", "250")
	if r := otelSampleRatio(); r != 1 {
		t.Fatalf("ratio = %v, want clamp to 1", r)
	}
	t.Setenv("OTEL_SAMPLER_PERCENT", "-5")
	if r := otelSampleRatio(); r != 0 {
		t.Fatalf("ratio = %v, want clamp to 0", r)
	}
	t.Setenv("OTEL_SAMPLER_PERCENT", "")
	if r := otelSampleRatio(); r != 0.1 {
		t.Fatalf("ratio = %v, want default 0.1", r)
	}
}

func TestOtelHeaders(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, malformed, empty=")
	headers := otelHeaders()
	if len(headers) != 1 || headers["x-api-key"] != "abc" {
		t.Fatalf("headers = %v", headers)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")
	if headers := otelHeaders(); headers != nil {
		t.Fatalf("empty env must yield nil, got %v", headers)
	}
}
