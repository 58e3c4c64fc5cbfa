package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func tracingConfig(insecure bool) config.Config {
	return config.Config{
		OTEL: config.OTELConfig{
			Enabled:     true,
			Insecure:    insecure,
			Endpoint:    "localhost:4317",
			ServiceName: "vehicle-assistant",
			SampleRatio: 1,
		},
		LLM:     config.LLMConfig{Provider: "mistral", Model: "mistral-small-latest"},
		OCR:     config.OCRConfig{Provider: "vision"},
		Storage: config.StorageConfig{ImageStore: "db"},
	}
}

func TestSetupOTel_DisabledIsNoop(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.Config{}, "dev")
	if err != nil || shutdown == nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing must not touch globals")
	}
}

func TestSetupOTel_InstallsProviderWithPipelineResource(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		var got []attribute.KeyValue
		orig := newServiceResourceFn
		newServiceResourceFn = func(ctx context.Context, attrs []attribute.KeyValue) (*resource.Resource, error) {
			got = attrs
			return orig(ctx, attrs)
		}

		shutdown, err := SetupOTel(context.Background(), tracingConfig(insecure), "1.4.0")
		newServiceResourceFn = orig
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected an sdk tracer provider")
		}
		_, span := otel.Tracer("test").Start(context.Background(), "turn")
		span.End()
		_ = shutdown(context.Background())

		want := map[attribute.Key]string{
			"service.name":           "vehicle-assistant",
			"service.version":        "1.4.0",
			"assistant.llm.provider": "mistral",
			"assistant.ocr.provider": "vision",
			"assistant.image_store":  "db",
		}
		for _, kv := range got {
			if w, ok := want[kv.Key]; ok && kv.Value.AsString() != w {
				t.Fatalf("%s = %q, want %q", kv.Key, kv.Value.AsString(), w)
			}
			delete(want, kv.Key)
		}
		if len(want) != 0 {
			t.Fatalf("missing resource attributes: %v", want)
		}
	}
}

func TestSetupOTel_ErrorsLeaveGlobalsAlone(t *testing.T) {
	keepGlobals(t)
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()

	origExp := newOTLPExporterFn
	newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("exporter down")
	}
	_, err := SetupOTel(context.Background(), tracingConfig(true), "v")
	newOTLPExporterFn = origExp
	if err == nil || !strings.Contains(err.Error(), "exporter down") {
		t.Fatalf("expected exporter error, got %v", err)
	}

	origRes := newServiceResourceFn
	newServiceResourceFn = func(context.Context, []attribute.KeyValue) (*resource.Resource, error) {
		return nil, errors.New("bad resource")
	}
	_, err = SetupOTel(context.Background(), tracingConfig(true), "v")
	newServiceResourceFn = origRes
	if err == nil {
		t.Fatalf("expected resource error")
	}

	if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
		t.Fatalf("globals changed on failure")
	}
}

func TestSampler_ClampsRatio(t *testing.T) {
	for ratio, want := range map[float64]string{-1: "root:TraceIDRatioBased{0}", 0.25: "root:TraceIDRatioBased{0.25}", 7: "root:AlwaysOnSampler"} {
		if got := sampler(ratio).Description(); !strings.Contains(got, want) {
			t.Fatalf("sampler(%v) = %s, want it to contain %s", ratio, got, want)
		}
	}
}
