package telemetry

import "testing"

func TestDefaultConfigFallsBackWhenUnset(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("RELEASECORE_ENV", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := DefaultConfig()
	if cfg.OTLPEndpoint != "localhost:4318" {
		t.Fatalf("expected default endpoint, got %s", cfg.OTLPEndpoint)
	}
	if cfg.ServiceName != serviceName {
		t.Fatalf("expected default service name, got %s", cfg.ServiceName)
	}
	if cfg.Environment != "development" {
		t.Fatalf("expected default environment, got %s", cfg.Environment)
	}
	if !cfg.Enabled {
		t.Fatalf("expected telemetry enabled by default")
	}
}

func TestDefaultConfigHonorsOverrides(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_ENABLED", "false")

	cfg := DefaultConfig()
	if cfg.OTLPEndpoint != "collector:4318" {
		t.Fatalf("expected overridden endpoint, got %s", cfg.OTLPEndpoint)
	}
	if cfg.Enabled {
		t.Fatalf("expected telemetry disabled when OTEL_ENABLED=false")
	}
}

func TestStripScheme(t *testing.T) {
	cases := map[string]string{
		"https://collector:4318": "collector:4318",
		"http://collector:4318":  "collector:4318",
		"collector:4318":         "collector:4318",
	}
	for in, want := range cases {
		if got := stripScheme(in); got != want {
			t.Fatalf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
