// Package telemetry provides OpenTelemetry-based observability for a
// distributed CGP run.
//
// It initializes the OTel SDK with opinionated defaults for tracing and
// metrics, while allowing backend flexibility through exporter
// configuration.
//
// # Philosophy
//
// Be opinionated about the API, flexible about the backend. We use OTel
// APIs directly rather than a custom wrapper interface; swapping backends
// is a matter of exporter configuration, not code.
//
// # Trace backend (default: stdout)
//
// OTLP-over-gRPC is available for shipping traces to a collector; stdout is
// the default so a single process run needs nothing else standing up.
//
// # Metrics backend (default: Prometheus)
//
// Prometheus is the default metrics backend. Metrics are exposed at
// /metrics for scraping by the serve-ops command.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(ctx)
//
//	meter := otel.Meter("distcgp")
//	metrics, err := telemetry.NewMetrics(meter)
//
// # Environment variables
//
//   - DISTCGP_ENV: environment name (default: development)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: stdout)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//
// # Thread safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
