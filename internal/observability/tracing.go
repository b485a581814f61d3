// Package observability exports traces over OTLP HTTP to a local
// collector agent (Datadog Agent, Grafana Alloy, or any OTLP receiver).
//
// The exporter is registered on Genkit's TracerProvider, so model and
// embedding spans emitted by the Genkit runtime and the HTTP request
// spans opened by the API middleware land in the same trace tree. The
// agent handles authentication and forwarding; the application only
// ever talks to localhost.
//
// Configuration (config.yaml):
//
//	trace_agent_host: "localhost:4318"
//	trace_environment: "dev"
//	trace_service_name: "askpath"
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/askpath/askpath/internal/log"
)

// Config for trace export.
type Config struct {
	// AgentHost is the collector's OTLP HTTP endpoint (default: localhost:4318).
	AgentHost string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is the service name shown in the APM backend.
	ServiceName string
}

// DefaultAgentHost is the default OTLP HTTP endpoint of a local agent.
const DefaultAgentHost = "localhost:4318"

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider.
// Must run before genkit.Init so the provider is ready when the first
// span starts. An unreachable or misconfigured exporter disables
// tracing with a warning instead of failing startup.
//
// Returns a shutdown function that flushes pending spans.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = log.NewNop()
	}

	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	// Genkit's TracerProvider reads the service identity from the
	// standard OTEL environment variables. Setup runs once during
	// startup before any goroutine is spawned, so Setenv is safe here.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	return tracing.TracerProvider().Shutdown, nil
}

// Tracer returns a named tracer from the provider Setup configures.
// Safe to call before Setup; spans recorded then are simply dropped
// because no processor is registered yet.
func Tracer(name string) trace.Tracer {
	return tracing.TracerProvider().Tracer(name)
}
