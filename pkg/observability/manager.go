package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/bio-ontology-research-group/OntoML/pkg/logging"
	"github.com/bio-ontology-research-group/OntoML/pkg/metrics"
	"github.com/bio-ontology-research-group/OntoML/pkg/tracing"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Manager manages all observability components
type Manager struct {
	metrics *metrics.PrometheusMetrics
	tracer  *tracing.Tracer
	logger  *logging.Logger
}

// Config holds observability configuration
type Config struct {
	Logging logging.Config
	Tracing tracing.Config
}

// NewManager creates a new observability manager
func NewManager(config Config) (*Manager, error) {
	tracer, err := tracing.NewTracer(config.Tracing)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(config.Logging)
	if err != nil {
		return nil, err
	}

	return &Manager{
		metrics: metrics.NewPrometheusMetrics(),
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// NewNop returns a manager that records metrics but logs and traces nothing
func NewNop() *Manager {
	return &Manager{
		metrics: metrics.NewPrometheusMetrics(),
		tracer:  tracing.NewNop(),
		logger:  logging.NewNop(),
	}
}

// GetMetrics returns the metrics instance
func (m *Manager) GetMetrics() *metrics.PrometheusMetrics {
	return m.metrics
}

// GetTracer returns the tracer instance
func (m *Manager) GetTracer() *tracing.Tracer {
	return m.tracer
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() *logging.Logger {
	return m.logger
}

// StartCommandSpan starts a span for one CLI command and logs its start.
// The run ID is attached to the span and the returned context.
func (m *Manager) StartCommandSpan(ctx context.Context, command, runID string) (context.Context, trace.Span) {
	ctx, span := m.tracer.StartSpan(ctx, "ontoml."+command)
	span.SetAttributes(
		attribute.String("command", command),
		attribute.String("run_id", runID),
	)
	ctx = WithRunID(ctx, runID)

	m.logger.WithRunID(runID).WithTraceID(ctx, tracing.GetTraceID(ctx)).Info("Command started", "command", command)
	return ctx, span
}

// Handler serves the metrics registry in the Prometheus text format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.metrics.Registry, promhttp.HandlerOpts{})
}

// ServeMetrics exposes Handler at path on addr until ctx is done
func (m *Manager) ServeMetrics(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	m.logger.Info("Serving metrics", "addr", addr, "path", path)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "metrics server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Shutdown shuts down all observability components
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.tracer.Shutdown(ctx); err != nil {
		return err
	}
	// Sync reports EINVAL for terminals.
	_ = m.logger.Sync()
	return nil
}

type runIDKey struct{}

// WithRunID adds run ID to context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext extracts run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey{}).(string); ok {
		return runID
	}
	return ""
}
