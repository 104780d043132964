package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracer
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// Config holds tracing configuration
type Config struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	// JaegerEndpoint enables export when set
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	Environment    string `mapstructure:"environment"`
}

// DefaultConfig traces without exporting.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ontoml",
		ServiceVersion: "dev",
		Environment:    "local",
	}
}

// NewTracer creates a new OpenTelemetry tracer
func NewTracer(config Config) (*Tracer, error) {
	var opts []sdktrace.TracerProviderOption
	if config.JaegerEndpoint != "" {
		// Create Jaeger exporter
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Jaeger exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return newTracer(config, opts...)
}

// NewNop returns a tracer whose spans are never recorded
func NewNop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("ontoml")}
}

// NewTracerWithExporter exports spans synchronously to exporter
func NewTracerWithExporter(config Config, exporter sdktrace.SpanExporter) (*Tracer, error) {
	return newTracer(config, sdktrace.WithSyncer(exporter))
}

func newTracer(config Config, opts ...sdktrace.TracerProviderOption) (*Tracer, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultConfig().ServiceName
	}

	// Create resource
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	// Create trace provider
	tp := sdktrace.NewTracerProvider(append(opts, sdktrace.WithResource(res))...)

	// Set global propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		provider: tp,
		tracer:   tp.Tracer(config.ServiceName),
	}, nil
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartEpochSpan starts a span for one training epoch
func (t *Tracer) StartEpochSpan(ctx context.Context, epoch int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "train.epoch", trace.WithAttributes(
		attribute.Int("train.epoch", epoch),
	))
}

// StartEvaluationSpan starts a span for a ranking evaluation
func (t *Tracer) StartEvaluationSpan(ctx context.Context, relation string, pairs int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "eval.ranking", trace.WithAttributes(
		attribute.String("eval.relation", relation),
		attribute.Int("eval.pairs", pairs),
	))
}

// StartNormalizationSpan starts a span for normalizing one split
func (t *Tracer) StartNormalizationSpan(ctx context.Context, subset string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "dataset.normalize", trace.WithAttributes(
		attribute.String("dataset.subset", subset),
	))
}

// AddSpanAttributes adds attributes to a span
func AddSpanAttributes(span trace.Span, attrs map[string]interface{}) {
	for key, value := range attrs {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(key, v))
		case int:
			span.SetAttributes(attribute.Int(key, v))
		case int64:
			span.SetAttributes(attribute.Int64(key, v))
		case float64:
			span.SetAttributes(attribute.Float64(key, v))
		case bool:
			span.SetAttributes(attribute.Bool(key, v))
		case []string:
			span.SetAttributes(attribute.StringSlice(key, v))
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
}

// RecordSpanError records an error in a span
func RecordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSpanSuccess records success in a span
func RecordSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "success")
}

// RecordSpanDuration records duration in a span
func RecordSpanDuration(span trace.Span, duration time.Duration) {
	span.SetAttributes(attribute.Float64("duration_ms", float64(duration.Nanoseconds())/1e6))
}

// Shutdown flushes and stops the provider
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTraceID extracts trace ID from context
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
