package tracing

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansAreExported(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr, err := NewTracerWithExporter(DefaultConfig(), exporter)
	require.NoError(t, err)
	defer tr.Shutdown(context.Background())

	ctx, span := tr.StartEpochSpan(context.Background(), 3)
	assert.NotEmpty(t, GetTraceID(ctx))
	AddSpanAttributes(span, map[string]interface{}{"loss": 0.5, "kinds": []string{"gci0"}})
	RecordSpanSuccess(span)
	span.End()

	_, span = tr.StartEvaluationSpan(context.Background(), "http://interacts_with", 4)
	RecordSpanError(span, errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "train.epoch", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, "eval.ranking", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestNopTracer(t *testing.T) {
	tr := NewNop()
	ctx, span := tr.StartNormalizationSpan(context.Background(), "training")
	span.End()
	assert.Empty(t, GetTraceID(ctx))
	assert.NoError(t, tr.Shutdown(context.Background()))
}
