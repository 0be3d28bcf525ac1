package o11y

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an otel.Tracer for the pipeline's named steps: fetch,
// parse, embed, extract, vector_search, rerank, synthesis.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer using the given instrumentation name
// (typically the package name), falling back to the global otel tracer
// provider if tp is nil.
func NewTracer(name string, tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(name)}
}

// Start begins a span for op, attaching attrs, and returns the derived
// context plus a finish function that records err (if any) on the span.
func (t *Tracer) Start(ctx context.Context, op string, attrs map[string]any) (context.Context, func(error)) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, toString(v)))
	}
	ctx, span := t.tracer.Start(ctx, op, trace.WithAttributes(kv...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
