// Package telemetry traces provider calls with OpenTelemetry.
//
// Spans are created through the global TracerProvider unless one is given
// explicitly, so tracing costs nothing until the application installs an
// SDK provider.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vinayprograms/voyagekit/errors"
)

// InstrumentationName is the tracer name used by NewTracer.
const InstrumentationName = "github.com/vinayprograms/voyagekit"

// Tracer wraps an OpenTelemetry tracer with call helpers. A nil *Tracer
// records nothing.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a tracer backed by the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(InstrumentationName)}
}

// NewTracerFromProvider returns a tracer backed by tp.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(InstrumentationName)}
}

// CallSpanOptions describes a finished provider call.
type CallSpanOptions struct {
	Model    string
	Pool     string
	Estimate int
	Tokens   int           // usage reported by the provider
	Items    int           // texts embedded or documents ranked
	Wait     time.Duration // time spent waiting for the rate limiter
}

// StartCallSpan starts a client span for one provider call.
func (t *Tracer) StartCallSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, op)
	}
	ctx, span := t.tracer.Start(ctx, "voyage."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("voyage.op", op))
	return ctx, span
}

// EndCallSpan records opts on span, marks it failed if err is set, and
// ends it.
func (t *Tracer) EndCallSpan(span trace.Span, opts CallSpanOptions, err error) {
	span.SetAttributes(
		attribute.String("voyage.model", opts.Model),
		attribute.String("voyage.pool", opts.Pool),
		attribute.Int("voyage.tokens.estimate", opts.Estimate),
		attribute.Int("voyage.tokens.actual", opts.Tokens),
		attribute.Int("voyage.items", opts.Items),
		attribute.Int64("voyage.rate_limit.wait_ms", opts.Wait.Milliseconds()),
	)

	if err != nil {
		span.SetAttributes(attribute.String("error.code", string(errors.Code(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// InjectContext writes the trace context of ctx into carrier, typically
// propagation.HeaderCarrier of an outgoing request.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// ExtractContext reads a trace context from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
