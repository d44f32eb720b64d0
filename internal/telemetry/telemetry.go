// Package telemetry adapts the teacher's pkg/telemetry (settings.go,
// tracer.go, span.go) to this proxy's domain: one span per downstream
// request, carrying the resolved model, upstream status, and token counts
// as attributes, with a no-op tracer when telemetry is disabled.
//
// The teacher's three pieces (Settings, GetTracer, span recording) are kept
// in this one file, with RecordSpan split into StartRequestSpan and
// FinishRequestSpan, and generalized from "ai.model.provider"/"ai.model.id" AI-SDK attribute names
// to this proxy's request-level attributes, since there is no per-call
// generation settings map to mirror here — just one request in, one
// response out.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName identifies this proxy's tracer in exported spans.
const TracerName = "messages-gemini-proxy"

// Settings configures telemetry. Disabled by default, matching the
// teacher's telemetry.Settings.IsEnabled gate.
type Settings struct {
	IsEnabled bool
	Tracer    trace.Tracer
}

// GetTracer returns a no-op tracer when telemetry is disabled or settings
// is nil, a custom tracer when one was supplied, or the global tracer
// otherwise — the same three-way choice as the teacher's GetTracer.
func GetTracer(settings *Settings) trace.Tracer {
	if settings == nil || !settings.IsEnabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if settings.Tracer != nil {
		return settings.Tracer
	}
	return otel.Tracer(TracerName)
}

// RequestAttributes are known before the upstream call is issued.
type RequestAttributes struct {
	RequestID string
	Model     string
}

// StartRequestSpan opens the one span per downstream request (§11 "one span
// per downstream request"). The caller must call FinishRequestSpan (or
// span.End directly) exactly once.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, attrs RequestAttributes) (context.Context, trace.Span) {
	return tracer.Start(ctx, "messages.translate_and_stream", trace.WithAttributes(
		attribute.String("proxy.request_id", attrs.RequestID),
		attribute.String("proxy.model", attrs.Model),
	))
}

// ResponseAttributes carries the outcome, recorded on the span just before
// it ends.
type ResponseAttributes struct {
	UpstreamStatus int
	InputTokens    int
	OutputTokens   int
}

// FinishRequestSpan records the outcome attributes and, when err is
// non-nil, marks the span as errored — mirroring the teacher's
// RecordErrorOnSpan — before ending it.
func FinishRequestSpan(span trace.Span, resp ResponseAttributes, err error) {
	span.SetAttributes(
		attribute.Int("proxy.upstream_status", resp.UpstreamStatus),
		attribute.Int("proxy.input_tokens", resp.InputTokens),
		attribute.Int("proxy.output_tokens", resp.OutputTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
