package tracing

import (
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func sampledContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatalf("trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatalf("span id: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestExtractWithoutTokenIsTransparent(t *testing.T) {
	carrier := NewCarrier()
	payload := json.RawMessage(`{"connectorId":1,"meterValue":100}`)

	ctx, out := carrier.Extract(context.Background(), payload)
	if string(out) != string(payload) {
		t.Fatalf("payload changed: %s", out)
	}
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Fatalf("unexpected span context extracted")
	}
}

func TestInjectWithoutSpanIsNoop(t *testing.T) {
	carrier := NewCarrier()
	payload := json.RawMessage(`{"status":"Accepted"}`)

	out := carrier.Inject(context.Background(), payload)
	if string(out) != string(payload) {
		t.Fatalf("payload changed without active span: %s", out)
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	carrier := NewCarrier()
	ctx := sampledContext(t)

	out := carrier.Inject(ctx, json.RawMessage(`{"status":"Accepted"}`))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal injected payload: %v", err)
	}
	if _, ok := fields[TraceParentField]; !ok {
		t.Fatalf("traceparent not injected: %s", out)
	}
	if _, ok := fields["status"]; !ok {
		t.Fatalf("business field dropped: %s", out)
	}

	extractedCtx, stripped := carrier.Extract(context.Background(), out)
	sc := trace.SpanContextFromContext(extractedCtx)
	if !sc.IsValid() {
		t.Fatalf("no span context extracted")
	}
	if sc.TraceID() != trace.SpanContextFromContext(ctx).TraceID() {
		t.Fatalf("trace id changed in round trip")
	}
	if !sc.IsSampled() {
		t.Fatalf("sampled flag lost")
	}
	if !sc.IsRemote() {
		t.Fatalf("extracted span context not marked remote")
	}

	var after map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &after); err != nil {
		t.Fatalf("unmarshal stripped payload: %v", err)
	}
	if _, ok := after[TraceParentField]; ok {
		t.Fatalf("traceparent not stripped: %s", stripped)
	}
	if _, ok := after[TraceStateField]; ok {
		t.Fatalf("tracestate not stripped: %s", stripped)
	}
	if string(after["status"]) != `"Accepted"` {
		t.Fatalf("business field lost: %s", stripped)
	}
}

func TestExtractMalformedTokenKeepsPayloadClean(t *testing.T) {
	carrier := NewCarrier()
	payload := json.RawMessage(`{"a":1,"traceparent":"not-a-valid-token"}`)

	ctx, stripped := carrier.Extract(context.Background(), payload)
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Fatalf("invalid token produced a span context")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields[TraceParentField]; ok {
		t.Fatalf("malformed token not stripped: %s", stripped)
	}
}
