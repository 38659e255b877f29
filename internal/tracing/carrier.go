package tracing

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/propagation"
)

// Reserved payload keys carrying the serialized trace context. They are not
// part of the OCPP schema; conformant peers ignore unknown payload fields.
const (
	TraceParentField = "traceparent"
	TraceStateField  = "tracestate"
)

var reservedFields = []string{TraceParentField, TraceStateField}

// Carrier moves W3C trace-context tokens in and out of OCPP payload objects.
// It is stateless and transparent: payloads without a token pass through
// unchanged, and injecting without an active span context is a no-op.
type Carrier struct {
	propagator propagation.TextMapPropagator
}

// NewCarrier returns a Carrier using the W3C TraceContext propagator.
func NewCarrier() *Carrier {
	return &Carrier{propagator: propagation.TraceContext{}}
}

// Inject returns the payload with the span context from ctx added under the
// reserved keys, leaving all other fields intact.
func (c *Carrier) Inject(ctx context.Context, payload json.RawMessage) json.RawMessage {
	values := propagation.MapCarrier{}
	c.propagator.Inject(ctx, values)
	if len(values) == 0 {
		return payload
	}

	fields, err := decodeObject(payload)
	if err != nil {
		return payload
	}
	for key, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		fields[key] = encoded
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return payload
	}
	return out
}

// Extract pulls the trace context out of the payload, returning a context
// carrying it and the payload with the reserved keys removed. Absence of a
// token is valid: the parent context and payload are returned unchanged.
func (c *Carrier) Extract(ctx context.Context, payload json.RawMessage) (context.Context, json.RawMessage) {
	fields, err := decodeObject(payload)
	if err != nil {
		return ctx, payload
	}

	values := propagation.MapCarrier{}
	found := false
	for _, key := range reservedFields {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil {
			values[key] = value
		}
		delete(fields, key)
		found = true
	}
	if !found {
		return ctx, payload
	}

	out, err := json.Marshal(fields)
	if err != nil {
		out = payload
	}
	return c.propagator.Extract(ctx, values), out
}

func decodeObject(payload json.RawMessage) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(payload) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return fields, nil
}
