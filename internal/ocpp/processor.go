package ocpp

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chargelink/internal/session"
	"chargelink/internal/tracing"
)

// FrameLog persists raw frames in both directions.
type FrameLog interface {
	Save(ctx context.Context, chargePointID, direction, action string, frame []byte) error
}

// Processor ties together decoding, trace propagation, routing, and response
// encoding for one inbound frame. Handlers never see the trace token; it is
// stripped before dispatch and re-injected into the response payload.
type Processor struct {
	router   *Router
	carrier  *tracing.Carrier
	tracer   trace.Tracer
	frameLog FrameLog
	logger   *zap.Logger
}

// NewProcessor builds a Processor. frameLog may be nil.
func NewProcessor(router *Router, carrier *tracing.Carrier, frameLog FrameLog, logger *zap.Logger) *Processor {
	return &Processor{
		router:   router,
		carrier:  carrier,
		tracer:   otel.Tracer("chargelink/internal/ocpp"),
		frameLog: frameLog,
		logger:   logger,
	}
}

// Process handles one raw frame and returns the frame to send back. Decode
// and handler faults are converted to CALLERROR frames; only encoding
// failures are returned as errors. A nil response with a nil error means the
// frame needs no answer.
func (p *Processor) Process(ctx context.Context, sess *session.State, raw []byte) ([]byte, error) {
	msg, err := Decode(raw)
	if err != nil {
		var fault *DecodeFault
		if df, ok := err.(*DecodeFault); ok {
			fault = df
		} else {
			fault = &DecodeFault{Reason: ReasonMalformedFrame, Detail: err.Error()}
		}
		uid := BestEffortUniqueID(raw)
		p.logger.Warn("frame rejected",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.String("unique_id", uid),
			zap.String("code", fault.Reason),
			zap.String("detail", fault.Detail))
		return BuildCallError(uid, fault.Reason, fault.Detail)
	}

	if msg.MessageType != MessageTypeCall {
		// The server side only consumes CALL frames; a stray response is
		// logged and dropped rather than answered.
		p.logger.Warn("unexpected non-CALL frame",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.Int("message_type", msg.MessageType),
			zap.String("unique_id", msg.UniqueID))
		return nil, nil
	}

	msgCtx, stripped := p.carrier.Extract(ctx, msg.Payload)
	msg.Payload = stripped

	msgCtx, span := p.tracer.Start(msgCtx, "ocpp.message", trace.WithAttributes(
		attribute.String("ocpp.charge_point_id", sess.ChargePointID),
		attribute.String("ocpp.action", msg.Action),
		attribute.String("ocpp.unique_id", msg.UniqueID),
	))
	defer span.End()

	if p.frameLog != nil {
		_ = p.frameLog.Save(msgCtx, sess.ChargePointID, "incoming", msg.Action, raw)
	}

	result, err := p.router.Route(msgCtx, sess, msg)
	if err != nil {
		fault := AsFault(err)
		p.logger.Warn("action rejected",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.String("action", msg.Action),
			zap.String("unique_id", msg.UniqueID),
			zap.String("code", fault.Code),
			zap.String("detail", fault.Description))
		return BuildCallError(msg.UniqueID, fault.Code, fault.Description)
	}

	body, err := json.Marshal(result)
	if err != nil {
		p.logger.Error("encode response payload failed", zap.Error(err))
		return nil, err
	}
	body = p.carrier.Inject(msgCtx, body)

	resp, err := BuildCallResult(msg.UniqueID, body)
	if err != nil {
		return nil, err
	}

	if p.frameLog != nil {
		_ = p.frameLog.Save(msgCtx, sess.ChargePointID, "outgoing", msg.Action, resp)
	}

	return resp, nil
}
