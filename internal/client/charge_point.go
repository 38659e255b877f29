package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/tracing"
	"chargelink/internal/ws"
)

// ErrConnectionClosed resolves pending calls when the transport drops
// mid-wait instead of letting them hang.
var ErrConnectionClosed = errors.New("client: connection closed")

// CallError is a CALLERROR answer to one of our calls.
type CallError struct {
	Code        string
	Description string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call error %s: %s", e.Code, e.Description)
}

type callOutcome struct {
	payload json.RawMessage
	err     error
}

// ChargePoint drives the charge-point side of the exchange: it sends CALL
// frames and correlates inbound CALLRESULT/CALLERROR frames back to the
// blocked caller through a pending table keyed by uniqueId.
type ChargePoint struct {
	id      string
	conn    *websocket.Conn
	carrier *tracing.Carrier
	tracer  trace.Tracer
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan callOutcome
	closed  bool

	done chan struct{}
}

// Dial connects to serverURL/{chargePointID} and starts the receive loop.
// authToken may be empty.
func Dial(ctx context.Context, serverURL, chargePointID, authToken string, logger *zap.Logger) (*ChargePoint, error) {
	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}

	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol}}
	endpoint := strings.TrimRight(serverURL, "/") + "/" + chargePointID
	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", endpoint, err)
	}

	cp := &ChargePoint{
		id:      chargePointID,
		conn:    conn,
		carrier: tracing.NewCarrier(),
		tracer:  otel.Tracer("chargelink/internal/client"),
		logger:  logger,
		pending: make(map[string]chan callOutcome),
		done:    make(chan struct{}),
	}
	go cp.readLoop()
	return cp, nil
}

// Call sends a CALL and blocks until the matching CALLRESULT payload or
// CALLERROR arrives. Context cancellation abandons the wait; transport
// closure fails it with ErrConnectionClosed.
func (cp *ChargePoint) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, span := cp.tracer.Start(ctx, "ocpp.call", trace.WithAttributes(
		attribute.String("ocpp.charge_point_id", cp.id),
		attribute.String("ocpp.action", action),
	))
	defer span.End()
	body = cp.carrier.Inject(ctx, body)

	uid := uuid.NewString()
	ch, err := cp.register(uid)
	if err != nil {
		return nil, err
	}

	frame, err := ocpp.BuildCall(uid, action, body)
	if err != nil {
		cp.unregister(uid)
		return nil, err
	}

	cp.writeMu.Lock()
	err = cp.conn.WriteMessage(websocket.TextMessage, frame)
	cp.writeMu.Unlock()
	if err != nil {
		cp.unregister(uid)
		return nil, fmt.Errorf("client: send %s: %w", action, err)
	}

	select {
	case outcome := <-ch:
		return outcome.payload, outcome.err
	case <-ctx.Done():
		cp.unregister(uid)
		return nil, ctx.Err()
	case <-cp.done:
		return nil, ErrConnectionClosed
	}
}

// Close tears the connection down; any pending waits resolve with
// ErrConnectionClosed.
func (cp *ChargePoint) Close() error {
	return cp.conn.Close()
}

// register reserves a pending slot for uid. Reusing a uniqueId while the
// original call is still in flight is a protocol fault, never a silent
// overwrite.
func (cp *ChargePoint) register(uid string) (chan callOutcome, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.closed {
		return nil, ErrConnectionClosed
	}
	if _, exists := cp.pending[uid]; exists {
		return nil, fmt.Errorf("client: uniqueId %s already in flight", uid)
	}
	ch := make(chan callOutcome, 1)
	cp.pending[uid] = ch
	return ch, nil
}

func (cp *ChargePoint) unregister(uid string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	delete(cp.pending, uid)
}

func (cp *ChargePoint) resolve(uid string, outcome callOutcome) {
	cp.mu.Lock()
	ch, ok := cp.pending[uid]
	if ok {
		delete(cp.pending, uid)
	}
	cp.mu.Unlock()
	if !ok {
		cp.logger.Warn("response for unknown uniqueId", zap.String("unique_id", uid))
		return
	}
	ch <- outcome
}

func (cp *ChargePoint) readLoop() {
	defer cp.failPending()

	for {
		_, raw, err := cp.conn.ReadMessage()
		if err != nil {
			cp.logger.Info("connection closed", zap.String("charge_point_id", cp.id), zap.Error(err))
			return
		}

		msg, err := ocpp.Decode(raw)
		if err != nil {
			cp.logger.Warn("undecodable frame from server", zap.Error(err))
			continue
		}

		switch msg.MessageType {
		case ocpp.MessageTypeCallResult:
			_, payload := cp.carrier.Extract(context.Background(), msg.Payload)
			cp.resolve(msg.UniqueID, callOutcome{payload: payload})
		case ocpp.MessageTypeCallError:
			cp.resolve(msg.UniqueID, callOutcome{err: &CallError{Code: msg.ErrorCode, Description: msg.ErrorDescription}})
		default:
			// Server-initiated CALLs are outside this engine's scope.
			cp.logger.Warn("unexpected CALL from server", zap.String("action", msg.Action))
		}
	}
}

func (cp *ChargePoint) failPending() {
	cp.mu.Lock()
	cp.closed = true
	for uid, ch := range cp.pending {
		ch <- callOutcome{err: ErrConnectionClosed}
		delete(cp.pending, uid)
	}
	cp.mu.Unlock()
	close(cp.done)
	_ = cp.conn.Close()
}
