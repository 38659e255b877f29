package ws_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargelink/internal/auth"
	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/handlers"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/session"
	"chargelink/internal/tracing"
	"chargelink/internal/ws"
)

type testServer struct {
	*httptest.Server
	registry *session.Registry
}

func newTestServer(t *testing.T, authSecret string) *testServer {
	t.Helper()
	logger := zap.NewNop()

	registry := session.NewRegistry()
	router := ocpp.NewRouter()
	router.Register(protocol.ActionBootNotification, handlers.NewBootNotificationHandler(10*time.Second, nil, logger))
	router.Register(protocol.ActionStatusNotification, handlers.NewStatusNotificationHandler(logger))
	router.Register(protocol.ActionStartTransaction, handlers.NewStartTransactionHandler(registry, nil, nil, logger))
	router.Register(protocol.ActionHeartbeat, handlers.NewHeartbeatHandler(nil, logger))
	router.Register(protocol.ActionMeterValues, handlers.NewMeterValuesHandler(logger))
	router.Register(protocol.ActionStopTransaction, handlers.NewStopTransactionHandler(nil, nil, logger))

	processor := ocpp.NewProcessor(router, tracing.NewCarrier(), nil, logger)
	manager := ws.NewManager(time.Minute)
	server := ws.NewServer(manager, registry, processor, authSecret, 5*time.Second, logger)

	httpServer := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	t.Cleanup(httpServer.Close)
	return &testServer{Server: httpServer, registry: registry}
}

func dialWS(t *testing.T, server *testServer, chargePointID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/" + chargePointID
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol}}
	conn, resp, err := dialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial %s: %v (resp %v)", url, err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip sends a CALL and reads one frame back.
func roundTrip(t *testing.T, conn *websocket.Conn, uid, action string, payload interface{}) *ocpp.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := ocpp.BuildCall(uid, action, body)
	if err != nil {
		t.Fatalf("build call: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := ocpp.Decode(raw)
	if err != nil {
		t.Fatalf("decode response %s: %v", raw, err)
	}
	if msg.UniqueID != uid {
		t.Fatalf("uniqueId mismatch: sent %q, got %q", uid, msg.UniqueID)
	}
	return msg
}

func expectCallResult(t *testing.T, msg *ocpp.Message) {
	t.Helper()
	if msg.MessageType != ocpp.MessageTypeCallResult {
		t.Fatalf("expected CALLRESULT, got type %d (%s: %s)", msg.MessageType, msg.ErrorCode, msg.ErrorDescription)
	}
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestChargingSessionOverWebsocket(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialWS(t, server, "CP_1", "")

	msg := roundTrip(t, conn, "u-boot", protocol.ActionBootNotification, protocol.BootNotificationRequest{
		ChargePointVendor: "RalphCo",
		ChargePointModel:  "RalphModel1",
	})
	expectCallResult(t, msg)
	var boot protocol.BootNotificationResponse
	if err := json.Unmarshal(msg.Payload, &boot); err != nil {
		t.Fatalf("unmarshal boot response: %v", err)
	}
	if boot.Status != protocol.StatusAccepted || boot.Interval != 10 {
		t.Fatalf("unexpected boot response: %+v", boot)
	}

	msg = roundTrip(t, conn, "u-status", protocol.ActionStatusNotification, protocol.StatusNotificationRequest{
		ConnectorID: 0, Status: protocol.ConnectorAvailable, ErrorCode: protocol.NoError,
	})
	expectCallResult(t, msg)

	msg = roundTrip(t, conn, "u-start", protocol.ActionStartTransaction, protocol.StartTransactionRequest{
		ConnectorID: 1, IdTag: "TEST", MeterStart: 0, Timestamp: time.Now().UTC(),
	})
	expectCallResult(t, msg)
	var start protocol.StartTransactionResponse
	if err := json.Unmarshal(msg.Payload, &start); err != nil {
		t.Fatalf("unmarshal start response: %v", err)
	}
	if start.TransactionID < 1 || start.IdTagInfo.Status != protocol.StatusAccepted {
		t.Fatalf("unexpected start response: %+v", start)
	}

	base := time.Now().UTC()
	for i := 1; i <= 3; i++ {
		msg = roundTrip(t, conn, fmt.Sprintf("u-hb-%d", i), protocol.ActionHeartbeat, protocol.HeartbeatRequest{})
		expectCallResult(t, msg)

		msg = roundTrip(t, conn, fmt.Sprintf("u-mv-%d", i), protocol.ActionMeterValues, protocol.MeterValuesRequest{
			ConnectorID:   1,
			TransactionID: start.TransactionID,
			MeterValue:    int64(i * 100),
			Timestamp:     base.Add(time.Duration(i) * time.Second),
		})
		expectCallResult(t, msg)
	}

	msg = roundTrip(t, conn, "u-stop", protocol.ActionStopTransaction, protocol.StopTransactionRequest{
		TransactionID: start.TransactionID, MeterStop: 300, Timestamp: time.Now().UTC(), Reason: "Local",
	})
	expectCallResult(t, msg)
}

func TestInvalidStateReturnsCallError(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialWS(t, server, "CP_1", "")

	msg := roundTrip(t, conn, "u-start", protocol.ActionStartTransaction, protocol.StartTransactionRequest{
		ConnectorID: 1, IdTag: "TEST",
	})
	if msg.MessageType != ocpp.MessageTypeCallError {
		t.Fatalf("expected CALLERROR, got %d", msg.MessageType)
	}
	if msg.ErrorCode != ocpp.ErrCodeInvalidState {
		t.Fatalf("expected InvalidState, got %s", msg.ErrorCode)
	}
}

func TestMissingChargePointIDRejected(t *testing.T) {
	server := newTestServer(t, "")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol}}
	_, resp, err := dialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a charge point id")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", resp)
	}
	resp.Body.Close()
}

func TestDisconnectClearsSession(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialWS(t, server, "CP_1", "")

	msg := roundTrip(t, conn, "u-boot", protocol.ActionBootNotification, protocol.BootNotificationRequest{ChargePointVendor: "RalphCo"})
	expectCallResult(t, msg)
	if sess, ok := server.registry.Get("CP_1"); !ok || sess.Phase != session.PhaseBooted {
		t.Fatalf("session not booted after BootNotification")
	}

	conn.Close()
	waitFor(t, 5*time.Second, func() bool {
		_, ok := server.registry.Get("CP_1")
		return !ok
	})

	// A reconnect starts over: BootNotification must be accepted again.
	conn2 := dialWS(t, server, "CP_1", "")
	msg = roundTrip(t, conn2, "u-reboot", protocol.ActionBootNotification, protocol.BootNotificationRequest{ChargePointVendor: "RalphCo"})
	expectCallResult(t, msg)
}

func TestAuthRequired(t *testing.T) {
	const secret = "test-secret"
	server := newTestServer(t, secret)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/CP_1"
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol}}
	_, resp, err := dialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
	resp.Body.Close()

	token, err := auth.NewToken(secret, "CP_1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	conn := dialWS(t, server, "CP_1", token)
	msg := roundTrip(t, conn, "u-boot", protocol.ActionBootNotification, protocol.BootNotificationRequest{ChargePointVendor: "RalphCo"})
	expectCallResult(t, msg)
}

func TestAuthTokenBoundToChargePoint(t *testing.T) {
	const secret = "test-secret"
	server := newTestServer(t, secret)

	token, err := auth.NewToken(secret, "CP_OTHER")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/CP_1"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol}}
	_, resp, err := dialer.Dial(url, header)
	if err == nil {
		t.Fatalf("expected dial with mismatched token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
	resp.Body.Close()
}
