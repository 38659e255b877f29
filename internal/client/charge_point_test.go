package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargelink/internal/client"
	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/handlers"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/session"
	"chargelink/internal/tracing"
	"chargelink/internal/ws"
)

func newFlowServer(t *testing.T) *httptest.Server {
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
	server := ws.NewServer(manager, registry, processor, "", 5*time.Second, logger)

	httpServer := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	t.Cleanup(httpServer.Close)
	return httpServer
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestCallCorrelatesConcurrentRequests(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: []string{ws.Subprotocol}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Collect two calls, then answer them in reverse order. Each answer
		// carries its request's action so the caller can verify it got its
		// own response and not the other one.
		var msgs []*ocpp.Message
		for len(msgs) < 2 {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := ocpp.Decode(raw)
			if err != nil {
				continue
			}
			msgs = append(msgs, msg)
		}
		for i := len(msgs) - 1; i >= 0; i-- {
			body, _ := json.Marshal(map[string]string{"echo": msgs[i].Action})
			resp, _ := ocpp.BuildCallResult(msgs[i].UniqueID, body)
			_ = conn.WriteMessage(websocket.TextMessage, resp)
		}
	}))
	defer server.Close()

	cp, err := client.Dial(context.Background(), wsURL(server), "CP_1", "", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cp.Close()

	var wg sync.WaitGroup
	for _, action := range []string{"First", "Second"} {
		wg.Add(1)
		go func(action string) {
			defer wg.Done()
			raw, err := cp.Call(context.Background(), action, map[string]string{})
			if err != nil {
				t.Errorf("call %s: %v", action, err)
				return
			}
			var resp map[string]string
			if err := json.Unmarshal(raw, &resp); err != nil {
				t.Errorf("unmarshal %s: %v", action, err)
				return
			}
			if resp["echo"] != action {
				t.Errorf("call %s got response for %s", action, resp["echo"])
			}
		}(action)
	}
	wg.Wait()
}

func TestCallSurfacesCallError(t *testing.T) {
	server := newFlowServer(t)

	cp, err := client.Dial(context.Background(), wsURL(server), "CP_1", "", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cp.Close()

	// StartTransaction before boot is rejected by the server.
	_, err = cp.Call(context.Background(), protocol.ActionStartTransaction, protocol.StartTransactionRequest{
		ConnectorID: 1, IdTag: "TEST",
	})
	var callErr *client.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *client.CallError, got %v", err)
	}
	if callErr.Code != ocpp.ErrCodeInvalidState {
		t.Fatalf("expected InvalidState, got %s", callErr.Code)
	}
}

func TestCallFailsWhenConnectionDrops(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: []string{ws.Subprotocol}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Swallow one frame, then drop the connection without answering.
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer server.Close()

	cp, err := client.Dial(context.Background(), wsURL(server), "CP_1", "", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = cp.Call(ctx, protocol.ActionHeartbeat, protocol.HeartbeatRequest{})
	if !errors.Is(err, client.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}

	// Subsequent calls fail fast instead of hanging.
	_, err = cp.Call(ctx, protocol.ActionHeartbeat, protocol.HeartbeatRequest{})
	if !errors.Is(err, client.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed on closed client, got %v", err)
	}
}

func TestCallHonorsContextCancellation(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: []string{ws.Subprotocol}}
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
		<-block
	}))
	defer server.Close()
	defer close(block)

	cp, err := client.Dial(context.Background(), wsURL(server), "CP_1", "", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cp.Call(ctx, protocol.ActionHeartbeat, protocol.HeartbeatRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRunFlowHappyPath(t *testing.T) {
	server := newFlowServer(t)

	cp, err := client.Dial(context.Background(), wsURL(server), "CP_1", "", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cp.Close()

	err = client.RunFlow(context.Background(), cp, client.FlowConfig{
		IdTag:             "TEST",
		HeartbeatCount:    2,
		MeterStep:         100,
		HeartbeatInterval: 5 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
}

func TestRunFlowBootOnly(t *testing.T) {
	server := newFlowServer(t)

	cp, err := client.Dial(context.Background(), wsURL(server), "CP_1", "", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cp.Close()

	err = client.RunFlow(context.Background(), cp, client.FlowConfig{
		IdTag:    "TEST",
		BootOnly: true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("boot-only flow: %v", err)
	}
}
