package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargelink/internal/session"
)

// MessageProcessor handles one raw inbound frame and returns the frame to
// send back, or nil when no answer is needed.
type MessageProcessor interface {
	Process(ctx context.Context, sess *session.State, raw []byte) ([]byte, error)
}

// Connection is the worker for one charge point. It owns the charge point's
// session state for the lifetime of the connection and processes inbound
// frames strictly in order: the next frame is not read until the response
// for the current one has been queued.
type Connection struct {
	chargePointID string
	sess          *session.State
	ws            *websocket.Conn
	send          chan []byte
	processor     MessageProcessor
	writeTimeout  time.Duration
	logger        *zap.Logger
	onClose       func(chargePointID string)
}

// NewConnection builds connection wrapper.
func NewConnection(chargePointID string, sess *session.State, ws *websocket.Conn, processor MessageProcessor, writeTimeout time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		chargePointID: chargePointID,
		sess:          sess,
		ws:            ws,
		send:          make(chan []byte, 16),
		processor:     processor,
		writeTimeout:  writeTimeout,
		logger:        logger,
		onClose:       onClose,
	}
}

// ChargePointID returns identifier.
func (c *Connection) ChargePointID() string {
	return c.chargePointID
}

// Start launches read/write pumps. Blocks until the connection drops.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(1024 * 1024)
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("connection read closed", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			return
		}

		response, err := c.processor.Process(ctx, c.sess, message)
		if err != nil {
			c.logger.Warn("failed to process frame", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			continue
		}
		if response != nil {
			c.Send(response)
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame for writing. Blocks when the write side is behind so
// responses leave in the order their requests arrived.
func (c *Connection) Send(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("attempted to send on closed connection", zap.String("charge_point_id", c.chargePointID))
		}
	}()
	c.send <- msg
}

// Ping sends ping.
func (c *Connection) Ping() error {
	return c.write(websocket.PingMessage, []byte("ping"))
}

func (c *Connection) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	close(c.send)
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.chargePointID)
	}
}
