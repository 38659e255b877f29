package ocpp

import (
	"context"
	"encoding/json"

	"chargelink/internal/session"
)

// HandlerFunc processes one action against the caller's session state and
// returns the response payload, or a *Fault to answer with a CALLERROR.
type HandlerFunc func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error)

// Router dispatches OCPP actions to handlers through an explicit lookup
// table. The router itself is stateless; all mutation happens on the session
// passed in.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register attaches a handler to an action name.
func (r *Router) Register(action string, handler HandlerFunc) {
	r.handlers[action] = handler
}

// Route executes the handler for the message's action. Unknown actions yield
// a NotImplemented fault.
func (r *Router) Route(ctx context.Context, sess *session.State, msg *Message) (interface{}, error) {
	handler, ok := r.handlers[msg.Action]
	if !ok {
		return nil, NewFault(ErrCodeNotImplemented, "action %s is not supported", msg.Action)
	}
	return handler(ctx, sess, msg.Payload)
}
