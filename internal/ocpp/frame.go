package ocpp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message type ids as defined by OCPP-J.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// DecodeFault reasons.
const (
	ReasonMalformedFrame     = "MalformedFrame"
	ReasonUnknownMessageType = "UnknownMessageType"
	ReasonWrongArity         = "WrongArity"
)

// SentinelUniqueID is echoed in a CALLERROR when the offending frame was too
// broken to recover a uniqueId from.
const SentinelUniqueID = "-1"

// DecodeFault describes a frame that could not be decoded. The frame is never
// partially accepted; the receiver answers with a CALLERROR and keeps the
// connection open.
type DecodeFault struct {
	Reason string
	Detail string
}

func (f *DecodeFault) Error() string {
	return fmt.Sprintf("ocpp: %s: %s", f.Reason, f.Detail)
}

// Message represents a parsed OCPP frame.
type Message struct {
	MessageType      int
	UniqueID         string
	Action           string          // CALL only
	Payload          json.RawMessage // CALL and CALLRESULT
	ErrorCode        string          // CALLERROR only
	ErrorDescription string          // CALLERROR only
}

// Decode parses a raw frame into a Message. The frame must be a JSON array of
// exactly [2, uniqueId, action, payload], [3, uniqueId, payload], or
// [4, uniqueId, errorCode, errorDescription].
func Decode(raw []byte) (*Message, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(raw, &array); err != nil {
		return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "frame must be a JSON array"}
	}
	if len(array) == 0 {
		return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "frame is empty"}
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "messageTypeId must be an integer"}
	}

	msg := &Message{MessageType: msgType}

	switch msgType {
	case MessageTypeCall:
		if len(array) != 4 {
			return nil, &DecodeFault{Reason: ReasonWrongArity, Detail: "CALL frame must have length 4"}
		}
		if err := json.Unmarshal(array[1], &msg.UniqueID); err != nil {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "uniqueId must be a string"}
		}
		if err := json.Unmarshal(array[2], &msg.Action); err != nil || msg.Action == "" {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "action must be a non-empty string"}
		}
		if !isObject(array[3]) {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "payload must be an object"}
		}
		msg.Payload = array[3]
	case MessageTypeCallResult:
		if len(array) != 3 {
			return nil, &DecodeFault{Reason: ReasonWrongArity, Detail: "CALLRESULT frame must have length 3"}
		}
		if err := json.Unmarshal(array[1], &msg.UniqueID); err != nil {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "uniqueId must be a string"}
		}
		if !isObject(array[2]) {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "payload must be an object"}
		}
		msg.Payload = array[2]
	case MessageTypeCallError:
		if len(array) != 4 {
			return nil, &DecodeFault{Reason: ReasonWrongArity, Detail: "CALLERROR frame must have length 4"}
		}
		if err := json.Unmarshal(array[1], &msg.UniqueID); err != nil {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "uniqueId must be a string"}
		}
		if err := json.Unmarshal(array[2], &msg.ErrorCode); err != nil {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "errorCode must be a string"}
		}
		if err := json.Unmarshal(array[3], &msg.ErrorDescription); err != nil {
			return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "errorDescription must be a string"}
		}
	default:
		return nil, &DecodeFault{Reason: ReasonUnknownMessageType, Detail: fmt.Sprintf("messageTypeId %d is not CALL, CALLRESULT or CALLERROR", msgType)}
	}

	if msg.UniqueID == "" {
		return nil, &DecodeFault{Reason: ReasonMalformedFrame, Detail: "uniqueId must be non-empty"}
	}

	return msg, nil
}

// Encode is the exact inverse of Decode.
func Encode(m *Message) ([]byte, error) {
	switch m.MessageType {
	case MessageTypeCall:
		return json.Marshal([]interface{}{MessageTypeCall, m.UniqueID, m.Action, emptyIfNil(m.Payload)})
	case MessageTypeCallResult:
		return json.Marshal([]interface{}{MessageTypeCallResult, m.UniqueID, emptyIfNil(m.Payload)})
	case MessageTypeCallError:
		return json.Marshal([]interface{}{MessageTypeCallError, m.UniqueID, m.ErrorCode, m.ErrorDescription})
	default:
		return nil, fmt.Errorf("ocpp: cannot encode message type %d", m.MessageType)
	}
}

// BuildCall frames a request payload.
func BuildCall(uniqueID, action string, payload json.RawMessage) ([]byte, error) {
	return Encode(&Message{MessageType: MessageTypeCall, UniqueID: uniqueID, Action: action, Payload: payload})
}

// BuildCallResult frames a successful response payload.
func BuildCallResult(uniqueID string, payload json.RawMessage) ([]byte, error) {
	return Encode(&Message{MessageType: MessageTypeCallResult, UniqueID: uniqueID, Payload: payload})
}

// BuildCallError frames a fault response.
func BuildCallError(uniqueID, code, description string) ([]byte, error) {
	return Encode(&Message{MessageType: MessageTypeCallError, UniqueID: uniqueID, ErrorCode: code, ErrorDescription: description})
}

// BestEffortUniqueID recovers the uniqueId from a frame that failed to
// decode, so the CALLERROR can still be correlated by the sender. Returns the
// sentinel when the frame is too damaged.
func BestEffortUniqueID(raw []byte) string {
	var array []json.RawMessage
	if err := json.Unmarshal(raw, &array); err != nil || len(array) < 2 {
		return SentinelUniqueID
	}
	var uid string
	if err := json.Unmarshal(array[1], &uid); err != nil || uid == "" {
		return SentinelUniqueID
	}
	return uid
}

// DecodePayload unmarshals an action payload into its request struct.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var target T
	if len(payload) == 0 {
		return target, nil
	}
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, &Fault{Code: ErrCodeFormationViolation, Description: err.Error()}
	}
	return target, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func emptyIfNil(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("{}")
	}
	return payload
}
