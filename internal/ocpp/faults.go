package ocpp

import (
	"errors"
	"fmt"
)

// CALLERROR codes emitted by the router.
const (
	ErrCodeInvalidState         = "InvalidState"
	ErrCodeOutOfOrderMeterValue = "OutOfOrderMeterValue"
	ErrCodeNotImplemented       = "NotImplemented"
	ErrCodeFormationViolation   = "FormationViolation"
	ErrCodeInternalError        = "InternalError"
)

// Fault is a protocol-level failure answered with a CALLERROR. The session
// phase is never changed by a faulting action.
type Fault struct {
	Code        string
	Description string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("ocpp: %s: %s", f.Code, f.Description)
}

// NewFault builds a Fault with a formatted description.
func NewFault(code, format string, args ...interface{}) *Fault {
	return &Fault{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsFault maps any handler error onto the CALLERROR taxonomy; unexpected
// errors become InternalError.
func AsFault(err error) *Fault {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}
	return &Fault{Code: ErrCodeInternalError, Description: err.Error()}
}
