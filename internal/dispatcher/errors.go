package dispatcher

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrContextInitialization = errors.New("context initialization failed")
	ErrContextNotFound       = errors.New("context not found")
	ErrOperationTimeout      = errors.New("operation timed out")
	ErrContextFault          = errors.New("context fault")
	ErrContextTerminated     = errors.New("context terminated")
	ErrOperationFailed       = errors.New("operation failed")
)

// Error describes a failed dispatcher call.
type Error struct {
	Kind      error
	Key       string
	Operation string
	ID        string

	// Message is the text reported by the context, if any.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Key != "" {
		fmt.Fprintf(&b, " [context=%s", e.Key)
		if e.Operation != "" {
			fmt.Fprintf(&b, " operation=%s", e.Operation)
		}
		if e.ID != "" {
			fmt.Fprintf(&b, " id=%s", e.ID)
		}
		b.WriteByte(']')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
