package commands

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"runtime/debug"

	pkgerrors "github.com/pkg/errors"
)

// NoPrivateMessage: a guild-only command was invoked from a direct message.
type NoPrivateMessage struct {
	Command string
}

func (e *NoPrivateMessage) Error() string {
	return fmt.Sprintf("%s cannot be used in private messages", e.Command)
}

// CommandNotFound: the prefix matched but no command did.
type CommandNotFound struct {
	Name string
}

func (e *CommandNotFound) Error() string {
	return fmt.Sprintf("command %q is not found", e.Name)
}

// BadArgument: a handler rejected its arguments before doing any work.
type BadArgument struct {
	Usage string
}

func (e *BadArgument) Error() string { return "usage: " + e.Usage }

// Panic is a recovered panic value.
type Panic struct {
	Value any
}

func (e *Panic) Error() string { return fmt.Sprintf("%v", e.Value) }

// CommandInvokeError wraps a failure raised by the handler itself.
type CommandInvokeError struct {
	Command  string
	Original error
	// Stack is the trace of Original: from pkg/errors when the handler used
	// it, otherwise the goroutine stack at the point of capture.
	Stack string
}

func (e *CommandInvokeError) Error() string {
	return fmt.Sprintf("command %s raised an error: %s", e.Command, Summary(e.Original))
}

func (e *CommandInvokeError) Unwrap() error { return e.Original }

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func newInvokeError(cmd *Command, err error, stack []byte) *CommandInvokeError {
	ie := &CommandInvokeError{Command: cmd.QualifiedName(), Original: err}
	var st stackTracer
	switch {
	case errors.As(err, &st):
		ie.Stack = fmt.Sprintf("%+v", st.StackTrace())
	case stack != nil:
		ie.Stack = string(stack)
	default:
		ie.Stack = string(debug.Stack())
	}
	return ie
}

// Summary renders "TypeName: message" for the innermost cause of err.
// Unnamed or unexported error types, such as those of errors.New, render as
// "error".
func Summary(err error) string {
	if err == nil {
		return "<nil>"
	}
	cause := pkgerrors.Cause(err)
	return fmt.Sprintf("%s: %v", TypeName(cause), cause)
}

// TypeName is the exported type name of err, or "error".
func TypeName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if !token.IsExported(t.Name()) {
		return "error"
	}
	return t.Name()
}
