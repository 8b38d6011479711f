package dberror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by how the engine and its caller must react.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by invalid input from the caller,
	// such as a malformed parameter set or a constraint violation.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategoryFragment represents a failure while running one plan fragment.
	// The engine stays usable; the coordinator decides whether to undo.
	ErrCategoryFragment

	// ErrCategoryDependency represents a violation of the producer/consumer
	// protocol between fragments of one batch.
	ErrCategoryDependency

	// ErrCategoryPlan represents an unparseable or schema-inconsistent plan.
	// The fragment cache is left untouched.
	ErrCategoryPlan

	// ErrCategorySystem represents misuse of the engine that is not fatal,
	// for example a re-entrant call.
	ErrCategorySystem

	// ErrCategoryFatal represents a contract violation after which the engine
	// can no longer be trusted. The engine faults until it is reset.
	ErrCategoryFatal
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "USER"
	case ErrCategoryFragment:
		return "FRAGMENT"
	case ErrCategoryDependency:
		return "DEPENDENCY"
	case ErrCategoryPlan:
		return "PLAN"
	case ErrCategorySystem:
		return "SYSTEM"
	case ErrCategoryFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// DBError is the engine's structured error. Code is stable and is what the
// exception buffer carries; the remaining fields are for humans and logs.
type DBError struct {
	Code     string
	Category ErrorCategory
	Message  string
	Detail   string
	Hint     string

	// Operation and Component locate the failure, e.g. "SetUndoToken" in
	// "UndoLog".
	Operation string
	Component string

	Cause error
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Newf is New with a formatted detail.
func Newf(category ErrorCategory, code, message, format string, args ...any) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Detail:   fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with engine-specific context information.
// If the error is already a DBError, it enriches the existing error with
// operation and component context (only if not already set).
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets the detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint sets the hint and returns the receiver for chaining.
func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// At records where the error surfaced. Existing values are kept.
func (e *DBError) At(operation, component string) *DBError {
	if e.Operation == "" {
		e.Operation = operation
	}
	if e.Component == "" {
		e.Component = component
	}
	return e
}

// captureStack skips captureStack, the constructor and runtime.Callers itself.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error renders "[CODE] message: detail (operation: op, component: c) caused by: cause",
// omitting the parts that are empty.
func (e *DBError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	switch {
	case e.Operation != "" && e.Component != "":
		fmt.Fprintf(&b, " (operation: %s, component: %s)", e.Operation, e.Component)
	case e.Operation != "":
		fmt.Fprintf(&b, " (operation: %s)", e.Operation)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}
	return b.String()
}

func (e *DBError) Unwrap() error { return e.Cause }

// Is reports whether target is a DBError carrying the same code. This lets
// callers match against the sentinels in codes.go with errors.Is.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// FormatStack renders the stack captured when the error was created.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Stack trace:\n")
	frames := runtime.CallersFrames(e.Stack)
	for f, more := frames.Next(); ; f, more = frames.Next() {
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return b.String()
		}
	}
}
