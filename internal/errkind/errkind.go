// Package errkind defines the typed error kinds shared across agentd's
// components (§7 of the design spec), so callers can branch on failure
// category without string-matching error messages.
package errkind

import "fmt"

// Kind identifies the category of a failure.
type Kind string

const (
	InvalidPath       Kind = "InvalidPath"
	InvalidParameters Kind = "InvalidParameters"
	NotFound          Kind = "NotFound"
	Corrupt           Kind = "Corrupt"
	ModelFailure      Kind = "ModelFailure"
	Cancelled         Kind = "Cancelled"
	BudgetExhausted   Kind = "BudgetExhausted"
	IOError           Kind = "IOError"
	Busy              Kind = "Busy"
)

// Error wraps an underlying error with a Kind, so it can be surfaced via
// ToolResult.error or an engine error{} event while remaining inspectable.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "read_file"
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a typed Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of reports whether err (or any error it wraps) carries the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
