package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors.
type ErrorKind string

const (
	KindInvalidEncoding      ErrorKind = "InvalidEncoding"
	KindPatternCompile       ErrorKind = "PatternCompileError"
	KindInvalidConfiguration ErrorKind = "InvalidConfiguration"
	KindPartialEvaluation    ErrorKind = "PartialEvaluationFailure"
)

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrInvalidEncoding      = &Error{Kind: KindInvalidEncoding}
	ErrPatternCompile       = &Error{Kind: KindPatternCompile}
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrPartialEvaluation    = &Error{Kind: KindPartialEvaluation}
)

// Error is the structured error returned across the engine boundary.
type Error struct {
	Kind ErrorKind
	// Label names the offending pattern, criterion or recognizer, if any.
	Label string
	// Offset is the byte offset of the first invalid sequence (InvalidEncoding only).
	Offset  int
	Message string
	Err     error
}

// NewError builds an Error with a formatted message.
func NewError(kind ErrorKind, label, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Label: label, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error around a cause.
func WrapError(kind ErrorKind, label string, err error) *Error {
	return &Error{Kind: kind, Label: label, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Kind == KindInvalidEncoding:
		return fmt.Sprintf("%s at byte %d: %s", e.Kind, e.Offset, msg)
	case e.Label != "":
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Label, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrPatternCompile)
// holds for every pattern compile failure regardless of label.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind carried by err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Diagnostic reports a per-item failure inline in a result.
type Diagnostic struct {
	Kind    ErrorKind `json:"kind"`
	Label   string    `json:"label,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// DiagnosticFrom converts err into a Diagnostic tagged with stage.
func DiagnosticFrom(err error, stage string) Diagnostic {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		return Diagnostic{Kind: e.Kind, Label: e.Label, Stage: stage, Message: msg}
	}
	return Diagnostic{Kind: KindPartialEvaluation, Stage: stage, Message: err.Error()}
}
