package ir

import (
	"fmt"

	"github.com/achronyme/zkc/parser"
)

// ErrorCode classifies lowering failures. All are user-input errors and
// never recovered from.
type ErrorCode uint8

const (
	ErrParse ErrorCode = iota
	ErrUndeclaredVariable
	ErrUnsupportedOperation
	ErrTypeNotConstrainable
	ErrUnboundedLoop
	ErrDuplicateInput
	ErrWrongArgumentCount
	ErrIndexOutOfBounds
	ErrArrayLengthMismatch
	ErrRecursiveFunction
	ErrTypeMismatch
)

var errorCodeNames = [...]string{
	"parse error",
	"undeclared variable",
	"unsupported operation",
	"type not constrainable",
	"unbounded loop",
	"duplicate input",
	"wrong argument count",
	"index out of bounds",
	"array length mismatch",
	"recursive function",
	"type mismatch",
}

func (c ErrorCode) String() string { return errorCodeNames[c] }

// Error is a lowering error with an optional source span.
type Error struct {
	Code ErrorCode
	Msg  string
	Span *parser.Span
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at %d:%d)", e.Code, e.Msg, e.Span.Line, e.Span.Col)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func errAt(code ErrorCode, span parser.Span, format string, args ...interface{}) *Error {
	s := span
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Span: &s}
}

// EvalErrorKind classifies witness-side evaluation failures.
type EvalErrorKind uint8

const (
	EvalMissingInput EvalErrorKind = iota
	EvalUndefinedVariable
	EvalDivisionByZero
	EvalAssertFailed
	EvalAssertEqFailed
	EvalRangeCheckFailed
)

var evalKindNames = [...]string{
	"missing input",
	"undefined variable",
	"division by zero",
	"assertion failed",
	"assert_eq failed",
	"range check failed",
}

func (k EvalErrorKind) String() string { return evalKindNames[k] }

// EvalError reports the first violation hit by the evaluator, naming the
// offending variable.
type EvalError struct {
	Kind EvalErrorKind
	Var  Var
	Name string
	Msg  string
}

func (e *EvalError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}
