package netconf

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error returned by the core, mirroring the coarse
// categories a caller needs to branch on without inspecting message text.
type Kind int

// Error kinds.
const (
	// KindArg indicates an invalid argument was supplied by the caller.
	KindArg Kind = iota
	// KindInternal indicates an invariant was violated inside the core.
	KindInternal
	// KindWouldBlock indicates a timeout elapsed before the operation completed.
	KindWouldBlock
	// KindTransport indicates a read or write on the underlying transport failed,
	// or the session is not in a state that permits the operation.
	KindTransport
	// KindProtocol indicates a message of an unexpected type or shape was received.
	KindProtocol
	// KindSchema indicates a required module was missing, or a built tree failed validation.
	KindSchema
	// KindPartialSchema indicates one or more capability modules failed to load.
	KindPartialSchema
)

func (k Kind) String() string {
	switch k {
	case KindArg:
		return "Arg"
	case KindInternal:
		return "Internal"
	case KindWouldBlock:
		return "WouldBlock"
	case KindTransport:
		return "TransportError"
	case KindProtocol:
		return "ProtocolError"
	case KindSchema:
		return "SchemaError"
	case KindPartialSchema:
		return "PartialSchema"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by core operations. It carries a Kind so
// callers can use errors.As to branch without string matching, while the
// wrapped cause (when present) retains the pkg/errors stack for logs.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("netconf: %s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("netconf: %s: %s", e.Kind, e.Reason)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// newError constructs an *Error of the given kind, wrapping cause (which may
// be nil) with pkg/errors so a stack trace is captured at the boundary where
// the error originates.
func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	reason := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, reason)
	}
	return &Error{Kind: kind, Reason: reason, cause: wrapped}
}

func argError(format string, args ...interface{}) error {
	return newError(KindArg, nil, format, args...)
}

func internalError(format string, args ...interface{}) error {
	return newError(KindInternal, nil, format, args...)
}

func wouldBlockError(format string, args ...interface{}) error {
	return newError(KindWouldBlock, nil, format, args...)
}

func transportError(cause error, format string, args ...interface{}) error {
	return newError(KindTransport, cause, format, args...)
}

func protocolError(cause error, format string, args ...interface{}) error {
	return newError(KindProtocol, cause, format, args...)
}

func schemaError(cause error, format string, args ...interface{}) error {
	return newError(KindSchema, cause, format, args...)
}

func partialSchemaError(format string, args ...interface{}) error {
	return newError(KindPartialSchema, nil, format, args...)
}

// IsWouldBlock reports whether err is (or wraps) a KindWouldBlock error.
func IsWouldBlock(err error) bool { return hasKind(err, KindWouldBlock) }

// IsPartialSchema reports whether err is (or wraps) a KindPartialSchema error.
func IsPartialSchema(err error) bool { return hasKind(err, KindPartialSchema) }

func hasKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
