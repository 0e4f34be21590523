// Package errors implements the taxonomy of ledger error kinds shared by every
// component of the chronicle provenance ledger. Every error that can cross a
// component boundary carries a stable Kind plus a human message; stack context
// from github.com/pkg/errors never escapes the API (see Error.Error).
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies one of the error categories from the ledger's error taxonomy.
type Kind string

const (
	KindMalformedInput       Kind = "MalformedInput"
	KindUnknownSigner        Kind = "UnknownSigner"
	KindStaleSignature       Kind = "StaleSignature"
	KindInvalidSignature     Kind = "InvalidSignature"
	KindUnknownTerm          Kind = "UnknownTerm"
	KindNamespaceMismatch    Kind = "NamespaceMismatch"
	KindConstraintViolation  Kind = "ConstraintViolation"
	KindSubmissionTimeout    Kind = "SubmissionTimeout"
	KindTransportFailed      Kind = "TransportFailed"
	KindProjectionDegraded   Kind = "ProjectionDegraded"
	KindKeystoreUnavailable  Kind = "KeystoreUnavailable"
	KindUnsupportedProtocol  Kind = "UnsupportedProtocolVersion"
	KindMalformedDocument    Kind = "MalformedDocument"
)

// Error is the ledger-wide error type. It is never constructed with a stack
// trace that crosses the API boundary: callers at the edge should print
// Kind+Message only, per the ledger's error-handling design.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an internal cause for diagnostics (available via errors.Unwrap)
// without changing the user-visible Kind/Message contract.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: pkgerrors.WithStack(cause)}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is(err, errors.New(KindX, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
