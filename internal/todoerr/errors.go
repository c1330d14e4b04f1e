// Package todoerr defines the single error representation shared by the store,
// the remote source and the task queues.
//
// Every failure that crosses a queue boundary is an *Error carrying a domain
// tag, a numeric code, a human-readable reason and a Kind used for routing
// (cancellations are suppressed, not-found is reported, everything else is a
// generic failure for the end user).
package todoerr

import (
	"errors"
	"fmt"
)

// Domain tags every error produced by this module.
const Domain = "ToDoListErrorDomain"

// Numeric codes. Transport failures caused by an HTTP status carry the status
// itself as the code.
const (
	CodeGeneric   = -1
	CodeCancelled = -999
)

// Kind categorizes an error for propagation decisions.
type Kind int

const (
	// KindUnknown is reported for errors that are not *Error values.
	KindUnknown Kind = iota
	// KindTransport covers network and HTTP status failures.
	KindTransport
	// KindDecode covers malformed payloads.
	KindDecode
	// KindStoreIO covers read, write, open and migration failures.
	KindStoreIO
	// KindNotFound is returned when an update targets a missing record.
	KindNotFound
	// KindCancelled marks a suppressed no-op, not a real failure.
	KindCancelled
	// KindUnrecoverableSchema means the on-disk version is newer than the process.
	KindUnrecoverableSchema
	// KindInvalid covers records that violate the entity contract.
	KindInvalid
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindTransport:           "transport",
	KindDecode:              "decode",
	KindStoreIO:             "store_io",
	KindNotFound:            "not_found",
	KindCancelled:           "cancelled",
	KindUnrecoverableSchema: "unrecoverable_schema",
	KindInvalid:             "invalid",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the wrapped error handed to task completion callbacks.
type Error struct {
	Domain string
	Code   int
	Reason string
	Kind   Kind
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%d) %s: %s: %v", e.Domain, e.Code, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s(%d) %s: %s", e.Domain, e.Code, e.Kind, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind returns the kind name so callers can classify without importing Kind.
func (e *Error) ErrorKind() string {
	return e.Kind.String()
}

// New creates an Error without an underlying cause.
func New(kind Kind, code int, reason string) *Error {
	return &Error{Domain: Domain, Code: code, Reason: reason, Kind: kind}
}

// Wrap creates an Error around err. A nil err yields nil.
func Wrap(kind Kind, code int, reason string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Domain: Domain, Code: code, Reason: reason, Kind: kind, Err: err}
}

// StoreIO wraps a storage failure with the generic code.
func StoreIO(reason string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return Wrap(KindStoreIO, CodeGeneric, reason, err)
}

// NotFound reports a missing record.
func NotFound(reason string) *Error {
	return New(KindNotFound, CodeGeneric, reason)
}

// Cancelled creates the distinguishable cancellation error.
func Cancelled(reason string) *Error {
	return New(KindCancelled, CodeCancelled, reason)
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsCancelled reports whether err is a cancellation that callers must treat
// as "no update".
func IsCancelled(err error) bool {
	return Is(err, KindCancelled)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}

// UserMessage is the only text shown to end users for a failure; details go
// to the log.
func UserMessage(err error) string {
	if err == nil || IsCancelled(err) {
		return ""
	}
	return "Something went wrong. Please try again."
}
