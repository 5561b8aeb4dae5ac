// Package errs defines the error taxonomy shared by every layer between the
// network listener and the host loop.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. It is serialized verbatim.
type Kind string

const (
	KindOrphanedLocator  Kind = "OrphanedLocator"
	KindHeadingNotFound  Kind = "HeadingNotFound"
	KindIndexOutOfRange  Kind = "IndexOutOfRange"
	KindPageNotFound     Kind = "PageNotFound"
	KindBusy             Kind = "Busy"
	KindTimeout          Kind = "Timeout"
	KindHostUnavailable  Kind = "HostUnavailable"
	KindOperationFailed  Kind = "OperationFailed"
	KindInvalidArgument  Kind = "InvalidArgument"
	KindUnknownTool      Kind = "UnknownTool"
	KindDocumentNotFound Kind = "DocumentNotFound"
)

// Retryable reports whether errors of this kind may succeed on a plain retry
// without the caller changing anything.
func (k Kind) Retryable() bool {
	switch k {
	case KindBusy, KindTimeout, KindHostUnavailable:
		return true
	}
	return false
}

// Error is a classified error.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels such as ErrBusy, so errors.Is(err, errs.ErrBusy)
// works for any Busy error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrOrphanedLocator  = &Error{Kind: KindOrphanedLocator}
	ErrHeadingNotFound  = &Error{Kind: KindHeadingNotFound}
	ErrIndexOutOfRange  = &Error{Kind: KindIndexOutOfRange}
	ErrPageNotFound     = &Error{Kind: KindPageNotFound}
	ErrBusy             = &Error{Kind: KindBusy, Retryable: true}
	ErrTimeout          = &Error{Kind: KindTimeout, Retryable: true}
	ErrHostUnavailable  = &Error{Kind: KindHostUnavailable, Retryable: true}
	ErrOperationFailed  = &Error{Kind: KindOperationFailed}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrUnknownTool      = &Error{Kind: KindUnknownTool}
	ErrDocumentNotFound = &Error{Kind: KindDocumentNotFound}
)

// New builds a classified error with the kind's default retryability.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Retryable: kind.Retryable(),
	}
}

// Wrap classifies err under kind, keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &Error{
		Kind:      kind,
		Message:   msg,
		Retryable: kind.Retryable(),
		Err:       err,
	}
}

// As extracts the classified error from a chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindOperationFailed for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindOperationFailed
}

// IsRetryable reports whether err is a classified retryable error.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
