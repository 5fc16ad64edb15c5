package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories surfaced to callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindLaunch
	KindStop
	KindNoMirrorAvailable
	KindPrerequisiteMissing
	KindPersistence
	KindConfigPatch
	KindDownload
	KindExtract
)

func (k ErrorKind) String() string {
	switch k {
	case KindLaunch:
		return "launch error"
	case KindStop:
		return "stop error"
	case KindNoMirrorAvailable:
		return "no mirror available"
	case KindPrerequisiteMissing:
		return "prerequisite missing"
	case KindPersistence:
		return "persistence error"
	case KindConfigPatch:
		return "config patch error"
	case KindDownload:
		return "download error"
	case KindExtract:
		return "extract error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrLaunch              = &Error{Kind: KindLaunch}
	ErrStop                = &Error{Kind: KindStop}
	ErrNoMirrorAvailable   = &Error{Kind: KindNoMirrorAvailable}
	ErrPrerequisiteMissing = &Error{Kind: KindPrerequisiteMissing}
	ErrPersistence         = &Error{Kind: KindPersistence}
	ErrConfigPatch         = &Error{Kind: KindConfigPatch}
	ErrDownload            = &Error{Kind: KindDownload}
	ErrExtract             = &Error{Kind: KindExtract}
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError builds an *Error. Op is a short description such as "spawn mihomo".
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrStop) works
// regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
