// Package fs_errors holds the failure taxonomy shared by every layer of the
// store. Each public operation fails with an *Error whose chain ends in one of
// the sentinels below, so callers can tell NotFound from ResourceExhausted
// with errors.Is or KindOf.
package fs_errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindWrongKind
	KindAlreadyExists
	KindResourceExhausted
	KindInvalidArgument
	KindNotEmpty
)

var kindNames = map[Kind]string{
	KindUnknown:           "Unknown",
	KindNotFound:          "NotFound",
	KindWrongKind:         "WrongKind",
	KindAlreadyExists:     "AlreadyExists",
	KindResourceExhausted: "ResourceExhausted",
	KindInvalidArgument:   "InvalidArgument",
	KindNotEmpty:          "NotEmpty",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	ErrNotFound          = errors.New("no such file or directory")
	ErrWrongKind         = errors.New("wrong inode type")
	ErrAlreadyExists     = errors.New("file exists")
	ErrResourceExhausted = errors.New("no free blocks")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotEmpty          = errors.New("directory not empty")

	// WrongKind refinements.
	ErrNotDir = &refinedError{msg: "not a directory", base: ErrWrongKind}
	ErrIsDir  = &refinedError{msg: "is a directory", base: ErrWrongKind}

	// InvalidArgument refinements.
	ErrInvalidPath       = &refinedError{msg: "invalid path", base: ErrInvalidArgument}
	ErrBlockNotAllocated = &refinedError{msg: "block not allocated", base: ErrInvalidArgument}
	ErrBlockOutOfRange   = &refinedError{msg: "block access out of range", base: ErrInvalidArgument}
)

type refinedError struct {
	msg  string
	base error
}

func (e *refinedError) Error() string { return e.msg }

func (e *refinedError) Unwrap() error { return e.base }

// Error wraps a failure with the operation and path it happened on.
type Error struct {
	Op   string // Operation that failed (e.g., "mkdir", "write")
	Path string // Affected path
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind reports the taxonomy kind of the wrapped failure.
func (e *Error) Kind() Kind {
	return KindOf(e.Err)
}

// NewError wraps err with op and path. A nil err stays nil.
func NewError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// KindOf maps any error produced by the store to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrWrongKind):
		return KindWrongKind
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhausted
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotEmpty):
		return KindNotEmpty
	default:
		return KindUnknown
	}
}

// SentinelFor is the inverse of KindOf. It is used by clients to rebuild a
// typed error from a kind received over the wire.
func SentinelFor(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindWrongKind:
		return ErrWrongKind
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindNotEmpty:
		return ErrNotEmpty
	default:
		return nil
	}
}

// Operation names used in errors and log events.
const (
	OpMkdir  = "mkdir"
	OpCreate = "create"
	OpWrite  = "write"
	OpRead   = "read"
	OpLs     = "ls"
	OpDelete = "delete"
	OpStat   = "stat"
	OpRename = "rename"
	OpLookup = "lookup"
)
