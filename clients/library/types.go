package sandlib

import (
	"github.com/AnishMulay/sandfs/internal/communication"
	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
)

// SandfsClient talks to one sandfs server. It is safe for concurrent use;
// all state lives on the server.
type SandfsClient struct {
	ServerAddr string
	Comm       communication.Communicator
	From       string
}

// RemoteError is a failure reported by the server. It unwraps to the
// fs_errors sentinel matching its code, so errors.Is and fs_errors.KindOf
// behave as they would in-process.
type RemoteError struct {
	Code    communication.SandCode
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return sentinelFor(e.Code)
}

func sentinelFor(code communication.SandCode) error {
	switch code {
	case communication.CodeNotFound:
		return fserr.ErrNotFound
	case communication.CodeWrongKind:
		return fserr.ErrWrongKind
	case communication.CodeAlreadyExists:
		return fserr.ErrAlreadyExists
	case communication.CodeResourceExhausted:
		return fserr.ErrResourceExhausted
	case communication.CodeBadRequest:
		return fserr.ErrInvalidArgument
	case communication.CodeNotEmpty:
		return fserr.ErrNotEmpty
	default:
		return nil
	}
}
