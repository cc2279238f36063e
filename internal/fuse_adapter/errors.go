package fuse_adapter

import (
	"errors"
	"syscall"

	fserr "github.com/AnishMulay/sandfs/internal/fs_errors"
)

// ToFuseError converts a store error into the errno the kernel expects.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	switch fserr.KindOf(err) {
	case fserr.KindNotFound:
		return syscall.ENOENT
	case fserr.KindWrongKind:
		if errors.Is(err, fserr.ErrIsDir) {
			return syscall.EISDIR
		}
		return syscall.ENOTDIR
	case fserr.KindAlreadyExists:
		return syscall.EEXIST
	case fserr.KindResourceExhausted:
		return syscall.ENOSPC
	case fserr.KindInvalidArgument:
		return syscall.EINVAL
	case fserr.KindNotEmpty:
		return syscall.ENOTEMPTY
	default:
		return syscall.EIO
	}
}
