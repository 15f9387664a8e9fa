package repository

import (
	"errors"

	"golang.org/x/xerrors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAllocationConflict = errors.New("concurrent allocation conflict")
	ErrStorage            = errors.New("storage error")
	ErrInvalidRecord      = errors.New("invalid wallet record")
)

// storageError tags a driver failure as ErrStorage while keeping the cause.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return e.op + ": " + ErrStorage.Error() + ": " + e.err.Error()
}

func (e *storageError) Is(target error) bool { return target == ErrStorage }

func (e *storageError) Unwrap() error { return e.err }

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

func notFound(format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func conflict(format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, ErrAllocationConflict)...)
}
