package snapshot

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("snapshot not found")
	ErrVersionMismatch = errors.New("snapshot version mismatch")
	ErrCorrupt         = errors.New("snapshot is corrupt")
)

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no snapshot at %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type VersionMismatchError struct {
	Path  string
	Found int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("snapshot %s has format version %d, want %d", e.Path, e.Found, FormatVersion)
}

func (e *VersionMismatchError) Is(target error) bool {
	return target == ErrVersionMismatch
}

type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("snapshot %s failed to parse: %s", e.Path, e.Err)
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether err is one of the conditions a caller should
// respond to with a full rebuild instead of failing.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrCorrupt)
}
