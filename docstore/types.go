package docstore

import (
	"errors"
	"fmt"
)

var ErrDecode = errors.New("content is not valid text")

// DecodeError marks a file whose content could not be decoded as UTF-8
// text. Scans skip and report such files; they are never fatal.
type DecodeError struct {
	Path string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s as text", e.Path)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
