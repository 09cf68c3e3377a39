package timeline

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrPermission         = errors.New("timeline: permission denied")
	ErrIO                 = errors.New("timeline: i/o error")
	ErrInvalidState       = errors.New("timeline: invalid state")
	ErrInvalidParams      = errors.New("timeline: invalid processing params")
	ErrInvalidArgument    = errors.New("timeline: invalid argument")
	ErrSampleRateMismatch = errors.New("timeline: sample rate mismatch")
	ErrCorrupt            = errors.New("timeline: corrupt file")
	ErrOutOfRange         = errors.New("timeline: time out of range")
)

// ioError tags err as ErrPermission when the OS refused access and as ErrIO otherwise.
func ioError(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s %s: %w", ErrPermission, op, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
