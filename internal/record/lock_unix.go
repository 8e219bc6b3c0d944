//go:build unix

package record

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/hupe1980/hrtree/internal/fs"
)

// lockFile takes an exclusive, non-blocking flock on f. Files without a
// descriptor are not locked.
func lockFile(f fs.File) (func() error, error) {
	fd, ok := fs.Fd(f)
	if !ok {
		return func() error { return nil }, nil
	}
	if err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return func() error { return unix.Flock(int(fd), unix.LOCK_UN) }, nil
}
