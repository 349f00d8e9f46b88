//go:build unix

package subshell

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OSDirectory is the process working directory. Capture holds an open
// descriptor so Restore can fchdir back to it.
type OSDirectory struct{}

type fdHandle struct {
	fd   int
	path string
}

func (h *fdHandle) Path() string { return h.path }

func (h *fdHandle) Close() error {
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

func (OSDirectory) Getwd() (string, error) { return os.Getwd() }

func (OSDirectory) Chdir(dir string) error { return os.Chdir(dir) }

func (OSDirectory) Capture() (DirHandle, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoHandle, err)
	}
	fd, err := unix.Open(".", unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNoHandle, wd, err)
	}
	return &fdHandle{fd: fd, path: wd}, nil
}

func (OSDirectory) Restore(h DirHandle) error {
	fh, ok := h.(*fdHandle)
	if !ok || fh.fd < 0 {
		return fmt.Errorf("restore directory: invalid handle")
	}
	if err := unix.Fchdir(fh.fd); err != nil {
		return fmt.Errorf("fchdir %s: %w", fh.path, err)
	}
	return nil
}

func (OSDirectory) Clone() Directory { return OSDirectory{} }
