package subshell

import (
	"errors"
	"path"
)

// ErrNoHandle is returned by Directory.Capture when the working directory
// cannot be held open for a later return.
var ErrNoHandle = errors.New("working directory cannot be captured")

// DirHandle is a captured working directory.
type DirHandle interface {
	Path() string
	Close() error
}

// Directory is the working-directory collaborator.
type Directory interface {
	Getwd() (string, error)
	Chdir(dir string) error

	// Capture returns a handle that Restore can return to even if the
	// directory is renamed in the meantime.
	Capture() (DirHandle, error)
	Restore(h DirHandle) error

	// Clone returns an independent Directory for a forked child.
	Clone() Directory
}

// VirtualDirectory tracks a working directory as a path only. It never
// touches the process. The error fields let callers simulate failures.
type VirtualDirectory struct {
	Path string

	CaptureErr error
	RestoreErr error
	ChdirErr   error
}

type virtualHandle struct{ path string }

func (h virtualHandle) Path() string { return h.path }
func (h virtualHandle) Close() error { return nil }

// NewVirtualDirectory starts at dir.
func NewVirtualDirectory(dir string) *VirtualDirectory {
	return &VirtualDirectory{Path: path.Clean(dir)}
}

func (d *VirtualDirectory) Getwd() (string, error) { return d.Path, nil }

func (d *VirtualDirectory) Chdir(dir string) error {
	if d.ChdirErr != nil {
		return d.ChdirErr
	}
	if !path.IsAbs(dir) {
		dir = path.Join(d.Path, dir)
	}
	d.Path = path.Clean(dir)
	return nil
}

func (d *VirtualDirectory) Capture() (DirHandle, error) {
	if d.CaptureErr != nil {
		return nil, d.CaptureErr
	}
	return virtualHandle{path: d.Path}, nil
}

func (d *VirtualDirectory) Restore(h DirHandle) error {
	if d.RestoreErr != nil {
		return d.RestoreErr
	}
	d.Path = h.Path()
	return nil
}

func (d *VirtualDirectory) Clone() Directory {
	c := *d
	return &c
}
