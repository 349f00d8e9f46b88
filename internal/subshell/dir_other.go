//go:build !unix

package subshell

import "os"

// OSDirectory is the process working directory. Without directory
// descriptors nothing can be captured, so a scoped cd forks.
type OSDirectory struct{}

func (OSDirectory) Getwd() (string, error) { return os.Getwd() }

func (OSDirectory) Chdir(dir string) error { return os.Chdir(dir) }

func (OSDirectory) Capture() (DirHandle, error) { return nil, ErrNoHandle }

func (OSDirectory) Restore(DirHandle) error { return ErrNoHandle }

func (OSDirectory) Clone() Directory { return OSDirectory{} }
