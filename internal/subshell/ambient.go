package subshell

import "maps"

// JobTable is the background job list. Snapshot returns an opaque copy that
// Restore reinstates.
type JobTable interface {
	Snapshot() any
	Restore(any)
}

// Ambient is the process state a scope must hand back besides variables.
type Ambient struct {
	Traps   map[string]string
	Options uint64
	Seed    uint64
	Dir     Directory
	Jobs    JobTable
}

// NewAmbient returns ambient state rooted at a virtual directory.
func NewAmbient(dir Directory) *Ambient {
	if dir == nil {
		dir = NewVirtualDirectory("/")
	}
	return &Ambient{Traps: map[string]string{}, Dir: dir}
}

// Clone returns a copy for a forked child. The job table is shared.
func (a *Ambient) Clone() *Ambient {
	c := *a
	c.Traps = maps.Clone(a.Traps)
	if a.Dir != nil {
		c.Dir = a.Dir.Clone()
	}
	return &c
}

type ambientSnapshot struct {
	traps   map[string]string
	options uint64
	seed    uint64
	wd      string
	jobs    any
}

func (a *Ambient) snapshot() (ambientSnapshot, error) {
	s := ambientSnapshot{
		traps:   maps.Clone(a.Traps),
		options: a.Options,
		seed:    a.Seed,
	}
	if a.Dir != nil {
		wd, err := a.Dir.Getwd()
		if err != nil {
			return s, err
		}
		s.wd = wd
	}
	if a.Jobs != nil {
		s.jobs = a.Jobs.Snapshot()
	}
	return s, nil
}
