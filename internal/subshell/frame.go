package subshell

import "github.com/roach88/nvsh/internal/nv"

// Mode is how a journaled variable was saved.
type Mode int

const (
	// Shallow keeps the variable usable in the scope: scalars stay in place
	// and arrays are replaced by a copy-on-write view of themselves.
	Shallow Mode = iota
	// Detach moves the value out entirely, leaving the live node empty.
	Detach
)

func (m Mode) String() string {
	switch m {
	case Shallow:
		return "shallow"
	case Detach:
		return "detach"
	default:
		return "unknown"
	}
}

// Link records one variable saved by a frame.
type Link struct {
	Node  *nv.Node
	Level int
	Mode  Mode
	saved *nv.Node
}

// Saved returns the snapshot the variable will be restored from.
func (l *Link) Saved() *nv.Node { return l.saved }

// Frame is one active scope.
type Frame struct {
	ID    string
	Depth int

	links []*Link
	index map[*nv.Node]*Link

	ambient     ambientSnapshot
	dir         DirHandle
	dirCaptured bool

	done   bool
	forked bool
}

// Links returns the frame's journal in the order variables were first
// written.
func (f *Frame) Links() []*Link {
	out := make([]*Link, len(f.links))
	copy(out, f.links)
	return out
}

// Done reports whether the frame has been exited.
func (f *Frame) Done() bool { return f.done }

// Forked reports whether the frame ended by escaping to a child.
func (f *Frame) Forked() bool { return f.forked }
