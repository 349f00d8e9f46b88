package subshell

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/nvsh/internal/nv"
)

// ErrNoFrame is returned by operations that need an active frame.
var ErrNoFrame = errors.New("no active subshell frame")

// Manager runs scopes over one tree. It is not safe for concurrent use; a
// shell and its variables belong to a single goroutine.
type Manager struct {
	tree    *nv.Tree
	ambient *Ambient
	frames  []*Frame

	tracer Tracer
	ids    IDGenerator
	logger *slog.Logger
	opts   []Option
}

// Option configures a Manager.
type Option func(*Manager)

// WithTracer reports scope events to t.
func WithTracer(t Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithIDGenerator sets the frame ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithLogger sets the logger for scope transitions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager installs a Manager as tree's journal.
func NewManager(tree *nv.Tree, ambient *Ambient, opts ...Option) *Manager {
	if ambient == nil {
		ambient = NewAmbient(nil)
	}
	m := &Manager{
		tree:    tree,
		ambient: ambient,
		tracer:  nopTracer{},
		ids:     UUIDv7Generator{},
		logger:  tree.Logger(),
		opts:    opts,
	}
	for _, opt := range opts {
		opt(m)
	}
	tree.SetJournal(m)
	return m
}

// Tree returns the managed tree.
func (m *Manager) Tree() *nv.Tree { return m.tree }

// Ambient returns the live ambient state.
func (m *Manager) Ambient() *Ambient { return m.ambient }

// Depth returns the number of active frames.
func (m *Manager) Depth() int { return len(m.frames) }

// Current returns the innermost frame, or nil at top level.
func (m *Manager) Current() *Frame {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

// Enter opens a new scope.
func (m *Manager) Enter() (*Frame, error) {
	snap, err := m.ambient.snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot ambient state: %w", err)
	}
	m.tree.PushView()
	f := &Frame{
		ID:      m.ids.Generate(),
		Depth:   m.tree.Depth(),
		index:   make(map[*nv.Node]*Link),
		ambient: snap,
	}
	m.frames = append(m.frames, f)
	m.tracer.Trace(Event{Type: EventEnter, FrameID: f.ID, Depth: f.Depth})
	m.logger.Debug("enter subshell", "frame", f.ID, "depth", f.Depth)
	return f, nil
}

// Exit restores f and every frame entered after it, innermost first.
// Exiting a frame that is nil or already done does nothing.
//
// Exit panics with an *nv.FatalError if the working directory cannot be
// restored.
func (m *Manager) Exit(f *Frame) {
	if f == nil || f.done {
		return
	}
	for len(m.frames) > 0 {
		top := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		m.restore(top)
		if top == f {
			return
		}
	}
}

func (m *Manager) restore(f *Frame) {
	for _, l := range f.links {
		nv.Restore(l.Node, l.saved)
		m.tree.Touch(l.Node)
		m.tracer.Trace(Event{
			Type:    EventRestore,
			FrameID: f.ID,
			Depth:   f.Depth,
			Node:    l.Node.Name(),
			Mode:    l.Mode.String(),
		})
	}
	m.tree.PopView()

	a := m.ambient
	a.Traps = maps.Clone(f.ambient.traps)
	a.Options = f.ambient.options
	a.Seed = f.ambient.seed
	if a.Jobs != nil {
		a.Jobs.Restore(f.ambient.jobs)
	}
	m.restoreDir(f)

	f.done = true
	m.tracer.Trace(Event{Type: EventExit, FrameID: f.ID, Depth: f.Depth})
	m.logger.Debug("exit subshell", "frame", f.ID, "depth", f.Depth, "restored", len(f.links))
}

func (m *Manager) restoreDir(f *Frame) {
	d := m.ambient.Dir
	if d == nil {
		return
	}
	if f.dir != nil {
		defer f.dir.Close()
	}
	wd, err := d.Getwd()
	if err == nil && wd == f.ambient.wd {
		return
	}
	if f.dirCaptured && f.dir != nil {
		err = d.Restore(f.dir)
	} else {
		err = d.Chdir(f.ambient.wd)
	}
	if err != nil {
		nv.Fatal(nv.FatalScopeRestore, fmt.Sprintf("cannot return to %s", f.ambient.wd), err)
	}
}

// BeforeWrite implements nv.Journal.
func (m *Manager) BeforeWrite(n *nv.Node, kind nv.WriteKind) {
	mode := Shallow
	if kind == nv.WriteUnset {
		mode = Detach
	}
	m.JournalFirstWrite(n, mode)
}

// JournalFirstWrite saves n into the current frame unless the frame already
// holds it or n was created inside the frame. It reports whether a new link
// was recorded.
func (m *Manager) JournalFirstWrite(n *nv.Node, mode Mode) bool {
	f := m.Current()
	if f == nil || n == nil {
		return false
	}
	n = n.Root()
	if n.Level() >= f.Depth {
		return false
	}
	if _, ok := f.index[n]; ok {
		return false
	}
	l := &Link{Node: n, Level: n.Level(), Mode: mode, saved: nv.Save(n, mode == Detach)}
	f.links = append(f.links, l)
	f.index[n] = l
	m.tracer.Trace(Event{
		Type:    EventJournal,
		FrameID: f.ID,
		Depth:   f.Depth,
		Node:    n.Name(),
		Mode:    mode.String(),
	})
	return true
}

// IsJournaled reports whether the current frame holds n.
func (m *Manager) IsJournaled(n *nv.Node) bool {
	f := m.Current()
	if f == nil || n == nil {
		return false
	}
	_, ok := f.index[n.Root()]
	return ok
}

// Child is the state handed to a forked subshell.
type Child struct {
	Tree    *nv.Tree
	Manager *Manager
	Ambient *Ambient
	FrameID string
}

// EscapeToFork ends the current frame by forking. The returned Child owns an
// independent copy of the scope's state; the parent is restored as if the
// frame had exited normally.
func (m *Manager) EscapeToFork() (*Child, error) {
	f := m.Current()
	if f == nil {
		return nil, ErrNoFrame
	}
	tree := m.tree.Detach()
	amb := m.ambient.Clone()
	child := &Child{
		Tree:    tree,
		Manager: NewManager(tree, amb, m.opts...),
		Ambient: amb,
		FrameID: f.ID,
	}
	f.forked = true
	m.tracer.Trace(Event{Type: EventFork, FrameID: f.ID, Depth: f.Depth})
	m.logger.Debug("escape to fork", "frame", f.ID, "depth", f.Depth)
	m.Exit(f)
	return child, nil
}

// GuardDirChange prepares the current frame for a directory change. The
// first call in a frame captures a handle to the working directory; if that
// fails the frame escapes to a fork and the Child is returned. At top level
// it does nothing.
func (m *Manager) GuardDirChange() (*Child, error) {
	f := m.Current()
	if f == nil || f.dirCaptured || m.ambient.Dir == nil {
		return nil, nil
	}
	h, err := m.ambient.Dir.Capture()
	if err != nil {
		m.logger.Debug("directory capture failed", "frame", f.ID, "error", err)
		return m.EscapeToFork()
	}
	f.dir, f.dirCaptured = h, true
	return nil, nil
}
