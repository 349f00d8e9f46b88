package shell

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/nvsh/internal/arith"
	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/subshell"
)

// Shell is one interpreter's variable state.
type Shell struct {
	tree    *nv.Tree
	mgr     *subshell.Manager
	ambient *subshell.Ambient
	paths   *PathCache
	env     *environ
	logger  *slog.Logger
	cfg     settings

	pathDisc   *pathDiscipline
	randomDisc *randomDiscipline
}

type settings struct {
	logger   *slog.Logger
	maxIndex int
	dir      subshell.Directory
	jobs     subshell.JobTable
	seed     uint64
	lookPath func(dir, name string) bool
	mgrOpts  []subshell.Option
}

// Option configures a Shell.
type Option func(*settings)

// WithLogger sets the logger shared by the tree, evaluator and manager.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMaxIndex caps indexed array subscripts.
func WithMaxIndex(n int) Option {
	return func(s *settings) { s.maxIndex = n }
}

// WithDirectory sets the working directory collaborator. The default is a
// virtual directory at "/".
func WithDirectory(d subshell.Directory) Option {
	return func(s *settings) { s.dir = d }
}

// WithJobs sets the job table restored on scope exit.
func WithJobs(j subshell.JobTable) Option {
	return func(s *settings) { s.jobs = j }
}

// WithSeed sets the initial RANDOM seed.
func WithSeed(seed uint64) Option {
	return func(s *settings) { s.seed = seed }
}

// WithLookPath replaces the executable test used by the command path cache.
func WithLookPath(fn func(dir, name string) bool) Option {
	return func(s *settings) { s.lookPath = fn }
}

// WithManagerOptions passes options through to the subshell manager.
func WithManagerOptions(opts ...subshell.Option) Option {
	return func(s *settings) { s.mgrOpts = append(s.mgrOpts, opts...) }
}

// New builds a shell with an empty tree and the special variables installed.
func New(opts ...Option) (*Shell, error) {
	cfg := settings{
		logger:   slog.New(slog.DiscardHandler),
		maxIndex: nv.DefaultMaxIndex,
		seed:     1,
		lookPath: isExecutable,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	tree := nv.NewTree(
		nv.WithArith(arith.New(arith.WithLogger(cfg.logger))),
		nv.WithLogger(cfg.logger),
		nv.WithMaxIndex(cfg.maxIndex),
	)
	amb := subshell.NewAmbient(cfg.dir)
	amb.Jobs = cfg.jobs
	amb.Seed = cfg.seed

	mgrOpts := append([]subshell.Option{subshell.WithLogger(cfg.logger)}, cfg.mgrOpts...)
	mgr := subshell.NewManager(tree, amb, mgrOpts...)
	return attach(tree, mgr, amb, cfg)
}

func attach(tree *nv.Tree, mgr *subshell.Manager, amb *subshell.Ambient, cfg settings) (*Shell, error) {
	s := &Shell{
		tree:    tree,
		mgr:     mgr,
		ambient: amb,
		paths:   newPathCache(cfg.lookPath),
		env:     &environ{},
		logger:  cfg.logger,
		cfg:     cfg,
	}
	tree.OnChange(s.changed)
	if err := s.installSpecials(); err != nil {
		return nil, err
	}
	return s, nil
}

// Tree returns the variable tree.
func (s *Shell) Tree() *nv.Tree { return s.tree }

// Manager returns the scope manager.
func (s *Shell) Manager() *subshell.Manager { return s.mgr }

// Ambient returns the live ambient state.
func (s *Shell) Ambient() *subshell.Ambient { return s.ambient }

// Paths returns the command path cache.
func (s *Shell) Paths() *PathCache { return s.paths }

// Lookup returns the node for name, or nil if it is not set. The name may
// carry a subscript.
func (s *Shell) Lookup(name string) *nv.Node {
	return s.tree.Lookup(name)
}

// Get returns the value of name and whether it is set. An array element
// that is not populated is not set.
func (s *Shell) Get(name string) (string, bool) {
	n := s.tree.Lookup(name)
	if n == nil || n.IsNull() {
		return "", false
	}
	if n.IsArray() && nv.OpenCurrent(n) == nil {
		return "", false
	}
	return n.Get(), true
}

// Set assigns value to name, which may carry a subscript.
func (s *Shell) Set(name, value string) error {
	return s.put(name, value, 0)
}

// Append appends value (or adds it, for numeric variables).
func (s *Shell) Append(name, value string) error {
	return s.put(name, value, nv.PutAppend)
}

func (s *Shell) put(name, value string, flags nv.PutFlags) error {
	n, err := s.tree.LookupOrCreate(name, nv.Create|nv.ArrayContext|nv.Assign)
	if err != nil {
		return err
	}
	return n.Put(nv.Str(value), flags)
}

// Unset removes name. "a[k]" removes one element; "a[@]" the whole array.
func (s *Shell) Unset(name string) error {
	if base, sub, ok := splitSubscript(name); ok && sub != "@" && sub != "*" {
		n, err := s.tree.LookupOrCreate(base, nv.LookupOnly)
		if err != nil || n == nil {
			return err
		}
		return s.tree.UnsetElement(n, sub)
	} else if ok {
		name = base
	}
	n, err := s.tree.LookupOrCreate(name, nv.LookupOnly|nv.NoRef)
	if err != nil || n == nil {
		return err
	}
	if err := s.tree.Unset(n); err != nil {
		return err
	}
	if n == s.pathDisc.node {
		return s.installPath()
	}
	return nil
}

// Typeset adds attributes to name, creating it if needed.
func (s *Shell) Typeset(name string, attrs nv.Attr) error {
	n, err := s.tree.LookupOrCreate(name, nv.Create|nv.NoRef)
	if err != nil {
		return err
	}
	return s.tree.SetAttr(n, attrs)
}

// Untypeset removes attributes from name.
func (s *Shell) Untypeset(name string, attrs nv.Attr) error {
	n, err := s.tree.LookupOrCreate(name, nv.LookupOnly|nv.NoRef)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	return s.tree.ClearAttr(n, attrs)
}

// Ref makes name a reference to target, creating both as needed.
func (s *Shell) Ref(name, target string) error {
	n, err := s.tree.LookupOrCreate(name, nv.Create|nv.NoRef)
	if err != nil {
		return err
	}
	t, err := s.tree.LookupOrCreate(target, nv.Create)
	if err != nil {
		return err
	}
	return s.tree.SetRef(n, t)
}

// DeclareFixed declares name as a fixed-dimension array.
func (s *Shell) DeclareFixed(name string, dims ...int) error {
	n, err := s.tree.LookupOrCreate(name, nv.Create|nv.NoRef)
	if err != nil {
		return err
	}
	return s.tree.DeclareFixed(n, dims...)
}

// Convert turns indexed array name into an associative array.
func (s *Shell) Convert(name string) error {
	n, err := s.tree.LookupOrCreate(name, nv.LookupOnly)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("convert %s: not set", name)
	}
	return nv.ConvertToAssociative(n)
}

// Subshell runs fn in a virtual subshell. Every change fn makes to
// variables and ambient state is undone when it returns, however it returns.
func (s *Shell) Subshell(fn func(*Shell) error) error {
	f, err := s.mgr.Enter()
	if err != nil {
		return err
	}
	defer s.mgr.Exit(f)
	return fn(s)
}

// Enter opens a scope; pair it with Exit.
func (s *Shell) Enter() (*subshell.Frame, error) { return s.mgr.Enter() }

// Exit closes f and any scope opened after it.
func (s *Shell) Exit(f *subshell.Frame) { s.mgr.Exit(f) }

// EscapeToFork moves the current scope into an independent child shell and
// restores this one.
func (s *Shell) EscapeToFork() (*Shell, error) {
	child, err := s.mgr.EscapeToFork()
	if err != nil {
		return nil, err
	}
	return s.adopt(child)
}

func (s *Shell) adopt(child *subshell.Child) (*Shell, error) {
	cs, err := attach(child.Tree, child.Manager, child.Ambient, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up forked shell: %w", err)
	}
	s.logger.Debug("forked shell", "frame", child.FrameID)
	return cs, nil
}

// Chdir changes the working directory and updates PWD and OLDPWD. Inside a
// scope whose directory cannot be captured the scope escapes to a fork; the
// change then happens in the returned child and this shell is unchanged.
func (s *Shell) Chdir(dir string) (*Shell, error) {
	target := s
	child, err := s.mgr.GuardDirChange()
	if err != nil {
		return nil, err
	}
	if child != nil {
		if target, err = s.adopt(child); err != nil {
			return nil, err
		}
	}
	d := target.ambient.Dir
	old, err := d.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cd: %w", err)
	}
	if err := d.Chdir(dir); err != nil {
		return nil, fmt.Errorf("cd %s: %w", dir, err)
	}
	wd, err := d.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cd: %w", err)
	}
	if err := target.Set("OLDPWD", old); err != nil {
		return nil, err
	}
	if err := target.Set("PWD", wd); err != nil {
		return nil, err
	}
	if target == s {
		return nil, nil
	}
	return target, nil
}

func splitSubscript(name string) (base, sub string, ok bool) {
	i := strings.IndexByte(name, '[')
	if i <= 0 || !strings.HasSuffix(name, "]") {
		return name, "", false
	}
	return name[:i], name[i+1 : len(name)-1], true
}
