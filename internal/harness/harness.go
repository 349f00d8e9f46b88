package harness

import (
	"fmt"
	"log/slog"

	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/profile"
	"github.com/roach88/nvsh/internal/shell"
	"github.com/roach88/nvsh/internal/snapshot"
	"github.com/roach88/nvsh/internal/store"
	"github.com/roach88/nvsh/internal/subshell"
	"github.com/roach88/nvsh/internal/testutil"
)

// Harness executes one scenario. Forked children stack on top of the shell
// that forked them.
type Harness struct {
	stack    []*process
	recorder *store.Recorder
	logger   *slog.Logger
	result   *Result
}

type process struct {
	sh     *shell.Shell
	frames []*subshell.Frame
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger for the run and the shells it builds.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario with deterministic frame IDs and seq numbers.
// Failed assertions are collected in the Result; a step that fails
// unexpectedly aborts the run with an error. Fatal shell errors are
// returned as *nv.FatalError.
func Run(scenario *Scenario, opts ...Option) (result *Result, err error) {
	defer nv.RecoverFatal(&err)

	h := &Harness{
		recorder: store.NewRecorder(scenario.Name, testutil.NewDeterministicClock()),
		logger:   slog.New(slog.DiscardHandler),
		result:   NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}

	root, err := h.newShell(scenario)
	if err != nil {
		return nil, err
	}
	h.stack = []*process{{sh: root}}

	if path := scenario.ProfilePath(); path != "" {
		if err := applyProfile(root, path); err != nil {
			return nil, err
		}
	}

	for i, st := range scenario.Steps {
		if err := h.step(i, st); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		h.result.Steps++
	}

	base := h.stack[0]
	if len(base.frames) > 0 {
		base.sh.Exit(base.frames[0])
	}
	h.result.Snapshot = snapshot.Take(base.sh.Tree())
	h.result.Events = append(h.result.Events, h.recorder.Pending()...)

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"steps", h.result.Steps,
		"events", len(h.result.Events),
		"pass", h.result.Pass,
	)
	return h.result, nil
}

func (h *Harness) newShell(s *Scenario) (*shell.Shell, error) {
	dir := subshell.NewVirtualDirectory("/")
	if s.Dir != "" {
		dir = subshell.NewVirtualDirectory(s.Dir)
	}
	if s.NoDirHandles {
		dir.CaptureErr = subshell.ErrNoHandle
	}
	opts := []shell.Option{
		shell.WithLogger(h.logger),
		shell.WithDirectory(dir),
		shell.WithJobs(&testutil.JobList{}),
		shell.WithManagerOptions(
			subshell.WithTracer(h.recorder),
			subshell.WithIDGenerator(testutil.NewSequenceIDs("")),
		),
	}
	if s.MaxIndex > 0 {
		opts = append(opts, shell.WithMaxIndex(s.MaxIndex))
	}
	if s.Seed > 0 {
		opts = append(opts, shell.WithSeed(s.Seed))
	}
	return shell.New(opts...)
}

func applyProfile(sh *shell.Shell, dir string) error {
	decls, err := profile.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if errs := profile.Validate(decls); len(errs) > 0 {
		return fmt.Errorf("invalid profile: %w", errs[0])
	}
	return profile.Apply(sh, decls)
}

func (h *Harness) current() *process { return h.stack[len(h.stack)-1] }

func (h *Harness) step(i int, st Step) error {
	if check, ok := assertions[st.Op]; ok {
		if err := check(h.current(), i, st); err != nil {
			h.result.AddError(err.Error())
		}
		return nil
	}

	err := h.mutate(st)
	if st.Error == "" {
		return err
	}
	if got := nv.CodeOf(err); string(got) != st.Error {
		actual := "no error"
		if err != nil {
			actual = err.Error()
		}
		h.result.AddError((&AssertionError{
			Type:     "error",
			Step:     i,
			Expected: st.Error,
			Actual:   actual,
		}).Error())
	}
	return nil
}

func (h *Harness) mutate(st Step) error {
	p := h.current()
	sh := p.sh
	switch st.Op {
	case OpSet:
		if st.Append {
			return sh.Append(st.Name, *st.Value)
		}
		return sh.Set(st.Name, *st.Value)
	case OpUnset:
		return sh.Unset(st.Name)
	case OpTypeset:
		attrs, err := nv.ParseAttrs(st.Attrs)
		if err != nil {
			return err
		}
		if st.Clear {
			return sh.Untypeset(st.Name, attrs)
		}
		return sh.Typeset(st.Name, attrs)
	case OpConvert:
		return sh.Convert(st.Name)
	case OpRef:
		return sh.Ref(st.Name, st.Target)
	case OpDeclareFixed:
		return sh.DeclareFixed(st.Name, st.Dims...)
	case OpEnter:
		f, err := sh.Enter()
		if err != nil {
			return err
		}
		p.frames = append(p.frames, f)
		return nil
	case OpExit:
		return h.exit()
	case OpFork:
		child, err := sh.EscapeToFork()
		if err != nil {
			return err
		}
		h.forked(child)
		return nil
	case OpChdir:
		child, err := sh.Chdir(st.Dir)
		if err != nil {
			return err
		}
		if child != nil {
			h.forked(child)
		}
		return nil
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

// exit closes the innermost scope, or ends a forked child that has none
// left.
func (h *Harness) exit() error {
	p := h.current()
	if n := len(p.frames); n > 0 {
		p.sh.Exit(p.frames[n-1])
		p.frames = p.frames[:n-1]
		return nil
	}
	if len(h.stack) > 1 {
		h.stack = h.stack[:len(h.stack)-1]
		h.logger.Debug("forked child ended", "depth", len(h.stack))
		return nil
	}
	return subshell.ErrNoFrame
}

// forked records that the current process escaped its innermost scope into
// child.
func (h *Harness) forked(child *shell.Shell) {
	p := h.current()
	if n := len(p.frames); n > 0 {
		p.frames = p.frames[:n-1]
	}
	h.stack = append(h.stack, &process{sh: child})
	h.result.Forks++
}
