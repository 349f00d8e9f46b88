package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/nvsh/internal/profile"
	"github.com/roach88/nvsh/internal/shell"
	"github.com/roach88/nvsh/internal/snapshot"
	"github.com/roach88/nvsh/internal/store"
	"github.com/roach88/nvsh/internal/subshell"
)

// session is a shell built from the resolved configuration, with its scope
// events buffered for the trace database.
type session struct {
	sh       *shell.Shell
	recorder *store.Recorder
}

func newSession(opts *RootOptions, dir subshell.Directory) (*session, error) {
	rec := store.NewRecorder(newRunID(), nil)
	sh, err := shell.New(
		shell.WithLogger(opts.Logger),
		shell.WithMaxIndex(opts.Config.MaxIndex),
		shell.WithSeed(opts.Config.Seed),
		shell.WithDirectory(dir),
		shell.WithManagerOptions(subshell.WithTracer(rec)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shell: %w", err)
	}
	return &session{sh: sh, recorder: rec}, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RunID identifies the session's events and snapshots in the trace database.
func (s *session) RunID() string { return s.recorder.RunID() }

// persist flushes pending events and stores a snapshot of the tree under
// label. It returns the snapshot hash.
func (s *session) persist(ctx context.Context, dbPath, label string, seq int64) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open trace database: %w", err)
	}
	defer st.Close()

	if err := s.recorder.Flush(ctx, st); err != nil {
		return "", fmt.Errorf("failed to write events: %w", err)
	}
	hash, err := st.WriteSnapshot(ctx, s.RunID(), label, seq, snapshot.Take(s.sh.Tree()))
	if err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return hash, nil
}

// loadProfile loads, validates and applies the profile in dir. Load and
// validation failures are reported through f and returned as ExitErrors.
func loadProfile(f *OutputFormatter, sh *shell.Shell, dir string) error {
	decls, err := profile.Load(dir)
	if err != nil {
		return reportLoadError(f, err)
	}
	f.VerboseLog("Loaded %d declaration(s) from %s", len(decls), dir)

	if errs := profile.Validate(decls); len(errs) > 0 {
		_ = f.Error(errs[0].Code, fmt.Sprintf("profile has %d validation error(s)", len(errs)), errs)
		return NewExitError(ExitFailure, "profile validation failed")
	}
	if err := profile.Apply(sh, decls); err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to apply profile", err)
	}
	return nil
}

// reportLoadError maps a profile load failure to an error response. A
// missing directory is a command error, a broken profile a failure.
func reportLoadError(f *OutputFormatter, err error) error {
	var loadErr *profile.LoadError
	if !errors.As(err, &loadErr) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load profile", err)
	}
	_ = f.Error(loadErr.Code, loadErr.Message, nil)
	switch loadErr.Code {
	case profile.ErrCodeNotFound, profile.ErrCodeNoFiles:
		return WrapExitError(ExitCommandError, "failed to load profile", err)
	default:
		return WrapExitError(ExitFailure, "failed to load profile", err)
	}
}
