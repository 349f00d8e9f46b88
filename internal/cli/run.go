package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/snapshot"
	"github.com/roach88/nvsh/internal/subshell"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Env   bool   // print the exported environment instead of the dump
	Label string // snapshot label in the trace database
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Profile  string         `json:"profile"`
	Vars     []snapshot.Var `json:"vars"`
	Env      []string       `json:"env"`
	Snapshot string         `json:"snapshot,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [profile-dir]",
		Short: "Apply a profile to a fresh shell and print the result",
		Long: `Apply a profile to a fresh shell and print its variables.

The profile directory defaults to profile_dir from the configuration. Text
output is a typeset listing that recreates every variable. With trace_db
set, the final tree is stored as a snapshot.

Exit codes:
  0 - Profile applied
  1 - Profile invalid or could not be applied
  2 - Command error (missing directory, database error, etc.)

Examples:
  nvsh run ./profiles/base
  nvsh run ./profiles/base --env
  nvsh run ./profiles/base --trace-db ./trace.db --label base`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.profileDir(args)
			if err != nil {
				return err
			}
			return runProfile(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Env, "env", false, "print the exported environment")
	cmd.Flags().StringVar(&opts.Label, "label", "final", "snapshot label in the trace database")

	return cmd
}

func runProfile(opts *RunOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	wd, err := os.Getwd()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get working directory", err)
	}
	sess, err := newSession(opts.RootOptions, subshell.NewVirtualDirectory(wd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start shell", err)
	}
	if err := loadProfile(f, sess.sh, dir); err != nil {
		return err
	}

	var hash, traceID string
	if db := opts.Config.TraceDB; db != "" {
		hash, err = sess.persist(cmd.Context(), db, opts.Label, 0)
		if err != nil {
			_ = f.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		traceID = sess.RunID()
		f.VerboseLog("Recorded snapshot %s as %q (run %s)", hash, opts.Label, traceID)
	}

	if opts.Format == "json" {
		return f.SuccessWithTrace(RunResult{
			Profile:  dir,
			Vars:     snapshot.Take(sess.sh.Tree()).Vars,
			Env:      sess.sh.Environ(),
			Snapshot: hash,
		}, traceID)
	}

	w := cmd.OutOrStdout()
	if opts.Env {
		for _, kv := range sess.sh.Environ() {
			fmt.Fprintln(w, kv)
		}
		return nil
	}
	return sess.sh.Dump(w)
}
