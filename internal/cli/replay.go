package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/harness"
	"github.com/roach88/nvsh/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Filter string
}

// ReplayScenarioResult holds the replay result for a single scenario.
type ReplayScenarioResult struct {
	Name          string `json:"name"`
	Recorded      bool   `json:"recorded"`
	Events        int    `json:"events"`
	Deterministic bool   `json:"deterministic"`
	FirstDiff     int64  `json:"first_diff,omitempty"` // seq of the first differing event
	SnapshotMatch bool   `json:"snapshot_match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenarios        []ReplayScenarioResult `json:"scenarios"`
	Total            int                    `json:"total"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenarios-dir>",
		Short: "Re-run recorded scenarios and verify determinism",
		Long: `Re-run scenarios recorded by "nvsh test --trace-db" and compare them with
the recording.

A scenario is deterministic when its scope events match the stored events
seq for seq and its final snapshot has the stored hash. Scenarios that were
never recorded are reported and skipped.

Exit codes:
  0 - All recorded scenarios are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  nvsh replay ./testdata/scenarios --trace-db ./trace.db
  nvsh replay ./testdata/scenarios --trace-db ./trace.db --filter "fork_*"
  nvsh replay ./testdata/scenarios --trace-db ./trace.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runReplay(opts *ReplayOptions, scenariosDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	db := opts.Config.TraceDB
	if db == "" {
		return NewExitError(ExitCommandError, "no trace database (set --trace-db or trace_db)")
	}
	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := ReplayResult{
		Scenarios:        make([]ReplayScenarioResult, 0, len(files)),
		Total:            len(files),
		AllDeterministic: true,
	}
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			_ = f.Error(ErrCodeScenario, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		sr, err := replayScenario(ctx, st, scenario, opts)
		if err != nil {
			_ = f.Error(ErrCodeScenario, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay %s", scenario.Name), err)
		}
		f.VerboseLog("Replayed %s: %d event(s)", sr.Name, sr.Events)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Recorded && !(sr.Deterministic && sr.SnapshotMatch) {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result)
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayScenario runs scenario and compares it with the recording stored
// under its name.
func replayScenario(ctx context.Context, st *store.Store, scenario *harness.Scenario, opts *ReplayOptions) (ReplayScenarioResult, error) {
	sr := ReplayScenarioResult{Name: scenario.Name}

	recorded, err := st.ReadEvents(ctx, scenario.Name)
	if err != nil {
		return sr, err
	}
	_, storedHash, err := st.LabeledSnapshot(ctx, scenario.Name, "final")
	if errors.Is(err, store.ErrNotFound) && len(recorded) == 0 {
		return sr, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return sr, err
	}
	sr.Recorded = true

	result, err := harness.Run(scenario, harness.WithLogger(opts.Logger))
	if err != nil {
		return sr, err
	}
	sr.Events = len(result.Events)
	sr.FirstDiff = firstDiff(recorded, result.Events)
	sr.Deterministic = sr.FirstDiff == 0

	hash, err := result.Snapshot.Hash()
	if err != nil {
		return sr, err
	}
	sr.SnapshotMatch = hash == storedHash
	return sr, nil
}

// firstDiff returns the seq at which two event lists first differ, or 0
// when they are identical.
func firstDiff(want, got []store.EventRecord) int64 {
	if slices.Equal(want, got) {
		return 0
	}
	for i := range min(len(want), len(got)) {
		if want[i] != got[i] {
			return want[i].Seq
		}
	}
	if len(want) > len(got) {
		return want[len(got)].Seq
	}
	return got[len(want)].Seq
}

func outputReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()
	for _, s := range result.Scenarios {
		switch {
		case !s.Recorded:
			fmt.Fprintf(w, "- %s (not recorded)\n", s.Name)
		case s.Deterministic && s.SnapshotMatch:
			fmt.Fprintf(w, "✓ %s (%d events)\n", s.Name, s.Events)
		default:
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			if !s.Deterministic {
				fmt.Fprintf(w, "  events differ at seq %d\n", s.FirstDiff)
			}
			if !s.SnapshotMatch {
				fmt.Fprintln(w, "  final snapshot differs")
			}
		}
	}
	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintln(w, "All recorded scenarios are deterministic.")
	} else {
		fmt.Fprintln(w, "Determinism verification FAILED.")
	}
}
