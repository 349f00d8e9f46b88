package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/store"
	"github.com/roach88/nvsh/internal/subshell"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Type string // optional - filter to one event type
}

// TraceEvent is one scope event in the timeline.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	FrameID string `json:"frame_id"`
	Depth   int    `json:"depth"`
	Node    string `json:"node,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// TraceResult holds the trace of one run.
type TraceResult struct {
	RunID     string       `json:"run_id"`
	Timeline  []TraceEvent `json:"timeline"`
	Snapshots []string     `json:"snapshots"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Frames      int `json:"frames"`
	Journaled   int `json:"journaled"`
	Forks       int `json:"forks"`
	MaxDepth    int `json:"max_depth"`
}

// RunInfo summarizes one recorded run.
type RunInfo struct {
	RunID    string `json:"run_id"`
	Events   int    `json:"events"`
	Frames   int    `json:"frames"`
	Forks    int    `json:"forks"`
	MaxDepth int    `json:"max_depth"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show recorded scope events",
		Long: `Show the scope events recorded in the trace database.

Without a run ID, lists every recorded run with its event, frame and fork
counts. With a run ID, shows the timeline of enter, journal, restore, exit
and fork events along with the labels of its stored snapshots.

Exit codes:
  0 - Trace shown
  2 - Command error (no database configured, database error, etc.)

Examples:
  nvsh trace --trace-db ./trace.db
  nvsh trace --trace-db ./trace.db subshell_restore
  nvsh trace --trace-db ./trace.db subshell_restore --type journal --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "filter to one event type")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
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

	if len(args) == 0 {
		runs, err := st.Runs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		infos := make([]RunInfo, len(runs))
		for i, r := range runs {
			infos[i] = RunInfo(r)
		}
		if opts.Format == "json" {
			return f.Success(infos)
		}
		renderRuns(cmd.OutOrStdout(), infos)
		return nil
	}

	runID := args[0]
	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	labels, err := st.SnapshotLabels(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshots", err)
	}

	result := TraceResult{
		RunID:     runID,
		Timeline:  buildTimeline(events, opts.Type),
		Snapshots: labels,
		Stats:     buildStats(events),
	}
	if opts.Format == "json" {
		return f.SuccessWithTrace(result, runID)
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintf(w, "No events found for run: %s\n", runID)
		return nil
	}
	renderTimeline(w, result)
	return nil
}

// buildTimeline converts stored events, keeping only typ when set.
func buildTimeline(events []store.EventRecord, typ string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, e := range events {
		if typ != "" && e.Type != typ {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:     e.Seq,
			Type:    e.Type,
			FrameID: e.FrameID,
			Depth:   e.Depth,
			Node:    e.Node,
			Mode:    e.Mode,
		})
	}
	return timeline
}

func buildStats(events []store.EventRecord) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	frames := map[string]bool{}
	for _, e := range events {
		frames[e.FrameID] = true
		switch e.Type {
		case string(subshell.EventJournal):
			stats.Journaled++
		case string(subshell.EventFork):
			stats.Forks++
		}
		stats.MaxDepth = max(stats.MaxDepth, e.Depth)
	}
	stats.Frames = len(frames)
	return stats
}

func renderRuns(w io.Writer, runs []RunInfo) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Events", "Frames", "Forks", "Max Depth"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.RunID, r.Events, r.Frames, r.Forks, r.MaxDepth})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d runs)\n", len(runs))
}

func renderTimeline(w io.Writer, result TraceResult) {
	_, _ = fmt.Fprintf(w, "Run: %s\n", result.RunID)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Seq", "Type", "Frame", "Depth", "Node", "Mode"})
	for _, e := range result.Timeline {
		t.AppendRow(table.Row{e.Seq, e.Type, e.FrameID, e.Depth, e.Node, e.Mode})
	}
	t.Render()

	s := result.Stats
	_, _ = fmt.Fprintf(w, "Events: %d, frames: %d, journaled: %d, forks: %d, max depth: %d\n",
		s.TotalEvents, s.Frames, s.Journaled, s.Forks, s.MaxDepth)
	if len(result.Snapshots) > 0 {
		_, _ = fmt.Fprintf(w, "Snapshots: %v\n", result.Snapshots)
	}
}
