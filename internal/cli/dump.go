package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/snapshot"
	"github.com/roach88/nvsh/internal/subshell"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Query string // jq program run over the snapshot
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump [profile-dir]",
		Short: "Show the snapshot of a profile",
		Long: `Apply a profile and show the resulting variables as a snapshot.

Text output is a table of variables. With --query, the snapshot JSON
({"vars": [...]}) is filtered through a jq program and every result is
printed on its own line.

Exit codes:
  0 - Snapshot shown
  1 - Profile invalid or query failed
  2 - Command error (missing directory, bad query syntax, etc.)

Examples:
  nvsh dump ./profiles/base
  nvsh dump ./profiles/base --query '.vars[] | select(.kind == "assoc") | .name'
  nvsh dump ./profiles/base --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.profileDir(args)
			if err != nil {
				return err
			}
			return runDump(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "jq program to run over the snapshot")

	return cmd
}

func runDump(opts *DumpOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var query *gojq.Query
	if opts.Query != "" {
		q, err := gojq.Parse(opts.Query)
		if err != nil {
			_ = f.Error(ErrCodeQuery, fmt.Sprintf("invalid query: %v", err), nil)
			return WrapExitError(ExitCommandError, "invalid query", err)
		}
		query = q
	}

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
	snap := snapshot.Take(sess.sh.Tree())

	if query == nil {
		if opts.Format == "json" {
			return f.Success(snap)
		}
		renderSnapshot(cmd.OutOrStdout(), snap)
		return nil
	}

	results, err := runQuery(query, snap)
	if err != nil {
		_ = f.Error(ErrCodeQuery, err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}
	if opts.Format == "json" {
		return f.Success(results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
	return nil
}

// runQuery evaluates q against the JSON form of snap.
func runQuery(q *gojq.Query, snap *snapshot.Snapshot) ([]any, error) {
	data, err := snap.Canonical()
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	results := []any{}
	iter := q.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

func renderSnapshot(w io.Writer, snap *snapshot.Snapshot) {
	if len(snap.Vars) == 0 {
		_, _ = fmt.Fprintln(w, "(0 variables)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Kind", "Attrs", "Value"})
	for _, v := range snap.Vars {
		value := v.Value
		if len(v.Elements) > 0 {
			value = formatElements(v.Elements)
		}
		t.AppendRow(table.Row{v.Name, v.Kind, v.Attrs, value})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d variables)\n", len(snap.Vars))
}

// formatElements renders elements as [sub]=value pairs, nesting
// sub-arrays in parentheses.
func formatElements(elems []snapshot.Element) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if len(e.Elements) > 0 {
			parts[i] = fmt.Sprintf("[%s]=(%s)", e.Sub, formatElements(e.Elements))
			continue
		}
		parts[i] = fmt.Sprintf("[%s]=%s", e.Sub, e.Value)
	}
	return strings.Join(parts, " ")
}
