package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/profile"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool `json:"valid"`
	Variables int  `json:"variables"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [profile-dir]",
		Short: "Validate a profile without applying it",
		Long: `Validate the CUE files of a profile without applying them to a shell.

Checks CUE syntax, the variable schema and cross-variable rules such as
reference targets, fixed-array dimensions and numeric values.

Exit codes:
  0 - Profile is valid
  1 - Validation errors found
  2 - Command error (missing directory, no CUE files)

Examples:
  nvsh validate ./profiles/base
  nvsh validate ./profiles/base --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootOpts.profileDir(args)
			if err != nil {
				return err
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	decls, err := profile.Load(dir)
	if err != nil {
		return reportLoadError(f, err)
	}
	f.VerboseLog("Loaded %d declaration(s) from %s", len(decls), dir)

	errs := profile.Validate(decls)
	if len(errs) > 0 {
		if opts.Format == "json" {
			_ = f.Error(errs[0].Code, fmt.Sprintf("%d validation error(s)", len(errs)), errs)
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✗ %s: %d validation error(s)\n", dir, len(errs))
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e.Error())
			}
		}
		return NewExitError(ExitFailure, "profile validation failed")
	}

	if opts.Format == "json" {
		return f.Success(ValidationResult{Valid: true, Variables: len(decls)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d variable(s) valid\n", dir, len(decls))
	return nil
}
