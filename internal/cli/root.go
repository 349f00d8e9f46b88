package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/config"
)

// RootOptions holds global flags for all commands. Config and Logger are
// resolved before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Config *config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the nvsh CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nvsh",
		Short: "nvsh - shell variable engine",
		Long: `Inspect and exercise the variable engine of a POSIX-class shell.

Profiles declare variables in CUE; scenarios script scope changes in YAML.
Scope events and tree snapshots can be recorded to a SQLite trace database.

Configuration is read from nvsh.yaml (or --config), then NVSH_* environment
variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", config.DefaultFormat, "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./nvsh.yaml)")
	flags.Int("max-index", config.DefaultMaxIndex, "largest accepted array subscript")
	flags.Uint64("seed", config.DefaultSeed, "initial RANDOM seed")
	flags.String("trace-db", "", "SQLite database for scope events and snapshots")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	flags.String("profile-dir", "", "default profile directory")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))

	return cmd
}

// resolve loads the layered configuration and sets up logging.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigFile, cmd.Root().PersistentFlags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	o.Format = cfg.Format

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	if cfg.File != "" {
		o.Logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// profileDir picks the positional argument over the configured default.
func (o *RootOptions) profileDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if o.Config != nil && o.Config.ProfileDir != "" {
		return o.Config.ProfileDir, nil
	}
	return "", NewExitError(ExitCommandError, "no profile directory given (pass one or set profile_dir)")
}
