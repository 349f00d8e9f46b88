package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/shell"
	"github.com/roach88/nvsh/internal/subshell"
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Profile string // profile applied before the first prompt
	NoHist  bool
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive variable shell",
		Long: `Start an interactive session over a live shell.

Commands:
  NAME=VALUE, NAME+=VALUE   assign or append
  get NAME                  print a value
  unset NAME                unset a variable or element
  typeset [-+]FLAGS NAME    add (-) or remove (+) attributes, e.g. -ix
  ref NAME TARGET           make NAME a reference
  fixed NAME DIM...         declare a fixed-dimension array
  convert NAME              turn an indexed array associative
  enter, exit               open or close a virtual subshell
  fork                      escape the current subshell to a forked child
  cd DIR                    change directory
  dump, env, depth, help, quit

The working directory is the process directory. With trace_db set, the
session's scope events and final tree are recorded when it ends.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "profile to apply first (default profile_dir)")
	cmd.Flags().BoolVar(&opts.NoHist, "no-history", false, "do not read or write ~/.nvsh_history")

	return cmd
}

func runREPL(opts *ReplOptions, cmd *cobra.Command) (err error) {
	defer nv.RecoverFatal(&err)

	f := opts.formatter(cmd)
	sess, err := newSession(opts.RootOptions, subshell.OSDirectory{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start shell", err)
	}
	dir := opts.Profile
	if dir == "" {
		dir = opts.Config.ProfileDir
	}
	if dir != "" {
		if err := loadProfile(f, sess.sh, dir); err != nil {
			return err
		}
	}

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil && !opts.NoHist {
		historyFile = filepath.Join(home, ".nvsh_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nvsh> ",
		HistoryFile:     historyFile,
		AutoComplete:    replCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize REPL", err)
	}
	defer func() { _ = rl.Close() }()

	r := newREPL(sess.sh, cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), `nvsh interactive shell. Type "help" for commands.`)

	for {
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}

		quit, err := r.exec(line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		if quit {
			break
		}
	}
	r.close()

	if db := opts.Config.TraceDB; db != "" {
		hash, err := sess.persist(cmd.Context(), db, "final", 0)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record session", err)
		}
		f.VerboseLog("Recorded session %s (snapshot %s)", sess.RunID(), hash)
	}
	return nil
}

func replCompleter() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range replCommands {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

var replCommands = []string{
	"get", "unset", "typeset", "ref", "fixed", "convert",
	"enter", "exit", "fork", "cd", "dump", "env", "depth", "help", "quit",
}

// replProc is one shell of the session. A fork pushes the child; exiting a
// child with no open scopes returns to its parent.
type replProc struct {
	sh     *shell.Shell
	frames []*subshell.Frame
}

type repl struct {
	out   io.Writer
	stack []*replProc
}

func newREPL(sh *shell.Shell, out io.Writer) *repl {
	return &repl{out: out, stack: []*replProc{{sh: sh}}}
}

func (r *repl) current() *replProc { return r.stack[len(r.stack)-1] }

func (r *repl) prompt() string {
	p := r.current()
	depth := p.sh.Manager().Depth()
	switch {
	case len(r.stack) > 1:
		return fmt.Sprintf("nvsh[fork %d:%d]> ", len(r.stack)-1, depth)
	case depth > 0:
		return fmt.Sprintf("nvsh(%d)> ", depth)
	}
	return "nvsh> "
}

// exec runs one input line. It reports whether the session should end.
func (r *repl) exec(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}
	p := r.current()
	sh := p.sh

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	if !strings.ContainsAny(cmd, "=") || strings.HasPrefix(cmd, "=") {
		return r.command(p, cmd, args)
	}

	// Assignment: the value is the rest of the line after the first '='.
	eq := strings.IndexByte(line, '=')
	name, value := line[:eq], line[eq+1:]
	if strings.HasSuffix(name, "+") {
		return false, sh.Append(strings.TrimSuffix(name, "+"), value)
	}
	return false, sh.Set(name, value)
}

func (r *repl) command(p *replProc, cmd string, args []string) (bool, error) {
	sh := p.sh
	need := func(n int, usage string) error {
		if len(args) < n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}

	switch cmd {
	case "quit":
		return true, nil
	case "help":
		fmt.Fprintln(r.out, "commands: NAME=VALUE NAME+=VALUE", strings.Join(replCommands, " "))
	case "get":
		if err := need(1, "get NAME"); err != nil {
			return false, err
		}
		v, ok := sh.Get(args[0])
		if !ok {
			return false, fmt.Errorf("%s: not set", args[0])
		}
		fmt.Fprintln(r.out, v)
	case "unset":
		if err := need(1, "unset NAME..."); err != nil {
			return false, err
		}
		for _, name := range args {
			if err := sh.Unset(name); err != nil {
				return false, err
			}
		}
	case "typeset":
		if err := need(2, "typeset [-+]FLAGS NAME..."); err != nil {
			return false, err
		}
		return false, typeset(sh, args[0], args[1:])
	case "ref":
		if err := need(2, "ref NAME TARGET"); err != nil {
			return false, err
		}
		return false, sh.Ref(args[0], args[1])
	case "fixed":
		if err := need(2, "fixed NAME DIM..."); err != nil {
			return false, err
		}
		dims := make([]int, len(args)-1)
		for i, a := range args[1:] {
			d, err := strconv.Atoi(a)
			if err != nil {
				return false, fmt.Errorf("fixed: bad dimension %q", a)
			}
			dims[i] = d
		}
		return false, sh.DeclareFixed(args[0], dims...)
	case "convert":
		if err := need(1, "convert NAME"); err != nil {
			return false, err
		}
		return false, sh.Convert(args[0])
	case "enter":
		f, err := sh.Enter()
		if err != nil {
			return false, err
		}
		p.frames = append(p.frames, f)
	case "exit":
		return false, r.exit()
	case "fork":
		child, err := sh.EscapeToFork()
		if err != nil {
			return false, err
		}
		r.forked(child)
	case "cd":
		dir := "/"
		if len(args) > 0 {
			dir = args[0]
		} else if home, ok := sh.Get("HOME"); ok && home != "" {
			dir = home
		}
		child, err := sh.Chdir(dir)
		if err != nil {
			return false, err
		}
		if child != nil {
			r.forked(child)
			fmt.Fprintln(r.out, "(directory not capturable; continuing in a forked child)")
		}
	case "depth":
		fmt.Fprintln(r.out, sh.Manager().Depth())
	case "dump":
		return false, sh.Dump(r.out)
	case "env":
		for _, kv := range sh.Environ() {
			fmt.Fprintln(r.out, kv)
		}
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return false, nil
}

// typeset applies a flag word such as -ix or +r to names.
func typeset(sh *shell.Shell, flags string, names []string) error {
	remove := strings.HasPrefix(flags, "+")
	attrs, err := nv.ParseAttrs("-" + strings.TrimLeft(flags, "-+"))
	if err != nil {
		return err
	}
	for _, name := range names {
		if remove {
			err = sh.Untypeset(name, attrs)
		} else {
			err = sh.Typeset(name, attrs)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repl) exit() error {
	p := r.current()
	if n := len(p.frames); n > 0 {
		p.sh.Exit(p.frames[n-1])
		p.frames = p.frames[:n-1]
		return nil
	}
	if len(r.stack) > 1 {
		r.stack = r.stack[:len(r.stack)-1]
		return nil
	}
	return subshell.ErrNoFrame
}

func (r *repl) forked(child *shell.Shell) {
	p := r.current()
	if n := len(p.frames); n > 0 {
		p.frames = p.frames[:n-1]
	}
	r.stack = append(r.stack, &replProc{sh: child})
}

// close drops forked children and closes every scope of the root shell.
func (r *repl) close() {
	r.stack = r.stack[:1]
	root := r.stack[0]
	if len(root.frames) > 0 {
		root.sh.Exit(root.frames[0])
		root.frames = nil
	}
}
