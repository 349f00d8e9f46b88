// Package shell is the interpreter context that owns a variable tree.
//
// A Shell bundles the nv.Tree, the subshell.Manager that scopes it and the
// ambient process state. It installs the special variables (PATH with its
// command path cache, RANDOM over the ambient seed), keeps the exported
// environment in sync through tree watchers and renders typeset -p style
// listings.
//
// Every piece of state hangs off the Shell value; there is no package level
// mutable state, so several shells can live in one process.
//
// Example:
//
//	sh, err := shell.New()
//	if err != nil {
//		return err
//	}
//	_ = sh.Set("PATH", "/usr/bin")
//	err = sh.Subshell(func(sub *shell.Shell) error {
//		return sub.Set("PATH", "/opt/bin")
//	})
//	// PATH is /usr/bin again here.
package shell
