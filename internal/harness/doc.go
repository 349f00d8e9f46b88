// Package harness runs scripted variable scenarios against a shell.
//
// # Scenario Format
//
// Scenarios are YAML files. Unknown fields are rejected.
//
//	name: subshell_restore
//	description: "Variables changed in a scope come back at exit"
//	profile: ../profiles/basic   # optional CUE profile directory
//	no_dir_handles: false        # make directory capture fail
//	steps:
//	  - {op: set, name: x, value: outer}
//	  - {op: enter}
//	  - {op: set, name: x, value: inner}
//	  - {op: expect_journal, name: x, journaled: true}
//	  - {op: exit}
//	  - {op: expect, name: x, value: outer}
//
// # Steps
//
// Mutations: set, unset, typeset, enter, exit, fork, chdir, convert, ref,
// declare_fixed. A mutation may name the error code it is expected to fail
// with (error: READ_ONLY).
//
// Assertions: expect, expect_unset, expect_scan, expect_journal,
// expect_depth, expect_env.
//
// fork and a chdir that cannot capture the directory continue in the
// child shell; the next exit with no open scope ends the child and returns
// to the parent.
//
// # Deterministic Testing
//
// Frame IDs come from testutil.SequenceIDs and event seq numbers from
// testutil.DeterministicClock, so traces are identical across runs. When
// the steps are done every open scope is closed and the root shell's tree
// is captured as a canonical snapshot for golden comparison.
package harness
