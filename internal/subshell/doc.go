// Package subshell runs nested shell scopes without forking.
//
// A Manager owns a stack of Frames over an nv.Tree. Enter pushes a frame and
// a read-through view of the variable dictionary; from then on the Manager,
// installed as the tree's Journal, saves every variable that predates the
// frame into a Link the first time it is written. Exit restores the frame:
// each Link is put back front to back, nodes created inside the scope vanish
// with the view, and the ambient state captured at entry (traps, options,
// working directory, job table, random seed) is reinstated.
//
// When a write cannot be undone (a directory change with no handle to return
// to), EscapeToFork hands the caller a Child holding an independent copy of
// the state and unwinds the parent frame. The child's frames are never
// restored.
//
// Failure to restore ambient state is fatal: Exit panics with an
// *nv.FatalError, which only the process entry point recovers.
package subshell
