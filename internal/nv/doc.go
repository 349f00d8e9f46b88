// Package nv implements the shell's name-value variable engine.
//
// A Node is a named variable slot. Its Attr bitset carries the typeset
// attributes (export, readonly, integer, case conversion, array kinds,
// reference) and its Value is a tagged sum: Str, Int, Num, ArrayValue or
// RefValue. A nil Value is a null node.
//
// # Disciplines
//
// Every node owns an ordered chain of Layers. Each Layer wraps a Discipline
// that may implement any of the capability interfaces (Getter, Putter,
// NumericGetter, Iterator, Cloner, Creator, Refresher). Operations walk the
// chain from the newest layer down; the first layer offering the capability
// handles the call and may delegate to the layer below it. The node's own
// storage is the base case. While a discipline runs, the node is marked busy
// and nested operations on it go straight to storage.
//
// # Arrays
//
// Array nodes hold one of three backends behind the Array interface:
//
//   - indexed: a growable slot vector with per-slot flags
//   - associative: a dict.Dict of element nodes, optionally a view over a
//     parent dictionary
//   - fixed: a flat buffer with per-dimension bounds and strides
//
// All three share one cursor protocol: SetSubscript moves the cursor,
// Locate returns the element under it, Next walks populated elements.
//
// # Trees
//
// A Tree is the variable dictionary. PushView layers a fresh dictionary over
// the current one for a nested scope; nodes created there disappear on
// PopView. A Journal installed with SetJournal is told before any node that
// predates the current view is mutated.
package nv
