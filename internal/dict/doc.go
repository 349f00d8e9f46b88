// Package dict provides the ordered dictionary engine used for variable trees
// and associative array storage.
//
// A Dict keeps its keys sorted so that walks are deterministic. A Dict may be
// opened as a View over a parent Dict: lookups fall through to the parent until
// a local entry (or a tombstone left by Delete) shadows them, and writes never
// reach the parent. Views are how nested scopes avoid copying untouched
// entries.
package dict
