// Package snapshot captures the visible state of a variable tree as
// canonical JSON.
//
// Take walks an nv.Tree at the storage level: values are read as stored,
// so getter-only specials such as RANDOM are left out and reading a
// snapshot never changes the tree. Canonical serializes the result with
// sorted keys (RFC 8785 UTF-16 order), NFC-normalized strings and no HTML
// escaping, so equal trees always produce equal bytes. Hash names a
// snapshot by content:
//
//	SHA256("nvsh/snapshot/v1" + 0x00 + canonical)
package snapshot
