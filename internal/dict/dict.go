package dict

import (
	"slices"
	"strings"
)

// Dict is an ordered string-keyed dictionary with an optional parent view.
//
// The zero value is not usable; create one with New or View.
type Dict[V any] struct {
	entries map[string]V
	keys    []string // sorted local keys
	dead    map[string]struct{}
	parent  *Dict[V]
	cmp     func(a, b string) int
}

// New creates an empty dictionary with no parent, ordered by byte value.
func New[V any]() *Dict[V] {
	return NewFunc[V](strings.Compare)
}

// NewFunc creates an empty dictionary ordered by cmp.
func NewFunc[V any](cmp func(a, b string) int) *Dict[V] {
	return &Dict[V]{entries: make(map[string]V), cmp: cmp}
}

// View creates an empty dictionary layered over d, sharing its order.
// Reads fall through to d; writes and deletes stay in the view.
func (d *Dict[V]) View() *Dict[V] {
	v := NewFunc[V](d.cmp)
	v.parent = d
	return v
}

// Parent returns the dictionary this view reads through, or nil.
func (d *Dict[V]) Parent() *Dict[V] {
	return d.parent
}

// Search finds key in d or, failing that, in its parent chain.
// A tombstone in d hides any parent entry with the same key.
func (d *Dict[V]) Search(key string) (V, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if v, ok := cur.entries[key]; ok {
			return v, true
		}
		if _, gone := cur.dead[key]; gone {
			break
		}
	}
	var zero V
	return zero, false
}

// SearchLocal finds key in d only, ignoring the parent chain.
func (d *Dict[V]) SearchLocal(key string) (V, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Insert stores v under key in d, clearing any tombstone for key.
func (d *Dict[V]) Insert(key string, v V) {
	if _, ok := d.entries[key]; !ok {
		i, _ := slices.BinarySearchFunc(d.keys, key, d.cmp)
		d.keys = slices.Insert(d.keys, i, key)
	}
	d.entries[key] = v
	delete(d.dead, key)
}

// Delete removes key from the visible contents of d.
// A local entry is removed; an entry visible only through the parent is
// hidden with a tombstone. Returns false if key was not visible.
func (d *Dict[V]) Delete(key string) bool {
	_, local := d.entries[key]
	if local {
		delete(d.entries, key)
		if i, found := slices.BinarySearchFunc(d.keys, key, d.cmp); found {
			d.keys = slices.Delete(d.keys, i, i+1)
		}
	}
	if d.parent != nil {
		if _, ok := d.parent.Search(key); ok {
			if d.dead == nil {
				d.dead = make(map[string]struct{})
			}
			d.dead[key] = struct{}{}
			return true
		}
	}
	return local
}

// LocalKeys returns the keys stored in d itself, in order.
func (d *Dict[V]) LocalKeys() []string {
	return slices.Clone(d.keys)
}

// Len returns the number of visible keys.
func (d *Dict[V]) Len() int {
	if d.parent == nil {
		return len(d.entries)
	}
	return len(d.Keys())
}

// Keys returns all visible keys in ascending order.
func (d *Dict[V]) Keys() []string {
	var out []string
	key, ok := d.First()
	for ok {
		out = append(out, key)
		key, ok = d.Next(key)
	}
	return out
}

// First returns the smallest visible key.
func (d *Dict[V]) First() (string, bool) {
	return d.successor("", true)
}

// Next returns the smallest visible key strictly greater than after.
// Insertions and deletions between calls are tolerated: the walk always moves
// forward, so it visits each key present at the time it is reached once.
func (d *Dict[V]) Next(after string) (string, bool) {
	return d.successor(after, false)
}

func (d *Dict[V]) successor(after string, inclusive bool) (string, bool) {
	for {
		best, found := "", false
		for cur := d; cur != nil; cur = cur.parent {
			i, hit := slices.BinarySearchFunc(cur.keys, after, d.cmp)
			if hit && !inclusive {
				i++
			}
			if i < len(cur.keys) && (!found || d.cmp(cur.keys[i], best) < 0) {
				best, found = cur.keys[i], true
			}
		}
		if !found {
			return "", false
		}
		if _, ok := d.Search(best); ok {
			return best, true
		}
		after, inclusive = best, false
	}
}

// Walk calls fn for every visible entry in key order until fn returns false.
func (d *Dict[V]) Walk(fn func(key string, v V) bool) {
	key, ok := d.First()
	for ok {
		v, _ := d.Search(key)
		if !fn(key, v) {
			return
		}
		key, ok = d.Next(key)
	}
}

// Flatten returns a parentless dictionary holding the visible entries of d.
func (d *Dict[V]) Flatten() *Dict[V] {
	out := NewFunc[V](d.cmp)
	d.Walk(func(key string, v V) bool {
		out.entries[key] = v
		out.keys = append(out.keys, key)
		return true
	})
	return out
}
