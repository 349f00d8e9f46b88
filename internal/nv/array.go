package nv

import (
	"strconv"
	"strings"
)

// Mode selects read or write access in Locate.
type Mode int

const (
	// Read returns the element under the cursor, or nil if it is absent.
	// An element still shared with a saved array is unshared first, so the
	// result is always safe to write.
	Read Mode = iota
	// Write also creates or grows storage for a missing element.
	Write
)

// SubFlags modify SetSubscript.
type SubFlags uint

const (
	// SubAdd creates the element if it is missing.
	SubAdd SubFlags = 1 << iota

	// SubFill creates empty placeholder elements up to the subscript
	// (indexed arrays only).
	SubFill

	// SubScan enters iteration mode; the key is ignored and the first Next
	// moves to the first populated element.
	SubScan

	// SubReset moves the cursor back to the default whole-array position
	// and leaves iteration mode.
	SubReset
)

// Array is the cursor protocol shared by the three backends.
//
// The access cursor (moved by SetSubscript) is separate from the scan
// position (moved by Next), so subscript changes inside a scan do not
// disturb it.
type Array interface {
	// Kind is AttrIndexed, AttrAssoc or AttrFixed.
	Kind() Attr

	// Len counts populated elements.
	Len() int

	// Subscript renders the access cursor.
	Subscript() string

	SetSubscript(key string, flags SubFlags) error

	// Locate returns the element under the cursor.
	Locate(mode Mode) (*Node, error)

	// Next advances the scan to the next populated element and moves the
	// cursor onto it. At the end it returns false, leaves iteration mode
	// and resets the cursor.
	Next() bool

	// Scanning reports whether a scan is in progress.
	Scanning() bool

	// Delete removes the element at key. Missing keys are not an error.
	Delete(key string) error

	// Subscripts lists populated subscripts in iteration order.
	Subscripts() []string

	clone(holder *Node, flags CloneFlags) Array
	base() *arrayBase
}

// arrayBase is embedded by every backend. Elements point at it, so moving
// an array to another holder re-parents all of them at once.
type arrayBase struct {
	holder *Node
}

func (b *arrayBase) base() *arrayBase { return b }

func (b *arrayBase) tree() *Tree { return b.holder.tree }

func (b *arrayBase) elem(sub string) *Node {
	return b.holder.newElement(b, sub)
}

// copyElem makes a private copy of a shared element for b.
func (b *arrayBase) copyElem(src *Node) *Node {
	dst := b.elem(src.name)
	Clone(src, dst, CloneView)
	return dst
}

// ArrayOf returns the array handle of n, or nil if n is not an array.
func ArrayOf(n *Node) Array {
	if n == nil {
		return nil
	}
	if av, ok := n.val.(ArrayValue); ok {
		return av.Array
	}
	return nil
}

// OpenCurrent returns the element under n's cursor, or nil.
func OpenCurrent(n *Node) *Node {
	a := ArrayOf(n)
	if a == nil {
		return nil
	}
	elem, err := a.Locate(Read)
	if err != nil {
		return nil
	}
	return elem
}

// Each scans n and calls fn with every populated subscript and element
// until fn returns false. Non-array nodes are visited as subscript "0".
//
// fn may write to the elements it is given. A write that journals n swaps
// its array for a view, so the array is fetched again on every step.
func Each(n *Node, fn func(sub string, elem *Node) bool) {
	a := ArrayOf(n)
	if a == nil {
		if !n.IsNull() {
			fn("0", n)
		}
		return
	}
	_ = a.SetSubscript("", SubScan)
	for n.NextSub() {
		a = ArrayOf(n)
		elem, err := a.Locate(Read)
		if err != nil || elem == nil {
			continue
		}
		if !fn(a.Subscript(), elem) {
			_ = ArrayOf(n).SetSubscript("", SubReset)
			return
		}
	}
}

// promote turns n into an empty array of the given kind. A scalar value
// becomes element "0".
func promote(n *Node, kind Attr) Array {
	scalar := n.val
	var a Array
	switch kind {
	case AttrAssoc:
		a = newAssoc(n)
	default:
		a = newIndexed(n)
	}
	n.val = ArrayValue{Array: a}
	n.attr = n.attr&^AttrArray | kind
	if scalar != nil {
		_ = a.SetSubscript("0", SubAdd)
		if elem, err := a.Locate(Write); err == nil {
			elem.val = scalar
		}
		_ = a.SetSubscript("", SubReset)
	}
	return a
}

// ConvertToAssociative migrates every populated slot of an indexed array
// into an associative backend keyed by the decimal index. The journal is
// told first. Shared elements are copied so the old storage can go.
func ConvertToAssociative(n *Node) error {
	if n.Has(AttrAssoc) {
		return nil
	}
	if _, ok := ArrayOf(n).(*indexed); !ok {
		return newError(ErrCodeType, n.FullName(), "only indexed arrays convert to associative")
	}
	if n.readOnly() {
		return newError(ErrCodeReadOnly, n.FullName(), "is read only")
	}
	n.tree.beforeWrite(n, WriteValue)
	ix := ArrayOf(n).(*indexed)

	as := newAssoc(n)
	for i, e := range ix.slots {
		if e == nil {
			continue
		}
		if ix.flags[i]&slotNoFree != 0 {
			e = as.copyElem(e)
		}
		e.container = &as.arrayBase
		as.d.Insert(e.name, e)
	}
	as.cur = strconv.Itoa(ix.cur)
	n.val = ArrayValue{Array: as}
	n.attr = n.attr&^AttrArray | AttrAssoc
	n.tree.notify(n.Root())
	return nil
}

// subscriptOrder sorts canonical non-negative decimal keys numerically and
// ahead of every other key, which sort bytewise.
func subscriptOrder(a, b string) int {
	da, db := isIndex(a), isIndex(b)
	switch {
	case da && db:
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return strings.Compare(a, b)
	case da:
		return -1
	case db:
		return 1
	}
	return strings.Compare(a, b)
}

func isIndex(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// evalIndex turns an indexed-array subscript into an integer.
func evalIndex(t *Tree, name, key string) (int, error) {
	if i, err := strconv.Atoi(key); err == nil {
		return i, nil
	}
	f, err := t.numeric(name, key)
	if err != nil {
		return 0, newError(ErrCodeSubscript, name+"["+key+"]", "bad subscript: %v", err)
	}
	return int(f), nil
}
