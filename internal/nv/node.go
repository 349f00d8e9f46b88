package nv

import (
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PutFlags modify a Put.
type PutFlags uint

const (
	// PutForce writes through the readonly attribute.
	PutForce PutFlags = 1 << iota

	// PutNoDisc bypasses the discipline chain.
	PutNoDisc

	// PutNoJournal skips the tree's journal hook. Used by restore code.
	PutNoJournal

	// PutAppend appends to strings and adds to numbers (+=).
	PutAppend
)

// CloneFlags select what Clone copies.
type CloneFlags uint

const (
	// CloneAttrsOnly copies attributes and disciplines but no value.
	CloneAttrsOnly CloneFlags = 1 << iota

	// CloneMove transfers the contents and leaves the source empty.
	CloneMove

	// CloneView shares array elements copy-on-write; associative arrays
	// become views over the source dictionary.
	CloneView

	// CloneNoDisc leaves the destination without disciplines.
	CloneNoDisc
)

// Node is a named variable slot.
type Node struct {
	name  string
	attr  Attr
	val   Value
	disc  *Layer
	tree  *Tree
	level int

	// container is the array holding this node when it is an element.
	container *arrayBase

	busy bool

	// Meta is an opaque slot for code layered on top of the engine.
	Meta any
}

// Name returns the node's name. For array elements this is the subscript.
func (n *Node) Name() string { return n.name }

// FullName returns the name qualified by its owners, e.g. "a[3]".
func (n *Node) FullName() string {
	if o := n.Owner(); o != nil {
		return o.FullName() + "[" + n.name + "]"
	}
	return n.name
}

// Attr returns the attribute bitset.
func (n *Node) Attr() Attr { return n.attr }

// Has reports whether all attributes in a are set.
func (n *Node) Has(a Attr) bool { return n.attr.Has(a) }

// Value returns the active representation, or nil for a null node.
func (n *Node) Value() Value { return n.val }

// Tree returns the tree the node belongs to.
func (n *Node) Tree() *Tree { return n.tree }

// Level is the scope depth at which the node was created.
func (n *Node) Level() int { return n.level }

// Owner returns the array node holding n, or nil when n is not an element.
func (n *Node) Owner() *Node {
	if n.container == nil {
		return nil
	}
	return n.container.holder
}

// Root returns the outermost owner of n (n itself for top-level nodes).
func (n *Node) Root() *Node {
	r := n
	for o := r.Owner(); o != nil; o = r.Owner() {
		r = o
	}
	return r
}

// IsNull reports whether the node has no value and no getter that could
// produce one.
func (n *Node) IsNull() bool {
	return n.val == nil && !n.disc.hasGetter()
}

// IsArray reports whether the node currently holds an array backend.
func (n *Node) IsArray() bool {
	_, ok := n.val.(ArrayValue)
	return ok
}

// Target returns the node a reference points at, or nil.
func (n *Node) Target() *Node {
	if !n.attr.Has(AttrRef) {
		return nil
	}
	if rv, ok := n.val.(RefValue); ok {
		return rv.Target
	}
	return nil
}

// Get returns the string value through the discipline chain.
func (n *Node) Get() string {
	if t := n.Target(); t != nil {
		return t.Get()
	}
	if n.busy || n.disc == nil {
		return n.storedString()
	}
	n.busy = true
	defer func() { n.busy = false }()
	return n.disc.Get(n)
}

// GetNumeric returns the numeric value through the discipline chain.
func (n *Node) GetNumeric() (float64, error) {
	if t := n.Target(); t != nil {
		return t.GetNumeric()
	}
	if n.busy || n.disc == nil {
		return n.storedNumeric()
	}
	n.busy = true
	defer func() { n.busy = false }()
	return n.disc.GetNumeric(n)
}

// Put assigns v through the discipline chain.
//
// The tree's journal is told before anything changes. Readonly nodes (and
// elements of readonly arrays) reject the write unless PutForce is given.
func (n *Node) Put(v Value, flags PutFlags) error {
	if t := n.Target(); t != nil {
		return t.Put(v, flags)
	}
	if n.readOnly() && flags&PutForce == 0 {
		return newError(ErrCodeReadOnly, n.FullName(), "is read only")
	}
	if flags&PutNoJournal == 0 {
		n = n.journal()
	}
	var err error
	if n.busy || n.disc == nil || flags&PutNoDisc != 0 {
		err = n.store(v, flags)
	} else {
		n.busy = true
		err = n.disc.Put(n, v, flags)
		n.busy = false
	}
	if err == nil {
		n.tree.notify(n.Root())
	}
	return err
}

// journal records n's variable before a write. When that moves the array
// holding n into the journal, n now belongs to the saved copy, and the
// matching element of the live array is returned instead.
func (n *Node) journal() *Node {
	root := n.Root()
	n.tree.beforeWrite(n, WriteValue)
	if n == root || n.Root() == root {
		return n
	}
	var path []string
	for cur := n; cur.Owner() != nil; cur = cur.Owner() {
		path = append(path, cur.name)
	}
	cur := root
	for i := len(path) - 1; i >= 0; i-- {
		a := ArrayOf(cur)
		if a == nil || a.SetSubscript(path[i], 0) != nil {
			return n
		}
		elem, err := a.Locate(Write)
		if err != nil || elem == nil {
			return n
		}
		cur = elem
	}
	return cur
}

// NextSub advances an array node's scan through the discipline chain.
func (n *Node) NextSub() bool {
	if n.busy || n.disc == nil {
		if a := ArrayOf(n); a != nil {
			return a.Next()
		}
		return false
	}
	n.busy = true
	defer func() { n.busy = false }()
	return n.disc.NextSub(n)
}

func (n *Node) readOnly() bool {
	for cur := n; cur != nil; cur = cur.Owner() {
		if cur.attr.Has(AttrReadOnly) {
			return true
		}
	}
	return false
}

// effective merges the value-shaping attributes inherited from owners.
func (n *Node) effective() Attr {
	a := n.attr
	for o := n.Owner(); o != nil; o = o.Owner() {
		a |= o.attr & (attrNumeric | attrCase)
	}
	return a
}

func (n *Node) storedString() string {
	if n.val == nil {
		return ""
	}
	return n.val.String()
}

func (n *Node) storedNumeric() (float64, error) {
	switch v := n.val.(type) {
	case nil:
		return 0, nil
	case Int:
		return float64(v), nil
	case Num:
		return float64(v), nil
	case ArrayValue:
		elem, err := v.Array.Locate(Read)
		if err != nil || elem == nil {
			return 0, err
		}
		return elem.GetNumeric()
	default:
		return n.tree.numeric(n.FullName(), v.String())
	}
}

// store is the base of the Put chain: it writes v into the node's own
// storage, converting according to the effective attributes.
func (n *Node) store(v Value, flags PutFlags) error {
	if av, ok := n.val.(ArrayValue); ok {
		elem, err := av.Array.Locate(Write)
		if err != nil {
			return err
		}
		return elem.store(v, flags)
	}
	switch v.(type) {
	case nil:
		n.val = nil
		return nil
	case ArrayValue, RefValue:
		return newError(ErrCodeType, n.FullName(), "cannot assign %T", v)
	}

	eff := n.effective()
	switch {
	case eff.Has(AttrInteger):
		num, err := n.numericOf(v)
		if err != nil {
			return err
		}
		i := asInt(num)
		if flags&PutAppend != 0 && n.val != nil {
			cur, err := n.numericOf(n.val)
			if err != nil {
				return err
			}
			i += asInt(cur)
		}
		n.val = Int(i)
	case eff.Has(AttrFloat):
		num, err := n.numericOf(v)
		if err != nil {
			return err
		}
		f := asFloat(num)
		if flags&PutAppend != 0 && n.val != nil {
			cur, err := n.numericOf(n.val)
			if err != nil {
				return err
			}
			f += asFloat(cur)
		}
		n.val = Num(f)
	default:
		s := v.String()
		if flags&PutAppend != 0 && n.val != nil {
			s = n.val.String() + s
		}
		switch {
		case eff.Has(AttrUpper):
			s = cases.Upper(language.Und).String(s)
		case eff.Has(AttrLower):
			s = cases.Lower(language.Und).String(s)
		}
		n.val = Str(s)
	}
	return nil
}

func (n *Node) numericOf(v Value) (Value, error) {
	switch v := v.(type) {
	case Int, Num:
		return v, nil
	case nil:
		return Int(0), nil
	}
	return n.tree.numericValue(n.FullName(), v.String())
}

func asInt(v Value) int64 {
	switch v := v.(type) {
	case Int:
		return int64(v)
	case Num:
		return int64(v)
	}
	return 0
}

func asFloat(v Value) float64 {
	switch v := v.(type) {
	case Int:
		return float64(v)
	case Num:
		return float64(v)
	}
	return 0
}

// Clone copies the active representation and discipline chain of src into
// dst. Arrays are copied recursively; with CloneView their elements are
// shared copy-on-write instead. With CloneMove the contents (chain
// included) are transferred and src is left empty.
func Clone(src, dst *Node, flags CloneFlags) {
	dst.attr = src.attr
	if flags&CloneMove != 0 {
		dst.disc, dst.val = src.disc, src.val
		if av, ok := dst.val.(ArrayValue); ok {
			av.Array.base().holder = dst
		}
		src.attr, src.val, src.disc = 0, nil, nil
		return
	}
	if flags&CloneNoDisc != 0 {
		dst.disc = nil
	} else {
		dst.disc = cloneChain(src, dst, flags)
	}
	if flags&CloneAttrsOnly != 0 {
		dst.val = nil
		return
	}
	if av, ok := src.val.(ArrayValue); ok {
		dst.val = ArrayValue{Array: av.Array.clone(dst, flags)}
		return
	}
	dst.val = src.val
}

// NewDetached returns a node that belongs to no dictionary. Journal
// snapshots are kept in detached nodes.
func (t *Tree) NewDetached(name string) *Node {
	return &Node{name: name, tree: t, level: t.depth}
}

func (n *Node) newElement(base *arrayBase, sub string) *Node {
	return &Node{name: sub, tree: n.tree, level: n.level, container: base}
}

func elementName(i int) string {
	return strconv.Itoa(i)
}
