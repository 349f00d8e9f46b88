package nv

import (
	"log/slog"
	"strings"

	"github.com/roach88/nvsh/internal/dict"
)

// DefaultMaxIndex caps indexed array growth and fixed array size.
const DefaultMaxIndex = 1 << 22

// maxEvalDepth bounds recursive arithmetic resolution of variable names.
const maxEvalDepth = 32

// LookupFlags control LookupOrCreate.
type LookupFlags uint

const (
	// Create makes the node if it does not exist.
	Create LookupFlags = 1 << iota

	// LookupOnly never creates; a missing name yields a nil node.
	LookupOnly

	// ArrayContext allows a trailing [sub] subscript and positions the
	// array cursor on it, creating the array lazily.
	ArrayContext

	// Assign marks a lookup that precedes a write. The journal hook runs
	// before any promotion of a scalar to an array.
	Assign

	// NoRef returns a reference node itself instead of its target.
	NoRef
)

// WriteKind tells the journal what is about to happen to a node.
type WriteKind int

const (
	// WriteValue precedes an assignment or attribute change.
	WriteValue WriteKind = iota

	// WriteUnset precedes an unset.
	WriteUnset
)

func (k WriteKind) String() string {
	if k == WriteUnset {
		return "unset"
	}
	return "value"
}

// Journal is told about every mutation of a top-level node before it
// happens.
type Journal interface {
	BeforeWrite(n *Node, kind WriteKind)
}

// Arith evaluates arithmetic expressions for integer and float nodes.
type Arith interface {
	Eval(t *Tree, expr string) (Value, error)
}

// Tree is a variable dictionary with nested read-through views.
type Tree struct {
	vars     *dict.Dict[*Node]
	depth    int
	arith    Arith
	journal  Journal
	logger   *slog.Logger
	maxIndex int
	watchers []func(*Node)

	evalDepth int
}

// Option configures a Tree.
type Option func(*Tree)

// WithArith sets the arithmetic evaluator.
func WithArith(a Arith) Option {
	return func(t *Tree) { t.arith = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) { t.logger = l }
}

// WithMaxIndex sets the array size cap.
func WithMaxIndex(max int) Option {
	return func(t *Tree) {
		if max > 0 {
			t.maxIndex = max
		}
	}
}

// NewTree creates an empty tree at depth 0.
func NewTree(opts ...Option) *Tree {
	t := &Tree{
		vars:     dict.New[*Node](),
		arith:    literalArith{},
		logger:   slog.New(slog.DiscardHandler),
		maxIndex: DefaultMaxIndex,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetJournal installs the mutation hook. Pass nil to remove it.
func (t *Tree) SetJournal(j Journal) { t.journal = j }

// Depth returns the number of views above the base dictionary.
func (t *Tree) Depth() int { return t.depth }

// MaxIndex returns the array size cap.
func (t *Tree) MaxIndex() int { return t.maxIndex }

// Logger returns the tree's logger.
func (t *Tree) Logger() *slog.Logger { return t.logger }

// OnChange registers fn to be called with the top-level node after every
// successful mutation, unset, restore or discarded view entry.
func (t *Tree) OnChange(fn func(*Node)) {
	t.watchers = append(t.watchers, fn)
}

func (t *Tree) notify(n *Node) {
	for _, fn := range t.watchers {
		fn(n)
	}
}

func (t *Tree) beforeWrite(n *Node, kind WriteKind) {
	if t.journal == nil {
		return
	}
	t.journal.BeforeWrite(n.Root(), kind)
}

// Lookup is LookupOrCreate with LookupOnly|ArrayContext.
func (t *Tree) Lookup(name string) *Node {
	n, err := t.LookupOrCreate(name, LookupOnly|ArrayContext)
	if err != nil {
		return nil
	}
	return n
}

// LookupOrCreate finds name in the visible dictionaries, creating it in the
// current view when Create is set.
//
// With ArrayContext, name may end in one or more [sub] subscripts. The
// returned node is then the innermost array node with its cursor set to the
// last subscript; Get and Put on it address that element. "@" and "*"
// reset the cursor to the whole array. A lookup-only miss returns nil and
// no error.
func (t *Tree) LookupOrCreate(name string, flags LookupFlags) (*Node, error) {
	if flags&LookupOnly != 0 {
		flags &^= Create | Assign
	}
	base, subs, err := splitName(name)
	if err != nil {
		return nil, err
	}
	if len(subs) > 0 && flags&ArrayContext == 0 {
		return nil, newError(ErrCodeName, name, "subscript not allowed here")
	}

	var n *Node
	if i := strings.IndexByte(base, '.'); i > 0 {
		parent, err := t.lookupFlat(base[:i], flags&^(Create|Assign))
		if err != nil {
			return nil, err
		}
		if parent != nil && parent.disc.hasCreator() {
			n, err = parent.disc.Create(parent, base[i+1:], flags)
		} else {
			n, err = t.lookupFlat(base, flags)
		}
		if err != nil {
			return nil, err
		}
	} else if n, err = t.lookupFlat(base, flags); err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	if flags&NoRef == 0 {
		if n, err = resolveRef(n); err != nil {
			return nil, err
		}
	}
	if len(subs) == 0 {
		return n, nil
	}
	return t.subscript(n, subs, flags)
}

func (t *Tree) lookupFlat(name string, flags LookupFlags) (*Node, error) {
	if n, ok := t.vars.Search(name); ok {
		return n, nil
	}
	if flags&(Create|Assign) == 0 {
		return nil, nil
	}
	n := &Node{name: name, tree: t, level: t.depth}
	t.vars.Insert(name, n)
	return n, nil
}

func resolveRef(n *Node) (*Node, error) {
	for i := 0; n.Target() != nil; i++ {
		if i >= maxEvalDepth {
			return nil, newError(ErrCodeRecursion, n.name, "reference loop")
		}
		n = n.Target()
	}
	return n, nil
}

func (t *Tree) subscript(n *Node, subs []string, flags LookupFlags) (*Node, error) {
	create := flags&(Create|Assign) != 0
	if flags&Assign != 0 {
		t.beforeWrite(n, WriteValue)
	}
	if n.Has(AttrFixed) && n.IsArray() {
		subs = []string{strings.Join(subs, ",")}
	}
	cur := n
	for i, sub := range subs {
		a := ArrayOf(cur)
		if a == nil {
			if !create {
				if sub == "0" || sub == "@" || sub == "*" {
					return cur, nil
				}
				return nil, nil
			}
			a = promote(cur, AttrIndexed)
		}
		sf := SubFlags(0)
		if create {
			sf |= SubAdd
		}
		if sub == "@" || sub == "*" {
			sf = SubReset
		}
		if err := a.SetSubscript(sub, sf); err != nil {
			return nil, err
		}
		if i == len(subs)-1 {
			break
		}
		mode := Read
		if create {
			mode = Write
		}
		elem, err := a.Locate(mode)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, nil
		}
		if !elem.IsArray() {
			if !create {
				return nil, nil
			}
			kind := AttrIndexed
			if a.Kind() == AttrAssoc {
				kind = AttrAssoc
			}
			promote(elem, kind)
			if ix, ok := a.(*indexed); ok {
				ix.markChild()
			}
		}
		cur = elem
	}
	return cur, nil
}

// Walk calls fn for every defined top-level node in name order until fn
// returns false. Nodes unset in place are skipped.
func (t *Tree) Walk(fn func(*Node) bool) {
	t.vars.Walk(func(_ string, n *Node) bool {
		if n.val == nil && n.attr == 0 && !n.disc.hasGetter() {
			return true
		}
		return fn(n)
	})
}

// Unset removes a node's value, attributes and disciplines.
//
// A node created in the current view is deleted outright; one that predates
// it is emptied in place so the journal can restore it, disciplines
// included.
func (t *Tree) Unset(n *Node) error {
	if o := n.Owner(); o != nil {
		return t.UnsetElement(o, n.name)
	}
	if n.Has(AttrReadOnly) {
		return newError(ErrCodeReadOnly, n.name, "cannot unset read only variable")
	}
	t.beforeWrite(n, WriteUnset)
	n.attr, n.val, n.disc = 0, nil, nil
	if local, ok := t.vars.SearchLocal(n.name); ok && local == n {
		t.vars.Delete(n.name)
	}
	t.notify(n)
	return nil
}

// UnsetElement removes element sub of array node n.
func (t *Tree) UnsetElement(n *Node, sub string) error {
	if !n.IsArray() {
		if sub == "0" {
			return t.Unset(n)
		}
		return nil
	}
	if n.readOnly() {
		return newError(ErrCodeReadOnly, n.FullName()+"["+sub+"]", "cannot unset read only element")
	}
	// Journaling swaps in a new array, so look it up afterwards.
	t.beforeWrite(n, WriteValue)
	if err := ArrayOf(n).Delete(sub); err != nil {
		return err
	}
	t.notify(n.Root())
	return nil
}

// SetAttr adds typeset attributes to n, converting its value as needed.
// Integer and float exclude each other, as do upper and lower.
func (t *Tree) SetAttr(n *Node, a Attr) error {
	if a == 0 {
		return nil
	}
	if n.Has(AttrReadOnly) && a&^(AttrExport|AttrReadOnly) != 0 {
		return newError(ErrCodeReadOnly, n.FullName(), "cannot change attributes of read only variable")
	}
	if a.Any(AttrRef | AttrFixed) {
		return newError(ErrCodeType, n.FullName(), "reference and fixed attributes need a declaration")
	}
	if a.Has(AttrIndexed | AttrAssoc) {
		return newError(ErrCodeType, n.FullName(), "array cannot be both indexed and associative")
	}
	t.beforeWrite(n, WriteValue)

	switch {
	case a.Has(AttrAssoc) && !n.Has(AttrAssoc):
		switch {
		case n.Has(AttrIndexed):
			if err := ConvertToAssociative(n); err != nil {
				return err
			}
		case n.Has(AttrFixed):
			return newError(ErrCodeType, n.FullName(), "fixed array cannot become associative")
		default:
			promote(n, AttrAssoc)
		}
	case a.Has(AttrIndexed) && !n.IsArray():
		promote(n, AttrIndexed)
	case a.Has(AttrIndexed) && n.Has(AttrAssoc):
		return newError(ErrCodeType, n.FullName(), "associative array cannot become indexed")
	}

	next := n.attr | a
	if a.Has(AttrInteger) {
		next &^= AttrFloat
	}
	if a.Has(AttrFloat) {
		next &^= AttrInteger
	}
	if a.Has(AttrUpper) {
		next &^= AttrLower
	}
	if a.Has(AttrLower) {
		next &^= AttrUpper
	}
	if err := t.reshape(n, next); err != nil {
		return err
	}
	t.notify(n)
	return nil
}

// ClearAttr removes typeset attributes. Readonly and the array kinds cannot
// be cleared.
func (t *Tree) ClearAttr(n *Node, a Attr) error {
	if a.Has(AttrReadOnly) && n.Has(AttrReadOnly) {
		return newError(ErrCodeReadOnly, n.FullName(), "cannot clear read only attribute")
	}
	if a.Any(AttrArray) && n.attr.Any(a&AttrArray) {
		return newError(ErrCodeType, n.FullName(), "cannot clear array attribute; unset the variable")
	}
	if n.Has(AttrReadOnly) && a&^AttrExport != 0 {
		return newError(ErrCodeReadOnly, n.FullName(), "cannot change attributes of read only variable")
	}
	t.beforeWrite(n, WriteValue)
	if err := t.reshape(n, n.attr&^a); err != nil {
		return err
	}
	t.notify(n)
	return nil
}

// reshape installs next as n's attributes and re-stores the value (or every
// element) so it matches them. On failure the old state is kept.
func (t *Tree) reshape(n *Node, next Attr) error {
	prev := n.attr
	n.attr = next
	if (prev^next)&(attrNumeric|attrCase) == 0 {
		return nil
	}
	var err error
	if a := ArrayOf(n); a != nil {
		for _, sub := range a.Subscripts() {
			if err = a.SetSubscript(sub, 0); err != nil {
				break
			}
			elem, _ := a.Locate(Write)
			if elem == nil || elem.IsArray() || elem.val == nil {
				continue
			}
			if err = elem.store(Str(elem.val.String()), 0); err != nil {
				break
			}
		}
		_ = a.SetSubscript("", SubReset)
	} else if n.val != nil {
		old := n.val
		if err = n.store(Str(old.String()), 0); err != nil {
			n.val = old
		}
	}
	if err != nil {
		n.attr = prev
		return newError(ErrCodeType, n.FullName(), "value does not fit %s: %v", next, err)
	}
	return nil
}

// DeclareFixed turns n into a fixed-dimension array. Asking for more cells
// than the tree's cap is an allocation failure.
func (t *Tree) DeclareFixed(n *Node, dims ...int) error {
	if n.Has(AttrReadOnly) {
		return newError(ErrCodeReadOnly, n.FullName(), "is read only")
	}
	if len(dims) == 0 {
		return newError(ErrCodeSubscript, n.FullName(), "no dimensions")
	}
	total := 1
	for _, d := range dims {
		if d <= 0 {
			return newError(ErrCodeSubscript, n.FullName(), "dimension %d out of range", d)
		}
		total *= d
		if total > t.maxIndex {
			Fatal(FatalAllocation, "fixed array "+n.FullName()+" exceeds the size cap", nil)
		}
	}
	t.beforeWrite(n, WriteValue)
	var scalar Value
	if !n.IsArray() {
		scalar = n.val
	}
	f := newFixed(n, dims)
	if scalar != nil {
		elem := n.newElement(&f.arrayBase, f.format(0))
		elem.val = scalar
		f.cells[0] = elem
	}
	n.val = ArrayValue{Array: f}
	n.attr = n.attr&^AttrArray | AttrFixed
	t.notify(n)
	return nil
}

// SetRef makes n a name reference to target.
func (t *Tree) SetRef(n, target *Node) error {
	if n.Has(AttrReadOnly) {
		return newError(ErrCodeReadOnly, n.name, "is read only")
	}
	for cur := target; cur != nil; cur = cur.Target() {
		if cur == n {
			return newError(ErrCodeRecursion, n.name, "reference to itself")
		}
	}
	t.beforeWrite(n, WriteValue)
	n.attr = n.attr&AttrExport | AttrRef
	n.val = RefValue{Target: target}
	t.notify(n)
	return nil
}

// Touch tells n's Refresher disciplines and the tree watchers that n was
// replaced without a Put.
func (t *Tree) Touch(n *Node) {
	for cur := n.disc; cur != nil; cur = cur.next {
		if r, ok := cur.disc.(Refresher); ok {
			r.Refresh(n)
		}
	}
	t.notify(n)
}

// PushView layers a fresh dictionary over the current one.
func (t *Tree) PushView() {
	t.vars = t.vars.View()
	t.depth++
	t.logger.Debug("push view", "depth", t.depth)
}

// PopView discards the current view and every node created in it.
func (t *Tree) PopView() {
	parent := t.vars.Parent()
	if parent == nil {
		return
	}
	view := t.vars
	t.vars = parent
	t.depth--
	for _, key := range view.LocalKeys() {
		if n, ok := view.SearchLocal(key); ok {
			n.attr, n.val, n.disc = 0, nil, nil
			t.notify(n)
		}
	}
	t.logger.Debug("pop view", "depth", t.depth)
}

// Detach returns an independent depth-0 copy of the visible state.
// References are re-pointed at the copies of their targets.
func (t *Tree) Detach() *Tree {
	out := &Tree{
		vars:     dict.New[*Node](),
		arith:    t.arith,
		logger:   t.logger,
		maxIndex: t.maxIndex,
	}
	var refs []*Node
	t.vars.Walk(func(name string, n *Node) bool {
		c := &Node{name: name, tree: out, Meta: n.Meta}
		Clone(n, c, 0)
		out.vars.Insert(name, c)
		if c.Target() != nil {
			refs = append(refs, c)
		}
		return true
	})
	for _, c := range refs {
		target := c.Target().Root()
		if moved, ok := out.vars.Search(target.name); ok {
			c.val = RefValue{Target: moved}
		}
	}
	return out
}

// numeric evaluates s for the node called name.
func (t *Tree) numeric(name, s string) (float64, error) {
	v, err := t.numericValue(name, s)
	if err != nil {
		return 0, err
	}
	return asFloat(v), nil
}

func (t *Tree) numericValue(name, s string) (Value, error) {
	s = strings.Trim(s, " \t\n")
	if s == "" {
		return Int(0), nil
	}
	if v, ok := ParseNumber(s); ok {
		return v, nil
	}
	if t.evalDepth >= maxEvalDepth {
		return nil, newError(ErrCodeRecursion, name, "arithmetic recursion too deep")
	}
	t.evalDepth++
	defer func() { t.evalDepth-- }()
	v, err := t.arith.Eval(t, s)
	if err != nil {
		if CodeOf(err) != "" {
			return nil, err
		}
		return nil, newError(ErrCodeType, name, "%s: %v", s, err)
	}
	switch v.(type) {
	case Int, Num:
		return v, nil
	}
	return nil, newError(ErrCodeType, name, "%s: not numeric", s)
}

// literalArith accepts numeric literals and plain variable names.
type literalArith struct{}

func (literalArith) Eval(t *Tree, expr string) (Value, error) {
	expr = strings.Trim(expr, " \t\n")
	if v, ok := ParseNumber(expr); ok {
		return v, nil
	}
	if !validName(expr) {
		return nil, newError(ErrCodeType, "", "%q: arithmetic syntax error", expr)
	}
	n := t.Lookup(expr)
	if n == nil || n.IsNull() {
		return Int(0), nil
	}
	f, err := n.GetNumeric()
	if err != nil {
		return nil, err
	}
	if f == float64(int64(f)) {
		return Int(int64(f)), nil
	}
	return Num(f), nil
}

// ResolveNumber evaluates expr with the tree's evaluator. Exposed for
// evaluators that resolve identifiers recursively.
func (t *Tree) ResolveNumber(expr string) (Value, error) {
	return t.numericValue("", expr)
}
