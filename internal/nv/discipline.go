package nv

// Ownership records who releases a discipline record when its layer is popped.
type Ownership int

const (
	// Owned records belong to the chain; PopDiscipline hands them back to
	// the caller.
	Owned Ownership = iota

	// Borrowed records are shared or static; the chain never hands them out.
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}

// Discipline is an interception layer on a node.
// Behaviour comes from the optional capability interfaces below.
type Discipline interface {
	Name() string
}

// Getter overrides string retrieval.
type Getter interface {
	Get(n *Node, next *Layer) string
}

// Putter overrides assignment. Call next.Put to reach storage.
type Putter interface {
	Put(n *Node, v Value, flags PutFlags, next *Layer) error
}

// NumericGetter overrides numeric retrieval.
type NumericGetter interface {
	GetNumeric(n *Node, next *Layer) (float64, error)
}

// Iterator overrides advancing an array scan.
type Iterator interface {
	NextSub(n *Node, next *Layer) bool
}

// Cloner produces the record installed on a cloned node.
// Returning nil drops the layer from the clone.
type Cloner interface {
	Clone(src, dst *Node, flags CloneFlags) Discipline
}

// Creator overrides lookup-or-create of a child name under the node
// (compound names such as "rec.field").
type Creator interface {
	Create(n *Node, name string, flags LookupFlags, next *Layer) (*Node, error)
}

// Refresher is told when a node's contents were replaced without going
// through Put, as when a nested scope is restored.
type Refresher interface {
	Refresh(n *Node)
}

// Layer is one link of a node's discipline chain.
// Methods on a nil *Layer fall through to the node's storage, so a
// discipline may always delegate with next.Get(n) and friends.
type Layer struct {
	disc Discipline
	own  Ownership
	next *Layer
}

// Discipline returns the record held by l.
func (l *Layer) Discipline() Discipline { return l.disc }

// Ownership returns how l holds its record.
func (l *Layer) Ownership() Ownership { return l.own }

// Below returns the next older layer.
func (l *Layer) Below() *Layer { return l.next }

// Get dispatches to the first Getter at or below l.
func (l *Layer) Get(n *Node) string {
	for cur := l; cur != nil; cur = cur.next {
		if g, ok := cur.disc.(Getter); ok {
			return g.Get(n, cur.next)
		}
	}
	return n.storedString()
}

// Put dispatches to the first Putter at or below l.
func (l *Layer) Put(n *Node, v Value, flags PutFlags) error {
	for cur := l; cur != nil; cur = cur.next {
		if p, ok := cur.disc.(Putter); ok {
			return p.Put(n, v, flags, cur.next)
		}
	}
	return n.store(v, flags)
}

// GetNumeric dispatches to the first NumericGetter at or below l.
// Without one, a Getter's string result is evaluated arithmetically.
func (l *Layer) GetNumeric(n *Node) (float64, error) {
	for cur := l; cur != nil; cur = cur.next {
		if g, ok := cur.disc.(NumericGetter); ok {
			return g.GetNumeric(n, cur.next)
		}
		if g, ok := cur.disc.(Getter); ok {
			return n.tree.numeric(n.Name(), g.Get(n, cur.next))
		}
	}
	return n.storedNumeric()
}

// NextSub dispatches to the first Iterator at or below l.
func (l *Layer) NextSub(n *Node) bool {
	for cur := l; cur != nil; cur = cur.next {
		if it, ok := cur.disc.(Iterator); ok {
			return it.NextSub(n, cur.next)
		}
	}
	if a := ArrayOf(n); a != nil {
		return a.Next()
	}
	return false
}

// Create dispatches to the first Creator at or below l.
func (l *Layer) Create(n *Node, name string, flags LookupFlags) (*Node, error) {
	for cur := l; cur != nil; cur = cur.next {
		if c, ok := cur.disc.(Creator); ok {
			return c.Create(n, name, flags, cur.next)
		}
	}
	return n.tree.lookupFlat(n.Name()+"."+name, flags)
}

func (l *Layer) hasGetter() bool {
	for cur := l; cur != nil; cur = cur.next {
		if _, ok := cur.disc.(Getter); ok {
			return true
		}
	}
	return false
}

func (l *Layer) has(d Discipline) bool {
	for cur := l; cur != nil; cur = cur.next {
		if cur.disc == d {
			return true
		}
	}
	return false
}

func (l *Layer) hasCreator() bool {
	for cur := l; cur != nil; cur = cur.next {
		if _, ok := cur.disc.(Creator); ok {
			return true
		}
	}
	return false
}

// PushDiscipline installs d as the newest layer of n.
// Installing from inside a running discipline of n, or installing a record
// already in the chain, is refused.
func (n *Node) PushDiscipline(d Discipline, own Ownership) error {
	if n.busy {
		return newError(ErrCodeRecursion, n.name, "discipline %s installed while a discipline is running", d.Name())
	}
	if n.disc.has(d) {
		return newError(ErrCodeRecursion, n.name, "discipline %s already installed", d.Name())
	}
	n.disc = &Layer{disc: d, own: own, next: n.disc}
	return nil
}

// PopDiscipline removes the layer holding d.
// The record is returned with ok=true only when the layer owned it.
func (n *Node) PopDiscipline(d Discipline) (rec Discipline, ok bool) {
	var prev *Layer
	for cur := n.disc; cur != nil; prev, cur = cur, cur.next {
		if cur.disc != d {
			continue
		}
		if prev == nil {
			n.disc = cur.next
		} else {
			prev.next = cur.next
		}
		if cur.own == Owned {
			return cur.disc, true
		}
		return nil, false
	}
	return nil, false
}

// Disciplines returns the installed records, newest first.
func (n *Node) Disciplines() []Discipline {
	var out []Discipline
	for cur := n.disc; cur != nil; cur = cur.next {
		out = append(out, cur.disc)
	}
	return out
}

// Chain returns the newest layer, or nil.
func (n *Node) Chain() *Layer {
	return n.disc
}

// cloneChain copies a chain for dst. Owned records are re-created through
// Cloner when available and otherwise shared as Borrowed; Borrowed records
// stay Borrowed.
func cloneChain(src, dst *Node, flags CloneFlags) *Layer {
	var records []*Layer
	for cur := src.disc; cur != nil; cur = cur.next {
		records = append(records, cur)
	}
	var head *Layer
	for i := len(records) - 1; i >= 0; i-- {
		l := records[i]
		rec, own := l.disc, Borrowed
		if l.own == Owned {
			if c, ok := l.disc.(Cloner); ok {
				rec, own = c.Clone(src, dst, flags), Owned
			}
		}
		if rec == nil {
			continue
		}
		head = &Layer{disc: rec, own: own, next: head}
	}
	return head
}
