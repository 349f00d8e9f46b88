package nv

import "github.com/roach88/nvsh/internal/dict"

// defaultKey is the associative subscript addressed without a subscript.
const defaultKey = "0"

// assoc is the associative backend. When cloned as a view its dictionary
// reads through to the source's, and elements are copied into the local
// layer on first write.
type assoc struct {
	arrayBase
	d   *dict.Dict[*Node]
	cur string

	scanning bool
	started  bool
	scanKey  string
}

func newAssoc(holder *Node) *assoc {
	return &assoc{
		arrayBase: arrayBase{holder: holder},
		d:         dict.NewFunc[*Node](subscriptOrder),
		cur:       defaultKey,
	}
}

func (a *assoc) Kind() Attr { return AttrAssoc }

func (a *assoc) Len() int { return a.d.Len() }

func (a *assoc) Subscript() string { return a.cur }

func (a *assoc) Scanning() bool { return a.scanning }

func (a *assoc) SetSubscript(key string, flags SubFlags) error {
	switch {
	case flags&SubReset != 0:
		a.cur, a.scanning = defaultKey, false
		return nil
	case flags&SubScan != 0:
		a.scanning, a.started = true, false
		return nil
	}
	a.cur = key
	if flags&(SubAdd|SubFill) != 0 {
		_, err := a.Locate(Write)
		return err
	}
	return nil
}

func (a *assoc) Locate(mode Mode) (*Node, error) {
	if e := a.unshare(a.cur); e != nil || mode == Read {
		return e, nil
	}
	e := a.elem(a.cur)
	a.d.Insert(a.cur, e)
	return e, nil
}

// unshare returns the element at key, first copying it into the local layer
// if it is still visible only through the saved array's dictionary.
func (a *assoc) unshare(key string) *Node {
	if e, ok := a.d.SearchLocal(key); ok {
		return e
	}
	shared, ok := a.d.Search(key)
	if !ok {
		return nil
	}
	e := a.copyElem(shared)
	a.d.Insert(key, e)
	return e
}

func (a *assoc) Next() bool {
	var (
		key string
		ok  bool
	)
	if !a.scanning || !a.started {
		a.scanning, a.started = true, true
		key, ok = a.d.First()
	} else {
		key, ok = a.d.Next(a.scanKey)
	}
	if !ok {
		a.scanning, a.started, a.cur = false, false, defaultKey
		return false
	}
	a.scanKey, a.cur = key, key
	return true
}

func (a *assoc) Delete(key string) error {
	a.d.Delete(key)
	return nil
}

func (a *assoc) Subscripts() []string { return a.d.Keys() }

func (a *assoc) clone(holder *Node, flags CloneFlags) Array {
	c := &assoc{
		arrayBase: arrayBase{holder: holder},
		cur:       a.cur,
		scanning:  a.scanning,
		started:   a.started,
		scanKey:   a.scanKey,
	}
	if flags&CloneView != 0 {
		c.d = a.d.View()
		return c
	}
	c.d = dict.NewFunc[*Node](subscriptOrder)
	a.d.Walk(func(key string, e *Node) bool {
		ne := c.elem(key)
		Clone(e, ne, flags&^CloneMove)
		c.d.Insert(key, ne)
		return true
	})
	return c
}
