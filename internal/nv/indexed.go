package nv

// ArrayIncrement is the block size indexed array capacity is rounded to.
const ArrayIncrement = 32

type slotFlag uint8

const (
	// slotChild marks an element that is itself an array.
	slotChild slotFlag = 1 << iota

	// slotNoFree marks an element shared with a journal snapshot; it is
	// copied before the first write.
	slotNoFree
)

// indexed is the dense backend: a slot vector with parallel flags.
type indexed struct {
	arrayBase
	slots []*Node
	flags []slotFlag
	count int
	cur   int

	scanning bool
	scanPos  int
}

func newIndexed(holder *Node) *indexed {
	return &indexed{arrayBase: arrayBase{holder: holder}}
}

func (a *indexed) Kind() Attr { return AttrIndexed }

func (a *indexed) Len() int { return a.count }

func (a *indexed) Subscript() string { return elementName(a.cur) }

func (a *indexed) Scanning() bool { return a.scanning }

func (a *indexed) SetSubscript(key string, flags SubFlags) error {
	if flags&SubReset != 0 {
		a.cur, a.scanning = 0, false
		return nil
	}
	if flags&SubScan != 0 {
		a.scanning, a.scanPos = true, -1
		return nil
	}
	i, err := a.index(key)
	if err != nil {
		return err
	}
	a.cur = i
	switch {
	case flags&SubFill != 0:
		if err := a.grow(i); err != nil {
			return err
		}
		for j := 0; j <= i; j++ {
			if a.slots[j] == nil {
				e := a.elem(elementName(j))
				e.val = Str("")
				a.slots[j] = e
				a.count++
			}
		}
	case flags&SubAdd != 0:
		if _, err := a.Locate(Write); err != nil {
			return err
		}
	}
	return nil
}

// index evaluates key; negative values count back from the end.
func (a *indexed) index(key string) (int, error) {
	name := a.holder.FullName()
	i, err := evalIndex(a.tree(), name, key)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += a.top() + 1
		if i < 0 {
			return 0, newError(ErrCodeSubscript, name+"["+key+"]", "subscript out of range")
		}
	}
	if i >= a.tree().maxIndex {
		return 0, newError(ErrCodeSubscript, name+"["+key+"]", "subscript out of range (max %d)", a.tree().maxIndex-1)
	}
	return i, nil
}

// top returns the highest populated index, or -1.
func (a *indexed) top() int {
	for i := len(a.slots) - 1; i >= 0; i-- {
		if a.slots[i] != nil {
			return i
		}
	}
	return -1
}

// grow makes room for index i: capacity at least doubles, is rounded up to
// ArrayIncrement and never exceeds the tree's cap.
func (a *indexed) grow(i int) error {
	if i < len(a.slots) {
		return nil
	}
	limit := a.tree().maxIndex
	if i >= limit {
		return newError(ErrCodeSubscript, a.holder.FullName(), "subscript %d out of range (max %d)", i, limit-1)
	}
	size := 2 * len(a.slots)
	if size < i+1 {
		size = i + 1
	}
	size = (size + ArrayIncrement - 1) / ArrayIncrement * ArrayIncrement
	if size > limit {
		size = limit
	}
	slots := make([]*Node, size)
	flags := make([]slotFlag, size)
	copy(slots, a.slots)
	copy(flags, a.flags)
	a.slots, a.flags = slots, flags
	return nil
}

func (a *indexed) Locate(mode Mode) (*Node, error) {
	i := a.cur
	if mode == Read {
		if i >= len(a.slots) {
			return nil, nil
		}
		return a.unshare(i), nil
	}
	if err := a.grow(i); err != nil {
		return nil, err
	}
	e := a.slots[i]
	switch {
	case e == nil:
		e = a.elem(elementName(i))
		a.slots[i], a.flags[i] = e, 0
		a.count++
	case a.flags[i]&slotNoFree != 0:
		e = a.unshare(i)
	}
	return e, nil
}

// unshare replaces a slot still borrowed from a saved array with a private
// copy and returns it.
func (a *indexed) unshare(i int) *Node {
	e := a.slots[i]
	if e != nil && a.flags[i]&slotNoFree != 0 {
		e = a.copyElem(e)
		a.slots[i] = e
		a.flags[i] &^= slotNoFree
	}
	return e
}

func (a *indexed) Next() bool {
	if !a.scanning {
		a.scanning, a.scanPos = true, -1
	}
	for j := a.scanPos + 1; j < len(a.slots); j++ {
		if a.slots[j] != nil {
			a.scanPos, a.cur = j, j
			return true
		}
	}
	a.scanning, a.cur = false, 0
	return false
}

func (a *indexed) Delete(key string) error {
	i, err := a.index(key)
	if err != nil {
		return err
	}
	if i < len(a.slots) && a.slots[i] != nil {
		a.slots[i], a.flags[i] = nil, 0
		a.count--
	}
	return nil
}

func (a *indexed) Subscripts() []string {
	out := make([]string, 0, a.count)
	for i, e := range a.slots {
		if e != nil {
			out = append(out, elementName(i))
		}
	}
	return out
}

func (a *indexed) markChild() {
	if a.cur < len(a.flags) {
		a.flags[a.cur] |= slotChild
	}
}

func (a *indexed) clone(holder *Node, flags CloneFlags) Array {
	c := &indexed{
		arrayBase: arrayBase{holder: holder},
		slots:     make([]*Node, len(a.slots)),
		flags:     make([]slotFlag, len(a.flags)),
		count:     a.count,
		cur:       a.cur,
		scanning:  a.scanning,
		scanPos:   a.scanPos,
	}
	for i, e := range a.slots {
		if e == nil {
			continue
		}
		if flags&CloneView != 0 {
			c.slots[i] = e
			c.flags[i] = a.flags[i] | slotNoFree
			continue
		}
		ne := c.elem(e.name)
		Clone(e, ne, flags&^CloneMove)
		c.slots[i] = ne
		c.flags[i] = a.flags[i] &^ slotNoFree
	}
	return c
}
