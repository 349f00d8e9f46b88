package nv

import (
	"strconv"
	"strings"
)

// fixed is the fixed-dimension backend: a flat cell buffer addressed by
// row-major strides. Subscripts are rendered "i,j,...".
type fixed struct {
	arrayBase
	dims    []int
	strides []int
	cells   []*Node
	shared  []bool
	cur     int

	scanning bool
	scanPos  int
}

func newFixed(holder *Node, dims []int) *fixed {
	f := &fixed{
		arrayBase: arrayBase{holder: holder},
		dims:      append([]int(nil), dims...),
		strides:   make([]int, len(dims)),
	}
	size := 1
	for i := len(dims) - 1; i >= 0; i-- {
		f.strides[i] = size
		size *= dims[i]
	}
	f.cells = make([]*Node, size)
	f.shared = make([]bool, size)
	return f
}

// Dims returns the declared bounds of a fixed array, or nil.
func Dims(a Array) []int {
	if f, ok := a.(*fixed); ok {
		return append([]int(nil), f.dims...)
	}
	return nil
}

func (f *fixed) Kind() Attr { return AttrFixed }

func (f *fixed) Len() int {
	n := 0
	for _, c := range f.cells {
		if c != nil {
			n++
		}
	}
	return n
}

func (f *fixed) Subscript() string { return f.format(f.cur) }

func (f *fixed) Scanning() bool { return f.scanning }

func (f *fixed) format(flat int) string {
	parts := make([]string, len(f.dims))
	for i, s := range f.strides {
		parts[i] = strconv.Itoa(flat / s)
		flat %= s
	}
	return strings.Join(parts, ",")
}

// offset parses "i,j,..." into a flat cell index. Missing trailing
// components are zero.
func (f *fixed) offset(key string) (int, error) {
	name := f.holder.FullName()
	parts := strings.Split(key, ",")
	if len(parts) > len(f.dims) {
		return 0, newError(ErrCodeSubscript, name+"["+key+"]", "too many subscripts for %d dimensions", len(f.dims))
	}
	flat := 0
	for i, p := range parts {
		v, err := evalIndex(f.tree(), name, strings.TrimSpace(p))
		if err != nil {
			return 0, err
		}
		if v < 0 || v >= f.dims[i] {
			return 0, newError(ErrCodeSubscript, name+"["+key+"]", "subscript %d out of range 0..%d", v, f.dims[i]-1)
		}
		flat += v * f.strides[i]
	}
	return flat, nil
}

func (f *fixed) SetSubscript(key string, flags SubFlags) error {
	switch {
	case flags&SubReset != 0:
		f.cur, f.scanning = 0, false
		return nil
	case flags&SubScan != 0:
		f.scanning, f.scanPos = true, -1
		return nil
	}
	off, err := f.offset(key)
	if err != nil {
		return err
	}
	f.cur = off
	if flags&(SubAdd|SubFill) != 0 {
		_, err = f.Locate(Write)
	}
	return err
}

func (f *fixed) Locate(mode Mode) (*Node, error) {
	c := f.unshare(f.cur)
	if c == nil && mode == Write {
		c = f.elem(f.format(f.cur))
		f.cells[f.cur] = c
	}
	return c, nil
}

func (f *fixed) unshare(off int) *Node {
	c := f.cells[off]
	if c != nil && f.shared[off] {
		c = f.copyElem(c)
		f.cells[off], f.shared[off] = c, false
	}
	return c
}

// Next walks cells in lexicographic multi-index order.
func (f *fixed) Next() bool {
	if !f.scanning {
		f.scanning, f.scanPos = true, -1
	}
	for j := f.scanPos + 1; j < len(f.cells); j++ {
		if f.cells[j] != nil {
			f.scanPos, f.cur = j, j
			return true
		}
	}
	f.scanning, f.cur = false, 0
	return false
}

func (f *fixed) Delete(key string) error {
	off, err := f.offset(key)
	if err != nil {
		return err
	}
	f.cells[off], f.shared[off] = nil, false
	return nil
}

func (f *fixed) Subscripts() []string {
	var out []string
	for i, c := range f.cells {
		if c != nil {
			out = append(out, f.format(i))
		}
	}
	return out
}

func (f *fixed) clone(holder *Node, flags CloneFlags) Array {
	c := newFixed(holder, f.dims)
	c.cur, c.scanning, c.scanPos = f.cur, f.scanning, f.scanPos
	for i, e := range f.cells {
		if e == nil {
			continue
		}
		if flags&CloneView != 0 {
			c.cells[i], c.shared[i] = e, true
			continue
		}
		ne := c.elem(e.name)
		Clone(e, ne, flags&^CloneMove)
		c.cells[i] = ne
	}
	return c
}
