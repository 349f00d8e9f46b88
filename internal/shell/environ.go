package shell

import (
	"slices"

	"github.com/roach88/nvsh/internal/nv"
)

type environ struct {
	valid  bool
	names  map[string]bool
	list   []string
	builds int
}

func (s *Shell) changed(n *nv.Node) {
	if n.Has(nv.AttrExport) || s.env.names[n.Name()] {
		s.env.valid = false
	}
}

// Environ returns the exported variables as sorted "NAME=value" pairs. An
// exported array contributes its element 0.
func (s *Shell) Environ() []string {
	if s.env.valid {
		return slices.Clone(s.env.list)
	}
	names := make(map[string]bool)
	var list []string
	s.tree.Walk(func(n *nv.Node) bool {
		if !n.Has(nv.AttrExport) || n.IsNull() {
			return true
		}
		v := n.Get()
		if n.IsArray() {
			elem := s.tree.Lookup(n.Name() + "[0]")
			if elem == nil {
				return true
			}
			v = elem.Get()
		}
		names[n.Name()] = true
		list = append(list, n.Name()+"="+v)
		return true
	})
	s.env.names, s.env.list, s.env.valid = names, list, true
	s.env.builds++
	return slices.Clone(list)
}
