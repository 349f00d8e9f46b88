package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/nvsh/internal/nv"
)

// Domain separates snapshot hashes from any other content hash.
const Domain = "nvsh/snapshot/v1"

// Kinds of Var.
const (
	KindString   = "string"
	KindInteger  = "integer"
	KindFloat    = "float"
	KindIndexed  = "indexed"
	KindAssoc    = "assoc"
	KindFixed    = "fixed"
	KindRef      = "ref"
	KindDeclared = "declared"
)

// Snapshot is the visible variables of a tree in name order.
type Snapshot struct {
	Vars []Var `json:"vars"`
}

// Var is one top-level variable.
type Var struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Attrs    string    `json:"attrs,omitempty"`
	Value    string    `json:"value,omitempty"`
	Dims     []int     `json:"dims,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Element is one array element. Nested arrays carry Elements instead of a
// Value.
type Element struct {
	Sub      string    `json:"sub"`
	Value    string    `json:"value,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Take captures t. Only stored values are read.
func Take(t *nv.Tree) *Snapshot {
	s := &Snapshot{Vars: []Var{}}
	t.Walk(func(n *nv.Node) bool {
		if n.Value() == nil && n.Attr() == 0 {
			return true
		}
		s.Vars = append(s.Vars, capture(n))
		return true
	})
	return s
}

func capture(n *nv.Node) Var {
	v := Var{Name: n.Name(), Attrs: n.Attr().String()}
	switch val := n.Value().(type) {
	case nil:
		v.Kind = KindDeclared
	case nv.RefValue:
		v.Kind = KindRef
		if val.Target != nil {
			v.Value = val.Target.FullName()
		}
	case nv.ArrayValue:
		switch {
		case n.Has(nv.AttrFixed):
			v.Kind = KindFixed
			v.Dims = nv.Dims(val.Array)
		case n.Has(nv.AttrAssoc):
			v.Kind = KindAssoc
		default:
			v.Kind = KindIndexed
		}
		v.Elements = elements(n)
	case nv.Int:
		v.Kind, v.Value = KindInteger, val.String()
	case nv.Num:
		v.Kind, v.Value = KindFloat, val.String()
	default:
		v.Kind, v.Value = KindString, val.String()
	}
	return v
}

func elements(n *nv.Node) []Element {
	var out []Element
	nv.Each(n, func(sub string, elem *nv.Node) bool {
		e := Element{Sub: sub}
		if elem.IsArray() {
			e.Elements = elements(elem)
		} else if elem.Value() != nil {
			e.Value = elem.Value().String()
		}
		out = append(out, e)
		return true
	})
	return out
}

// Lookup returns the variable called name.
func (s *Snapshot) Lookup(name string) (Var, bool) {
	for _, v := range s.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return Var{}, false
}

// Canonical returns the canonical JSON encoding of s.
func (s *Snapshot) Canonical() ([]byte, error) {
	vars := make([]any, len(s.Vars))
	for i, v := range s.Vars {
		vars[i] = v.toMap()
	}
	return MarshalCanonical(map[string]any{"vars": vars})
}

func (v Var) toMap() map[string]any {
	m := map[string]any{"name": v.Name, "kind": v.Kind}
	if v.Attrs != "" {
		m["attrs"] = v.Attrs
	}
	if v.Value != "" {
		m["value"] = v.Value
	}
	if len(v.Dims) > 0 {
		dims := make([]any, len(v.Dims))
		for i, d := range v.Dims {
			dims[i] = d
		}
		m["dims"] = dims
	}
	if len(v.Elements) > 0 {
		m["elements"] = elementMaps(v.Elements)
	}
	return m
}

func elementMaps(elems []Element) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		m := map[string]any{"sub": e.Sub}
		if e.Value != "" {
			m["value"] = e.Value
		}
		if len(e.Elements) > 0 {
			m["elements"] = elementMaps(e.Elements)
		}
		out[i] = m
	}
	return out
}

// Hash returns the content hash of s.
func (s *Snapshot) Hash() (string, error) {
	data, err := s.Canonical()
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes hashes canonical snapshot bytes with the snapshot domain.
func HashBytes(canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(Domain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// Parse decodes a snapshot from JSON, canonical or not.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if s.Vars == nil {
		s.Vars = []Var{}
	}
	return &s, nil
}
