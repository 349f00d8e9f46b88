package shell

import (
	"strconv"

	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/subshell"
)

// pathDiscipline keeps the command path cache in step with PATH, both on
// assignment and when a scope restores the old value.
type pathDiscipline struct {
	cache *PathCache
	node  *nv.Node
}

func (d *pathDiscipline) Name() string { return "PATH" }

func (d *pathDiscipline) Put(n *nv.Node, v nv.Value, flags nv.PutFlags, next *nv.Layer) error {
	if err := next.Put(n, v, flags); err != nil {
		return err
	}
	d.cache.Reset(n.Get())
	return nil
}

func (d *pathDiscipline) Refresh(n *nv.Node) {
	d.cache.Reset(n.Get())
}

// randomDiscipline makes RANDOM a generator over the ambient seed.
// Assigning seeds it.
type randomDiscipline struct {
	amb *subshell.Ambient
}

const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

func (d *randomDiscipline) Name() string { return "RANDOM" }

func (d *randomDiscipline) Get(*nv.Node, *nv.Layer) string {
	d.amb.Seed = d.amb.Seed*lcgMultiplier + lcgIncrement
	return strconv.FormatUint((d.amb.Seed>>33)%32768, 10)
}

func (d *randomDiscipline) Put(n *nv.Node, v nv.Value, _ nv.PutFlags, _ *nv.Layer) error {
	num, err := n.Tree().ResolveNumber(v.String())
	if err != nil {
		return err
	}
	switch x := num.(type) {
	case nv.Int:
		d.amb.Seed = uint64(x)
	case nv.Num:
		d.amb.Seed = uint64(int64(x))
	}
	return nil
}

func (s *Shell) installSpecials() error {
	if err := s.installPath(); err != nil {
		return err
	}
	random, err := s.tree.LookupOrCreate("RANDOM", nv.Create|nv.NoRef)
	if err != nil {
		return err
	}
	dropLayers[*randomDiscipline](random)
	s.randomDisc = &randomDiscipline{amb: s.ambient}
	return random.PushDiscipline(s.randomDisc, nv.Borrowed)
}

// installPath hooks the command path cache to PATH. Unlike RANDOM, PATH
// keeps this hook when it is unset, so it is installed again afterwards.
func (s *Shell) installPath() error {
	path, err := s.tree.LookupOrCreate("PATH", nv.Create|nv.NoRef)
	if err != nil {
		return err
	}
	dropLayers[*pathDiscipline](path)
	s.pathDisc = &pathDiscipline{cache: s.paths, node: path}
	if err := path.PushDiscipline(s.pathDisc, nv.Borrowed); err != nil {
		return err
	}
	s.paths.Reset(path.Get())
	return nil
}

// dropLayers removes every layer of type T, such as the ones a forked tree
// inherits from its parent shell.
func dropLayers[T nv.Discipline](n *nv.Node) {
	for _, d := range n.Disciplines() {
		if _, ok := d.(T); ok {
			n.PopDiscipline(d)
		}
	}
}
