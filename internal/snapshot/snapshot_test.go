package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nvsh/internal/nv"
)

func set(t *testing.T, tr *nv.Tree, name, value string) *nv.Node {
	t.Helper()
	n, err := tr.LookupOrCreate(name, nv.Create|nv.ArrayContext|nv.Assign)
	require.NoError(t, err)
	require.NoError(t, n.Put(nv.Str(value), 0))
	return n
}

func sampleTree(t *testing.T) *nv.Tree {
	t.Helper()
	tr := nv.NewTree()
	set(t, tr, "x", "hello")
	n := set(t, tr, "n", "5")
	require.NoError(t, tr.SetAttr(n, nv.AttrInteger))
	set(t, tr, "a[0]", "a")
	set(t, tr, "a[2]", "c")
	return tr
}

func TestTakeCanonical(t *testing.T) {
	s := Take(sampleTree(t))
	got, err := s.Canonical()
	require.NoError(t, err)

	want := `{"vars":[` +
		`{"attrs":"-a","elements":[{"sub":"0","value":"a"},{"sub":"2","value":"c"}],"kind":"indexed","name":"a"},` +
		`{"attrs":"-i","kind":"integer","name":"n","value":"5"},` +
		`{"kind":"string","name":"x","value":"hello"}]}`
	assert.Equal(t, want, string(got))
}

func TestTakeKinds(t *testing.T) {
	tr := nv.NewTree()
	target := set(t, tr, "target", "v")
	r, err := tr.LookupOrCreate("r", nv.Create)
	require.NoError(t, err)
	require.NoError(t, tr.SetRef(r, target))

	g, err := tr.LookupOrCreate("g", nv.Create)
	require.NoError(t, err)
	require.NoError(t, tr.DeclareFixed(g, 2, 3))
	set(t, tr, "g[1][2]", "corner")

	m, err := tr.LookupOrCreate("m", nv.Create)
	require.NoError(t, err)
	require.NoError(t, tr.SetAttr(m, nv.AttrAssoc))
	set(t, tr, "m[k]", "v")

	f := set(t, tr, "f", "1.5")
	require.NoError(t, tr.SetAttr(f, nv.AttrFloat))

	d, err := tr.LookupOrCreate("d", nv.Create)
	require.NoError(t, err)
	require.NoError(t, tr.SetAttr(d, nv.AttrExport))

	s := Take(tr)
	kinds := map[string]string{}
	for _, v := range s.Vars {
		kinds[v.Name] = v.Kind
	}
	assert.Equal(t, map[string]string{
		"d": KindDeclared, "f": KindFloat, "g": KindFixed, "m": KindAssoc,
		"r": KindRef, "target": KindString,
	}, kinds)

	rv, ok := s.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, "target", rv.Value)

	gv, _ := s.Lookup("g")
	assert.Equal(t, []int{2, 3}, gv.Dims)
	require.Len(t, gv.Elements, 1)
	assert.Equal(t, Element{Sub: "1,2", Value: "corner"}, gv.Elements[0])

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestTakeSkipsGetterOnly(t *testing.T) {
	tr := nv.NewTree()
	n, err := tr.LookupOrCreate("SECONDS", nv.Create)
	require.NoError(t, err)
	require.NoError(t, n.PushDiscipline(constGet("12"), nv.Borrowed))
	assert.Empty(t, Take(tr).Vars)
}

type constGet string

func (constGet) Name() string                    { return "const" }
func (c constGet) Get(*nv.Node, *nv.Layer) string { return string(c) }

func TestHash(t *testing.T) {
	a, err := Take(sampleTree(t)).Hash()
	require.NoError(t, err)
	b, err := Take(sampleTree(t)).Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	tr := sampleTree(t)
	set(t, tr, "x", "changed")
	c, err := Take(tr).Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	assert.NotEqual(t, HashBytes([]byte("{}")), HashBytes([]byte("{} ")))
}

func TestParseRoundTrip(t *testing.T) {
	s := Take(sampleTree(t))
	data, err := s.Canonical()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)

	empty, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, empty.Vars)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}
