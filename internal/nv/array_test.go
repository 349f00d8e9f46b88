package nv

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct{ sub, val string }

func scan(n *Node) []pair {
	var out []pair
	Each(n, func(sub string, elem *Node) bool {
		out = append(out, pair{sub, elem.Get()})
		return true
	})
	return out
}

func TestSparseIndexedScan(t *testing.T) {
	tr := NewTree()
	set(t, tr, "a[0]", "x")
	set(t, tr, "a[5]", "y")

	a := mustNode(t, tr, "a")
	assert.True(t, a.Has(AttrIndexed))
	assert.Equal(t, 2, ArrayOf(a).Len())
	assert.Equal(t, []pair{{"0", "x"}, {"5", "y"}}, scan(a))
	assert.Equal(t, "x", tr.Lookup("a[0]").Get())
}

func TestScalarPromotesToElementZero(t *testing.T) {
	tr := NewTree()
	set(t, tr, "v", "first")
	set(t, tr, "v[2]", "third")

	v := mustNode(t, tr, "v")
	assert.Equal(t, []pair{{"0", "first"}, {"2", "third"}}, scan(v))
	assert.Equal(t, "first", v.Get(), "default cursor is element 0")
}

func TestGrowthPreservesData(t *testing.T) {
	tr := NewTree()
	for i := 0; i < 4; i++ {
		set(t, tr, "a["+strconv.Itoa(i)+"]", "v"+strconv.Itoa(i))
	}
	a := mustNode(t, tr, "a")
	ix := ArrayOf(a).(*indexed)
	require.Len(t, ix.slots, ArrayIncrement)

	set(t, tr, "a[100]", "far")
	assert.Len(t, ix.slots, 128, "grown to the needed index rounded up")

	set(t, tr, "a[200]", "farther")
	assert.Len(t, ix.slots, 256, "doubled")

	for i := 0; i < 4; i++ {
		assert.Equal(t, "v"+strconv.Itoa(i), tr.Lookup("a["+strconv.Itoa(i)+"]").Get())
	}
	assert.Equal(t, "far", tr.Lookup("a[100]").Get())
	assert.Equal(t, 6, ix.Len())
}

func TestGrowthStopsAtCap(t *testing.T) {
	tr := NewTree(WithMaxIndex(40))
	set(t, tr, "a[39]", "last")
	ix := ArrayOf(mustNode(t, tr, "a")).(*indexed)
	assert.Len(t, ix.slots, 40)

	_, err := tr.LookupOrCreate("a[40]", Create|ArrayContext|Assign)
	require.Error(t, err)
	assert.True(t, IsSubscriptError(err))
	assert.Equal(t, "last", tr.Lookup("a[39]").Get())
}

func TestLocateReadIsStable(t *testing.T) {
	tr := NewTree()
	set(t, tr, "a[3]", "v")
	a := ArrayOf(mustNode(t, tr, "a"))
	require.NoError(t, a.SetSubscript("3", 0))

	first, err := a.Locate(Read)
	require.NoError(t, err)
	second, err := a.Locate(Read)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, a.SetSubscript("7", 0))
	missing, err := a.Locate(Read)
	require.NoError(t, err)
	assert.Nil(t, missing, "read never creates")
	assert.Equal(t, 1, a.Len())
}

func TestNegativeSubscriptCountsFromEnd(t *testing.T) {
	tr := NewTree()
	set(t, tr, "a[0]", "first")
	set(t, tr, "a[4]", "last")
	assert.Equal(t, "last", tr.Lookup("a[-1]").Get())

	_, err := tr.LookupOrCreate("a[-9]", LookupOnly|ArrayContext)
	assert.True(t, IsSubscriptError(err))
}

func TestArithmeticSubscript(t *testing.T) {
	tr := NewTree()
	set(t, tr, "i", "2")
	set(t, tr, "a[i]", "two")
	assert.Equal(t, "two", tr.Lookup("a[2]").Get())
}

func TestSubFillPlaceholders(t *testing.T) {
	tr := NewTree()
	a := mustNode(t, tr, "a")
	arr := promote(a, AttrIndexed)
	require.NoError(t, arr.SetSubscript("3", SubFill))
	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, []string{"0", "1", "2", "3"}, arr.Subscripts())
}

func TestScanToleratesInterleavedSubscripts(t *testing.T) {
	tr := NewTree()
	for i := 0; i < 5; i++ {
		set(t, tr, "a["+strconv.Itoa(i)+"]", strconv.Itoa(i))
	}
	a := ArrayOf(mustNode(t, tr, "a"))

	require.NoError(t, a.SetSubscript("", SubScan))
	assert.True(t, a.Scanning())
	var seen []string
	for a.Next() {
		sub := a.Subscript()
		seen = append(seen, sub)
		if sub == "1" {
			require.NoError(t, a.SetSubscript("3", 0))
			_, _ = a.Locate(Read)
			require.NoError(t, a.Delete("3"))
			require.NoError(t, a.SetSubscript("7", SubAdd))
			require.NoError(t, a.SetSubscript("0", 0))
		}
	}
	assert.Equal(t, []string{"0", "1", "2", "4", "7"}, seen)
	assert.False(t, a.Scanning())
	assert.Equal(t, "0", a.Subscript(), "end of scan resets the cursor")
}

func TestScanTerminatesOnEmptyArray(t *testing.T) {
	tr := NewTree()
	a := promote(mustNode(t, tr, "a"), AttrIndexed)
	require.NoError(t, a.SetSubscript("", SubScan))
	assert.False(t, a.Next())
	assert.False(t, a.Scanning())
}

func TestConvertToAssociativeRoundTrip(t *testing.T) {
	tr := NewTree()
	for _, i := range []int{0, 2, 5, 10, 11} {
		set(t, tr, "a["+strconv.Itoa(i)+"]", "v"+strconv.Itoa(i))
	}
	a := mustNode(t, tr, "a")
	before := scan(a)

	require.NoError(t, ConvertToAssociative(a))
	assert.True(t, a.Has(AttrAssoc))
	assert.False(t, a.Has(AttrIndexed))
	assert.Equal(t, AttrAssoc, ArrayOf(a).Kind())
	assert.Equal(t, before, scan(a))

	set(t, tr, "a[key]", "text")
	assert.Equal(t, "text", tr.Lookup("a[key]").Get())
	assert.Equal(t, []string{"0", "2", "5", "10", "11", "key"}, ArrayOf(a).Subscripts())
}

func TestConvertRejectsOtherKinds(t *testing.T) {
	tr := NewTree()
	f := mustNode(t, tr, "f")
	require.NoError(t, tr.DeclareFixed(f, 2))
	assert.True(t, IsTypeError(ConvertToAssociative(f)))

	s := set(t, tr, "s", "scalar")
	assert.True(t, IsTypeError(ConvertToAssociative(s)))
}

func TestSetAttrAssocWrapsScalar(t *testing.T) {
	tr := NewTree()
	n := set(t, tr, "m", "zero")
	require.NoError(t, tr.SetAttr(n, AttrAssoc))
	assert.Equal(t, []pair{{"0", "zero"}}, scan(n))

	assert.True(t, IsTypeError(tr.SetAttr(n, AttrIndexed)))
}

func TestAssocViewShadowsParent(t *testing.T) {
	tr := NewTree()
	src := mustNode(t, tr, "colors")
	require.NoError(t, tr.SetAttr(src, AttrAssoc))
	set(t, tr, "colors[red]", "ff0000")
	set(t, tr, "colors[green]", "00ff00")

	view := tr.NewDetached("colors")
	Clone(src, view, CloneView)
	av := ArrayOf(view)

	require.NoError(t, av.SetSubscript("red", SubAdd))
	require.NoError(t, view.Put(Str("f00"), 0))
	require.NoError(t, av.SetSubscript("blue", SubAdd))
	require.NoError(t, view.Put(Str("00f"), 0))
	require.NoError(t, av.Delete("green"))

	assert.Equal(t, []pair{{"blue", "00f"}, {"red", "f00"}}, scan(view))
	assert.Equal(t, []pair{{"green", "00ff00"}, {"red", "ff0000"}}, scan(src), "parent untouched")
}

func TestIndexedViewCopiesOnWrite(t *testing.T) {
	tr := NewTree()
	set(t, tr, "a[0]", "x")
	set(t, tr, "a[1]", "y")
	src := mustNode(t, tr, "a")

	view := tr.NewDetached("a")
	Clone(src, view, CloneView)
	va := ArrayOf(view)
	require.NoError(t, va.SetSubscript("1", 0))
	require.NoError(t, view.Put(Str("changed"), 0))

	assert.Equal(t, []pair{{"0", "x"}, {"1", "changed"}}, scan(view))
	assert.Equal(t, []pair{{"0", "x"}, {"1", "y"}}, scan(src))
	assert.Same(t, OpenCurrent(src), ArrayOf(src).(*indexed).slots[0])
}

func TestFixedArray(t *testing.T) {
	tr := NewTree()
	g := mustNode(t, tr, "g")
	require.NoError(t, tr.DeclareFixed(g, 2, 3))
	assert.True(t, g.Has(AttrFixed))
	assert.Equal(t, []int{2, 3}, Dims(ArrayOf(g)))

	set(t, tr, "g[1][2]", "corner")
	set(t, tr, "g[0][1]", "top")
	assert.Equal(t, []pair{{"0,1", "top"}, {"1,2", "corner"}}, scan(g))
	assert.Equal(t, "corner", tr.Lookup("g[1][2]").Get())

	_, err := tr.LookupOrCreate("g[2][0]", Create|ArrayContext|Assign)
	assert.True(t, IsSubscriptError(err))
	_, err = tr.LookupOrCreate("g[0][3]", Create|ArrayContext|Assign)
	assert.True(t, IsSubscriptError(err))
	_, err = tr.LookupOrCreate("g[0][0][0]", Create|ArrayContext|Assign)
	assert.True(t, IsSubscriptError(err))
}

func TestFixedKeepsScalarAtOrigin(t *testing.T) {
	tr := NewTree()
	g := set(t, tr, "g", "seed")
	require.NoError(t, tr.DeclareFixed(g, 2, 2))
	assert.Equal(t, []pair{{"0,0", "seed"}}, scan(g))
}

func TestDeclareFixedTooLargeIsFatal(t *testing.T) {
	tr := NewTree(WithMaxIndex(100))
	g := mustNode(t, tr, "g")
	err := func() (err error) {
		defer RecoverFatal(&err)
		return tr.DeclareFixed(g, 20, 20)
	}()
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FatalAllocation, fe.Code)
}

func TestUnsetElement(t *testing.T) {
	tr := NewTree()
	set(t, tr, "a[0]", "x")
	set(t, tr, "a[1]", "y")
	a := mustNode(t, tr, "a")

	require.NoError(t, tr.UnsetElement(a, "0"))
	assert.Equal(t, []pair{{"1", "y"}}, scan(a))

	elem := ArrayOf(a).(*indexed).slots[1]
	require.NoError(t, tr.Unset(elem))
	assert.Empty(t, scan(a))
}

func TestNestedSubscripts(t *testing.T) {
	tr := NewTree()
	set(t, tr, "m[1][2]", "deep")
	m := mustNode(t, tr, "m")
	ix := ArrayOf(m).(*indexed)
	require.NotNil(t, ix.slots[1])
	assert.True(t, ix.slots[1].IsArray())
	assert.NotZero(t, ix.flags[1]&slotChild)
	assert.Equal(t, "deep", tr.Lookup("m[1][2]").Get())
	assert.Equal(t, "m[1][2]", ArrayOf(ix.slots[1]).(*indexed).slots[2].FullName())
	assert.Nil(t, tr.Lookup("m[3][0]"))
}

func TestSubscriptOrder(t *testing.T) {
	keys := []string{"b", "10", "2", "a", "02", "0"}
	tr := NewTree()
	m := promote(mustNode(t, tr, "m"), AttrAssoc)
	for _, k := range keys {
		require.NoError(t, m.SetSubscript(k, SubAdd))
	}
	assert.Equal(t, []string{"0", "2", "10", "02", "a", "b"}, m.Subscripts())
}

// saveJournal snapshots a node on its first write and puts it back on
// restore, the way a scope does.
type saveJournal struct {
	order []*Node
	saved map[*Node]*Node
}

func newSaveJournal() *saveJournal {
	return &saveJournal{saved: make(map[*Node]*Node)}
}

func (j *saveJournal) BeforeWrite(n *Node, kind WriteKind) {
	if _, ok := j.saved[n]; ok {
		return
	}
	j.order = append(j.order, n)
	j.saved[n] = Save(n, kind == WriteUnset)
}

func (j *saveJournal) restore() {
	for _, n := range j.order {
		Restore(n, j.saved[n])
	}
	j.order, j.saved = nil, make(map[*Node]*Node)
}

var arrayKinds = []struct {
	name    string
	declare func(t *testing.T, tr *Tree, a *Node)
}{
	{"indexed", func(t *testing.T, tr *Tree, a *Node) { require.NoError(t, tr.SetAttr(a, AttrIndexed)) }},
	{"assoc", func(t *testing.T, tr *Tree, a *Node) { require.NoError(t, tr.SetAttr(a, AttrAssoc)) }},
	{"fixed", func(t *testing.T, tr *Tree, a *Node) { require.NoError(t, tr.DeclareFixed(a, 2)) }},
}

func TestReadHandsOutPrivateElements(t *testing.T) {
	for _, kind := range arrayKinds {
		t.Run(kind.name, func(t *testing.T) {
			tr := NewTree()
			a := mustNode(t, tr, "a")
			kind.declare(t, tr, a)
			set(t, tr, "a[0]", "x")
			set(t, tr, "a[1]", "y")

			j := newSaveJournal()
			tr.SetJournal(j)
			set(t, tr, "a[0]", "w")

			require.NoError(t, ArrayOf(a).SetSubscript("1", 0))
			elem := OpenCurrent(a)
			require.NotNil(t, elem)
			assert.Same(t, a, elem.Owner(), "the element belongs to the live array")
			require.NoError(t, elem.Put(Str("z"), 0))
			assert.Equal(t, []pair{{"0", "w"}, {"1", "z"}}, scan(a))
			assert.Len(t, j.order, 1, "only the live variable is journaled")

			j.restore()
			assert.Equal(t, []pair{{"0", "x"}, {"1", "y"}}, scan(a))
		})
	}
}

func TestPutFollowsJournaledArray(t *testing.T) {
	for _, kind := range arrayKinds {
		t.Run(kind.name, func(t *testing.T) {
			tr := NewTree()
			a := mustNode(t, tr, "a")
			kind.declare(t, tr, a)
			set(t, tr, "a[0]", "x")
			set(t, tr, "a[1]", "y")

			j := newSaveJournal()
			tr.SetJournal(j)
			Each(a, func(_ string, elem *Node) bool {
				require.NoError(t, elem.Put(Str("z"), 0))
				return true
			})
			assert.Equal(t, []pair{{"0", "z"}, {"1", "z"}}, scan(a))
			assert.Len(t, j.order, 1)

			j.restore()
			assert.Equal(t, []pair{{"0", "x"}, {"1", "y"}}, scan(a))
		})
	}
}

func TestReshapeReachesSharedElements(t *testing.T) {
	for _, kind := range arrayKinds {
		t.Run(kind.name, func(t *testing.T) {
			tr := NewTree()
			a := mustNode(t, tr, "a")
			kind.declare(t, tr, a)
			set(t, tr, "a[0]", "x")
			set(t, tr, "a[1]", "y")

			j := newSaveJournal()
			tr.SetJournal(j)
			require.NoError(t, tr.SetAttr(a, AttrUpper))
			assert.Equal(t, []pair{{"0", "X"}, {"1", "Y"}}, scan(a))

			j.restore()
			assert.False(t, a.Has(AttrUpper))
			assert.Equal(t, []pair{{"0", "x"}, {"1", "y"}}, scan(a))
		})
	}
}

func TestUnsetElementUnderJournal(t *testing.T) {
	for _, kind := range arrayKinds {
		t.Run(kind.name, func(t *testing.T) {
			tr := NewTree()
			a := mustNode(t, tr, "a")
			kind.declare(t, tr, a)
			set(t, tr, "a[0]", "x")
			set(t, tr, "a[1]", "y")

			j := newSaveJournal()
			tr.SetJournal(j)
			require.NoError(t, tr.UnsetElement(a, "1"))
			assert.Equal(t, []pair{{"0", "x"}}, scan(a))

			j.restore()
			assert.Equal(t, []pair{{"0", "x"}, {"1", "y"}}, scan(a))
		})
	}
}

func TestConvertUnderJournalCopiesElements(t *testing.T) {
	tr := NewTree()
	set(t, tr, "a[0]", "x")
	set(t, tr, "a[1]", "y")
	a := mustNode(t, tr, "a")

	j := newSaveJournal()
	tr.SetJournal(j)
	require.NoError(t, ConvertToAssociative(a))
	set(t, tr, "a[0]", "changed")
	assert.True(t, a.Has(AttrAssoc))
	assert.Equal(t, []pair{{"0", "changed"}, {"1", "y"}}, scan(a))

	j.restore()
	assert.True(t, a.Has(AttrIndexed))
	assert.Equal(t, []pair{{"0", "x"}, {"1", "y"}}, scan(a))
}
