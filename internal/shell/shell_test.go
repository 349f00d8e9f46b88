package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/subshell"
)

func fakeLookPath(bins map[string][]string) func(dir, name string) bool {
	return func(dir, name string) bool {
		for _, b := range bins[dir] {
			if b == name {
				return true
			}
		}
		return false
	}
}

func newShell(t *testing.T, opts ...Option) *Shell {
	t.Helper()
	sh, err := New(opts...)
	require.NoError(t, err)
	return sh
}

func get(t *testing.T, sh *Shell, name string) string {
	t.Helper()
	v, ok := sh.Get(name)
	require.True(t, ok, "%s is not set", name)
	return v
}

func TestScopedVariableVanishes(t *testing.T) {
	sh := newShell(t)
	err := sh.Subshell(func(sub *Shell) error {
		return sub.Set("FOO", "bar")
	})
	require.NoError(t, err)
	_, ok := sh.Get("FOO")
	assert.False(t, ok)
}

func TestSubshellRestoresPath(t *testing.T) {
	sh := newShell(t, WithLookPath(fakeLookPath(map[string][]string{
		"/bin":     {"ls"},
		"/opt/bin": {"tool"},
	})))
	require.NoError(t, sh.Set("PATH", "/bin"))
	p, ok := sh.Paths().Lookup("ls")
	require.True(t, ok)
	assert.Equal(t, "/bin/ls", p)

	err := sh.Subshell(func(sub *Shell) error {
		if err := sub.Set("PATH", "/opt/bin"); err != nil {
			return err
		}
		p, ok := sub.Paths().Lookup("tool")
		assert.True(t, ok)
		assert.Equal(t, "/opt/bin/tool", p)
		_, ok = sub.Paths().Lookup("ls")
		assert.False(t, ok, "the cache followed the new PATH")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "/bin", get(t, sh, "PATH"))
	assert.Equal(t, []string{"/bin"}, sh.Paths().Dirs())
	_, ok = sh.Paths().Lookup("tool")
	assert.False(t, ok, "the cache was rebuilt on restore")
	p, ok = sh.Paths().Lookup("ls")
	assert.True(t, ok)
	assert.Equal(t, "/bin/ls", p)
}

func TestUnsetPathClearsCache(t *testing.T) {
	sh := newShell(t, WithLookPath(fakeLookPath(map[string][]string{"/bin": {"ls"}})))
	require.NoError(t, sh.Set("PATH", "/bin"))
	_, ok := sh.Paths().Lookup("ls")
	require.True(t, ok)

	require.NoError(t, sh.Unset("PATH"))
	_, ok = sh.Paths().Lookup("ls")
	assert.False(t, ok)
	assert.Empty(t, sh.Paths().Dirs())

	require.NoError(t, sh.Set("PATH", "/bin"))
	_, ok = sh.Paths().Lookup("ls")
	assert.True(t, ok, "PATH keeps feeding the cache after an unset")
}

func TestEnvironCache(t *testing.T) {
	sh := newShell(t)
	require.NoError(t, sh.Typeset("HOME", nv.AttrExport))
	require.NoError(t, sh.Set("HOME", "/root"))
	require.NoError(t, sh.Set("X", "1"))

	assert.Equal(t, []string{"HOME=/root"}, sh.Environ())
	assert.Equal(t, []string{"HOME=/root"}, sh.Environ())
	assert.Equal(t, 1, sh.env.builds, "second call is cached")

	require.NoError(t, sh.Set("X", "2"))
	sh.Environ()
	assert.Equal(t, 1, sh.env.builds, "unexported writes keep the cache")

	require.NoError(t, sh.Set("HOME", "/home/me"))
	assert.Equal(t, []string{"HOME=/home/me"}, sh.Environ())
	assert.Equal(t, 2, sh.env.builds)

	err := sh.Subshell(func(sub *Shell) error {
		if err := sub.Typeset("X", nv.AttrExport); err != nil {
			return err
		}
		assert.Equal(t, []string{"HOME=/home/me", "X=2"}, sub.Environ())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"HOME=/home/me"}, sh.Environ(), "restore resynchronizes the environment")

	require.NoError(t, sh.Unset("HOME"))
	assert.Empty(t, sh.Environ())
}

func TestEnvironExportsElementZero(t *testing.T) {
	sh := newShell(t)
	require.NoError(t, sh.Set("arr[0]", "first"))
	require.NoError(t, sh.Set("arr[1]", "second"))
	require.NoError(t, sh.Typeset("arr", nv.AttrExport))
	assert.Equal(t, []string{"arr=first"}, sh.Environ())
}

func TestRandomFollowsSeed(t *testing.T) {
	sh := newShell(t, WithSeed(7))
	first := get(t, sh, "RANDOM")
	second := get(t, sh, "RANDOM")

	n, err := strconv.Atoi(first)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.Less(t, n, 32768)

	require.NoError(t, sh.Set("RANDOM", "7"))
	assert.Equal(t, first, get(t, sh, "RANDOM"), "assignment reseeds")
	assert.Equal(t, second, get(t, sh, "RANDOM"))
}

func TestRandomInSubshellDoesNotAdvanceParent(t *testing.T) {
	a := newShell(t, WithSeed(99))
	b := newShell(t, WithSeed(99))

	err := b.Subshell(func(sub *Shell) error {
		for i := 0; i < 3; i++ {
			get(t, sub, "RANDOM")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, get(t, a, "RANDOM"), get(t, b, "RANDOM"))
}

func TestChdirSetsPWD(t *testing.T) {
	dir := subshell.NewVirtualDirectory("/home")
	sh := newShell(t, WithDirectory(dir))

	child, err := sh.Chdir("src")
	require.NoError(t, err)
	assert.Nil(t, child)
	assert.Equal(t, "/home/src", get(t, sh, "PWD"))
	assert.Equal(t, "/home", get(t, sh, "OLDPWD"))

	err = sh.Subshell(func(sub *Shell) error {
		child, err := sub.Chdir("/tmp")
		assert.Nil(t, child)
		assert.Equal(t, "/tmp", get(t, sub, "PWD"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "/home/src", dir.Path)
	assert.Equal(t, "/home/src", get(t, sh, "PWD"))
}

func TestChdirForksWithoutHandle(t *testing.T) {
	dir := subshell.NewVirtualDirectory("/home")
	dir.CaptureErr = subshell.ErrNoHandle
	sh := newShell(t, WithDirectory(dir), WithLookPath(fakeLookPath(nil)))
	require.NoError(t, sh.Set("PATH", "/bin"))

	f, err := sh.Enter()
	require.NoError(t, err)
	require.NoError(t, sh.Set("x", "inner"))

	child, err := sh.Chdir("/tmp")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.True(t, f.Forked())

	assert.Equal(t, "/tmp", get(t, child, "PWD"))
	assert.Equal(t, "inner", get(t, child, "x"))
	assert.Equal(t, 0, sh.Manager().Depth())
	_, ok := sh.Get("x")
	assert.False(t, ok)
	_, ok = sh.Get("PWD")
	assert.False(t, ok)
	assert.Equal(t, "/home", dir.Path)

	require.NoError(t, child.Set("PATH", "/usr/local/bin"))
	assert.Equal(t, []string{"/usr/local/bin"}, child.Paths().Dirs())
	assert.Equal(t, []string{"/bin"}, sh.Paths().Dirs(), "the child has its own path cache")
	assert.Len(t, child.Lookup("PATH").Disciplines(), 1)

	sh.Exit(f)
}

func TestUnsetElementAndArray(t *testing.T) {
	sh := newShell(t)
	for i, v := range []string{"a", "b", "c"} {
		require.NoError(t, sh.Set("arr["+strconv.Itoa(i)+"]", v))
	}
	require.NoError(t, sh.Unset("arr[1]"))
	assert.Equal(t, []string{"0", "2"}, nv.ArrayOf(sh.Lookup("arr")).Subscripts())

	require.NoError(t, sh.Unset("arr[@]"))
	assert.Nil(t, sh.Lookup("arr"))
	assert.NoError(t, sh.Unset("never"))
}

func TestTypesetAttributes(t *testing.T) {
	sh := newShell(t)
	require.NoError(t, sh.Typeset("name", nv.AttrUpper))
	require.NoError(t, sh.Set("name", "abc"))
	assert.Equal(t, "ABC", get(t, sh, "name"))

	require.NoError(t, sh.Typeset("n", nv.AttrInteger))
	require.NoError(t, sh.Set("n", "2*21"))
	assert.Equal(t, "42", get(t, sh, "n"))
	require.NoError(t, sh.Append("n", "1"))
	assert.Equal(t, "43", get(t, sh, "n"))

	require.NoError(t, sh.Untypeset("n", nv.AttrInteger))
	assert.Equal(t, nv.Str("43"), sh.Lookup("n").Value())

	require.NoError(t, sh.Typeset("ro", nv.AttrReadOnly))
	assert.True(t, nv.IsReadOnlyError(sh.Set("ro", "x")))
}

func TestRefConvertFixed(t *testing.T) {
	sh := newShell(t)
	require.NoError(t, sh.Set("target", "v"))
	require.NoError(t, sh.Ref("alias", "target"))
	require.NoError(t, sh.Set("alias", "w"))
	assert.Equal(t, "w", get(t, sh, "target"))

	require.NoError(t, sh.Set("list[3]", "x"))
	require.NoError(t, sh.Convert("list"))
	assert.True(t, sh.Lookup("list").Has(nv.AttrAssoc))
	assert.Error(t, sh.Convert("missing"))

	require.NoError(t, sh.DeclareFixed("grid", 2, 2))
	require.NoError(t, sh.Set("grid[1][1]", "corner"))
	assert.Equal(t, "corner", get(t, sh, "grid[1][1]"))
	assert.True(t, nv.IsSubscriptError(sh.Set("grid[2][0]", "out")))
}

func TestDump(t *testing.T) {
	sh := newShell(t)
	require.NoError(t, sh.Set("PATH", "/usr/bin:/bin"))
	require.NoError(t, sh.Set("name", "hello world"))
	require.NoError(t, sh.Typeset("count", nv.AttrInteger|nv.AttrExport))
	require.NoError(t, sh.Set("count", "3+4"))
	require.NoError(t, sh.Set("list[0]", "a"))
	require.NoError(t, sh.Set("list[5]", "b c"))
	require.NoError(t, sh.Typeset("colors", nv.AttrAssoc))
	require.NoError(t, sh.Set("colors[red]", "ff0000"))
	require.NoError(t, sh.Set("colors[blue]", "0000ff"))
	require.NoError(t, sh.Ref("r", "name"))
	require.NoError(t, sh.Set("q", "it's"))

	var buf bytes.Buffer
	require.NoError(t, sh.Dump(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dump", buf.Bytes())
}

func TestQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "''"},
		{"plain", "plain"},
		{"/usr/bin:/bin", "/usr/bin:/bin"},
		{"two words", "'two words'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestPathCacheOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data"), []byte("x"), 0o644))

	c := newPathCache(isExecutable)
	c.Reset(dir)
	p, ok := c.Lookup("run")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "run"), p)

	_, ok = c.Lookup("data")
	assert.False(t, ok, "not executable")

	p, ok = c.Lookup("./local/cmd")
	assert.True(t, ok)
	assert.Equal(t, "./local/cmd", p)

	_, ok = c.Lookup("")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Resets())
}

func TestSubshellRestoresArrayChanges(t *testing.T) {
	backends := []struct {
		name    string
		declare func(sh *Shell) error
	}{
		{"indexed", func(sh *Shell) error { return nil }},
		{"assoc", func(sh *Shell) error { return sh.Typeset("a", nv.AttrAssoc) }},
		{"fixed", func(sh *Shell) error { return sh.DeclareFixed("a", 4) }},
	}
	tests := []struct {
		name   string
		change func(t *testing.T, sh *Shell)
		want   map[string]string // a[0] and a[3] inside the subshell; "" means unset
	}{
		{
			name:   "unset element",
			change: func(t *testing.T, sh *Shell) { require.NoError(t, sh.Unset("a[3]")) },
			want:   map[string]string{"0": "x", "3": ""},
		},
		{
			name:   "uppercase",
			change: func(t *testing.T, sh *Shell) { require.NoError(t, sh.Typeset("a", nv.AttrUpper)) },
			want:   map[string]string{"0": "X", "3": "Y"},
		},
		{
			name: "write elements while scanning",
			change: func(t *testing.T, sh *Shell) {
				nv.Each(sh.Lookup("a"), func(_ string, elem *nv.Node) bool {
					require.NoError(t, elem.Put(nv.Str("z"), 0))
					return true
				})
			},
			want: map[string]string{"0": "z", "3": "z"},
		},
		{
			name:   "reference",
			change: func(t *testing.T, sh *Shell) { require.NoError(t, sh.Ref("a", "other")) },
			want:   map[string]string{"0": "", "3": ""},
		},
	}
	for _, b := range backends {
		for _, tt := range tests {
			t.Run(b.name+"/"+tt.name, func(t *testing.T) {
				sh := newShell(t)
				require.NoError(t, b.declare(sh))
				require.NoError(t, sh.Set("a[0]", "x"))
				require.NoError(t, sh.Set("a[3]", "y"))

				err := sh.Subshell(func(sub *Shell) error {
					tt.change(t, sub)
					for key, want := range tt.want {
						v, ok := sub.Get("a[" + key + "]")
						if want == "" {
							assert.False(t, ok, "a[%s] should be unset", key)
							continue
						}
						assert.Equal(t, want, v, "a[%s]", key)
					}
					return nil
				})
				require.NoError(t, err)
				assert.Equal(t, "x", get(t, sh, "a[0]"))
				assert.Equal(t, "y", get(t, sh, "a[3]"))
			})
		}
	}
}

func TestSubshellRestoresConvertedArray(t *testing.T) {
	sh := newShell(t)
	require.NoError(t, sh.Set("a[0]", "x"))

	err := sh.Subshell(func(sub *Shell) error {
		if err := sub.Convert("a"); err != nil {
			return err
		}
		return sub.Set("a[0]", "changed")
	})
	require.NoError(t, err)
	assert.Equal(t, "x", get(t, sh, "a[0]"))
	assert.True(t, sh.Lookup("a").Has(nv.AttrIndexed))
}

func TestUnsetRandomDropsGenerator(t *testing.T) {
	a := newShell(t, WithSeed(3))
	b := newShell(t, WithSeed(3))

	err := b.Subshell(func(sub *Shell) error {
		if err := sub.Unset("RANDOM"); err != nil {
			return err
		}
		_, ok := sub.Get("RANDOM")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, get(t, a, "RANDOM"), get(t, b, "RANDOM"), "the generator comes back with the scope")

	require.NoError(t, a.Unset("RANDOM"))
	_, ok := a.Get("RANDOM")
	assert.False(t, ok)
	var buf bytes.Buffer
	require.NoError(t, a.Dump(&buf))
	assert.NotContains(t, buf.String(), "RANDOM")

	require.NoError(t, a.Set("RANDOM", "7"))
	assert.Equal(t, "7", get(t, a, "RANDOM"))
	assert.Equal(t, "7", get(t, a, "RANDOM"), "an unset RANDOM is an ordinary variable")
}
