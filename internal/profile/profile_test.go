package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/shell"
)

const sample = `
vars: {
	greeting: value: "hello"
	count: {
		type:   "integer"
		value:  "0x10"
		export: true
	}
	colors: {
		type: "assoc"
		values: {red: "ff0000", blue: "0000ff"}
	}
	grid: {
		type: "fixed"
		dims: [2, 2]
		values: {"1,0": "x"}
	}
	alias: {
		type:   "ref"
		target: "greeting"
	}
	LOUD: {
		value:    "quiet"
		upper:    true
		readonly: true
	}
}
`

func loadSample(t *testing.T) []Declaration {
	t.Helper()
	decls, err := LoadSource("sample.cue", []byte(sample))
	require.NoError(t, err)
	return decls
}

func TestLoadSource(t *testing.T) {
	decls := loadSample(t)
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"LOUD", "alias", "colors", "count", "greeting", "grid"}, names)

	count := decls[3]
	assert.Equal(t, "integer", count.Type)
	assert.True(t, count.HasValue)
	assert.Equal(t, "0x10", count.Value)
	assert.True(t, count.Export)

	greeting := decls[4]
	assert.Equal(t, "string", greeting.Type, "type defaults to string")
	assert.True(t, greeting.Pos.IsValid())

	assert.Equal(t, []int{2, 2}, decls[5].Dims)
	assert.Equal(t, map[string]string{"1,0": "x"}, decls[5].Values)
	assert.Equal(t, "greeting", decls[1].Target)
	assert.Empty(t, Validate(decls))
}

func TestLoadSourceEmpty(t *testing.T) {
	decls, err := LoadSource("empty.cue", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestLoadSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `vars: {`, ErrCodeBuild},
		{"unknown field", `vars: x: colour: "red"`, ErrCodeSchema},
		{"bad type", `vars: x: type: "list"`, ErrCodeSchema},
		{"zero dim", `vars: x: {type: "fixed", dims: [0]}`, ErrCodeSchema},
		{"non string value", `vars: x: value: 3`, ErrCodeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource("bad.cue", []byte(tt.src))
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte(`vars: a: value: "1"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte(`vars: b: {type: "integer", value: "2"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	decls, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "a", decls[0].Name)
	assert.Equal(t, "b", decls[1].Name)
	assert.Equal(t, "integer", decls[1].Type)
}

func TestLoadDirConflict(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte(`vars: a: value: "1"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte(`vars: a: value: "2"`), 0o644))

	_, err := Load(dir)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeSchema, le.Code)
}

func TestLoadDirErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)

	_, err = Load(t.TempDir())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
		code string
	}{
		{"invalid name", Declaration{Name: "1x", Type: "string"}, ErrInvalidName},
		{"case conflict", Declaration{Name: "x", Type: "string", Upper: true, Lower: true}, ErrCaseConflict},
		{"value on array", Declaration{Name: "x", Type: "indexed", HasValue: true}, ErrValueShape},
		{"values on scalar", Declaration{Name: "x", Type: "string", Values: map[string]string{"0": "a"}}, ErrValueShape},
		{"fixed without dims", Declaration{Name: "x", Type: "fixed"}, ErrDimensions},
		{"dims on indexed", Declaration{Name: "x", Type: "indexed", Dims: []int{2}}, ErrDimensions},
		{"fixed value outside dims", Declaration{Name: "x", Type: "fixed", Dims: []int{2}, Values: map[string]string{"2": "a"}}, ErrDimensions},
		{"ref without target", Declaration{Name: "x", Type: "ref"}, ErrReference},
		{"ref to itself", Declaration{Name: "x", Type: "ref", Target: "x"}, ErrReference},
		{"ref to undeclared", Declaration{Name: "x", Type: "ref", Target: "y"}, ErrReference},
		{"target on scalar", Declaration{Name: "x", Type: "string", Target: "y"}, ErrReference},
		{"integer not a number", Declaration{Name: "x", Type: "integer", Value: "ten", HasValue: true}, ErrNumericValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate([]Declaration{tt.decl})
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "vars.x", Message: "bad", Code: ErrInvalidName, Line: 4}
	assert.Equal(t, "[E202] line 4: vars.x: bad", e.Error())
	e.Line = 0
	assert.Equal(t, "[E202] vars.x: bad", e.Error())
}

func TestFitsDims(t *testing.T) {
	assert.True(t, fitsDims("1,2", []int{2, 3}))
	assert.True(t, fitsDims("1", []int{2, 3}), "trailing components default to zero")
	assert.False(t, fitsDims("1,3", []int{2, 3}))
	assert.False(t, fitsDims("0,0,0", []int{2, 3}))
	assert.False(t, fitsDims("a", []int{2}))
	assert.False(t, fitsDims("", []int{2}))
}

func TestApply(t *testing.T) {
	sh, err := shell.New()
	require.NoError(t, err)
	require.NoError(t, Apply(sh, loadSample(t)))

	get := func(name string) string {
		t.Helper()
		v, ok := sh.Get(name)
		require.True(t, ok, name)
		return v
	}
	assert.Equal(t, "hello", get("greeting"))
	assert.Equal(t, "16", get("count"))
	assert.Equal(t, "ff0000", get("colors[red]"))
	assert.Equal(t, "x", get("grid[1][0]"))
	assert.Equal(t, "hello", get("alias"))
	assert.Equal(t, "QUIET", get("LOUD"))

	count := sh.Lookup("count")
	assert.True(t, count.Has(nv.AttrInteger|nv.AttrExport))
	assert.Contains(t, sh.Environ(), "count=16")
	assert.True(t, sh.Lookup("colors").Has(nv.AttrAssoc))
	assert.True(t, sh.Lookup("grid").Has(nv.AttrFixed))

	err = sh.Set("LOUD", "again")
	assert.True(t, nv.IsReadOnlyError(err))
}

func TestApplyStopsOnError(t *testing.T) {
	sh, err := shell.New()
	require.NoError(t, err)
	err = Apply(sh, []Declaration{{Name: "n", Type: "integer", Value: "1+", HasValue: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile n")
	assert.True(t, nv.IsTypeError(err))
}
