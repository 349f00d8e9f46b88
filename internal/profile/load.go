package profile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Load error codes.
const (
	ErrCodeNotFound = "E005" // profile directory missing
	ErrCodeNoFiles  = "E003" // no .cue files
	ErrCodeBuild    = "E006" // CUE syntax or evaluation error
	ErrCodeSchema   = "E201" // value does not match the variable schema
)

// LoadError is a failure to read or build a profile.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Declaration is one variable from a profile.
type Declaration struct {
	Name     string
	Type     string
	Value    string
	HasValue bool
	Values   map[string]string
	Dims     []int
	Target   string
	Export   bool
	ReadOnly bool
	Upper    bool
	Lower    bool
	Pos      token.Pos
}

// Load reads every .cue file directly inside dir, in name order, and
// returns the declarations sorted by variable name.
func Load(dir string) ([]Declaration, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("profile directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	slices.Sort(files)

	sources := make(map[string][]byte, len(files))
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
		}
		sources[f] = src
	}
	return compile(files, sources)
}

// LoadSource builds declarations from a single CUE document.
func LoadSource(filename string, src []byte) ([]Declaration, error) {
	return compile([]string{filename}, map[string][]byte{filename: src})
}

func compile(order []string, sources map[string][]byte) ([]Declaration, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("profile schema: %w", err)
	}
	for _, name := range order {
		file := ctx.CompileBytes(sources[name], cue.Filename(name))
		if err := file.Err(); err != nil {
			return nil, cueError(ErrCodeBuild, err)
		}
		v = v.Unify(file)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}
	return decode(v)
}

func cueError(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if pos := errors.Positions(first); len(pos) > 0 {
		le.Pos = pos[0]
	}
	return le
}

func decode(root cue.Value) ([]Declaration, error) {
	vars := root.LookupPath(cue.ParsePath("vars"))
	if !vars.Exists() {
		return []Declaration{}, nil
	}
	iter, err := vars.Fields()
	if err != nil {
		return nil, cueError(ErrCodeBuild, err)
	}
	decls := []Declaration{}
	for iter.Next() {
		d, err := decodeVar(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	slices.SortFunc(decls, func(a, b Declaration) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return decls, nil
}

func decodeVar(name string, v cue.Value) (Declaration, error) {
	d := Declaration{Name: name, Type: "string", Pos: v.Pos()}
	var err error
	str := func(field string, dst *string) bool {
		f := v.LookupPath(cue.ParsePath(field))
		if !f.Exists() || err != nil {
			return false
		}
		*dst, err = f.String()
		return err == nil
	}
	flag := func(field string, dst *bool) {
		f := v.LookupPath(cue.ParsePath(field))
		if !f.Exists() || err != nil {
			return
		}
		*dst, err = f.Bool()
	}

	str("type", &d.Type)
	d.HasValue = str("value", &d.Value)
	str("target", &d.Target)
	flag("export", &d.Export)
	flag("readonly", &d.ReadOnly)
	flag("upper", &d.Upper)
	flag("lower", &d.Lower)
	if err != nil {
		return d, cueError(ErrCodeSchema, err)
	}

	if values := v.LookupPath(cue.ParsePath("values")); values.Exists() {
		iter, err := values.Fields()
		if err != nil {
			return d, cueError(ErrCodeSchema, err)
		}
		d.Values = map[string]string{}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return d, cueError(ErrCodeSchema, err)
			}
			d.Values[iter.Label()] = s
		}
	}

	if dims := v.LookupPath(cue.ParsePath("dims")); dims.Exists() {
		list, err := dims.List()
		if err != nil {
			return d, cueError(ErrCodeSchema, err)
		}
		for list.Next() {
			n, err := list.Value().Int64()
			if err != nil {
				return d, cueError(ErrCodeSchema, err)
			}
			d.Dims = append(d.Dims, int(n))
		}
	}
	return d, nil
}
