package profile

import (
	"fmt"
	"strings"

	"github.com/roach88/nvsh/internal/nv"
	"github.com/roach88/nvsh/internal/shell"
)

var typeAttrs = map[string]nv.Attr{
	"integer": nv.AttrInteger,
	"float":   nv.AttrFloat,
	"indexed": nv.AttrIndexed,
	"assoc":   nv.AttrAssoc,
}

// Apply declares every variable on sh. References are applied after their
// targets and readonly is set last, so values can still be assigned.
func Apply(sh *shell.Shell, decls []Declaration) error {
	var refs []Declaration
	for _, d := range decls {
		if d.Type == "ref" {
			refs = append(refs, d)
			continue
		}
		if err := declare(sh, d); err != nil {
			return fmt.Errorf("profile %s: %w", d.Name, err)
		}
	}
	for _, d := range refs {
		if err := sh.Ref(d.Name, d.Target); err != nil {
			return fmt.Errorf("profile %s: %w", d.Name, err)
		}
		if err := finish(sh, d); err != nil {
			return fmt.Errorf("profile %s: %w", d.Name, err)
		}
	}
	return nil
}

func declare(sh *shell.Shell, d Declaration) error {
	var attrs nv.Attr
	if a, ok := typeAttrs[d.Type]; ok {
		attrs |= a
	}
	if d.Upper {
		attrs |= nv.AttrUpper
	}
	if d.Lower {
		attrs |= nv.AttrLower
	}
	if d.Type == "fixed" {
		if err := sh.DeclareFixed(d.Name, d.Dims...); err != nil {
			return err
		}
	}
	if attrs != 0 {
		if err := sh.Typeset(d.Name, attrs); err != nil {
			return err
		}
	}
	if d.HasValue {
		if err := sh.Set(d.Name, d.Value); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(d.Values) {
		if err := sh.Set(d.Name+subscript(k), d.Values[k]); err != nil {
			return err
		}
	}
	return finish(sh, d)
}

func finish(sh *shell.Shell, d Declaration) error {
	var attrs nv.Attr
	if d.Export {
		attrs |= nv.AttrExport
	}
	if d.ReadOnly {
		attrs |= nv.AttrReadOnly
	}
	if attrs == 0 {
		return nil
	}
	return sh.Typeset(d.Name, attrs)
}

// subscript turns a values key into name syntax. Fixed array keys list one
// index per dimension, separated by commas.
func subscript(key string) string {
	return "[" + strings.ReplaceAll(key, ",", "][") + "]"
}
