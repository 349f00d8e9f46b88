package profile

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/nvsh/internal/nv"
)

// Validation error codes (E202-E207). E201 is raised at load time.
const (
	ErrInvalidName  = "E202" // not a valid variable name
	ErrCaseConflict = "E203" // upper and lower both set
	ErrValueShape   = "E204" // value on an array or values on a scalar
	ErrDimensions   = "E205" // fixed without dims, or dims on another type
	ErrReference    = "E206" // ref without a declared target, or target on another type
	ErrNumericValue = "E207" // integer or float value is not a number
)

// ValidationError is one rule violation in a profile.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Validate checks declarations and returns every problem found, ordered by
// variable name.
func Validate(decls []Declaration) []ValidationError {
	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Name] = true
	}

	var errs []ValidationError
	for _, d := range decls {
		add := func(code, field, format string, args ...any) {
			errs = append(errs, ValidationError{
				Field:   "vars." + d.Name + field,
				Message: fmt.Sprintf(format, args...),
				Code:    code,
				Line:    d.Pos.Line(),
			})
		}

		if !namePattern.MatchString(d.Name) {
			add(ErrInvalidName, "", "%q is not a valid variable name", d.Name)
		}
		if d.Upper && d.Lower {
			add(ErrCaseConflict, "", "upper and lower are exclusive")
		}

		array := d.Type == "indexed" || d.Type == "assoc" || d.Type == "fixed"
		if array && d.HasValue {
			add(ErrValueShape, ".value", "%s variables take values, not value", d.Type)
		}
		if !array && d.Values != nil {
			add(ErrValueShape, ".values", "%s variables take value, not values", d.Type)
		}

		switch {
		case d.Type == "fixed" && len(d.Dims) == 0:
			add(ErrDimensions, ".dims", "fixed arrays need dims")
		case d.Type != "fixed" && len(d.Dims) > 0:
			add(ErrDimensions, ".dims", "dims only apply to fixed arrays")
		}

		switch {
		case d.Type == "ref" && d.Target == "":
			add(ErrReference, ".target", "references need a target")
		case d.Type == "ref" && d.Target == d.Name:
			add(ErrReference, ".target", "reference to itself")
		case d.Type == "ref" && !declared[d.Target]:
			add(ErrReference, ".target", "target %q is not declared", d.Target)
		case d.Type != "ref" && d.Target != "":
			add(ErrReference, ".target", "target only applies to references")
		}

		if d.Type == "integer" || d.Type == "float" {
			if d.HasValue {
				if _, ok := nv.ParseNumber(d.Value); !ok {
					add(ErrNumericValue, ".value", "%q is not a number", d.Value)
				}
			}
		}
		if d.Type == "fixed" {
			for _, k := range sortedKeys(d.Values) {
				if !fitsDims(k, d.Dims) {
					add(ErrDimensions, ".values", "subscript %q outside dims %v", k, d.Dims)
				}
			}
		}
	}
	return errs
}

func fitsDims(key string, dims []int) bool {
	if len(dims) == 0 {
		return false
	}
	i, part := 0, 0
	digits := false
	for j := 0; j <= len(key); j++ {
		if j == len(key) || key[j] == ',' {
			if !digits || i >= len(dims) || part >= dims[i] {
				return false
			}
			i, part, digits = i+1, 0, false
			continue
		}
		c := key[j]
		if c < '0' || c > '9' {
			return false
		}
		part = part*10 + int(c-'0')
		digits = true
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
