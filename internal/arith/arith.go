package arith

import (
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/starlark"

	"github.com/roach88/nvsh/internal/nv"
)

// keywords are Starlark words that never name a shell variable.
var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "if": true, "else": true,
	"in": true, "lambda": true, "True": true, "False": true, "None": true,
}

// Evaluator is the default arithmetic evaluator.
type Evaluator struct {
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for evaluation failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvalError reports an expression Starlark rejected.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("error evaluating %q: %s", e.Expr, e.Message)
}

// Eval implements nv.Arith.
func (e *Evaluator) Eval(t *nv.Tree, expr string) (nv.Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nv.Int(0), nil
	}
	if v, ok := nv.ParseNumber(expr); ok {
		return v, nil
	}

	src := translate(expr)
	globals := starlark.StringDict{}
	for _, name := range identifiers(src) {
		if keywords[name] {
			continue
		}
		n := t.Lookup(name)
		if n == nil || n.IsNull() {
			if _, builtin := starlark.Universe[name]; builtin {
				continue
			}
			globals[name] = starlark.MakeInt(0)
			continue
		}
		f, err := n.GetNumeric()
		if err != nil {
			return nil, err
		}
		globals[name] = toStarlark(f)
	}

	thread := &starlark.Thread{
		Name:  "arith",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	result, err := starlark.Eval(thread, "arith", src, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		e.logger.Debug("arithmetic failed", "expr", expr, "error", err)
		return nil, &EvalError{Expr: expr, Message: err.Error()}
	}
	return fromStarlark(expr, result)
}

func toStarlark(f float64) starlark.Value {
	if f == float64(int64(f)) {
		return starlark.MakeInt64(int64(f))
	}
	return starlark.Float(f)
}

func fromStarlark(expr string, v starlark.Value) (nv.Value, error) {
	switch v := v.(type) {
	case starlark.Int:
		i, ok := v.Int64()
		if !ok {
			return nil, &EvalError{Expr: expr, Message: "integer overflow"}
		}
		return nv.Int(i), nil
	case starlark.Float:
		return nv.Num(float64(v)), nil
	case starlark.Bool:
		if v {
			return nv.Int(1), nil
		}
		return nv.Int(0), nil
	}
	return nil, &EvalError{Expr: expr, Message: "result is " + v.Type() + ", not a number"}
}

// translate maps C-style logical operators onto Starlark keywords.
func translate(expr string) string {
	var b strings.Builder
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '&' && i+1 < len(expr) && expr[i+1] == '&':
			b.WriteString(" and ")
			i++
		case c == '|' && i+1 < len(expr) && expr[i+1] == '|':
			b.WriteString(" or ")
			i++
		case c == '!' && (i+1 >= len(expr) || expr[i+1] != '='):
			b.WriteString(" not ")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// identifiers returns the distinct names appearing in src, skipping quoted
// strings, numeric literals and attribute names after a dot.
func identifiers(src string) []string {
	var out []string
	seen := map[string]bool{}
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
		case isDigit(c):
			for i < len(src) && (isIdent(src[i]) || src[i] == '.') {
				i++
			}
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdent(src[j]) {
				j++
			}
			name := src[i:j]
			if (i == 0 || src[i-1] != '.') && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			i = j
		default:
			i++
		}
	}
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdent(c byte) bool { return isIdentStart(c) || isDigit(c) }
