package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/nvsh/internal/nv"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // step op, or "error" for an expected error code
	Step     int
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (step %d)\n", e.Type, e.Step)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

type assertion func(p *process, i int, st Step) error

var assertions = map[string]assertion{
	OpExpect:        assertValue,
	OpExpectUnset:   assertUnset,
	OpExpectScan:    assertScan,
	OpExpectJournal: assertJournal,
	OpExpectDepth:   assertDepth,
	OpExpectEnv:     assertEnv,
}

func assertValue(p *process, i int, st Step) error {
	got, ok := p.sh.Get(st.Name)
	if ok && got == *st.Value {
		return nil
	}
	actual := "unset"
	if ok {
		actual = fmt.Sprintf("%q", got)
	}
	return &AssertionError{
		Type:     OpExpect,
		Step:     i,
		Expected: fmt.Sprintf("%s=%q", st.Name, *st.Value),
		Actual:   actual,
	}
}

func assertUnset(p *process, i int, st Step) error {
	got, ok := p.sh.Get(st.Name)
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     OpExpectUnset,
		Step:     i,
		Expected: st.Name + " unset",
		Actual:   fmt.Sprintf("%s=%q", st.Name, got),
	}
}

// assertScan iterates the array and compares subscripts and values in
// iteration order.
func assertScan(p *process, i int, st Step) error {
	n := p.sh.Lookup(st.Name)
	var got []ScanElement
	if n != nil {
		nv.Each(n, func(sub string, elem *nv.Node) bool {
			got = append(got, ScanElement{Sub: sub, Value: elem.Get()})
			return true
		})
	}
	if slices.Equal(got, st.Elements) {
		return nil
	}
	return &AssertionError{
		Type:     OpExpectScan,
		Step:     i,
		Expected: formatScan(st.Elements),
		Actual:   formatScan(got),
	}
}

func formatScan(elems []ScanElement) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = fmt.Sprintf("[%s]=%q", e.Sub, e.Value)
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func assertJournal(p *process, i int, st Step) error {
	got := p.sh.Manager().IsJournaled(p.sh.Lookup(st.Name))
	if got == *st.Journaled {
		return nil
	}
	return &AssertionError{
		Type:     OpExpectJournal,
		Step:     i,
		Expected: fmt.Sprintf("%s journaled=%t", st.Name, *st.Journaled),
		Actual:   fmt.Sprintf("journaled=%t", got),
	}
}

func assertDepth(p *process, i int, st Step) error {
	got := p.sh.Manager().Depth()
	if got == *st.Depth {
		return nil
	}
	return &AssertionError{
		Type:     OpExpectDepth,
		Step:     i,
		Expected: fmt.Sprintf("depth %d", *st.Depth),
		Actual:   fmt.Sprintf("depth %d", got),
	}
}

// assertEnv checks that every Contains entry is in the exported
// environment and that no Excludes name is exported.
func assertEnv(p *process, i int, st Step) error {
	env := p.sh.Environ()
	var problems []string
	for _, want := range st.Contains {
		if !slices.Contains(env, want) {
			problems = append(problems, "missing "+want)
		}
	}
	for _, name := range st.Excludes {
		for _, kv := range env {
			if strings.HasPrefix(kv, name+"=") {
				problems = append(problems, "exported "+kv)
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     OpExpectEnv,
		Step:     i,
		Expected: fmt.Sprintf("contains %v, excludes %v", st.Contains, st.Excludes),
		Actual:   strings.Join(problems, "; "),
	}
}
