package shell

import (
	"bufio"
	"io"
	"strings"

	"github.com/roach88/nvsh/internal/nv"
)

// Dump writes every set variable as a typeset command that would recreate
// it, one per line in name order. Variables that only have a getter, such as
// RANDOM, are skipped.
func (s *Shell) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	s.tree.Walk(func(n *nv.Node) bool {
		if n.Value() == nil && n.Attr() == 0 {
			return true
		}
		bw.WriteString(DumpLine(n))
		bw.WriteByte('\n')
		return true
	})
	return bw.Flush()
}

// DumpLine renders one node the way Dump does.
func DumpLine(n *nv.Node) string {
	var b strings.Builder
	attrs := n.Attr().String()
	if attrs != "" {
		b.WriteString("typeset ")
		b.WriteString(attrs)
		b.WriteByte(' ')
	}
	b.WriteString(n.Name())
	switch {
	case n.Target() != nil:
		b.WriteByte('=')
		b.WriteString(n.Target().FullName())
	case n.IsArray():
		b.WriteByte('=')
		writeCompound(&b, n)
	case n.Value() != nil:
		b.WriteByte('=')
		b.WriteString(Quote(n.Value().String()))
	}
	return b.String()
}

func writeCompound(b *strings.Builder, n *nv.Node) {
	b.WriteByte('(')
	first := true
	nv.Each(n, func(sub string, elem *nv.Node) bool {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteByte('[')
		b.WriteString(sub)
		b.WriteString("]=")
		if elem.IsArray() {
			writeCompound(b, elem)
		} else {
			b.WriteString(Quote(elem.Get()))
		}
		return true
	})
	b.WriteByte(')')
}

// Quote returns s as a single shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for i := 0; i < len(s); i++ {
		if !isSafe(s[i]) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_./:,+=@%-", c) >= 0
}
