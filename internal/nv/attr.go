package nv

import (
	"fmt"
	"strings"
)

// Attr is the typeset attribute bitset of a node.
type Attr uint32

const (
	// AttrExport marks a node for the exported environment (-x).
	AttrExport Attr = 1 << iota
	// AttrReadOnly rejects writes and unset (-r).
	AttrReadOnly
	// AttrInteger stores values as Int after arithmetic evaluation (-i).
	AttrInteger
	// AttrFloat stores values as Num after arithmetic evaluation (-F).
	AttrFloat
	// AttrUpper upper-cases assigned strings (-u).
	AttrUpper
	// AttrLower lower-cases assigned strings (-l).
	AttrLower
	// AttrIndexed marks an indexed array (-a).
	AttrIndexed
	// AttrAssoc marks an associative array (-A).
	AttrAssoc
	// AttrFixed marks a fixed-dimension array (-a with declared bounds).
	AttrFixed
	// AttrRef marks a name reference (-n).
	AttrRef
)

// AttrArray is the union of the array kinds.
const AttrArray = AttrIndexed | AttrAssoc | AttrFixed

const (
	attrNumeric = AttrInteger | AttrFloat
	attrCase    = AttrUpper | AttrLower
)

var attrFlags = []struct {
	attr Attr
	flag byte
}{
	{AttrIndexed, 'a'},
	{AttrFixed, 'a'},
	{AttrAssoc, 'A'},
	{AttrFloat, 'F'},
	{AttrInteger, 'i'},
	{AttrLower, 'l'},
	{AttrRef, 'n'},
	{AttrReadOnly, 'r'},
	{AttrUpper, 'u'},
	{AttrExport, 'x'},
}

// Has reports whether every bit of want is set.
func (a Attr) Has(want Attr) bool {
	return a&want == want
}

// Any reports whether at least one bit of want is set.
func (a Attr) Any(want Attr) bool {
	return a&want != 0
}

// String renders the attributes as typeset flags, e.g. "-x -i".
// An empty set renders as "".
func (a Attr) String() string {
	var parts []string
	seen := map[byte]bool{}
	for _, f := range attrFlags {
		if a.Has(f.attr) && !seen[f.flag] {
			seen[f.flag] = true
			parts = append(parts, "-"+string(f.flag))
		}
	}
	return strings.Join(parts, " ")
}

// ParseAttrs parses typeset flags such as "-x -i" or "-xi".
// The -a flag selects AttrIndexed; fixed arrays are declared separately.
func ParseAttrs(s string) (Attr, error) {
	var out Attr
	for _, word := range strings.Fields(s) {
		if !strings.HasPrefix(word, "-") || len(word) < 2 {
			return 0, fmt.Errorf("invalid attribute flag %q", word)
		}
		for i := 1; i < len(word); i++ {
			switch word[i] {
			case 'a':
				out |= AttrIndexed
			case 'A':
				out |= AttrAssoc
			case 'F', 'E':
				out |= AttrFloat
			case 'i':
				out |= AttrInteger
			case 'l':
				out |= AttrLower
			case 'n':
				out |= AttrRef
			case 'r':
				out |= AttrReadOnly
			case 'u':
				out |= AttrUpper
			case 'x':
				out |= AttrExport
			default:
				return 0, fmt.Errorf("unknown attribute flag -%c", word[i])
			}
		}
	}
	return out, nil
}
