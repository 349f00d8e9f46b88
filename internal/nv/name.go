package nv

import "strings"

// splitName separates "base[s1][s2]" into its base name and subscripts.
// Brackets inside a subscript nest.
func splitName(name string) (string, []string, error) {
	i := strings.IndexByte(name, '[')
	base := name
	if i >= 0 {
		base = name[:i]
	}
	if !validName(base) {
		return "", nil, newError(ErrCodeName, name, "invalid variable name")
	}
	if i < 0 {
		return base, nil, nil
	}

	var subs []string
	rest := name[i:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, newError(ErrCodeName, name, "unexpected %q after subscript", rest)
		}
		depth, end := 0, -1
		for j := 0; j < len(rest); j++ {
			switch rest[j] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				end = j
				break
			}
		}
		if end < 0 {
			return "", nil, newError(ErrCodeName, name, "unterminated subscript")
		}
		sub := rest[1:end]
		if sub == "" {
			return "", nil, newError(ErrCodeSubscript, name, "empty subscript")
		}
		subs = append(subs, sub)
		rest = rest[end+1:]
	}
	return base, subs, nil
}

// validName reports whether s is a dotted identifier such as "x" or
// "rec.field".
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			c := part[i]
			switch {
			case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
