package nv

import (
	"strconv"
	"strings"
)

// Value is the active interpretation of a node.
// Exactly one concrete type is active; a nil Value means the node is null.
type Value interface {
	String() string
	isValue()
}

// Str is a scalar string value.
type Str string

// Int is the value of an integer-attributed node.
type Int int64

// Num is the value of a float-attributed node.
type Num float64

// ArrayValue is the handle of an array node's backend.
type ArrayValue struct {
	Array Array
}

// RefValue is the target of a name reference.
type RefValue struct {
	Target *Node
}

func (Str) isValue()        {}
func (Int) isValue()        {}
func (Num) isValue()        {}
func (ArrayValue) isValue() {}
func (RefValue) isValue()   {}

func (s Str) String() string { return string(s) }

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (n Num) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }

// String of an array handle is the element under the cursor.
func (a ArrayValue) String() string {
	if a.Array == nil {
		return ""
	}
	elem, err := a.Array.Locate(Read)
	if err != nil || elem == nil {
		return ""
	}
	return elem.Get()
}

func (r RefValue) String() string {
	if r.Target == nil {
		return ""
	}
	return r.Target.Name()
}

// ParseNumber parses shell numeric literals: decimal, 0x hex, base#digits
// (2..64 digits of 0-9a-zA-Z@_) and floats. Surrounding blanks are ignored.
func ParseNumber(s string) (Value, bool) {
	s = strings.Trim(s, " \t\n")
	if s == "" {
		return nil, false
	}
	neg := false
	body := s
	if body[0] == '-' || body[0] == '+' {
		neg = body[0] == '-'
		body = body[1:]
	}
	if i := strings.IndexByte(body, '#'); i > 0 {
		base, err := strconv.Atoi(body[:i])
		if err != nil || base < 2 || base > 64 {
			return nil, false
		}
		n, ok := parseBase(body[i+1:], base)
		if !ok {
			return nil, false
		}
		if neg {
			n = -n
		}
		return Int(n), true
	}
	if body == "" || !(body[0] >= '0' && body[0] <= '9' || body[0] == '.') {
		return nil, false
	}
	if len(body) > 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		n, err := strconv.ParseInt(body[2:], 16, 64)
		if err != nil {
			return nil, false
		}
		if neg {
			n = -n
		}
		return Int(n), true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n), true
	}
	if strings.IndexByte(body, '_') >= 0 {
		return nil, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Num(f), true
	}
	return nil, false
}

func parseBase(digits string, base int) (int64, bool) {
	if digits == "" {
		return 0, false
	}
	var n int64
	for i := 0; i < len(digits); i++ {
		d := digitValue(digits[i], base)
		if d < 0 || d >= base {
			return 0, false
		}
		n = n*int64(base) + int64(d)
	}
	return n, true
}

func digitValue(c byte, base int) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		if base <= 36 {
			return int(c-'A') + 10
		}
		return int(c-'A') + 36
	case c == '@':
		return 62
	case c == '_':
		return 63
	}
	return -1
}
