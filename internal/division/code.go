// Package division models voting-division codes and the boundary feature
// collection that carries them.
package division

import "strings"

// Code is a ward+division identifier: two-digit ward followed by the
// division digits, e.g. "0307" for ward 3, division 7.
type Code string

// Pad left-pads s with zeros to at least two characters. Longer values are
// returned unchanged.
func Pad(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		return s
	}
	return strings.Repeat("0", 2-len(s)) + s
}

// NewCode builds a Code from separately numbered ward and division fields.
func NewCode(ward, division string) Code {
	return Code(Pad(ward) + Pad(division))
}

// Ward returns the leading two characters of the code.
func (c Code) Ward() string {
	if len(c) < 2 {
		return string(c)
	}
	return string(c[:2])
}

// Division returns everything after the ward prefix.
func (c Code) Division() string {
	if len(c) < 2 {
		return ""
	}
	return string(c[2:])
}

func (c Code) String() string {
	return string(c)
}
