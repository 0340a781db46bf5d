// Copyright 2026, the declstack authors. All rights reserved.

package interp

import "strings"

// Part is one piece of an interpolated string: literal prefix text, plus an
// optional path access that follows it (nil for the trailing literal tail).
type Part struct {
	Text string
	Path *PathAccess
}

// HasInterpolations reports whether s contains an unescaped "${". The fast
// path callers (the preprocessor, and ParseExpr below) use this to avoid
// allocating a Part slice for ordinary scalars.
func HasInterpolations(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			return true
		}
	}
	return false
}

// ParseInterpolation splits s into literal/path parts. "$$" emits a literal
// "$" with no path; "${...}" starts a path consumed up to its matching '}'.
func ParseInterpolation(s string) ([]Part, error) {
	var parts []Part
	var text strings.Builder

	for len(s) > 0 {
		if strings.HasPrefix(s, "$$") {
			text.WriteByte('$')
			s = s[2:]
			continue
		}
		if strings.HasPrefix(s, "${") {
			access, rest, err := parsePathAccess(s[2:], true)
			if err != nil {
				return nil, err
			}
			if len(access.Accessors) == 0 {
				return nil, errEmptyAccess
			}
			parts = append(parts, Part{Text: text.String(), Path: access})
			text.Reset()
			// rest still has the leading '}' attached; drop it.
			s = rest[1:]
			continue
		}
		text.WriteByte(s[0])
		s = s[1:]
	}
	parts = append(parts, Part{Text: text.String()})
	return parts, nil
}

var errEmptyAccess = pathAccessError("property access expressions cannot be empty")

type pathAccessError string

func (e pathAccessError) Error() string { return string(e) }
