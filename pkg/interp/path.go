// Copyright 2026, the declstack authors. All rights reserved.

// Package interp parses the "${a.b[0]["k"]}" interpolation sublanguage
// embedded in template scalars (§4.1 of the specification).
package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// Accessor is one step of a PathAccess: a field name, a string subscript, or
// an integer subscript.
type Accessor interface {
	isAccessor()
	rootName() string
}

// Name is a `.field` style accessor, and also the form the root of a path
// always takes unless it is a StringSubscript.
type Name struct{ Value string }

func (Name) isAccessor()        {}
func (n Name) rootName() string { return n.Value }

// StringSubscript is a `["key"]` accessor.
type StringSubscript struct{ Value string }

func (StringSubscript) isAccessor()        {}
func (s StringSubscript) rootName() string { return s.Value }

// IntSubscript is a `[N]` accessor. It is never valid as the head accessor.
type IntSubscript struct{ Value int64 }

func (IntSubscript) isAccessor()        {}
func (IntSubscript) rootName() string   { panic("IntSubscript cannot be a root accessor") }

// PathAccess is the ordered accessor sequence parsed from `${...}`.
type PathAccess struct {
	Accessors []Accessor
}

// RootName returns the identifier named by the first accessor.
func (p *PathAccess) RootName() string {
	return p.Accessors[0].rootName()
}

func (p *PathAccess) String() string {
	var sb strings.Builder
	for _, a := range p.Accessors {
		switch a := a.(type) {
		case Name:
			if sb.Len() != 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(a.Value)
		case StringSubscript:
			fmt.Fprintf(&sb, "[%q]", a.Value)
		case IntSubscript:
			fmt.Fprintf(&sb, "[%d]", a.Value)
		}
	}
	return sb.String()
}

// ParsePathAccess parses a bare path (no surrounding "${}") such as one found
// in a `dependsOn` or `parent` reference. It consumes the whole string.
func ParsePathAccess(s string) (*PathAccess, error) {
	access, rest, err := parsePathAccess(s, false)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("unexpected trailing characters %q in path", rest)
	}
	return access, nil
}

// parsePathAccess parses accessors from the front of s. When
// stopAtInterpTerminator is true, an unescaped '}' ends the path (used while
// scanning inside "${...}"); the caller receives the '}' still attached to
// rest so it can detect it consumed the path correctly. When false, parsing
// continues to the end of the string and EOF is the only valid terminator.
func parsePathAccess(s string, stopAtInterpTerminator bool) (*PathAccess, string, error) {
	var accessors []Accessor
	for len(s) > 0 {
		switch s[0] {
		case '}':
			if stopAtInterpTerminator {
				return &PathAccess{Accessors: accessors}, s, nil
			}
			return nil, "", fmt.Errorf("unexpected '}' in path")
		case '.':
			s = s[1:]
		case '[':
			var acc Accessor
			var err error
			acc, s, err = parseSubscript(s)
			if err != nil {
				return nil, "", err
			}
			if len(accessors) == 0 {
				if _, ok := acc.(IntSubscript); ok {
					return nil, "", fmt.Errorf("root must be a name or string subscript")
				}
			}
			accessors = append(accessors, acc)
		default:
			i := 0
			for i < len(s) && s[i] != '.' && s[i] != '[' && s[i] != '}' {
				i++
			}
			accessors = append(accessors, Name{Value: s[:i]})
			s = s[i:]
		}
	}
	if stopAtInterpTerminator {
		return nil, "", fmt.Errorf("unterminated interpolation")
	}
	if len(accessors) == 0 {
		return nil, "", fmt.Errorf("empty path")
	}
	return &PathAccess{Accessors: accessors}, "", nil
}

func parseSubscript(s string) (Accessor, string, error) {
	// s[0] == '['
	if len(s) > 1 && s[1] == '"' {
		var key strings.Builder
		i := 2
		for {
			if i >= len(s) {
				return nil, "", fmt.Errorf("unterminated quote in property access")
			}
			if s[i] == '"' {
				i++
				break
			}
			if s[i] == '\\' && i+1 < len(s) && s[i+1] == '"' {
				key.WriteByte('"')
				i += 2
				continue
			}
			key.WriteByte(s[i])
			i++
		}
		if i >= len(s) || s[i] != ']' {
			return nil, "", fmt.Errorf("missing closing bracket in property access")
		}
		return StringSubscript{Value: key.String()}, s[i+1:], nil
	}

	rbracket := strings.IndexByte(s, ']')
	if rbracket == -1 {
		return nil, "", fmt.Errorf("missing closing bracket in list index")
	}
	idx, err := strconv.ParseInt(s[1:rbracket], 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid list index: %w", err)
	}
	return IntSubscript{Value: idx}, s[rbracket+1:], nil
}
