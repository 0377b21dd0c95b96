// Package patch models RFC 6902 JSON Patch operations over generic JSON value
// trees and provides the diff, inversion and application primitives used by
// the store.
package patch

import (
	"strconv"
	"strings"

	"github.com/wI2L/jsondiff"
)

// Op is the kind of a patch operation.
type Op string

// Patch operations, RFC 6902 section 4.
const (
	OpAdd     Op = jsondiff.OperationAdd
	OpRemove  Op = jsondiff.OperationRemove
	OpReplace Op = jsondiff.OperationReplace
	OpMove    Op = jsondiff.OperationMove
	OpCopy    Op = jsondiff.OperationCopy
	OpTest    Op = jsondiff.OperationTest
)

// Valid reports whether o is one of the six RFC 6902 operations.
func (o Op) Valid() bool {
	switch o {
	case OpAdd, OpRemove, OpReplace, OpMove, OpCopy, OpTest:
		return true
	}
	return false
}

func (o Op) hasValue() bool {
	return o == OpAdd || o == OpReplace || o == OpTest
}

func (o Op) hasFrom() bool {
	return o == OpMove || o == OpCopy
}

// Path is a location in a value tree, as a sequence of RFC 6901 reference
// tokens. Array elements are addressed by decimal index tokens; "-" addresses
// the position past the last element and is only meaningful for add.
// The empty path is the document root.
type Path []string

// EndOfArray is the token referencing the position after the last element.
const EndOfArray = "-"

var (
	pointerEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// ParsePointer parses a JSON Pointer string such as "/items/0/name".
func ParsePointer(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	if s[0] != '/' {
		return nil, &PathError{Path: Path{s}, Err: ErrInvalidPointer}
	}
	tokens := strings.Split(s[1:], "/")
	for i, t := range tokens {
		tokens[i] = pointerUnescaper.Replace(t)
	}
	return Path(tokens), nil
}

// MustParsePointer is like ParsePointer but panics on malformed input.
func MustParsePointer(s string) Path {
	p, err := ParsePointer(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the JSON Pointer form of p.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range p {
		sb.WriteByte('/')
		sb.WriteString(pointerEscaper.Replace(t))
	}
	return sb.String()
}

// IsRoot reports whether p addresses the whole document.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Append returns a new path with tokens appended to p.
func (p Path) Append(tokens ...string) Path {
	out := make(Path, 0, len(p)+len(tokens))
	out = append(out, p...)
	return append(out, tokens...)
}

// AppendIndex returns a new path with an array index appended to p.
func (p Path) AppendIndex(i int) Path {
	return p.Append(strconv.Itoa(i))
}

// Split returns the parent of p and its last token. It must not be called on
// the root path.
func (p Path) Split() (Path, string) {
	return p[:len(p)-1], p[len(p)-1]
}

// Equal reports whether p and q address the same location.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q is a proper prefix of p.
func (p Path) HasPrefix(q Path) bool {
	return len(q) < len(p) && q.Equal(p[:len(q)])
}

// Patch is a single structural edit of a value tree.
type Patch struct {
	Op    Op
	Path  Path
	From  Path // move and copy only
	Value any  // add, replace and test only
}

// Set is an ordered sequence of patches. Later patches may depend on earlier
// ones having been applied.
type Set []Patch

// String renders the set as newline separated JSON operations.
func (s Set) String() string {
	var sb strings.Builder
	for i, p := range s {
		if i > 0 {
			sb.WriteByte('\n')
		}
		b, err := p.MarshalJSON()
		if err != nil {
			sb.WriteString("<invalid patch>")
			continue
		}
		sb.Write(b)
	}
	return sb.String()
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, p := range s {
		out[i] = Patch{
			Op:    p.Op,
			Path:  p.Path.Append(),
			Value: Clone(p.Value),
		}
		if p.From != nil {
			out[i].From = p.From.Append()
		}
	}
	return out
}
