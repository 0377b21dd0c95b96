package patch

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrPathNotFound is returned when a path segment does not resolve
	// against the document being patched.
	ErrPathNotFound = errors.New("path not found")
	// ErrTestFailed is returned when a test operation does not match.
	ErrTestFailed = errors.New("test failed")
	// ErrInvalidOperation is returned for malformed operations.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidPointer is returned for strings that are not JSON Pointers.
	ErrInvalidPointer = errors.New("invalid json pointer")
)

// PathError records the operation and path that failed to apply.
type PathError struct {
	Op   Op
	Path Path
	Err  error
}

func (e *PathError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%q: %v", e.Path.String(), e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path.String(), e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Apply applies set to a deep copy of doc and returns the result. doc is
// left untouched, also when an error is returned.
func Apply(doc any, set Set) (any, error) {
	return ApplyInPlace(Clone(doc), set)
}

// ApplyInPlace applies set to doc strictly in order. Maps are modified in
// place; the returned value must replace doc since arrays and the root may be
// reallocated. On error doc may be partially modified.
func ApplyInPlace(doc any, set Set) (any, error) {
	for i, p := range set {
		next, err := applyOne(doc, p)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		doc = next
	}
	return doc, nil
}

func applyOne(doc any, p Patch) (any, error) {
	var err error
	switch p.Op {
	case OpAdd:
		doc, err = add(doc, p.Path, Clone(p.Value))
	case OpRemove:
		doc, _, err = remove(doc, p.Path)
	case OpReplace:
		doc, err = replace(doc, p.Path, Clone(p.Value))
	case OpMove:
		if p.Path.HasPrefix(p.From) {
			return nil, &PathError{Op: p.Op, Path: p.Path, Err: fmt.Errorf("%w: cannot move %q into itself", ErrInvalidOperation, p.From.String())}
		}
		if p.From.Equal(p.Path) {
			_, err = get(doc, p.From)
			break
		}
		var v any
		doc, v, err = remove(doc, p.From)
		if err == nil {
			doc, err = add(doc, p.Path, v)
		}
	case OpCopy:
		var v any
		v, err = get(doc, p.From)
		if err == nil {
			doc, err = add(doc, p.Path, Clone(v))
		}
	case OpTest:
		var v any
		v, err = get(doc, p.Path)
		if err == nil && !Equal(v, p.Value) {
			err = ErrTestFailed
		}
	default:
		err = fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, p.Op)
	}
	if err != nil {
		return nil, &PathError{Op: p.Op, Path: p.Path, Err: err}
	}
	return doc, nil
}

// Get returns the value at path in doc without copying it.
func Get(doc any, path Path) (any, error) {
	v, err := get(doc, path)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}
	return v, nil
}

func get(doc any, path Path) (any, error) {
	cur := doc
	for _, tok := range path {
		next, err := child(cur, tok)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func child(node any, tok string) (any, error) {
	switch t := node.(type) {
	case map[string]any:
		v, ok := t[tok]
		if !ok {
			return nil, fmt.Errorf("%w: key %q", ErrPathNotFound, tok)
		}
		return v, nil
	case []any:
		i, err := index(tok, len(t)-1)
		if err != nil {
			return nil, err
		}
		return t[i], nil
	default:
		return nil, fmt.Errorf("%w: %q on %s", ErrPathNotFound, tok, kindOf(node))
	}
}

// index parses an array index token and checks it is within [0, max].
func index(tok string, max int) (int, error) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, fmt.Errorf("%w: bad index %q", ErrPathNotFound, tok)
	}
	i, err := strconv.Atoi(tok)
	if err != nil || i < 0 || i > max {
		return 0, fmt.Errorf("%w: index %q out of range", ErrPathNotFound, tok)
	}
	return i, nil
}

// modify walks to the parent of path and lets fn edit it. The possibly
// reallocated parent is written back into its own parent.
func modify(doc any, path Path, fn func(parent any, tok string) (any, error)) (any, error) {
	if len(path) == 1 {
		return fn(doc, path[0])
	}
	c, err := child(doc, path[0])
	if err != nil {
		return nil, err
	}
	nc, err := modify(c, path[1:], fn)
	if err != nil {
		return nil, err
	}
	switch t := doc.(type) {
	case map[string]any:
		t[path[0]] = nc
	case []any:
		i, _ := strconv.Atoi(path[0])
		t[i] = nc
	}
	return doc, nil
}

func add(doc any, path Path, v any) (any, error) {
	if path.IsRoot() {
		return v, nil
	}
	return modify(doc, path, func(parent any, tok string) (any, error) {
		switch t := parent.(type) {
		case map[string]any:
			t[tok] = v
			return t, nil
		case []any:
			if tok == EndOfArray {
				return append(t, v), nil
			}
			i, err := index(tok, len(t))
			if err != nil {
				return nil, err
			}
			t = append(t, nil)
			copy(t[i+1:], t[i:])
			t[i] = v
			return t, nil
		default:
			return nil, fmt.Errorf("%w: cannot add %q to %s", ErrPathNotFound, tok, kindOf(parent))
		}
	})
}

func replace(doc any, path Path, v any) (any, error) {
	if path.IsRoot() {
		return v, nil
	}
	return modify(doc, path, func(parent any, tok string) (any, error) {
		switch t := parent.(type) {
		case map[string]any:
			if _, ok := t[tok]; !ok {
				return nil, fmt.Errorf("%w: key %q", ErrPathNotFound, tok)
			}
			t[tok] = v
			return t, nil
		case []any:
			i, err := index(tok, len(t)-1)
			if err != nil {
				return nil, err
			}
			t[i] = v
			return t, nil
		default:
			return nil, fmt.Errorf("%w: %q on %s", ErrPathNotFound, tok, kindOf(parent))
		}
	})
}

// remove deletes the value at path and returns the new document together with
// the removed value. Removing the root yields a null document.
func remove(doc any, path Path) (any, any, error) {
	if path.IsRoot() {
		return nil, doc, nil
	}
	var removed any
	out, err := modify(doc, path, func(parent any, tok string) (any, error) {
		switch t := parent.(type) {
		case map[string]any:
			v, ok := t[tok]
			if !ok {
				return nil, fmt.Errorf("%w: key %q", ErrPathNotFound, tok)
			}
			removed = v
			delete(t, tok)
			return t, nil
		case []any:
			i, err := index(tok, len(t)-1)
			if err != nil {
				return nil, err
			}
			removed = t[i]
			return append(t[:i], t[i+1:]...), nil
		default:
			return nil, fmt.Errorf("%w: %q on %s", ErrPathNotFound, tok, kindOf(parent))
		}
	})
	return out, removed, err
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
