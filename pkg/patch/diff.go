package patch

import (
	"fmt"
	"strconv"

	"github.com/wI2L/jsondiff"
)

// Diff computes the forward patch set turning base into next, and the inverse
// set turning next back into base. Both values must be value trees (see
// Normalize); neither is modified.
//
// Forward operations are emitted by jsondiff in document pre-order; array
// shrinking removes repeatedly at the first dropped index and growing appends
// with "-", so every path is valid against the document produced by the
// operations before it.
func Diff(base, next any) (do, undo Set, err error) {
	ops, err := jsondiff.CompareWithoutMarshal(base, next)
	if err != nil {
		return nil, nil, fmt.Errorf("diff: %w", err)
	}
	do = make(Set, 0, len(ops))
	for _, op := range ops {
		p, err := fromOperation(op)
		if err != nil {
			return nil, nil, fmt.Errorf("diff: %w", err)
		}
		do = append(do, p)
	}
	undo, err = Invert(base, do)
	if err != nil {
		return nil, nil, fmt.Errorf("diff: %w", err)
	}
	return do, undo, nil
}

func fromOperation(op jsondiff.Operation) (Patch, error) {
	path, err := ParsePointer(op.Path)
	if err != nil {
		return Patch{}, err
	}
	p := Patch{Op: Op(op.Type), Path: path}
	if p.Op.hasValue() {
		p.Value = Clone(op.Value)
	}
	if p.Op.hasFrom() {
		if p.From, err = ParsePointer(op.From); err != nil {
			return Patch{}, err
		}
	}
	return p, nil
}

// Invert returns the set that undoes set when applied to the document set
// produces from base. Each operation is inverted against the document it
// actually applies to, then the inverted operations are emitted in reverse
// order. Test operations have no inverse and are dropped.
func Invert(base any, set Set) (Set, error) {
	doc := Clone(base)
	steps := make([]Set, 0, len(set))
	for i, p := range set {
		inv, err := invertOne(doc, p)
		if err != nil {
			return nil, fmt.Errorf("invert patch %d: %w", i, err)
		}
		if doc, err = applyOne(doc, p); err != nil {
			return nil, fmt.Errorf("invert patch %d: %w", i, err)
		}
		steps = append(steps, inv)
	}
	var out Set
	for i := len(steps) - 1; i >= 0; i-- {
		out = append(out, steps[i]...)
	}
	return out, nil
}

// invertOne computes the operations undoing p, given the document p is about
// to be applied to.
func invertOne(doc any, p Patch) (Set, error) {
	switch p.Op {
	case OpAdd, OpCopy:
		return invertInsert(doc, p.Path)
	case OpRemove:
		old, err := get(doc, p.Path)
		if err != nil {
			return nil, &PathError{Op: p.Op, Path: p.Path, Err: err}
		}
		if p.Path.IsRoot() {
			return Set{{Op: OpReplace, Path: Path{}, Value: Clone(old)}}, nil
		}
		return Set{{Op: OpAdd, Path: p.Path, Value: Clone(old)}}, nil
	case OpReplace:
		old, err := get(doc, p.Path)
		if err != nil {
			return nil, &PathError{Op: p.Op, Path: p.Path, Err: err}
		}
		return Set{{Op: OpReplace, Path: p.Path, Value: Clone(old)}}, nil
	case OpMove:
		return invertMove(doc, p)
	case OpTest:
		return nil, nil
	default:
		return nil, &PathError{Op: p.Op, Path: p.Path, Err: fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, p.Op)}
	}
}

// invertInsert undoes an add or copy at path. Adding to an existing object
// member overwrites it, so the inverse restores the old value instead of
// removing the member.
func invertInsert(doc any, path Path) (Set, error) {
	if path.IsRoot() {
		return Set{{Op: OpReplace, Path: Path{}, Value: Clone(doc)}}, nil
	}
	parentPath, tok := path.Split()
	parent, err := get(doc, parentPath)
	if err != nil {
		return nil, &PathError{Op: OpAdd, Path: path, Err: err}
	}
	switch t := parent.(type) {
	case map[string]any:
		if old, ok := t[tok]; ok {
			return Set{{Op: OpReplace, Path: path, Value: Clone(old)}}, nil
		}
		return Set{{Op: OpRemove, Path: path}}, nil
	case []any:
		if tok == EndOfArray {
			return Set{{Op: OpRemove, Path: parentPath.AppendIndex(len(t))}}, nil
		}
		return Set{{Op: OpRemove, Path: path}}, nil
	default:
		return nil, &PathError{Op: OpAdd, Path: path, Err: fmt.Errorf("%w: parent is %s", ErrPathNotFound, kindOf(parent))}
	}
}

// invertMove undoes a move. The reverse move is evaluated against the moved
// document, where "-" has been resolved to a concrete index; an object member
// overwritten by the move is restored afterwards.
func invertMove(doc any, p Patch) (Set, error) {
	if p.From.Equal(p.Path) {
		return nil, nil
	}
	if p.Path.IsRoot() {
		return Set{{Op: OpReplace, Path: Path{}, Value: Clone(doc)}}, nil
	}
	parentPath, tok := p.Path.Split()
	parent, err := get(doc, parentPath)
	if err != nil {
		return nil, &PathError{Op: p.Op, Path: p.Path, Err: err}
	}
	target := p.Path
	var restore Set
	switch t := parent.(type) {
	case map[string]any:
		if old, ok := t[tok]; ok {
			restore = Set{{Op: OpAdd, Path: p.Path, Value: Clone(old)}}
		}
	case []any:
		if tok == EndOfArray {
			n := len(t)
			if len(p.From) > 0 {
				if fromParent, _ := p.From.Split(); fromParent.Equal(parentPath) {
					n--
				}
			}
			target = parentPath.Append(strconv.Itoa(n))
		}
	}
	return append(Set{{Op: OpMove, From: target, Path: p.From}}, restore...), nil
}
