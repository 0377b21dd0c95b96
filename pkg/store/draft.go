package store

import (
	"fmt"
	"sort"

	"gihan9a/patchstore/pkg/patch"
)

// draftSet holds the writable drafts taken during one top-level mutation
// call. Drafts are fresh decoded copies of the base trees, so the base is
// never touched until the resulting patches are applied.
type draftSet struct {
	base  view
	guard func(*Entry) error
	items map[*Entry]*draftItem
}

type draftItem struct {
	entry  *Entry
	base   any
	state  any // *S
	encode func() (any, error)
	reset  func(tree any) error
}

// draftResult is the outcome of finishing one draft.
type draftResult struct {
	entry    *Entry
	next     any
	do, undo patch.Set
}

func newDraftSet(base view, guard func(*Entry) error) *draftSet {
	return &draftSet{base: base, guard: guard, items: make(map[*Entry]*draftItem)}
}

// tree lets queries and fetches inside a mutation observe the drafts.
func (d *draftSet) tree(e *Entry) (any, error) {
	if it, ok := d.items[e]; ok {
		return it.encode()
	}
	return d.base.tree(e)
}

func draftOf[S any](d *draftSet, e *Entry) (*S, error) {
	if it, ok := d.items[e]; ok {
		s, ok := it.state.(*S)
		if !ok {
			var want *S
			return nil, fmt.Errorf("container %q: drafted as %T, requested as %T", e.id, it.state, want)
		}
		return s, nil
	}
	if d.guard != nil {
		if err := d.guard(e); err != nil {
			return nil, err
		}
	}
	base, err := d.base.tree(e)
	if err != nil {
		return nil, err
	}
	s, err := decodeState[S](e.id, base)
	if err != nil {
		return nil, err
	}
	state := &s
	d.items[e] = &draftItem{
		entry: e,
		base:  base,
		state: state,
		encode: func() (any, error) {
			return patch.Normalize(*state)
		},
		reset: func(tree any) error {
			s, err := decodeState[S](e.id, tree)
			if err != nil {
				return err
			}
			*state = s
			return nil
		},
	}
	return state, nil
}

// checkpoint captures the current value of every draft taken so far.
func (d *draftSet) checkpoint() (map[*Entry]any, error) {
	cp := make(map[*Entry]any, len(d.items))
	for e, it := range d.items {
		tree, err := it.encode()
		if err != nil {
			return nil, fmt.Errorf("container %q: %w", e.id, err)
		}
		cp[e] = tree
	}
	return cp, nil
}

// rollback restores the drafts to cp in place, so pointers handed out
// earlier stay valid. Drafts taken after cp are dropped.
func (d *draftSet) rollback(cp map[*Entry]any) error {
	for e, it := range d.items {
		tree, ok := cp[e]
		if !ok {
			delete(d.items, e)
			continue
		}
		if err := it.reset(tree); err != nil {
			return fmt.Errorf("container %q: %w", e.id, err)
		}
	}
	return nil
}

// finish converts every draft into patches, in registration order. Drafts
// that did not change produce no result.
func (d *draftSet) finish() ([]draftResult, error) {
	items := make([]*draftItem, 0, len(d.items))
	for _, it := range d.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].entry.seq < items[j].entry.seq })

	results := make([]draftResult, 0, len(items))
	for _, it := range items {
		next, err := it.encode()
		if err != nil {
			return nil, fmt.Errorf("container %q: %w", it.entry.id, err)
		}
		do, undo, err := patch.Diff(it.base, next)
		if err != nil {
			return nil, fmt.Errorf("container %q: %w", it.entry.id, err)
		}
		if len(do) == 0 {
			continue
		}
		results = append(results, draftResult{entry: it.entry, next: next, do: do, undo: undo})
	}
	return results, nil
}

// runMutation hands a fresh MutationContext over d to run.
func runMutation(reg *Registry, d *draftSet, run func(*MutationContext) error) error {
	mc := &MutationContext{
		QueryContext: QueryContext{reg: reg, src: d, lease: &lease{}},
		drafts:       d,
	}
	defer mc.lease.close()
	return run(mc)
}
