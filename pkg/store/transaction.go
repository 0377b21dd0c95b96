package store

import (
	"fmt"
	"sort"

	"gihan9a/patchstore/pkg/patch"
)

// transaction is the in-flight command record. It is passed explicitly down
// the chain of dispatched commands and keeps, per touched container, the
// working value and the patches accumulated so far. Live values are read
// once, when a container is first touched.
type transaction struct {
	reg    *Registry
	work   map[*Entry]*pending
	closed bool
}

type pending struct {
	entry    *Entry
	tree     any
	do, undo patch.Set
}

func newTransaction(reg *Registry) *transaction {
	return &transaction{reg: reg, work: make(map[*Entry]*pending)}
}

func (t *transaction) tree(e *Entry) (any, error) {
	if p, ok := t.work[e]; ok {
		return p.tree, nil
	}
	return e.value, nil
}

// record runs a mutation against the working values. If it fails, its drafts
// are dropped and the transaction is unchanged.
func (t *transaction) record(run func(*MutationContext) error) error {
	if t.closed {
		return fmt.Errorf("%w: record after command returned", ErrCapabilityViolation)
	}
	d := newDraftSet(t, nil)
	if err := runMutation(t.reg, d, run); err != nil {
		return err
	}
	results, err := d.finish()
	if err != nil {
		return err
	}
	for _, r := range results {
		p, ok := t.work[r.entry]
		if !ok {
			p = &pending{entry: r.entry}
			t.work[r.entry] = p
		}
		p.tree = r.next
		p.do = append(p.do, r.do...)
		p.undo = append(r.undo, p.undo...)
	}
	return nil
}

// guardSilent rejects unrecorded commits to containers with pending recorded
// edits: those edits were computed against the value the commit would change.
func (t *transaction) guardSilent(e *Entry) error {
	if _, ok := t.work[e]; ok {
		return fmt.Errorf("%w: unrecorded commit to %q which has pending recorded edits", ErrCapabilityViolation, e.id)
	}
	return nil
}

// changes returns the accumulated patches in registration order.
func (t *transaction) changes() []Change {
	ps := make([]*pending, 0, len(t.work))
	for _, p := range t.work {
		if len(p.do) > 0 {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].entry.seq < ps[j].entry.seq })

	out := make([]Change, len(ps))
	for i, p := range ps {
		out[i] = Change{Container: p.entry.id, Do: p.do, Undo: p.undo}
	}
	return out
}
