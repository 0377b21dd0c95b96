package store

import (
	"fmt"

	"gihan9a/patchstore/pkg/patch"
)

// Change is the forward and inverse patch sets of one container within a
// CommandRecord. Applying Do then Undo restores the container's value.
type Change struct {
	Container string    `json:"container" msgpack:"container"`
	Do        patch.Set `json:"do" msgpack:"do"`
	Undo      patch.Set `json:"undo" msgpack:"undo"`
}

// CommandRecord is one committed command: the changes of every container it
// touched, ordered by container registration.
type CommandRecord struct {
	ID      string   `json:"id" msgpack:"id"`
	Name    string   `json:"name" msgpack:"name"`
	Changes []Change `json:"changes" msgpack:"changes"`
}

// Containers returns the ids of the containers the record touches.
func (r *CommandRecord) Containers() []string {
	ids := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		ids[i] = c.Container
	}
	return ids
}

// Direction selects which side of a CommandRecord is replayed.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "undo"
	}
	return "redo"
}

// History holds the done and undone stacks of committed records. It is not
// safe for concurrent use; Session serializes access to it.
type History struct {
	reg    *Registry
	done   []*CommandRecord
	undone []*CommandRecord
	limit  int

	// replayed is called after a record has been applied by Undo or Redo.
	replayed func(rec *CommandRecord, dir Direction)
}

// NewHistory creates an empty history resolving containers through reg.
// A positive limit bounds the done stack; the oldest records are dropped.
func NewHistory(reg *Registry, limit int) *History {
	return &History{reg: reg, limit: limit}
}

// Push appends an already applied record to the done stack and clears the
// undone stack.
func (h *History) Push(rec *CommandRecord) {
	h.done = append(h.done, rec)
	h.undone = nil
	if h.limit > 0 && len(h.done) > h.limit {
		drop := len(h.done) - h.limit
		clear(h.done[:drop])
		h.done = h.done[drop:]
	}
}

// Undo applies the undo patches of the most recent record and moves it to
// the undone stack. With nothing to undo it reports false and does nothing.
// If replay fails no container is changed and the stacks are left as they
// were.
func (h *History) Undo() (bool, error) {
	return h.step(&h.done, &h.undone, Backward)
}

// Redo is the inverse of Undo, replaying do patches.
func (h *History) Redo() (bool, error) {
	return h.step(&h.undone, &h.done, Forward)
}

func (h *History) step(from, to *[]*CommandRecord, dir Direction) (bool, error) {
	n := len(*from)
	if n == 0 {
		return false, nil
	}
	rec := (*from)[n-1]
	if err := applyChanges(h.reg, rec.Changes, dir); err != nil {
		return false, fmt.Errorf("%s %q (%s): %w", dir, rec.Name, rec.ID, err)
	}
	(*from)[n-1] = nil
	*from = (*from)[:n-1]
	*to = append(*to, rec)
	if h.replayed != nil {
		h.replayed(rec, dir)
	}
	return true, nil
}

// Undoable reports whether there is a record to undo.
func (h *History) Undoable() bool { return len(h.done) > 0 }

// Redoable reports whether there is a record to redo.
func (h *History) Redoable() bool { return len(h.undone) > 0 }

// Done returns the done stack, oldest first.
func (h *History) Done() []*CommandRecord { return append(make([]*CommandRecord, 0, len(h.done)), h.done...) }

// Undone returns the undone stack, oldest first; the next record to redo is
// last.
func (h *History) Undone() []*CommandRecord {
	return append(make([]*CommandRecord, 0, len(h.undone)), h.undone...)
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.done = nil
	h.undone = nil
}

// applyChanges replays one side of changes onto the live containers. Every
// new value is computed before any is stored, so a failing container leaves
// all of them untouched.
func applyChanges(reg *Registry, changes []Change, dir Direction) error {
	entries := make([]*Entry, len(changes))
	values := make([]any, len(changes))
	for i, c := range changes {
		e, err := reg.Resolve(c.Container)
		if err != nil {
			return err
		}
		set := c.Do
		if dir == Backward {
			set = c.Undo
		}
		v, err := patch.Apply(e.value, set)
		if err != nil {
			return fmt.Errorf("container %q: %w", c.Container, err)
		}
		entries[i], values[i] = e, v
	}
	for i, e := range entries {
		e.value = values[i]
	}
	return nil
}
