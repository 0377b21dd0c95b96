package store

import (
	"errors"
	"fmt"
	"sync"

	"gihan9a/patchstore/pkg/patch"
)

// Registry maps container ids to their live values. It is created once per
// session and passed explicitly to whatever needs to resolve containers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []*Entry
}

// Entry is a registered container. Its value is only read and replaced by
// the session owning the registry.
type Entry struct {
	id    string
	seq   int
	value any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a container whose initial value is produced by factory.
// Registering an id that is already in use fails with ErrDuplicateContainer
// and leaves the existing container untouched.
func (r *Registry) Register(id string, factory func() (any, error)) (*Entry, error) {
	if id == "" {
		return nil, errors.New("register container: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return nil, fmt.Errorf("register container %q: %w", id, ErrDuplicateContainer)
	}
	v, err := factory()
	if err != nil {
		return nil, fmt.Errorf("register container %q: %w", id, err)
	}
	tree, err := patch.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("register container %q: %w", id, err)
	}

	e := &Entry{id: id, seq: len(r.order), value: tree}
	r.entries[id] = e
	r.order = append(r.order, e)
	return e, nil
}

// Resolve returns the container registered under id.
func (r *Registry) Resolve(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContainer, id)
	}
	return e, nil
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	for i, e := range r.order {
		ids[i] = e.id
	}
	return ids
}

// Len returns the number of registered containers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ID returns the container id.
func (e *Entry) ID() string { return e.id }

// Snapshot returns a deep copy of the container's current value tree.
// Outside of a Session it is only safe while no command is running; use
// Session.Snapshot otherwise.
func (e *Entry) Snapshot() any { return patch.Clone(e.value) }
