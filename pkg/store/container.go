package store

import (
	"fmt"

	"gihan9a/patchstore/pkg/patch"
)

// Container is a typed handle to a registered container. S is converted to
// and from the container's value tree with encoding/json semantics, so only
// exported, JSON-encodable state survives.
type Container[S any] struct {
	id  string
	reg *Registry
}

// Define declares a container with its initial value and registers it.
// It must be called exactly once per id; a duplicate id or an initial value
// that cannot be encoded panics, since either would corrupt history replay.
func Define[S any](r *Registry, id string, initial S) Container[S] {
	c, err := TryDefine(r, id, initial)
	if err != nil {
		panic(err)
	}
	return c
}

// TryDefine is like Define but returns the registration error.
func TryDefine[S any](r *Registry, id string, initial S) (Container[S], error) {
	if _, err := r.Register(id, func() (any, error) { return initial, nil }); err != nil {
		return Container[S]{}, err
	}
	return Container[S]{id: id, reg: r}, nil
}

// ID returns the container id.
func (c Container[S]) ID() string { return c.id }

func (c Container[S]) resolve(r *Registry) (*Entry, error) {
	if c.reg == nil || c.reg != r {
		return nil, fmt.Errorf("%w: %q is not registered with this registry", ErrUnknownContainer, c.id)
	}
	return r.Resolve(c.id)
}

func decodeState[S any](id string, tree any) (S, error) {
	s, err := patch.Decode[S](tree)
	if err != nil {
		return s, fmt.Errorf("container %q: %w", id, err)
	}
	return s, nil
}
