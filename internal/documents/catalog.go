// Package documents holds schemaless JSON containers and the commands that
// edit them.
package documents

import (
	"fmt"
	"sort"
	"sync"

	"gihan9a/patchstore/pkg/patch"
	"gihan9a/patchstore/pkg/store"
)

// Catalog keeps a typed handle per document container
type Catalog struct {
	reg  *store.Registry
	mu   sync.RWMutex
	docs map[string]store.Container[any]
}

// NewCatalog creates a catalog registering containers in reg
func NewCatalog(reg *store.Registry) *Catalog {
	return &Catalog{reg: reg, docs: make(map[string]store.Container[any])}
}

// Define registers a document with its initial value
func (c *Catalog) Define(id string, initial any) (store.Container[any], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := store.TryDefine(c.reg, id, initial)
	if err != nil {
		return doc, err
	}
	c.docs[id] = doc
	return doc, nil
}

// Lookup returns the handle of a document
func (c *Catalog) Lookup(id string) (store.Container[any], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return doc, fmt.Errorf("%w: %q", store.ErrUnknownContainer, id)
	}
	return doc, nil
}

// IDs returns the document ids, sorted
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PatchRequest applies a JSON patch to one document
type PatchRequest struct {
	ID      string
	Patches patch.Set
}

// ReplaceRequest swaps a document's whole value
type ReplaceRequest struct {
	ID    string
	Value any
}

// PatchCommand returns the recorded command applying a PatchRequest. A
// failing operation, including a failed test, aborts the whole request.
func (c *Catalog) PatchCommand() store.Command[PatchRequest, struct{}] {
	return store.NewCommand("patch", func(ctx *store.CommandContext, req PatchRequest) (struct{}, error) {
		doc, err := c.Lookup(req.ID)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, store.Record(ctx, applyPatch(doc), req.Patches)
	})
}

// ReplaceCommand returns the recorded command applying a ReplaceRequest
func (c *Catalog) ReplaceCommand() store.Command[ReplaceRequest, struct{}] {
	return c.replaceCommand("replace")
}

// ExternalEditCommand is ReplaceCommand under its own name, for values
// changed outside of the store, e.g. a seed file edited on disk.
func (c *Catalog) ExternalEditCommand() store.Command[ReplaceRequest, struct{}] {
	return c.replaceCommand("external-edit")
}

func (c *Catalog) replaceCommand(name string) store.Command[ReplaceRequest, struct{}] {
	return store.NewCommand(name, func(ctx *store.CommandContext, req ReplaceRequest) (struct{}, error) {
		doc, err := c.Lookup(req.ID)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, store.Record(ctx, replaceValue(doc), req.Value)
	})
}

func applyPatch(doc store.Container[any]) store.Mutation[patch.Set] {
	return store.StateMutation(doc, func(state *any, set patch.Set) error {
		next, err := patch.ApplyInPlace(*state, set)
		if err != nil {
			return err
		}
		*state = next
		return nil
	})
}

func replaceValue(doc store.Container[any]) store.Mutation[any] {
	return store.StateMutation(doc, func(state *any, value any) error {
		tree, err := patch.Normalize(value)
		if err != nil {
			return err
		}
		*state = tree
		return nil
	})
}
