package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/patchstore/pkg/patch"
	"gihan9a/patchstore/pkg/store"
)

func setup(t *testing.T) (*store.Session, *Catalog) {
	t.Helper()
	reg := store.NewRegistry()
	cat := NewCatalog(reg)
	_, err := cat.Define("users/alice", map[string]any{"name": "alice", "tags": []any{"a"}})
	require.NoError(t, err)
	return store.NewSession(reg), cat
}

func snapshot(t *testing.T, s *store.Session, id string) any {
	t.Helper()
	v, err := s.Snapshot(id)
	require.NoError(t, err)
	return v
}

func TestPatchCommandIsUndoable(t *testing.T) {
	s, cat := setup(t)
	before := snapshot(t, s, "users/alice")

	_, err := store.Execute(s, cat.PatchCommand(), PatchRequest{
		ID: "users/alice",
		Patches: patch.Set{
			{Op: patch.OpTest, Path: patch.Path{"name"}, Value: "alice"},
			{Op: patch.OpAdd, Path: patch.Path{"tags", "-"}, Value: "b"},
			{Op: patch.OpReplace, Path: patch.Path{"name"}, Value: "Alice"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Alice", "tags": []any{"a", "b"}}, snapshot(t, s, "users/alice"))

	done := s.Done()
	require.Len(t, done, 1)
	assert.Equal(t, "patch", done[0].Name)

	_, err = s.Undo()
	require.NoError(t, err)
	assert.Equal(t, before, snapshot(t, s, "users/alice"))
}

func TestPatchCommandFailsAtomically(t *testing.T) {
	s, cat := setup(t)
	before := snapshot(t, s, "users/alice")

	_, err := store.Execute(s, cat.PatchCommand(), PatchRequest{
		ID: "users/alice",
		Patches: patch.Set{
			{Op: patch.OpReplace, Path: patch.Path{"name"}, Value: "bob"},
			{Op: patch.OpTest, Path: patch.Path{"name"}, Value: "alice"},
		},
	})
	require.ErrorIs(t, err, patch.ErrTestFailed)
	assert.Equal(t, before, snapshot(t, s, "users/alice"))
	assert.False(t, s.Undoable())
}

func TestReplaceAndExternalEdit(t *testing.T) {
	s, cat := setup(t)

	_, err := store.Execute(s, cat.ReplaceCommand(), ReplaceRequest{ID: "users/alice", Value: []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, snapshot(t, s, "users/alice"))

	_, err = store.Execute(s, cat.ExternalEditCommand(), ReplaceRequest{ID: "users/alice", Value: "text"})
	require.NoError(t, err)
	assert.Equal(t, "text", snapshot(t, s, "users/alice"))

	done := s.Done()
	require.Len(t, done, 2)
	assert.Equal(t, "external-edit", done[1].Name)

	_, err = s.Undo()
	require.NoError(t, err)
	_, err = s.Undo()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "alice", "tags": []any{"a"}}, snapshot(t, s, "users/alice"))
}

func TestCatalogLookup(t *testing.T) {
	s, cat := setup(t)

	_, err := cat.Lookup("nobody")
	require.ErrorIs(t, err, store.ErrUnknownContainer)

	_, err = store.Execute(s, cat.PatchCommand(), PatchRequest{ID: "nobody"})
	require.ErrorIs(t, err, store.ErrUnknownContainer)

	_, err = cat.Define("users/alice", nil)
	require.ErrorIs(t, err, store.ErrDuplicateContainer)

	_, err = cat.Define("config", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "users/alice"}, cat.IDs())
}
