package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		base, next any
	}{
		{"scalar replace", map[string]any{"count": 0}, map[string]any{"count": 1}},
		{"member added", map[string]any{"a": 1}, map[string]any{"a": 1, "b": "x"}},
		{"member removed", map[string]any{"a": 1, "b": []any{1, 2}}, map[string]any{"a": 1}},
		{"array grows", map[string]any{"xs": []any{1}}, map[string]any{"xs": []any{1, 2, 3}}},
		{"array shrinks", map[string]any{"xs": []any{1, 2, 3, 4}}, map[string]any{"xs": []any{9}}},
		{"nested", map[string]any{"a": map[string]any{"b": []any{map[string]any{"c": 1}}}}, map[string]any{"a": map[string]any{"b": []any{map[string]any{"c": 2, "d": nil}, "e"}}}},
		{"type change", map[string]any{"v": []any{1}}, map[string]any{"v": "one"}},
		{"root type change", []any{1, 2}, map[string]any{"x": 1}},
		{"unchanged", map[string]any{"a": []any{1, 2}}, map[string]any{"a": []any{1, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, next := mustTree(t, tt.base), mustTree(t, tt.next)
			do, undo, err := Diff(base, next)
			require.NoError(t, err)

			forward, err := Apply(base, do)
			require.NoError(t, err)
			assert.Equal(t, next, forward)

			back, err := Apply(forward, undo)
			require.NoError(t, err)
			assert.Equal(t, base, back)

			if Equal(base, next) {
				assert.Empty(t, do)
				assert.Empty(t, undo)
			}
		})
	}
}

func TestDiffLeavesInputsUntouched(t *testing.T) {
	base := mustTree(t, map[string]any{"xs": []any{1, 2, 3}})
	next := mustTree(t, map[string]any{"xs": []any{1}})
	baseCopy, nextCopy := Clone(base), Clone(next)

	_, _, err := Diff(base, next)
	require.NoError(t, err)
	assert.Equal(t, baseCopy, base)
	assert.Equal(t, nextCopy, next)
}

func TestInvertHandwritten(t *testing.T) {
	base := mustTree(t, map[string]any{
		"items": []any{"a", "b", "c"},
		"m":     map[string]any{"k": "old", "j": "moved"},
	})
	set := Set{
		{Op: OpAdd, Path: Path{"m", "k"}, Value: "overwritten"},
		{Op: OpMove, From: Path{"items", "0"}, Path: Path{"items", "-"}},
		{Op: OpMove, From: Path{"m", "j"}, Path: Path{"m", "k"}},
		{Op: OpCopy, From: Path{"items", "0"}, Path: Path{"items", "1"}},
		{Op: OpTest, Path: Path{"items", "0"}, Value: "b"},
		{Op: OpRemove, Path: Path{"items", "2"}},
	}

	forward, err := Apply(base, set)
	require.NoError(t, err)

	undo, err := Invert(base, set)
	require.NoError(t, err)
	for _, p := range undo {
		assert.NotEqual(t, OpTest, p.Op)
	}

	back, err := Apply(forward, undo)
	require.NoError(t, err)
	assert.Equal(t, base, back)
}

func TestInvertFailsOnBadBase(t *testing.T) {
	_, err := Invert(map[string]any{}, Set{{Op: OpRemove, Path: Path{"missing"}}})
	assert.ErrorIs(t, err, ErrPathNotFound)
}
