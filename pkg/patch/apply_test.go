package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTree(t *testing.T, v any) any {
	t.Helper()
	tree, err := Normalize(v)
	require.NoError(t, err)
	return tree
}

func TestParsePointer(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"", Path{}},
		{"/", Path{""}},
		{"/foo/0", Path{"foo", "0"}},
		{"/a~1b/m~0n", Path{"a/b", "m~n"}},
	}
	for _, tt := range tests {
		got, err := ParsePointer(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.in, got.String())
	}

	_, err := ParsePointer("foo")
	assert.ErrorIs(t, err, ErrInvalidPointer)
}

func TestApply(t *testing.T) {
	doc := map[string]any{
		"name":  "doc",
		"items": []any{"a", "b", "c"},
		"meta":  map[string]any{"n": 1.0},
	}

	tests := []struct {
		name  string
		patch Patch
		check func(t *testing.T, got any)
	}{
		{
			name:  "add member",
			patch: Patch{Op: OpAdd, Path: Path{"meta", "x"}, Value: true},
			check: func(t *testing.T, got any) {
				assert.Equal(t, true, got.(map[string]any)["meta"].(map[string]any)["x"])
			},
		},
		{
			name:  "insert into array",
			patch: Patch{Op: OpAdd, Path: Path{"items", "1"}, Value: "z"},
			check: func(t *testing.T, got any) {
				assert.Equal(t, []any{"a", "z", "b", "c"}, got.(map[string]any)["items"])
			},
		},
		{
			name:  "append to array",
			patch: Patch{Op: OpAdd, Path: Path{"items", "-"}, Value: "d"},
			check: func(t *testing.T, got any) {
				assert.Equal(t, []any{"a", "b", "c", "d"}, got.(map[string]any)["items"])
			},
		},
		{
			name:  "remove element",
			patch: Patch{Op: OpRemove, Path: Path{"items", "0"}},
			check: func(t *testing.T, got any) {
				assert.Equal(t, []any{"b", "c"}, got.(map[string]any)["items"])
			},
		},
		{
			name:  "replace root",
			patch: Patch{Op: OpReplace, Path: Path{}, Value: "flat"},
			check: func(t *testing.T, got any) {
				assert.Equal(t, "flat", got)
			},
		},
		{
			name:  "move element",
			patch: Patch{Op: OpMove, From: Path{"items", "0"}, Path: Path{"items", "-"}},
			check: func(t *testing.T, got any) {
				assert.Equal(t, []any{"b", "c", "a"}, got.(map[string]any)["items"])
			},
		},
		{
			name:  "copy member",
			patch: Patch{Op: OpCopy, From: Path{"meta"}, Path: Path{"meta2"}},
			check: func(t *testing.T, got any) {
				m := got.(map[string]any)
				assert.Equal(t, m["meta"], m["meta2"])
			},
		},
		{
			name:  "test passes",
			patch: Patch{Op: OpTest, Path: Path{"meta", "n"}, Value: 1.0},
			check: func(t *testing.T, got any) {
				assert.Equal(t, doc, got)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(doc, Set{tt.patch})
			require.NoError(t, err)
			tt.check(t, got)
		})
	}

	// Apply works on a copy.
	assert.Equal(t, []any{"a", "b", "c"}, doc["items"])
}

func TestApplyErrors(t *testing.T) {
	doc := map[string]any{"items": []any{1.0}, "n": 2.0}

	tests := []struct {
		name  string
		patch Patch
		want  error
	}{
		{"missing member", Patch{Op: OpReplace, Path: Path{"missing"}, Value: 1.0}, ErrPathNotFound},
		{"index out of range", Patch{Op: OpRemove, Path: Path{"items", "3"}}, ErrPathNotFound},
		{"leading zero index", Patch{Op: OpReplace, Path: Path{"items", "00"}, Value: 1.0}, ErrPathNotFound},
		{"descend into scalar", Patch{Op: OpAdd, Path: Path{"n", "x"}, Value: 1.0}, ErrPathNotFound},
		{"test mismatch", Patch{Op: OpTest, Path: Path{"n"}, Value: 3.0}, ErrTestFailed},
		{"move into child", Patch{Op: OpMove, From: Path{"items"}, Path: Path{"items", "0"}}, ErrInvalidOperation},
		{"unknown op", Patch{Op: "merge", Path: Path{"n"}}, ErrInvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(doc, Set{tt.patch})
			require.ErrorIs(t, err, tt.want)

			var pe *PathError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.patch.Op, pe.Op)
		})
	}
}

func TestApplyIsOrdered(t *testing.T) {
	doc := mustTree(t, map[string]any{"items": []any{"a"}})
	set := Set{
		{Op: OpAdd, Path: Path{"items", "-"}, Value: "b"},
		{Op: OpReplace, Path: Path{"items", "1"}, Value: "c"},
	}
	got, err := Apply(doc, set)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "c"}, got.(map[string]any)["items"])

	// Reordered, the replace targets an index that does not exist yet.
	_, err = Apply(doc, Set{set[1], set[0]})
	assert.ErrorIs(t, err, ErrPathNotFound)
}
