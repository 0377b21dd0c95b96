package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHash(t *testing.T) {
	assert.Equal(t, `"00000000"`, CalculateHash(nil))
	assert.Equal(t, CalculateHash([]byte("abc")), CalculateHash([]byte("abc")))
	assert.NotEqual(t, CalculateHash([]byte("abc")), CalculateHash([]byte("abd")))
}

func TestVersionOfIgnoresKeyOrder(t *testing.T) {
	a, err := VersionOf(map[string]any{"a": 1.0, "b": []any{"x"}})
	require.NoError(t, err)
	b, err := VersionOf(map[string]any{"b": []any{"x"}, "a": 1.0})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := VersionOf(map[string]any{"a": 2.0, "b": []any{"x"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = VersionOf(make(chan int))
	require.Error(t, err)
}

func TestIDFromPath(t *testing.T) {
	root := filepath.Join("srv", "data")

	id, err := IDFromPath(root, filepath.Join(root, "users", "alice.json"), ".json")
	require.NoError(t, err)
	assert.Equal(t, "users/alice", id)
	assert.Equal(t, filepath.Join(root, "users", "alice.json"), PathFromID(root, id, ".json"))

	_, err = IDFromPath(root, filepath.Join("srv", "other.json"), ".json")
	require.Error(t, err)
}
