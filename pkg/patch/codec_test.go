package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchJSONWireFormat(t *testing.T) {
	set := Set{
		{Op: OpReplace, Path: Path{"a/b", "0"}, Value: nil},
		{Op: OpRemove, Path: Path{"x"}},
		{Op: OpMove, From: Path{"y"}, Path: Path{"z"}},
	}
	b, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"op":"replace","path":"/a~1b/0","value":null},
		{"op":"remove","path":"/x"},
		{"op":"move","from":"/y","path":"/z"}
	]`, string(b))

	var decoded Set
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, set, decoded)
}

func TestPatchJSONRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"unknown op":    `{"op":"merge","path":"/a"}`,
		"missing value": `{"op":"add","path":"/a"}`,
		"relative path": `{"op":"remove","path":"a"}`,
		"relative from": `{"op":"copy","from":"a","path":"/b"}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			var p Patch
			assert.Error(t, json.Unmarshal([]byte(in), &p))
		})
	}
}

func TestPatchMsgpack(t *testing.T) {
	set := Set{
		{Op: OpAdd, Path: Path{"items", "-"}, Value: map[string]any{"n": 3.0, "tags": []any{"a", true, nil}}},
		{Op: OpReplace, Path: Path{"count"}, Value: 2.5},
		{Op: OpCopy, From: Path{"a"}, Path: Path{"b"}},
	}
	b, err := MarshalMsgpack(set)
	require.NoError(t, err)

	decoded, err := UnmarshalMsgpack(b)
	require.NoError(t, err)
	assert.Equal(t, set, decoded)
}
