package patch

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Normalize converts an arbitrary Go value into a value tree made only of
// map[string]any, []any, float64, string, bool and nil, using encoding/json
// semantics. Struct tags and custom marshalers are honoured.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return tree, nil
}

// Decode converts a value tree into a fresh value of type T.
func Decode[T any](tree any) (T, error) {
	var out T
	b, err := json.Marshal(tree)
	if err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

// Clone returns a deep copy of a value tree. Scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports structural equality of two value trees.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// normalizeDecoded folds the loose types produced by binary decoders into the
// value tree types: every number becomes float64 and every map gets string
// keys.
func normalizeDecoded(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeDecoded(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalizeDecoded(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalizeDecoded(e)
		}
		return t
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case uint:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
