package braidproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gihan9a/patchstore/pkg/patch"
)

// StatusSubscribed is the status code of a successful subscription response
const StatusSubscribed = 209

// updateSeparator ends every update in a subscription stream
const updateSeparator = "\r\n\r\n\r\n\r\n\r\n"

// FullUpdate builds an update carrying a whole body
func FullUpdate(version string, parents []string, body []byte) Update {
	return Update{Version: []string{version}, Parents: parents, Body: string(body)}
}

// FromPatchSet converts JSON patch operations to Braid patches with the
// operation as unit and the JSON pointer as range.
func FromPatchSet(set patch.Set) ([]Patch, error) {
	out := make([]Patch, 0, len(set))
	for _, p := range set {
		bp := Patch{Unit: string(p.Op), Range: p.Path.String()}
		var content any
		switch p.Op {
		case patch.OpMove, patch.OpCopy:
			content = p.From.String()
		case patch.OpRemove:
			out = append(out, bp)
			continue
		default:
			content = p.Value
		}
		data, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", p.Op, p.Path, err)
		}
		bp.Content = string(data)
		out = append(out, bp)
	}
	return out, nil
}

// WriteTo writes the update in subscription stream framing. Updates without
// patches carry Body.
func (u Update) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "Version: %s\r\n", strings.Join(u.Version, ", "))
	fmt.Fprintf(&b, "Parents: %s\r\n", strings.Join(u.Parents, ", "))

	if len(u.Patches) == 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(u.Body))
		b.WriteString("\r\n")
		b.WriteString(u.Body)
	} else {
		if len(u.Patches) > 1 {
			fmt.Fprintf(&b, "Patches: %d\r\n\r\n", len(u.Patches))
		}
		for i, p := range u.Patches {
			if i > 0 {
				b.WriteString("\r\n\r\n")
			}
			fmt.Fprintf(&b, "Content-Length: %d\r\n", len(p.Content))
			fmt.Fprintf(&b, "Content-Range: %s %s\r\n", p.Unit, p.Range)
			b.WriteString("\r\n")
			b.WriteString(p.Content)
		}
	}

	b.WriteString(updateSeparator)
	return b.WriteTo(w)
}
