package patch

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// wireOp is the RFC 6902 representation of a Patch.
type wireOp struct {
	Op    Op              `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements the json.Marshaler interface. Paths are written as
// JSON Pointers and value is always present for add, replace and test, also
// when it is null.
func (p Patch) MarshalJSON() ([]byte, error) {
	w := wireOp{Op: p.Op, Path: p.Path.String()}
	if p.Op.hasFrom() {
		w.From = p.From.String()
	}
	if p.Op.hasValue() {
		b, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		w.Value = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Patch) UnmarshalJSON(b []byte) error {
	var w wireOp
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out, err := w.patch()
	if err != nil {
		return err
	}
	if w.Op.hasValue() {
		if len(w.Value) == 0 {
			return fmt.Errorf("%w: %s without value", ErrInvalidOperation, w.Op)
		}
		if err := json.Unmarshal(w.Value, &out.Value); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

func (w wireOp) patch() (Patch, error) {
	if !w.Op.Valid() {
		return Patch{}, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, w.Op)
	}
	path, err := ParsePointer(w.Path)
	if err != nil {
		return Patch{}, err
	}
	p := Patch{Op: w.Op, Path: path}
	if w.Op.hasFrom() {
		if p.From, err = ParsePointer(w.From); err != nil {
			return Patch{}, err
		}
	}
	return p, nil
}

// msgpackOp is the binary representation of a Patch.
type msgpackOp struct {
	Op    string `msgpack:"op"`
	Path  string `msgpack:"path"`
	From  string `msgpack:"from,omitempty"`
	Value any    `msgpack:"value"`
}

var (
	_ msgpack.CustomEncoder = Patch{}
	_ msgpack.CustomDecoder = (*Patch)(nil)
)

// EncodeMsgpack implements the msgpack.CustomEncoder interface.
func (p Patch) EncodeMsgpack(enc *msgpack.Encoder) error {
	m := msgpackOp{Op: string(p.Op), Path: p.Path.String()}
	if p.Op.hasFrom() {
		m.From = p.From.String()
	}
	if p.Op.hasValue() {
		m.Value = p.Value
	}
	return enc.Encode(m)
}

// DecodeMsgpack implements the msgpack.CustomDecoder interface.
func (p *Patch) DecodeMsgpack(dec *msgpack.Decoder) error {
	var m msgpackOp
	if err := dec.Decode(&m); err != nil {
		return err
	}
	out, err := wireOp{Op: Op(m.Op), Path: m.Path, From: m.From}.patch()
	if err != nil {
		return err
	}
	if out.Op.hasValue() {
		out.Value = normalizeDecoded(m.Value)
	}
	*p = out
	return nil
}

// MarshalMsgpack encodes set with msgpack.
func MarshalMsgpack(set Set) ([]byte, error) {
	return msgpack.Marshal(set)
}

// UnmarshalMsgpack decodes a set produced by MarshalMsgpack.
func UnmarshalMsgpack(b []byte) (Set, error) {
	var set Set
	if err := msgpack.Unmarshal(b, &set); err != nil {
		return nil, fmt.Errorf("decode patch set: %w", err)
	}
	return set, nil
}
