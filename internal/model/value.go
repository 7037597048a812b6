package model

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ValueKind tags which alternative of the Value sum type is populated.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt64
	KindFloat64
	KindText
	KindBlob
	KindBool
)

// Value is a dynamically-typed scalar cell, mirroring the column values a
// SQLite row can hold. JSON encoding preserves the integer/float
// distinction (SQLite's own INTEGER/REAL split) rather than collapsing
// everything to float64, which encoding/json's default map[string]any
// decoding would do.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
	Blob  []byte
	Bool  bool
}

func Null() Value              { return Value{Kind: KindNull} }
func Int64(v int64) Value      { return Value{Kind: KindInt64, Int: v} }
func Float64(v float64) Value  { return Value{Kind: KindFloat64, Float: v} }
func Text(v string) Value      { return Value{Kind: KindText, Text: v} }
func BlobValue(v []byte) Value { return Value{Kind: KindBlob, Blob: v} }
func Bool(v bool) Value        { return Value{Kind: KindBool, Bool: v} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// blobMarshalEnvelope wraps binary values so they survive JSON, which has
// no native byte-string type. Column values are rarely BLOBs in practice,
// but the format must not lose them.
type blobMarshalEnvelope struct {
	RBUBlobBase64 string `json:"__rbu_blob_b64"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt64:
		return json.Marshal(v.Int)
	case KindFloat64:
		return json.Marshal(v.Float)
	case KindText:
		return json.Marshal(v.Text)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindBlob:
		return json.Marshal(blobMarshalEnvelope{RBUBlobBase64: base64.StdEncoding.EncodeToString(v.Blob)})
	default:
		return nil, fmt.Errorf("model: unknown Value kind %d", v.Kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		*v = Null()
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env blobMarshalEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.RBUBlobBase64 != "" {
			b, err := base64.StdEncoding.DecodeString(env.RBUBlobBase64)
			if err != nil {
				return fmt.Errorf("model: decoding blob value: %w", err)
			}
			*v = BlobValue(b)
			return nil
		}
	}

	if len(trimmed) > 0 && (trimmed[0] == 't' || trimmed[0] == 'f') {
		var b bool
		if err := json.Unmarshal(trimmed, &b); err == nil {
			*v = Bool(b)
			return nil
		}
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("model: decoding text value: %w", err)
		}
		*v = Text(s)
		return nil
	}

	// json.Number preserves the literal's integer-vs-float shape instead
	// of collapsing every number to float64.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return fmt.Errorf("model: decoding numeric value: %w", err)
	}
	if i, err := num.Int64(); err == nil {
		*v = Int64(i)
		return nil
	}
	f, err := num.Float64()
	if err != nil {
		return fmt.Errorf("model: numeric value not int64 or float64: %w", err)
	}
	*v = Float64(f)
	return nil
}
