package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NewRow builds a Row from ordered column names and a matching value slice.
func NewRow(columns []string, values []Value) Row {
	r := Row{Columns: append([]string(nil), columns...), Values: make(map[string]Value, len(columns))}
	for i, c := range columns {
		r.Values[c] = values[i]
	}
	return r
}

// Get returns the value for column name, or Null if absent.
func (r Row) Get(name string) Value {
	if v, ok := r.Values[name]; ok {
		return v
	}
	return Null()
}

// MarshalJSON renders the row as a JSON object with keys in Columns order,
// so two encodes of the same row produce byte-identical JSON.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Get(col))
		if err != nil {
			return nil, fmt.Errorf("model: marshaling column %q: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a row object, recording key order as Columns.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("model: decoding row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("model: expected row object")
	}

	row := Row{Values: make(map[string]Value)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("model: decoding row key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("model: row key is not a string")
		}

		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("model: decoding value for column %q: %w", key, err)
		}
		row.Columns = append(row.Columns, key)
		row.Values[key] = v
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("model: decoding row close: %w", err)
	}

	*r = row
	return nil
}
