package model

import (
	"encoding/json"
	"testing"
)

func TestValueRoundTripPreservesIntVsFloat(t *testing.T) {
	cases := []Value{
		Null(),
		Int64(42),
		Float64(3.5),
		Text("hello"),
		Bool(true),
		BlobValue([]byte{1, 2, 3}),
	}

	for _, v := range cases {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%+v): %v", v, err)
		}
		var got Value
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got.Kind != v.Kind {
			t.Fatalf("kind mismatch for %+v: got %v want %v (json=%s)", v, got.Kind, v.Kind, data)
		}
	}
}

func TestValueIntegerDoesNotBecomeFloat(t *testing.T) {
	data, _ := json.Marshal(Int64(7))
	if string(data) != "7" {
		t.Fatalf("expected literal 7, got %s", data)
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	if v.Kind != KindInt64 || v.Int != 7 {
		t.Fatalf("expected Int64(7), got %+v", v)
	}
}

func TestRowPreservesColumnOrder(t *testing.T) {
	row := NewRow([]string{"id", "name", "email"}, []Value{Int64(1), Text("ada"), Null()})

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Row
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if len(decoded.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(decoded.Columns))
	}
	for i, want := range []string{"id", "name", "email"} {
		if decoded.Columns[i] != want {
			t.Fatalf("column %d = %q, want %q", i, decoded.Columns[i], want)
		}
	}

	// Re-marshaling must reproduce byte-identical JSON, since the encoder
	// relies on column order for a stable rendering.
	data2, err := json.Marshal(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(data2) {
		t.Fatalf("re-marshal mismatch:\n%s\nvs\n%s", data, data2)
	}
}

func TestDatabaseRoundTrip(t *testing.T) {
	db := Database{
		Tables:  []Table{{Name: "users", SQL: "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"}},
		Indexes: []Index{{Name: "idx_users_name", TableName: "users", SQL: "CREATE INDEX idx_users_name ON users(name)"}},
		Data: map[string][]Row{
			"users": {
				NewRow([]string{"id", "name"}, []Value{Int64(1), Text("ada")}),
				NewRow([]string{"id", "name"}, []Value{Int64(2), Text("grace")}),
			},
		},
	}

	data, err := json.Marshal(db)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Database
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if len(decoded.Data["users"]) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(decoded.Data["users"]))
	}
	if decoded.Data["users"][0].Get("name").Text != "ada" {
		t.Fatalf("row 0 name mismatch: %+v", decoded.Data["users"][0])
	}
}
