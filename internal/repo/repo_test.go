package repo

import (
	"strings"
	"testing"
)

// --- Helpers Tests ---

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string must map to NULL")
	}
	if p := nullString("x"); p == nil || *p != "x" {
		t.Errorf("expected pointer to x, got %v", p)
	}
	if derefString(nil) != "" || derefString(nullString("y")) != "y" {
		t.Error("derefString must invert nullString")
	}
}

func TestMarshalNullable(t *testing.T) {
	data, err := marshalNullable(map[string]string{})
	if err != nil || data != nil {
		t.Errorf("empty map must be NULL, got %s (%v)", data, err)
	}

	data, err = marshalNullable(map[string]string{"raw-data.json": "s3://b/k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"raw-data.json":"s3://b/k"}` {
		t.Errorf("unexpected json %s", data)
	}

	var back map[string]any
	if err := unmarshalNullable(nil, &back); err != nil || back != nil {
		t.Errorf("NULL must leave map nil, got %v", back)
	}
}

func TestPrefixed(t *testing.T) {
	got := prefixed("r", "id, flow,\n\tstatus")
	if got != "r.id, r.flow, r.status" {
		t.Errorf("unexpected columns %q", got)
	}

	cols := strings.Split(prefixed("r", runColumns), ", ")
	if len(cols) != 14 {
		t.Errorf("expected 14 run columns, got %d", len(cols))
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"CREATE TABLE IF NOT EXISTS runs", "CREATE TABLE IF NOT EXISTS deployments"} {
		if !strings.Contains(schemaSQL, table) {
			t.Errorf("schema must contain %q", table)
		}
	}
}
