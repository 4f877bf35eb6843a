package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestErrorFieldsAreStrings(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer SetOutput(prev)

	Warn("derivation.metadata_degraded", map[string]any{
		"letter_id": "l-1",
		"error":     errors.New("schema mismatch"),
	})

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload["error"] != "schema mismatch" {
		t.Fatalf("unexpected error field: %v", payload["error"])
	}
	if payload["letter_id"] != "l-1" {
		t.Fatalf("unexpected letter_id: %v", payload["letter_id"])
	}
}
