package canonical

import (
	"encoding/json"
	"testing"
)

func TestEncode_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"y": true, "x": "<tag>"}}
	b := json.RawMessage(`{"a":{"x":"<tag>","y":true},"b":1}`)

	encA, err := Encode(a)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	encB, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if string(encA) != string(encB) {
		t.Errorf("expected identical encodings, got %s vs %s", encA, encB)
	}
	if string(encA) != `{"a":{"x":"<tag>","y":true},"b":1}` {
		t.Errorf("unexpected canonical form %s", encA)
	}
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(map[string]any{"step": 3, "items": []any{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := Hash(map[string]any{"items": []any{"a", "b"}, "step": 3})
	h3, _ := Hash(map[string]any{"items": []any{"b", "a"}, "step": 3})

	if h1 != h2 {
		t.Error("expected equal hashes for reordered keys")
	}
	if h1 == h3 {
		t.Error("expected different hashes for reordered array")
	}
	if len(h1) != 64 {
		t.Errorf("expected hex sha256, got %s", h1)
	}
}

func TestEncode_Unsupported(t *testing.T) {
	if _, err := Encode(make(chan int)); err == nil {
		t.Error("expected error for non-JSON value")
	}
}
