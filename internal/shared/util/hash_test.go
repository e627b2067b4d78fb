package util

import "testing"

func TestHashKey(t *testing.T) {
	id := "device:3f2a9c"
	got := HashKey(id)
	if got != HashKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	if got == HashKey("device:3f2a9d") {
		t.Fatalf("expected distinct devices to hash differently")
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}
