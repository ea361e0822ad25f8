package idgen

import (
	"strings"
	"testing"
)

func TestPrefixed(t *testing.T) {
	// WHAT: Prefixed generators prepend the given prefix to every ID.
	// WHY: Row IDs must be self-describing in logs and error messages.
	gen := Prefixed("med_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "med_") {
		t.Errorf("got %q, want med_ prefix", id)
	}
	if len(id) != len("med_")+36 {
		t.Errorf("got length %d, want prefix + 36-char UUID", len(id))
	}
}

func TestUniqueness(t *testing.T) {
	// WHAT: Consecutive IDs from the same generator differ.
	// WHY: Collisions would violate primary keys across every table.
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate ID %q after %d generations", id, i)
		}
		seen[id] = true
	}
}
