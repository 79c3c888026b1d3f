package ids

import "testing"

func TestNewIsMonotonicAndValid(t *testing.T) {
	prev := New()
	if !Valid(prev) {
		t.Fatalf("generated id %q is not valid", prev)
	}
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("ids must increase: %q then %q", prev, next)
		}
		prev = next
	}
	if Valid("not-a-ulid") {
		t.Fatal("expected invalid id to be rejected")
	}
}
