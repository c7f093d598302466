package ids

import (
	"testing"
	"time"
)

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		prev = next
	}
}

func TestAtSortsByTime(t *testing.T) {
	early := At(time.Unix(1000, 0))
	late := At(time.Unix(2000, 0))
	if early >= late {
		t.Fatalf("expected %s < %s", early, late)
	}
	if !Valid(early) || Valid("not-a-ulid") {
		t.Fatalf("unexpected validity result")
	}
}
