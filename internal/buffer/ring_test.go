package buffer

import "testing"

func TestRingWrapsOldest(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		ring.Add(i)
	}
	got := ring.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, want := range []int{3, 4, 5} {
		if got[i] != want {
			t.Fatalf("entry %d: expected %d, got %d", i, want, got[i])
		}
	}
}

func TestRingListLast(t *testing.T) {
	ring := NewRing[string](4)
	for _, value := range []string{"a", "b", "c", "d", "e"} {
		ring.Add(value)
	}
	got := ring.ListLast(2)
	if len(got) != 2 || got[0] != "d" || got[1] != "e" {
		t.Fatalf("unexpected tail: %#v", got)
	}
	if more := ring.ListLast(10); len(more) != 4 {
		t.Fatalf("expected full list when n exceeds count, got %d", len(more))
	}
	if empty := NewRing[string](2).ListLast(1); empty != nil {
		t.Fatalf("expected nil for empty ring, got %#v", empty)
	}
}
