package core

import (
	"reflect"
	"testing"
)

func ids(tracks []Track) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

func TestQueueEnqueueDedupes(t *testing.T) {
	var q Queue
	a := Track{ID: "a", Title: "A"}

	if !q.Enqueue(a) {
		t.Fatal("first Enqueue() = false, want true")
	}
	if q.Enqueue(Track{ID: "a", Title: "A again"}) {
		t.Error("duplicate Enqueue() = true, want false")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
	if got, _ := q.Front(); got.Title != "A" {
		t.Errorf("Front().Title = %q, want %q", got.Title, "A")
	}
}

func TestQueueReplace(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, []string{}},
		{"unique", []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"first wins", []string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tracks []Track
			for _, id := range tt.in {
				tracks = append(tracks, Track{ID: id})
			}
			q := NewQueue(Track{ID: "stale"})
			q.Replace(tracks)
			if got := ids(q.Tracks()); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tracks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueuePushFrontMovesExisting(t *testing.T) {
	q := NewQueue(Track{ID: "a"}, Track{ID: "b"}, Track{ID: "c"})
	q.PushFront(Track{ID: "c"})
	q.PushFront(Track{ID: "d"})

	want := []string{"d", "c", "a", "b"}
	if got := ids(q.Tracks()); !reflect.DeepEqual(got, want) {
		t.Errorf("Tracks() = %v, want %v", got, want)
	}
}

func TestQueueRemoveAndPop(t *testing.T) {
	q := NewQueue(Track{ID: "a"}, Track{ID: "b"}, Track{ID: "c"})

	if !q.Remove("b") {
		t.Error("Remove(b) = false, want true")
	}
	if q.Remove("b") {
		t.Error("second Remove(b) = true, want false")
	}

	front, ok := q.PopFront()
	if !ok || front.ID != "a" {
		t.Errorf("PopFront() = %q, %v, want a, true", front.ID, ok)
	}
	if got := ids(q.Tracks()); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Tracks() = %v, want [c]", got)
	}

	q.Clear()
	if _, ok := q.PopFront(); ok {
		t.Error("PopFront() on empty queue returned ok")
	}
}

func TestQueueTracksIsCopy(t *testing.T) {
	q := NewQueue(Track{ID: "a"})
	tracks := q.Tracks()
	tracks[0].ID = "mutated"

	if got, _ := q.Front(); got.ID != "a" {
		t.Errorf("queue was mutated through Tracks(): front = %q", got.ID)
	}
}

func TestHistoryStack(t *testing.T) {
	var h History
	h.Push(Track{ID: "a"})
	h.Push(Track{ID: "b"})

	if !h.Contains("a") || h.Contains("z") {
		t.Error("Contains() mismatch")
	}

	last, ok := h.Pop()
	if !ok || last.ID != "b" {
		t.Errorf("Pop() = %q, %v, want b, true", last.ID, ok)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}

	h.Clear()
	if _, ok := h.Pop(); ok {
		t.Error("Pop() on empty history returned ok")
	}
}
