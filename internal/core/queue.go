package core

// Queue is an ordered list of upcoming tracks. A track ID appears at most
// once; insertion order is play order. The zero value is an empty queue.
type Queue struct {
	tracks []Track
}

// NewQueue builds a queue from tracks, keeping the first occurrence of
// each ID.
func NewQueue(tracks ...Track) Queue {
	var q Queue
	q.Replace(tracks)
	return q
}

// Enqueue appends t unless its ID is already queued. It reports whether
// the queue changed.
func (q *Queue) Enqueue(t Track) bool {
	if q.Contains(t.ID) {
		return false
	}
	q.tracks = append(q.tracks, t)
	return true
}

// PushFront puts t at the head of the queue, moving it there if it is
// already queued.
func (q *Queue) PushFront(t Track) {
	q.Remove(t.ID)
	q.tracks = append([]Track{t}, q.tracks...)
}

// PopFront removes and returns the head of the queue.
func (q *Queue) PopFront() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	t := q.tracks[0]
	q.tracks = q.tracks[1:]
	return t, true
}

// Front returns the head of the queue without removing it.
func (q *Queue) Front() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	return q.tracks[0], true
}

// Remove drops the track with the given ID. It reports whether a track
// was removed.
func (q *Queue) Remove(id string) bool {
	i := q.Index(id)
	if i < 0 {
		return false
	}
	q.tracks = append(q.tracks[:i:i], q.tracks[i+1:]...)
	return true
}

// Replace swaps the contents for tracks, deduplicated by ID with the
// first occurrence winning.
func (q *Queue) Replace(tracks []Track) {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	q.tracks = out
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.tracks = nil
}

// Index returns the position of id, or -1.
func (q *Queue) Index(id string) int {
	for i, t := range q.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id is queued.
func (q *Queue) Contains(id string) bool {
	return q.Index(id) >= 0
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []Track {
	return append([]Track(nil), q.tracks...)
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// History is the stack of previously played tracks, most recent last.
type History struct {
	tracks []Track
}

// Push records t as the most recently played track.
func (h *History) Push(t Track) {
	h.tracks = append(h.tracks, t)
}

// Pop removes and returns the most recently played track.
func (h *History) Pop() (Track, bool) {
	if len(h.tracks) == 0 {
		return Track{}, false
	}
	t := h.tracks[len(h.tracks)-1]
	h.tracks = h.tracks[:len(h.tracks)-1]
	return t, true
}

// Contains reports whether id was played earlier in this session.
func (h *History) Contains(id string) bool {
	for _, t := range h.tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Clear empties the history.
func (h *History) Clear() {
	h.tracks = nil
}

// Tracks returns a copy of the history, oldest first.
func (h *History) Tracks() []Track {
	return append([]Track(nil), h.tracks...)
}

// Len returns the number of tracks in the history.
func (h *History) Len() int {
	return len(h.tracks)
}
