package domain

import "sync"

// Queue is a thread-safe FIFO of pending tracks.
// Insertion order is play order; the now-playing track is never stored here.
type Queue struct {
	mu     sync.RWMutex
	tracks []*Track
}

// NewQueue creates a new empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a track to the back of the queue.
func (q *Queue) Add(track *Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append(q.tracks, track)
}

// Next removes and returns the front track, or nil if the queue is empty.
func (q *Queue) Next() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return nil
	}

	track := q.tracks[0]
	q.tracks[0] = nil
	q.tracks = q.tracks[1:]
	return track
}

// Clear removes all tracks and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := len(q.tracks)
	q.tracks = nil
	return count
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.tracks)
}

// IsEmpty reports whether no tracks are pending.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// List returns a copy of the pending tracks in play order.
func (q *Queue) List() []*Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}
