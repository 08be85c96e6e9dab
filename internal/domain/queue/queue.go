// Package queue provides the play queue and its cursor.
package queue

import (
	"time"

	"github.com/samber/lo"

	"github.com/osa030/tome/internal/domain/track"
)

// Queue is an append-only list of tracks with a cursor pointing at the next
// track to play on forward transport.
//
// Invariant: 0 <= cursor <= len(tracks).
//
// Queue is not safe for concurrent use; the owner serializes access.
type Queue struct {
	tracks []*track.Track
	cursor int
}

// New creates a queue holding the given tracks with the cursor at 0.
func New(tracks ...*track.Track) *Queue {
	q := &Queue{tracks: make([]*track.Track, 0, len(tracks))}
	q.tracks = append(q.tracks, tracks...)
	return q
}

// Append adds a track to the end of the queue.
func (q *Queue) Append(t *track.Track) {
	q.tracks = append(q.tracks, t)
}

// AppendAll adds several tracks to the end of the queue.
func (q *Queue) AppendAll(ts []*track.Track) {
	q.tracks = append(q.tracks, ts...)
}

// Clear removes every track, resets the cursor and returns the removed tracks.
func (q *Queue) Clear() []*track.Track {
	removed := q.tracks
	q.tracks = make([]*track.Track, 0)
	q.cursor = 0
	return removed
}

// Len returns the number of tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Cursor returns the index of the next track.
func (q *Queue) Cursor() int {
	return q.cursor
}

// At returns the track at index i.
func (q *Queue) At(i int) (*track.Track, bool) {
	if i < 0 || i >= len(q.tracks) {
		return nil, false
	}
	return q.tracks[i], true
}

// Peek returns the track under the cursor without moving it.
func (q *Queue) Peek() (*track.Track, bool) {
	return q.At(q.cursor)
}

// Advance moves the cursor forward by one, stopping at len.
func (q *Queue) Advance() {
	if q.cursor < len(q.tracks) {
		q.cursor++
	}
}

// StepBack handles backward transport. The cursor already sits past the
// playing track, so the previous track is at cursor-2. When it exists the
// cursor moves back by one and the track now at cursor-1 is returned.
func (q *Queue) StepBack() (*track.Track, bool) {
	if _, ok := q.At(q.cursor - 2); !ok {
		return nil, false
	}
	q.cursor--
	return q.At(q.cursor - 1)
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []*track.Track {
	result := make([]*track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Upcoming returns the tracks from the cursor to the end.
func (q *Queue) Upcoming() []*track.Track {
	result := make([]*track.Track, len(q.tracks)-q.cursor)
	copy(result, q.tracks[q.cursor:])
	return result
}

// TotalDuration returns the summed duration of the upcoming tracks.
func (q *Queue) TotalDuration() time.Duration {
	return lo.SumBy(q.tracks[q.cursor:], func(t *track.Track) time.Duration {
		return t.Duration
	})
}
