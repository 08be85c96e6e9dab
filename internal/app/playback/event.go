package playback

import "github.com/osa030/tome/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track loaded and playing
	EventTrackEnded                    // Track reached its natural end
	EventStateChanged                  // Paused or resumed
	EventLoadFailed                    // Track could not be fetched or decoded
	EventQueueEnded                    // Last track ended with nothing queued after it
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventStateChanged:
		return "state_changed"
	case EventLoadFailed:
		return "load_failed"
	case EventQueueEnded:
		return "queue_ended"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Track *track.Track // Track the event refers to (nil for some events)
	State State        // Engine state after the event
	Err   error        // Set for EventLoadFailed
}
