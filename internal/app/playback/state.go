// Package playback provides the playback engine: the audio primitive, the
// play queue and the transport state machine.
package playback

// State represents the engine state.
type State int

const (
	StateIdle    State = iota // Nothing playing (never started, load failed or queue ended)
	StateLoading              // Fetching and decoding a track
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
