package state

import "github.com/osa030/tome/internal/domain/track"

// Initial holds the persisted values the store starts from.
type Initial struct {
	Volume      float64
	ArtExpanded bool
}

// Store groups the playback cells. It is created once by the entry point and
// injected wherever it is needed.
//
// CurrentTrack, IsPlaying and IsLoading are written by the playback engine
// only. CurrentTime is written by the engine and the host sync bridge.
type Store struct {
	CurrentTrack *Cell[*track.Track]
	IsPlaying    *Cell[bool]
	IsLoading    *Cell[bool]
	IsMuted      *Cell[bool]
	Volume       *Cell[float64] // Linear knob, 0..1
	CurrentTime  *Cell[float64] // Seconds into the current track
	ArtExpanded  *Cell[bool]
}

// New creates a store.
func New(init Initial) *Store {
	s := &Store{
		CurrentTrack: NewCell[*track.Track](nil),
		IsPlaying:    NewCell(false),
		IsLoading:    NewCell(false),
		IsMuted:      NewCell(false),
		Volume:       NewCell(init.Volume),
		CurrentTime:  NewCell(0.0),
		ArtExpanded:  NewCell(init.ArtExpanded),
	}

	// CurrentTime always restarts with a new track.
	var last *track.Track
	s.CurrentTrack.Subscribe(func(t *track.Track) {
		if t != last {
			last = t
			s.CurrentTime.Set(0)
		}
	})

	return s
}

// Snapshot is a point-in-time copy of the playback cells.
type Snapshot struct {
	Track       *track.Track
	Playing     bool
	Loading     bool
	Muted       bool
	Volume      float64
	CurrentTime float64
}

// Snapshot reads every playback cell.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Track:       s.CurrentTrack.Get(),
		Playing:     s.IsPlaying.Get(),
		Loading:     s.IsLoading.Get(),
		Muted:       s.IsMuted.Get(),
		Volume:      s.Volume.Get(),
		CurrentTime: s.CurrentTime.Get(),
	}
}
