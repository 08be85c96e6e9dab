package host

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/tome/internal/domain/track"
)

// TrackPayload is the wire form of a track.
type TrackPayload struct {
	ID       string          `mapstructure:"id"`
	Path     string          `mapstructure:"path"`
	Duration float64         `mapstructure:"duration"` // Seconds
	Metadata MetadataPayload `mapstructure:"metadata"`
}

// MetadataPayload is the wire form of track metadata. Absent optionals are
// null on the wire.
type MetadataPayload struct {
	Title       string  `mapstructure:"title"`
	Artist      string  `mapstructure:"artist"`
	SongArtist  *string `mapstructure:"song_artist"`
	Album       string  `mapstructure:"album"`
	TrackNumber *int    `mapstructure:"track_number"`
	CDNumber    *int    `mapstructure:"cd_number"`
	Year        *int    `mapstructure:"year"`
	Genre       *string `mapstructure:"genre"`
	ArtworkPath *string `mapstructure:"artwork_path"`
}

// Playback is the decoded set_playback payload.
type Playback struct {
	Playing  bool     `mapstructure:"playing"`
	Progress *float64 `mapstructure:"progress"` // Seconds; nil when no track is loaded
}

// Status is the host-side playback status.
type Status int

const (
	StatusStopped Status = iota // No track loaded
	StatusPlaying
	StatusPaused // Track loaded, not playing
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Status maps the payload to the host playback status.
func (p Playback) Status() Status {
	switch {
	case p.Progress == nil:
		return StatusStopped
	case p.Playing:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

// SetMetadataArgs builds the set_metadata arguments.
func SetMetadataArgs(t *track.Track) map[string]any {
	if t == nil {
		return map[string]any{"track": nil}
	}
	return map[string]any{"track": EncodeTrack(t)}
}

// SetPlaybackArgs builds the set_playback arguments. progress is sent as
// null when hasTrack is false.
func SetPlaybackArgs(playing bool, progress float64, hasTrack bool) map[string]any {
	args := map[string]any{
		"playing":  playing,
		"progress": nil,
	}
	if hasTrack {
		args["progress"] = progress
	}
	return args
}

// EncodeTrack converts a track to its wire form. A nil track encodes to nil.
func EncodeTrack(t *track.Track) map[string]any {
	if t == nil {
		return nil
	}
	m := t.Metadata
	return map[string]any{
		"id":       t.ID,
		"path":     t.Path,
		"duration": t.Duration.Seconds(),
		"metadata": map[string]any{
			"title":        m.Title,
			"artist":       m.Artist,
			"song_artist":  optional(m.SongArtist),
			"album":        m.Album,
			"track_number": optional(m.TrackNumber),
			"cd_number":    optional(m.CDNumber),
			"year":         optional(m.Year),
			"genre":        optional(m.Genre),
			"artwork_path": optional(m.ArtworkPath),
		},
	}
}

func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// DecodeTrack decodes the "track" entry of set_metadata arguments. It
// returns nil when the track is absent or null.
func DecodeTrack(args map[string]any) (*track.Track, error) {
	raw, ok := args["track"]
	if !ok || raw == nil {
		return nil, nil
	}
	if m, ok := raw.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}

	var p TrackPayload
	if err := decode(raw, &p); err != nil {
		return nil, errors.Wrap(err, "failed to decode track payload")
	}
	if p.ID == "" {
		return nil, errors.New("track payload without id")
	}

	return &track.Track{
		ID:   p.ID,
		Path: p.Path,
		Metadata: track.Metadata{
			Title:       p.Metadata.Title,
			Artist:      p.Metadata.Artist,
			SongArtist:  p.Metadata.SongArtist,
			Album:       p.Metadata.Album,
			TrackNumber: p.Metadata.TrackNumber,
			CDNumber:    p.Metadata.CDNumber,
			Year:        p.Metadata.Year,
			Genre:       p.Metadata.Genre,
			ArtworkPath: p.Metadata.ArtworkPath,
		},
		Duration: time.Duration(p.Duration * float64(time.Second)),
	}, nil
}

// DecodePlayback decodes set_playback arguments.
func DecodePlayback(args map[string]any) (Playback, error) {
	var p Playback
	if err := decode(args, &p); err != nil {
		return Playback{}, errors.Wrap(err, "failed to decode playback payload")
	}
	return p, nil
}

// decode runs mapstructure with number widening, so payloads that went
// through JSON or protobuf (every number a float64) still decode.
func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Media is the metadata shown by system media controls and notifications.
type Media struct {
	Title    string
	Artist   string
	Album    string
	CoverURL string // file:// URL of the artwork, empty when there is none
	Duration time.Duration
}

// MediaOf returns the media metadata of t.
func MediaOf(t *track.Track) Media {
	if t == nil {
		return Media{}
	}
	m := Media{
		Title:    t.Metadata.Title,
		Artist:   t.Metadata.Artist,
		Album:    t.Metadata.Album,
		Duration: t.Duration.Truncate(time.Second),
	}
	if t.HasArtwork() {
		m.CoverURL = "file://" + *t.Metadata.ArtworkPath
	}
	return m
}
