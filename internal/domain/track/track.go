// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Metadata holds the tag information of a track.
// Optional fields are nil when the file carries no value for them.
type Metadata struct {
	Title       string
	Artist      string  // Album artist
	SongArtist  *string // Per-track artist when it differs from the album artist
	Album       string
	TrackNumber *int
	CDNumber    *int
	Year        *int
	Genre       *string
	ArtworkPath *string
}

// Track represents a playable audio file known to the catalog.
// Tracks are immutable once loaded and shared by pointer.
type Track struct {
	ID       string        // Stable identifier derived from the path
	Path     string        // Absolute file path
	Metadata Metadata      // Tag metadata
	Duration time.Duration // Track duration (0 if unknown)
}

// DefaultMetadata returns the metadata used when a file has no readable tags.
func DefaultMetadata(path string) Metadata {
	base := filepath.Base(path)
	return Metadata{
		Title:  strings.TrimSuffix(base, filepath.Ext(base)),
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}
}

// DisplayArtist returns the song artist if present, otherwise the album artist.
func (t *Track) DisplayArtist() string {
	if t.Metadata.SongArtist != nil && *t.Metadata.SongArtist != "" {
		return *t.Metadata.SongArtist
	}
	return t.Metadata.Artist
}

// Ext returns the lower-case file extension without the dot.
func (t *Track) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(t.Path)), ".")
}

// HasArtwork reports whether an artwork file is associated with the track.
func (t *Track) HasArtwork() bool {
	return t.Metadata.ArtworkPath != nil && *t.Metadata.ArtworkPath != ""
}

// String returns "Artist - Title".
func (t *Track) String() string {
	return t.DisplayArtist() + " - " + t.Metadata.Title
}
