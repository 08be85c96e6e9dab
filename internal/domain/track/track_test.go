package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestTrack_DisplayArtist(t *testing.T) {
	tests := []struct {
		name       string
		artist     string
		songArtist *string
		expected   string
	}{
		{
			name:       "album artist only",
			artist:     "Boards of Canada",
			songArtist: nil,
			expected:   "Boards of Canada",
		},
		{
			name:       "song artist takes precedence",
			artist:     "Various Artists",
			songArtist: strPtr("Aphex Twin"),
			expected:   "Aphex Twin",
		},
		{
			name:       "empty song artist falls back",
			artist:     "Autechre",
			songArtist: strPtr(""),
			expected:   "Autechre",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk := &Track{
				ID: "test-id",
				Metadata: Metadata{
					Title:      "Roygbiv",
					Artist:     tt.artist,
					SongArtist: tt.songArtist,
				},
			}

			assert.Equal(t, tt.expected, trk.DisplayArtist())
			assert.Equal(t, tt.expected+" - Roygbiv", trk.String())
		})
	}
}

func TestDefaultMetadata(t *testing.T) {
	md := DefaultMetadata("/music/Some Album/01 Intro.flac")

	assert.Equal(t, "01 Intro", md.Title)
	assert.Equal(t, UnknownArtist, md.Artist)
	assert.Equal(t, UnknownAlbum, md.Album)
	assert.Nil(t, md.TrackNumber)
	assert.Nil(t, md.ArtworkPath)
}

func TestTrack_Ext(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{path: "/a/b/song.MP3", expected: "mp3"},
		{path: "/a/b/song.flac", expected: "flac"},
		{path: "/a/b/noext", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			trk := &Track{Path: tt.path}
			assert.Equal(t, tt.expected, trk.Ext())
		})
	}
}

func TestTrack_HasArtwork(t *testing.T) {
	assert.False(t, (&Track{}).HasArtwork())
	assert.False(t, (&Track{Metadata: Metadata{ArtworkPath: strPtr("")}}).HasArtwork())
	assert.True(t, (&Track{Metadata: Metadata{ArtworkPath: strPtr("/a/cover.png")}}).HasArtwork())
}
