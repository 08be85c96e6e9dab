package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhowden/tag"
	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tome/internal/domain/track"
)

// writeWAV writes d of 16-bit mono silence at 8 kHz to path.
func writeWAV(t *testing.T, path string, d time.Duration) {
	t.Helper()
	const rate = 8000

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := gowav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, int(d.Seconds()*rate)),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func titles(tracks []*track.Track) []string {
	return lo.Map(tracks, func(t *track.Track, _ int) string { return t.Metadata.Title })
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeWAV(t, filepath.Join(root, "album", "02 second.wav"), 100*time.Millisecond)
	writeWAV(t, filepath.Join(root, "album", "01 first.wav"), 500*time.Millisecond)
	writeWAV(t, filepath.Join(root, "album", ".hidden.wav"), 100*time.Millisecond)
	writeWAV(t, filepath.Join(root, ".trash", "deleted.wav"), 100*time.Millisecond)
	writeWAV(t, filepath.Join(root, "other", "solo.WAV"), 100*time.Millisecond)
	writeFile(t, filepath.Join(root, "album", "notes.txt"), "liner notes")

	s := NewScanner(Config{})
	tracks, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"01 first", "02 second", "solo"}, titles(tracks))

	first := tracks[0]
	assert.True(t, filepath.IsAbs(first.Path))
	assert.Equal(t, TrackID(first.Path), first.ID)
	assert.Equal(t, 500*time.Millisecond, first.Duration)
	assert.Equal(t, track.UnknownArtist, first.Metadata.Artist)
	assert.Equal(t, track.UnknownAlbum, first.Metadata.Album)
	assert.Nil(t, first.Metadata.ArtworkPath)
}

func TestScanner_ScanRootsInOrder(t *testing.T) {
	root := t.TempDir()
	b := filepath.Join(root, "b.wav")
	a := filepath.Join(root, "a.wav")
	writeWAV(t, b, 50*time.Millisecond)
	writeWAV(t, a, 50*time.Millisecond)

	tracks, err := NewScanner(Config{}).Scan(context.Background(), b, a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, titles(tracks))
}

func TestScanner_ScanPlaylist(t *testing.T) {
	root := t.TempDir()
	writeWAV(t, filepath.Join(root, "music", "a.wav"), 50*time.Millisecond)
	writeWAV(t, filepath.Join(root, "music", "b.wav"), 50*time.Millisecond)
	writeFile(t, filepath.Join(root, "music", "notes.txt"), "liner notes")
	list := filepath.Join(root, "lists", "mix.m3u")
	writeFile(t, list, "#EXTM3U\n"+
		"../music/b.wav\n"+
		"../music/missing.wav\n"+
		"../music/notes.txt\n"+
		"http://example.com/stream.mp3\n"+
		filepath.Join(root, "music", "a.wav")+"\n")

	tracks, err := NewScanner(Config{}).Scan(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, titles(tracks))
}

func TestScanner_ScanErrors(t *testing.T) {
	root := t.TempDir()
	txt := filepath.Join(root, "readme.txt")
	writeFile(t, txt, "hello")

	tests := []struct {
		name string
		path string
	}{
		{name: "missing path", path: filepath.Join(root, "missing")},
		{name: "not audio", path: txt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(Config{}).Scan(context.Background(), tt.path)
			assert.Error(t, err)
		})
	}
}

func TestScanner_ScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeWAV(t, filepath.Join(root, "a.wav"), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(Config{}).Scan(ctx, root)
	assert.Error(t, err)
}

func TestScanner_Extensions(t *testing.T) {
	s := NewScanner(Config{Extensions: []string{".FLAC", "mp3"}})

	assert.True(t, s.IsAudioFile("/m/a.flac"))
	assert.True(t, s.IsAudioFile("/m/a.MP3"))
	assert.False(t, s.IsAudioFile("/m/a.wav"))
	assert.False(t, s.IsAudioFile("/m/flac"))
}

func TestScanner_SidecarArtwork(t *testing.T) {
	root := t.TempDir()
	writeWAV(t, filepath.Join(root, "a.wav"), 50*time.Millisecond)
	writeFile(t, filepath.Join(root, "Folder.JPG"), "jpeg")
	writeFile(t, filepath.Join(root, "cover.png"), "png")

	tr, err := NewScanner(Config{}).ReadTrack(filepath.Join(root, "a.wav"))
	require.NoError(t, err)

	require.NotNil(t, tr.Metadata.ArtworkPath)
	assert.Equal(t, filepath.Join(root, "cover.png"), *tr.Metadata.ArtworkPath)
}

func TestTrackID(t *testing.T) {
	assert.Equal(t, TrackID("/music/a.mp3"), TrackID("/music/a.mp3"))
	assert.NotEqual(t, TrackID("/music/a.mp3"), TrackID("/music/b.mp3"))
}

type fakeTag struct {
	title, album, artist, albumArtist, genre string
	year, track, disc                        int
	picture                                  *tag.Picture
}

func (f fakeTag) Format() tag.Format { return tag.ID3v2_4 }
func (f fakeTag) FileType() tag.FileType { return tag.MP3 }
func (f fakeTag) Title() string { return f.title }
func (f fakeTag) Album() string { return f.album }
func (f fakeTag) Artist() string { return f.artist }
func (f fakeTag) AlbumArtist() string { return f.albumArtist }
func (f fakeTag) Composer() string { return "" }
func (f fakeTag) Year() int { return f.year }
func (f fakeTag) Genre() string { return f.genre }
func (f fakeTag) Track() (int, int) { return f.track, 0 }
func (f fakeTag) Disc() (int, int) { return f.disc, 0 }
func (f fakeTag) Picture() *tag.Picture { return f.picture }
func (f fakeTag) Lyrics() string { return "" }
func (f fakeTag) Comment() string { return "" }
func (f fakeTag) Raw() map[string]interface{} { return nil }

func TestMetadataOf(t *testing.T) {
	tests := []struct {
		name           string
		tag            fakeTag
		wantTitle      string
		wantArtist     string
		wantSongArtist *string
		wantAlbum      string
		wantTrack      *int
		wantGenre      *string
	}{
		{
			name:       "empty tag falls back to defaults",
			tag:        fakeTag{},
			wantTitle:  "song",
			wantArtist: track.UnknownArtist,
			wantAlbum:  track.UnknownAlbum,
		},
		{
			name:       "song artist only",
			tag:        fakeTag{title: "T", artist: "Band", album: "LP", track: 3},
			wantTitle:  "T",
			wantArtist: "Band",
			wantAlbum:  "LP",
			wantTrack:  lo.ToPtr(3),
		},
		{
			name:           "featured artist differs from album artist",
			tag:            fakeTag{title: "T", artist: "Band feat. Guest", albumArtist: "Band", genre: "(17)Rock"},
			wantTitle:      "T",
			wantArtist:     "Band",
			wantSongArtist: lo.ToPtr("Band feat. Guest"),
			wantAlbum:      track.UnknownAlbum,
			wantGenre:      lo.ToPtr("Rock"),
		},
		{
			name:       "same artist twice",
			tag:        fakeTag{artist: "Band", albumArtist: "Band"},
			wantTitle:  "song",
			wantArtist: "Band",
			wantAlbum:  track.UnknownAlbum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := metadataOf(tt.tag, "/music/song.mp3")
			assert.Equal(t, tt.wantTitle, md.Title)
			assert.Equal(t, tt.wantArtist, md.Artist)
			assert.Equal(t, tt.wantSongArtist, md.SongArtist)
			assert.Equal(t, tt.wantAlbum, md.Album)
			assert.Equal(t, tt.wantTrack, md.TrackNumber)
			assert.Equal(t, tt.wantGenre, md.Genre)
		})
	}
}

func TestCleanGenre(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Rock", want: "Rock"},
		{in: "(17)Rock", want: "Rock"},
		{in: "(17) Rock", want: "Rock"},
		{in: "(17)", want: "(17)"},
		{in: "  Jazz ", want: "Jazz"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanGenre(tt.in))
		})
	}
}

func TestScanner_EmbeddedArtwork(t *testing.T) {
	cache := t.TempDir()
	dir := t.TempDir()
	s := NewScanner(Config{CacheDir: cache})

	tr := &track.Track{Metadata: track.Metadata{Artist: "Band", Album: "LP"}}
	pic := &tag.Picture{Ext: "png", MIMEType: "image/png", Data: []byte("png")}

	first := s.artwork(filepath.Join(dir, "01.mp3"), tr, fakeTag{picture: pic})
	require.NotEmpty(t, first)
	assert.Equal(t, cache, filepath.Dir(first))
	assert.Equal(t, ".png", filepath.Ext(first))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	// Same album shares the file.
	second := s.artwork(filepath.Join(dir, "02.mp3"), tr, fakeTag{picture: pic})
	assert.Equal(t, first, second)

	assert.Empty(t, s.artwork(filepath.Join(dir, "03.mp3"), tr, fakeTag{}))
}
