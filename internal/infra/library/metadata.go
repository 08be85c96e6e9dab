package library

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	gowav "github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/mewkiz/flac"
	zlog "github.com/rs/zerolog/log"
	"github.com/tcolgate/mp3"

	"github.com/osa030/tome/internal/domain/track"
	"github.com/osa030/tome/internal/infra/audio"
)

// ReadTrack reads the tags, duration and artwork of the file at path.
// Files without readable tags get default metadata.
func (s *Scanner) ReadTrack(path string) (*track.Track, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", path)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", abs)
	}
	defer f.Close()

	t := &track.Track{
		ID:   TrackID(abs),
		Path: abs,
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		zlog.Debug().Msgf("library: no tags, using defaults: path=%s err=%v", abs, err)
		t.Metadata = track.DefaultMetadata(abs)
	} else {
		t.Metadata = metadataOf(m, abs)
	}

	if d, err := duration(f, abs); err != nil {
		zlog.Debug().Msgf("library: unknown duration: path=%s err=%v", abs, err)
	} else {
		t.Duration = d
	}

	if art := s.artwork(abs, t, m); art != "" {
		t.Metadata.ArtworkPath = &art
	}

	return t, nil
}

func metadataOf(m tag.Metadata, path string) track.Metadata {
	md := track.DefaultMetadata(path)

	if title := strings.TrimSpace(m.Title()); title != "" {
		md.Title = title
	}

	songArtist := strings.TrimSpace(m.Artist())
	albumArtist := strings.TrimSpace(m.AlbumArtist())
	switch {
	case albumArtist != "":
		md.Artist = albumArtist
		if songArtist != "" && songArtist != albumArtist {
			md.SongArtist = &songArtist
		}
	case songArtist != "":
		md.Artist = songArtist
	}

	if album := strings.TrimSpace(m.Album()); album != "" {
		md.Album = album
	}
	if n, _ := m.Track(); n > 0 {
		md.TrackNumber = &n
	}
	if n, _ := m.Disc(); n > 0 {
		md.CDNumber = &n
	}
	if y := m.Year(); y > 0 {
		md.Year = &y
	}
	if g := cleanGenre(m.Genre()); g != "" {
		md.Genre = &g
	}
	return md
}

var genreRef = regexp.MustCompile(`^\(\d+\)\s*`)

// cleanGenre drops an ID3v1 "(n)" reference that precedes a genre name.
func cleanGenre(g string) string {
	g = strings.TrimSpace(g)
	if stripped := genreRef.ReplaceAllString(g, ""); stripped != "" {
		return stripped
	}
	return g
}

// duration measures the file with the parser for its container. f is
// rewound first.
func duration(f *os.File, path string) (time.Duration, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "failed to rewind")
	}

	head := make([]byte, 16)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "failed to rewind")
	}

	switch audio.Sniff(head[:n], path) {
	case audio.FormatMP3:
		return durationMP3(f)
	case audio.FormatFLAC:
		return durationFLAC(path)
	case audio.FormatWAV:
		d, err := gowav.NewDecoder(f).Duration()
		return d, errors.Wrap(err, "wav")
	case audio.FormatOGG:
		return durationDecoded(f, path)
	default:
		return 0, errors.Newf("no duration parser for %s", filepath.Ext(path))
	}
}

func durationMP3(r io.Reader) (time.Duration, error) {
	dec := mp3.NewDecoder(r)
	var (
		total   time.Duration
		frame   mp3.Frame
		skipped int
		frames  int
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return 0, errors.Wrap(err, "mp3")
		}
		total += frame.Duration()
		frames++
	}
	return total, nil
}

func durationFLAC(path string) (time.Duration, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "flac")
	}
	defer stream.Close()

	info := stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0, errors.New("flac stream missing sample info")
	}
	return time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second)), nil
}

func durationDecoded(f *os.File, path string) (time.Duration, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read")
	}
	streamer, format, err := audio.Decode(data, path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return audio.Length(streamer, format), nil
}

var sidecarNames = []string{"cover", "artwork", "folder"}
var sidecarExts = []string{".png", ".jpg", ".jpeg"}

// artwork returns the artwork path for t: an image next to the file, or the
// embedded picture written to the cache directory.
func (s *Scanner) artwork(path string, t *track.Track, m tag.Metadata) string {
	if art := s.sidecar(filepath.Dir(path)); art != "" {
		return art
	}
	if m == nil || s.config.CacheDir == "" {
		return ""
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return ""
	}

	// One file per album, shared by its tracks.
	key := uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.Metadata.Artist+"\x00"+t.Metadata.Album)).String()
	ext := strings.ToLower(pic.Ext)
	if ext == "" {
		ext = "jpg"
	}
	out := filepath.Join(s.config.CacheDir, key+"."+strings.TrimPrefix(ext, "."))

	if _, err := os.Stat(out); err == nil {
		return out
	}
	if err := os.MkdirAll(s.config.CacheDir, 0o755); err != nil {
		zlog.Warn().Err(err).Msgf("library: failed to create artwork cache: dir=%s", s.config.CacheDir)
		return ""
	}
	if err := os.WriteFile(out, pic.Data, 0o644); err != nil {
		zlog.Warn().Err(err).Msgf("library: failed to write artwork: path=%s", out)
		return ""
	}
	return out
}

// sidecar finds cover/artwork/folder images in dir. Results are cached per
// directory.
func (s *Scanner) sidecar(dir string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if art, ok := s.sidecars[dir]; ok {
		return art
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.sidecars[dir] = ""
		return ""
	}

	found := findSidecar(entries)
	if found != "" {
		found = filepath.Join(dir, found)
	}
	s.sidecars[dir] = found
	return found
}

func findSidecar(entries []os.DirEntry) string {
	for _, name := range sidecarNames {
		for _, ext := range sidecarExts {
			for _, e := range entries {
				if e.Type().IsRegular() && strings.EqualFold(e.Name(), name+ext) {
					return e.Name()
				}
			}
		}
	}
	return ""
}
