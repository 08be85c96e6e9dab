// Package library turns audio files on disk into tracks.
package library

import (
	"cmp"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/tome/internal/domain/playlist"
	"github.com/osa030/tome/internal/domain/track"
)

// DefaultExtensions lists the audio file extensions picked up by a scan.
var DefaultExtensions = []string{"m4a", "aac", "ape", "aif", "aiff", "aifc", "flac", "mp3", "ogg", "wav"}

// Config holds scanner configuration.
type Config struct {
	Extensions []string // Lower-case, without the dot
	CacheDir   string   // Where embedded artwork is written; empty disables extraction
}

// Scanner reads track metadata from audio files.
type Scanner struct {
	config Config
	exts   map[string]struct{}

	mu       sync.Mutex
	sidecars map[string]string // Directory -> artwork path ("" when none)
}

// NewScanner creates a scanner.
func NewScanner(config Config) *Scanner {
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(config.Extensions))
	for _, ext := range config.Extensions {
		exts[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	return &Scanner{
		config:   config,
		exts:     exts,
		sidecars: make(map[string]string),
	}
}

// TrackID returns the stable identifier of the file at path.
func TrackID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}

// IsAudioFile reports whether path has one of the configured extensions.
func (s *Scanner) IsAudioFile(path string) bool {
	_, ok := s.exts[strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")]
	return ok
}

// Scan walks paths and returns their tracks. Each path may be an audio file,
// an M3U playlist or a directory. Hidden files and directories are skipped.
// Tracks of a directory are ordered by directory, disc, track number and
// path; playlists keep their own order, and roots keep the order they were
// given in. Unreadable files are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, paths ...string) ([]*track.Track, error) {
	var tracks []*track.Track
	seen := make(map[string]struct{})

	for _, root := range lo.Uniq(paths) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", root)
		}

		files, ordered, err := s.collect(ctx, abs)
		if err != nil {
			return nil, err
		}

		var found []*track.Track
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}

			t, err := s.ReadTrack(path)
			if err != nil {
				zlog.Warn().Err(err).Msgf("library: skipping unreadable file: path=%s", path)
				continue
			}
			found = append(found, t)
		}

		if !ordered {
			sortTracks(found)
		}
		tracks = append(tracks, found...)
		zlog.Debug().Msgf("library: scanned: root=%s tracks=%d", abs, len(found))
	}

	return tracks, nil
}

// collect lists the audio files under root. ordered is true when the list
// already carries its play order.
func (s *Scanner) collect(ctx context.Context, root string) (files []string, ordered bool, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to stat %s", root)
	}
	if !info.IsDir() {
		if playlist.IsPlaylistFile(root) {
			files, err = s.playlistFiles(root)
			return files, true, err
		}
		if !s.IsAudioFile(root) {
			return nil, false, errors.Newf("not an audio file: %s", root)
		}
		return []string{root}, true, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.IsAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to walk %s", root)
	}
	return files, false, nil
}

// playlistFiles returns the audio entries of the playlist at path. Entries
// that are missing or not audio files are skipped.
func (s *Scanner) playlistFiles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open playlist %s", path)
	}
	defer f.Close()

	p, err := playlist.Parse(f, path)
	if err != nil {
		return nil, err
	}

	files := lo.Filter(p.Entries, func(entry string, _ int) bool {
		if !s.IsAudioFile(entry) {
			zlog.Debug().Msgf("library: skipping playlist entry: playlist=%s entry=%s", p.Name, entry)
			return false
		}
		if _, err := os.Stat(entry); err != nil {
			zlog.Warn().Msgf("library: missing playlist entry: playlist=%s entry=%s", p.Name, entry)
			return false
		}
		return true
	})
	zlog.Debug().Msgf("library: playlist: name=%s entries=%d playable=%d", p.Name, len(p.Entries), len(files))
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func sortTracks(tracks []*track.Track) {
	slices.SortStableFunc(tracks, func(a, b *track.Track) int {
		return cmp.Or(
			cmp.Compare(filepath.Dir(a.Path), filepath.Dir(b.Path)),
			cmp.Compare(intOr(a.Metadata.CDNumber), intOr(b.Metadata.CDNumber)),
			cmp.Compare(intOr(a.Metadata.TrackNumber), intOr(b.Metadata.TrackNumber)),
			cmp.Compare(a.Path, b.Path),
		)
	})
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
