// Package playlist provides the Playlist domain entity.
package playlist

import (
	"bufio"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Playlist represents an M3U playlist file.
type Playlist struct {
	Name    string   // #PLAYLIST directive, or the file name without extension
	Path    string   // Absolute path of the playlist file
	Entries []string // Absolute local file paths, in playlist order
}

// IsPlaylistFile reports whether path names an M3U playlist.
func IsPlaylistFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8":
		return true
	default:
		return false
	}
}

// Parse reads an M3U or extended M3U playlist stored at path. Relative
// entries resolve against the playlist's directory. Remote URLs are dropped.
func Parse(r io.Reader, path string) (*Playlist, error) {
	base := filepath.Base(path)
	p := &Playlist{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}
	dir := filepath.Dir(path)

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#PLAYLIST:"):
			if name := strings.TrimSpace(strings.TrimPrefix(line, "#PLAYLIST:")); name != "" {
				p.Name = name
			}
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		entry, ok := localPath(line)
		if !ok {
			continue
		}
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(dir, entry)
		}
		p.Entries = append(p.Entries, filepath.Clean(entry))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read playlist %s", path)
	}
	return p, nil
}

// localPath converts an entry to a file path. ok is false for remote URLs.
func localPath(entry string) (string, bool) {
	if !strings.Contains(entry, "://") {
		return filepath.FromSlash(entry), true
	}
	u, err := url.Parse(entry)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}
