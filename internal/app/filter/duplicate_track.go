package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/tome/internal/domain/track"
)

const codeDuplicateTrack = "duplicate_track"

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	// MatchVersions also rejects other versions of a queued song (remasters,
	// edits, live takes) by the same artist.
	MatchVersions bool `yaml:"match_versions" mapstructure:"match_versions"`
}

// DuplicateTrackFilter rejects tracks that are already queued.
// Detects:
// - Exact track ID matches (the same file)
// - Other versions of the same song when MatchVersions is set
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct {
	config DuplicateTrackConfig
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(config DuplicateTrackConfig) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{config: config}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{codeDuplicateTrack}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var config DuplicateTrackConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(_ context.Context, t *track.Track, queued []*track.Track) Result {
	for _, q := range queued {
		if q.ID == t.ID {
			return Reject(codeDuplicateTrack)
		}
		if f.config.MatchVersions && isSameSong(q, t) {
			return Reject(codeDuplicateTrack)
		}
	}
	return Accept()
}

// isSameSong reports whether two tracks are versions of one song: the
// normalized titles match and so do the artists.
func isSameSong(a, b *track.Track) bool {
	if normalizeTitle(a.Metadata.Title) != normalizeTitle(b.Metadata.Title) {
		return false
	}
	// Same normalized title by a different artist is a cover.
	return strings.EqualFold(a.DisplayArtist(), b.DisplayArtist())
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live\b.*$`),         // "- Live at Wembley"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTitle removes remaster and version details.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, p := range remasterPatterns {
		normalized = p.ReplaceAllString(normalized, "")
	}
	for _, p := range versionPatterns {
		normalized = p.ReplaceAllString(normalized, "")
	}

	normalized = spaces.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return &DuplicateTrackFilter{}
	})
}
