package host

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tome/internal/domain/track"
	"github.com/osa030/tome/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	UpdateNowPlaying(ctx context.Context, np lastfm.NowPlaying) error
	Scrobble(ctx context.Context, s lastfm.Scrobble) error
}

type LastFmBackendConfig struct {
	APIKey          string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	APISecret       string `yaml:"api_secret" mapstructure:"api_secret" validate:"required"`
	SessionKey      string `yaml:"session_key" mapstructure:"session_key" validate:"required"`
	DisableScrobble bool   `yaml:"disable_scrobble" mapstructure:"disable_scrobble"`
	MinDurationSec  int    `yaml:"min_duration_sec" mapstructure:"min_duration_sec" default:"30" validate:"gte=0"`
	TimeoutMs       int    `yaml:"timeout_ms" mapstructure:"timeout_ms" default:"5000" validate:"gte=100"`
}

// Last.fm counts a listen after half the track or four minutes, whichever
// comes first.
const maxScrobbleThreshold = 4 * time.Minute

// LastFmBackend reports now-playing to Last.fm on every track change and
// scrobbles the previous track when it was listened to long enough.
type LastFmBackend struct {
	client LastFmClient
	config *LastFmBackendConfig
	now    func() time.Time

	mu        sync.Mutex
	current   *track.Track
	startedAt time.Time
	progress  float64 // Furthest position reported for current, in seconds
}

// NewLastFmBackend creates a LastFmBackend.
func NewLastFmBackend(settings map[string]any) (*LastFmBackend, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmBackendConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := lastfm.New(lastfm.Config{
		APIKey:     config.APIKey,
		APISecret:  config.APISecret,
		SessionKey: config.SessionKey,
		Timeout:    time.Duration(config.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return newLastFmBackend(client, &config, time.Now), nil
}

func newLastFmBackend(client LastFmClient, config *LastFmBackendConfig, now func() time.Time) *LastFmBackend {
	return &LastFmBackend{
		client: client,
		config: config,
		now:    now,
	}
}

// Name returns the backend name.
func (b *LastFmBackend) Name() string {
	return "lastfm"
}

// Invoke tracks progress on set_playback and reports track changes on
// set_metadata.
func (b *LastFmBackend) Invoke(ctx context.Context, cmd string, args map[string]any) error {
	switch cmd {
	case CmdSetPlayback:
		p, err := DecodePlayback(args)
		if err != nil {
			return err
		}
		b.mu.Lock()
		if p.Progress != nil && *p.Progress > b.progress {
			b.progress = *p.Progress
		}
		b.mu.Unlock()
		return nil

	case CmdSetMetadata:
		t, err := DecodeTrack(args)
		if err != nil {
			return err
		}
		return b.trackChanged(ctx, t)

	default:
		return nil
	}
}

func (b *LastFmBackend) trackChanged(ctx context.Context, t *track.Track) error {
	b.mu.Lock()
	if sameTrack(b.current, t) {
		b.mu.Unlock()
		return nil
	}
	prev, prevStart, prevProgress := b.current, b.startedAt, b.progress
	b.current = t
	b.startedAt = b.now()
	b.progress = 0
	b.mu.Unlock()

	var errs error

	if prev != nil && !b.config.DisableScrobble && b.listenedEnough(prev, prevProgress) {
		zlog.Debug().Msgf("last.fm: scrobbling: id=%s progress=%.0fs", prev.ID, prevProgress)
		err := b.client.Scrobble(ctx, lastfm.Scrobble{
			NowPlaying: nowPlayingOf(prev),
			StartedAt:  prevStart,
		})
		errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to scrobble"))
	}

	if t != nil {
		err := b.client.UpdateNowPlaying(ctx, nowPlayingOf(t))
		errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to update now playing"))
	}

	return errs
}

// listenedEnough applies the Last.fm scrobble rules.
func (b *LastFmBackend) listenedEnough(t *track.Track, progress float64) bool {
	if t.Duration < time.Duration(b.config.MinDurationSec)*time.Second {
		return false
	}
	threshold := min(t.Duration/2, maxScrobbleThreshold)
	return time.Duration(progress*float64(time.Second)) >= threshold
}

func sameTrack(a, b *track.Track) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

func nowPlayingOf(t *track.Track) lastfm.NowPlaying {
	np := lastfm.NowPlaying{
		Artist:      t.DisplayArtist(),
		Track:       t.Metadata.Title,
		Album:       t.Metadata.Album,
		AlbumArtist: t.Metadata.Artist,
		Duration:    t.Duration,
	}
	if np.Album == track.UnknownAlbum {
		np.Album = ""
	}
	if t.Metadata.TrackNumber != nil {
		np.TrackNumber = *t.Metadata.TrackNumber
	}
	return np
}
