package host

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/gen2brain/beeep"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

type NotifyBackendConfig struct {
	AppName   string `yaml:"app_name" mapstructure:"app_name" default:"Tome" validate:"required"`
	HideAlbum bool   `yaml:"hide_album" mapstructure:"hide_album"`
}

// NotifyFunc shows a desktop notification.
type NotifyFunc func(title, message, icon string) error

// NotifyBackend shows a desktop notification whenever the track changes.
type NotifyBackend struct {
	mu     sync.Mutex
	lastID string
	config NotifyBackendConfig
	notify NotifyFunc
}

// NewNotifyBackend creates a NotifyBackend that notifies through beeep.
func NewNotifyBackend(settings map[string]any) (*NotifyBackend, error) {
	var config NotifyBackendConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	beeep.AppName = config.AppName
	return newNotifyBackend(config, func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	}), nil
}

func newNotifyBackend(config NotifyBackendConfig, notify NotifyFunc) *NotifyBackend {
	return &NotifyBackend{
		config: config,
		notify: notify,
	}
}

// Name returns the backend name.
func (b *NotifyBackend) Name() string {
	return "notify"
}

// Invoke notifies on set_metadata with a new track and ignores everything
// else.
func (b *NotifyBackend) Invoke(_ context.Context, cmd string, args map[string]any) error {
	if cmd != CmdSetMetadata {
		return nil
	}

	t, err := DecodeTrack(args)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if t == nil {
		b.lastID = ""
		b.mu.Unlock()
		return nil
	}
	if t.ID == b.lastID {
		b.mu.Unlock()
		return nil
	}
	b.lastID = t.ID
	b.mu.Unlock()

	message := t.DisplayArtist()
	if !b.config.HideAlbum && t.Metadata.Album != "" {
		message += " - " + t.Metadata.Album
	}
	var icon string
	if t.HasArtwork() {
		icon = *t.Metadata.ArtworkPath
	}

	zlog.Debug().Msgf("host: notifying track change: id=%s title=%s", t.ID, t.Metadata.Title)
	if err := b.notify(t.Metadata.Title, message, icon); err != nil {
		return errors.Wrap(err, "failed to show notification")
	}
	return nil
}
