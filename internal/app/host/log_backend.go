package host

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

type LogBackendConfig struct {
	Level string `yaml:"level" mapstructure:"level" default:"debug" validate:"oneof=debug info"`
}

// LogBackend writes every invoke to the log. It stands in for a host shell
// when none is attached.
type LogBackend struct {
	level zerolog.Level
}

// NewLogBackend creates a LogBackend. settings may be empty.
func NewLogBackend(settings map[string]any) (*LogBackend, error) {
	var config LogBackendConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	level := zerolog.DebugLevel
	if config.Level == "info" {
		level = zerolog.InfoLevel
	}
	return &LogBackend{level: level}, nil
}

// Name returns the backend name.
func (b *LogBackend) Name() string {
	return "log"
}

// Invoke logs the command.
func (b *LogBackend) Invoke(_ context.Context, cmd string, args map[string]any) error {
	switch cmd {
	case CmdSetMetadata:
		t, err := DecodeTrack(args)
		if err != nil {
			return err
		}
		if t == nil {
			zlog.WithLevel(b.level).Msg("host: metadata cleared")
			return nil
		}
		media := MediaOf(t)
		zlog.WithLevel(b.level).Msgf("host: metadata: title=%s artist=%s album=%s duration=%v cover=%s",
			media.Title, media.Artist, media.Album, media.Duration, media.CoverURL)

	case CmdSetPlayback:
		p, err := DecodePlayback(args)
		if err != nil {
			return err
		}
		if p.Progress != nil {
			zlog.WithLevel(b.level).Msgf("host: playback: status=%s progress=%.1fs", p.Status(), *p.Progress)
		} else {
			zlog.WithLevel(b.level).Msgf("host: playback: status=%s", p.Status())
		}

	default:
		zlog.WithLevel(b.level).Msgf("host: invoke: cmd=%s args=%v", cmd, args)
	}
	return nil
}
