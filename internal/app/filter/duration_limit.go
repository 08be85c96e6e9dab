package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tome/internal/domain/track"
)

const codeDurationLimit = "duration_limit_exceeded"

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinSeconds float64 `yaml:"min_seconds" mapstructure:"min_seconds" default:"0" validate:"gte=0"`
	MaxSeconds float64 `yaml:"max_seconds" mapstructure:"max_seconds" validate:"gte=0"` // 0 means no limit
}

// DurationLimitFilter rejects tracks shorter or longer than the configured
// bounds. Unconfigured, or for tracks of unknown duration, it accepts.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{codeDurationLimit}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.New("min_seconds cannot be greater than max_seconds")
	}

	f.config = &config
	zlog.Info().Msgf("filter: duration limit: min=%vs max=%vs", config.MinSeconds, config.MaxSeconds)
	return nil
}

func (f *DurationLimitFilter) Check(_ context.Context, t *track.Track, _ []*track.Track) Result {
	if f.config == nil || t.Duration <= 0 {
		return Accept()
	}

	if t.Duration < seconds(f.config.MinSeconds) {
		return Reject(codeDurationLimit)
	}

	if f.config.MaxSeconds > 0 && t.Duration > seconds(f.config.MaxSeconds) {
		return Reject(codeDurationLimit)
	}

	return Accept()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return &DurationLimitFilter{}
	})
}
