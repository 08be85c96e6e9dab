// Package filter provides the filter chain applied to tracks before they are
// queued.
package filter

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/osa030/tome/internal/domain/track"
)

// Result is the outcome of a filter check. Code is empty when accepted.
type Result struct {
	Accepted bool
	Code     string
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Code: code}
}

// Filter decides whether a track may join the queue.
type Filter interface {
	// Name is the key of the filter under `filters:` in the config.
	Name() string
	ReturnCodes() []string
	// ValidateConfig decodes, defaults and validates settings and keeps them.
	ValidateConfig(settings map[string]any) error
	Check(ctx context.Context, t *track.Track, queued []*track.Track) Result
}

var registry = make(map[string]func() Filter)

// Register makes a filter available to NewChainFromConfig.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// Registered returns the names of the registered filters, sorted.
func Registered() []string {
	names := lo.Keys(registry)
	slices.Sort(names)
	return names
}

// New creates the registered filter called name.
func New(name string) (Filter, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Newf("unknown filter: %s (known: %v)", name, Registered())
	}
	return factory(), nil
}

// decodeSettings fills out from a settings map (numbers may arrive as any
// numeric type), applies default tags and validates it.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
