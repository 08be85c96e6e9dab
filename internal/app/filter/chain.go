package filter

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/tome/internal/domain/track"
	"github.com/osa030/tome/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain of the enabled filters, in name order.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	chain := NewChain()

	names := lo.Keys(filters)
	slices.Sort(names)
	for _, name := range names {
		fc := filters[name]
		if !fc.Enabled {
			continue
		}
		f, err := New(name)
		if err != nil {
			return nil, err
		}
		if err := f.ValidateConfig(fc.Settings); err != nil {
			return nil, errors.Wrapf(err, "invalid %s config", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter: enabled: name=%s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t *track.Track, queued []*track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, queued)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Admit returns the tracks that pass the chain against queued, in order.
// Each admitted track counts as queued for the ones after it. Rejections are
// counted by code.
func (c *Chain) Admit(ctx context.Context, tracks, queued []*track.Track) ([]*track.Track, map[string]int) {
	if len(c.filters) == 0 {
		return tracks, nil
	}

	seen := slices.Clone(queued)
	admitted := make([]*track.Track, 0, len(tracks))
	rejected := make(map[string]int)
	for _, t := range tracks {
		result := c.Execute(ctx, t, seen)
		if !result.Accepted {
			rejected[result.Code]++
			zlog.Debug().Msgf("filter: rejected: track=%s code=%s", t.Path, result.Code)
			continue
		}
		admitted = append(admitted, t)
		seen = append(seen, t)
	}
	return admitted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
