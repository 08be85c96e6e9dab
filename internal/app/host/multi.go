package host

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Multi fans invokes out to several backends and merges their events with
// those of an in-process hub.
type Multi struct {
	hub      *Hub
	backends []Invoker
}

// NewMulti creates a bridge over hub and backends.
func NewMulti(hub *Hub, backends ...Invoker) *Multi {
	if hub == nil {
		hub = NewHub()
	}
	return &Multi{
		hub:      hub,
		backends: backends,
	}
}

// Name returns the bridge name.
func (m *Multi) Name() string {
	return "multi"
}

// Invoke runs cmd on every backend in parallel and waits for all of them or
// for ctx, whichever comes first. A backend that ignores ctx keeps running
// in the background. Errors of the backends that finished are combined in
// configuration order, after the ctx error if the wait was cut short.
func (m *Multi) Invoke(ctx context.Context, cmd string, args map[string]any) error {
	var mu sync.Mutex
	errs := make([]error, len(m.backends))
	finished := make([]bool, len(m.backends))

	var wg sync.WaitGroup
	for i, b := range m.backends {
		wg.Add(1)
		go func(i int, b Invoker) {
			defer wg.Done()
			err := b.Invoke(ctx, cmd, args)

			mu.Lock()
			defer mu.Unlock()
			finished[i] = true
			if err != nil {
				errs[i] = errors.Wrapf(err, "host %s: %s", b.Name(), cmd)
			}
		}(i, b)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var combined error
	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		slow := lo.FilterMap(m.backends, func(b Invoker, i int) (string, bool) {
			return b.Name(), !finished[i]
		})
		mu.Unlock()
		zlog.Warn().Msgf("host: invoke cut short: cmd=%s pending=%v", cmd, slow)
		combined = errors.Wrapf(ctx.Err(), "host: %s: still waiting on %v", cmd, slow)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, err := range errs {
		combined = errors.CombineErrors(combined, err)
	}
	return combined
}

// Listen registers fn on the hub and on every backend that is an
// EventSource.
func (m *Multi) Listen(event string, fn func()) func() {
	unlistens := []func(){m.hub.Listen(event, fn)}
	for _, b := range m.backends {
		if src, ok := b.(EventSource); ok {
			zlog.Debug().Msgf("host: listening on backend: backend=%s event=%s", b.Name(), event)
			unlistens = append(unlistens, src.Listen(event, fn))
		}
	}

	return func() {
		for _, unlisten := range unlistens {
			unlisten()
		}
	}
}

// Close closes every backend that holds resources.
func (m *Multi) Close() error {
	var combined error
	for _, b := range m.backends {
		if c, ok := b.(interface{ Close() error }); ok {
			combined = errors.CombineErrors(combined, c.Close())
		}
	}
	m.hub.Close()
	return combined
}
