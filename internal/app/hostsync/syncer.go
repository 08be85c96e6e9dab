// Package hostsync keeps the host process in step with playback: it pushes
// state snapshots to the host and turns host events into engine commands.
package hostsync

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tome/internal/app/host"
	"github.com/osa030/tome/internal/app/playback"
	"github.com/osa030/tome/internal/app/state"
)

// Engine is the part of the playback engine the syncer drives.
type Engine interface {
	Events() <-chan playback.Event
	Position() time.Duration
	Pause()
	Resume() error
	TogglePlayback() error
	PlayNext(ctx context.Context) error
	PlayPrev(ctx context.Context) error
}

// Config holds syncer configuration.
type Config struct {
	Interval    time.Duration // Progress push interval while playing
	PushTimeout time.Duration // Bound on a single host invoke
}

// Syncer pushes playback snapshots to the host and dispatches host events.
type Syncer struct {
	engine Engine
	store  *state.Store
	bridge host.Bridge
	config Config

	mu       sync.Mutex
	unlisten []func()
	pushes   uint64
}

// New creates a syncer.
func New(config Config, engine Engine, store *state.Store, bridge host.Bridge) *Syncer {
	if config.Interval <= 0 {
		config.Interval = 500 * time.Millisecond
	}
	if config.PushTimeout <= 0 {
		config.PushTimeout = 2 * time.Second
	}
	return &Syncer{
		engine: engine,
		store:  store,
		bridge: bridge,
		config: config,
	}
}

// Run consumes engine events and the progress ticker until ctx is done or
// the engine's event channel is closed. Host listeners are registered for
// the duration of the call.
func (s *Syncer) Run(ctx context.Context) error {
	s.listen(ctx)
	defer s.stopListening()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Bring the host up to date with whatever is loaded already.
	s.Push(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.engine.Events():
			if !ok {
				zlog.Debug().Msg("hostsync: engine closed")
				return nil
			}
			s.handlePlaybackEvent(ctx, event)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// handlePlaybackEvent handles playback events.
func (s *Syncer) handlePlaybackEvent(ctx context.Context, event playback.Event) {
	zlog.Debug().Msgf("hostsync: playback event: type=%s state=%s", event.Type, event.State)

	switch event.Type {
	case playback.EventTrackStarted,
		playback.EventStateChanged,
		playback.EventLoadFailed,
		playback.EventQueueEnded:
		s.Push(ctx)

	case playback.EventTrackEnded:
		// The engine advances on its own; the next start pushes.
	}
}

// tick pushes progress while playing.
func (s *Syncer) tick(ctx context.Context) {
	if !s.store.IsPlaying.Get() || s.store.IsLoading.Get() {
		return
	}
	s.Push(ctx)
}

// Push refreshes CurrentTime from the output and sends the current
// snapshot: set_metadata, then set_playback. Host failures are logged and
// dropped.
func (s *Syncer) Push(ctx context.Context) {
	s.refreshPosition()
	snap := s.store.Snapshot()

	s.mu.Lock()
	s.pushes++
	s.mu.Unlock()

	if err := s.invoke(ctx, host.CmdSetMetadata, host.SetMetadataArgs(snap.Track)); err != nil {
		zlog.Warn().Err(err).Msg("hostsync: failed to push metadata")
	}
	args := host.SetPlaybackArgs(snap.Playing, snap.CurrentTime, snap.Track != nil)
	if err := s.invoke(ctx, host.CmdSetPlayback, args); err != nil {
		zlog.Warn().Err(err).Msg("hostsync: failed to push playback")
	}
}

// refreshPosition copies the output position into CurrentTime. While a track
// is loading the output holds nothing and CurrentTime stays at zero.
func (s *Syncer) refreshPosition() {
	if s.store.CurrentTrack.Get() == nil || s.store.IsLoading.Get() {
		return
	}
	s.store.CurrentTime.Set(s.engine.Position().Seconds())
}

// Pushes returns the number of snapshots pushed so far.
func (s *Syncer) Pushes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes
}

func (s *Syncer) invoke(ctx context.Context, cmd string, args map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.PushTimeout)
	defer cancel()
	return s.bridge.Invoke(ctx, cmd, args)
}

// listen registers the host event handlers.
func (s *Syncer) listen(ctx context.Context) {
	handlers := map[string]func(){
		host.EventPlay: func() {
			if err := s.engine.Resume(); err != nil {
				zlog.Warn().Err(err).Msg("hostsync: play from host failed")
			}
		},
		host.EventPause: func() {
			s.engine.Pause()
		},
		host.EventToggle: func() {
			if err := s.engine.TogglePlayback(); err != nil {
				zlog.Warn().Err(err).Msg("hostsync: toggle from host failed")
			}
		},
		host.EventNext: func() {
			s.transport(ctx, "next", s.engine.PlayNext)
		},
		host.EventPrevious: func() {
			s.transport(ctx, "previous", s.engine.PlayPrev)
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range host.Events {
		fn := handlers[event]
		event := event
		s.unlisten = append(s.unlisten, s.bridge.Listen(event, func() {
			zlog.Info().Msgf("hostsync: host event: event=%s", event)
			fn()
		}))
	}
}

func (s *Syncer) transport(ctx context.Context, name string, fn func(context.Context) error) {
	err := fn(ctx)
	if err == nil || errors.Is(err, playback.ErrLoadSuperseded) {
		return
	}
	zlog.Warn().Err(err).Msgf("hostsync: %s from host failed", name)
}

func (s *Syncer) stopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, unlisten := range s.unlisten {
		unlisten()
	}
	s.unlisten = nil
}
