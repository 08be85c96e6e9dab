package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tome/internal/app/loudness"
	"github.com/osa030/tome/internal/app/state"
	"github.com/osa030/tome/internal/domain/queue"
	"github.com/osa030/tome/internal/domain/track"
)

// Errors
var (
	ErrNoTrack        = errors.New("no track loaded")
	ErrLoadFailed     = errors.New("track load failed")
	ErrLoadSuperseded = errors.New("track load superseded by a newer request")
	ErrClosed         = errors.New("engine closed")
)

// Output is the platform audio primitive. One track is loaded at a time.
type Output interface {
	// Load replaces the loaded track. hint is the source path and is only used
	// to pick a decoder when the bytes are ambiguous.
	Load(data []byte, hint string) error
	// Play starts or resumes output. Playing after the end restarts the track.
	Play() error
	Pause()
	// Stop halts output and releases the loaded track.
	Stop()
	SetGain(gain float64)
	SetMuted(muted bool)
	Position() time.Duration
	// OnEnded registers the natural-end callback. It is called on its own
	// goroutine, never while the output holds an internal lock.
	OnEnded(fn func())
}

// Storage fetches raw audio bytes.
type Storage interface {
	ReadAudioBytes(ctx context.Context, path string) ([]byte, error)
}

// Config holds engine configuration.
type Config struct {
	EventBuffer int // Capacity of the event channel
}

// Engine drives the audio output through the play queue and mirrors its
// state into the store.
type Engine struct {
	mu sync.RWMutex

	out     Output
	storage Storage
	store   *state.Store

	queue *queue.Queue
	state State

	// Load tracking. Every PlayTrack bumps loadSeq; a load that finishes
	// with a stale sequence has been superseded.
	loadSeq    uint64
	loadCancel context.CancelFunc

	config Config

	eventCh chan Event
	closed  bool

	unsubscribe []func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates a playback engine and binds it to the volume and mute
// cells of the store.
func NewEngine(config Config, out Output, storage Storage, store *state.Store) *Engine {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		out:     out,
		storage: storage,
		store:   store,
		queue:   queue.New(),
		state:   StateIdle,
		config:  config,
		eventCh: make(chan Event, config.EventBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}

	out.OnEnded(e.onTrackEnded)

	e.unsubscribe = append(e.unsubscribe,
		store.Volume.Subscribe(func(v float64) {
			out.SetGain(loudness.Gain(v))
		}),
		store.IsMuted.Subscribe(func(muted bool) {
			out.SetMuted(muted)
		}),
	)

	return e
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// PlayTrack loads t and starts it. A newer PlayTrack cancels this one, in
// which case ErrLoadSuperseded is returned and no state is touched.
func (e *Engine) PlayTrack(ctx context.Context, t *track.Track) error {
	if t == nil {
		return errors.New("nil track")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	loadCtx, seq := e.beginLoadLocked(ctx, t)
	e.mu.Unlock()

	return e.finishLoad(loadCtx, seq, t)
}

// PlayNext plays the track under the cursor and advances it. At the end of
// the queue this is a no-op.
func (e *Engine) PlayNext(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	t, ok := e.queue.Peek()
	if !ok {
		e.mu.Unlock()
		zlog.Debug().Msgf("playback: next ignored, end of queue: cursor=%d len=%d", e.queue.Cursor(), e.queue.Len())
		return nil
	}

	loadCtx, seq := e.beginLoadLocked(ctx, t)
	e.queue.Advance()
	e.mu.Unlock()

	return e.finishLoad(loadCtx, seq, t)
}

// PlayPrev steps the cursor back by one and replays the track before it.
// The track two behind the cursor must exist, otherwise this is a no-op.
func (e *Engine) PlayPrev(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	t, ok := e.queue.StepBack()
	if !ok {
		e.mu.Unlock()
		zlog.Debug().Msgf("playback: previous ignored, start of queue: cursor=%d", e.queue.Cursor())
		return nil
	}

	loadCtx, seq := e.beginLoadLocked(ctx, t)
	e.mu.Unlock()

	return e.finishLoad(loadCtx, seq, t)
}

// Pause pauses output. Ignored while a track is loading.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	if e.closed {
		return
	}
	if e.state == StateLoading {
		zlog.Debug().Msg("playback: pause ignored while loading")
		return
	}

	e.out.Pause()
	// Idle means the output has nothing playable: no track, a failed load
	// or the end of the queue.
	if e.state != StateIdle {
		e.state = StatePaused
	}
	e.store.IsPlaying.Set(false)

	e.sendEventLocked(Event{
		Type:  EventStateChanged,
		Track: e.store.CurrentTrack.Get(),
		State: e.state,
	})
}

// Resume resumes output. Ignored while a track is loading.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.resumeLocked()
}

func (e *Engine) resumeLocked() error {
	if e.closed {
		return ErrClosed
	}
	if e.state == StateLoading {
		zlog.Debug().Msg("playback: resume ignored while loading")
		return nil
	}

	current := e.store.CurrentTrack.Get()
	if current == nil {
		return ErrNoTrack
	}

	e.out.SetGain(loudness.Gain(e.store.Volume.Get()))
	if err := e.out.Play(); err != nil {
		return errors.Wrap(err, "failed to resume output")
	}

	e.state = StatePlaying
	e.store.IsPlaying.Set(true)

	e.sendEventLocked(Event{
		Type:  EventStateChanged,
		Track: current,
		State: e.state,
	})

	return nil
}

// TogglePlayback pauses when playing and resumes otherwise.
func (e *Engine) TogglePlayback() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying {
		e.pauseLocked()
		return nil
	}
	return e.resumeLocked()
}

// Enqueue adds a track to the end of the queue.
func (e *Engine) Enqueue(t *track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.Append(t)
}

// EnqueueAll adds tracks to the end of the queue.
func (e *Engine) EnqueueAll(ts []*track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.AppendAll(ts)
}

// ClearQueue removes all tracks from the queue and resets the cursor. The
// current track keeps playing.
func (e *Engine) ClearQueue() []*track.Track {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.queue.Clear()
}

// State returns the engine state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Position returns the playback position of the loaded track.
func (e *Engine) Position() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == StateIdle && e.store.CurrentTrack.Get() == nil {
		return 0
	}
	return e.out.Position()
}

// Cursor returns the queue cursor.
func (e *Engine) Cursor() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queue.Cursor()
}

// Queue returns a copy of the queued tracks.
func (e *Engine) Queue() []*track.Track {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queue.Tracks()
}

// Upcoming returns a copy of the tracks at and after the cursor.
func (e *Engine) Upcoming() []*track.Track {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queue.Upcoming()
}

// RemainingDuration returns the total duration of the upcoming tracks.
func (e *Engine) RemainingDuration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queue.TotalDuration()
}

// Close stops output, cancels any in-flight load, drops the store
// subscriptions and closes the event channel.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
	for _, unsub := range e.unsubscribe {
		unsub()
	}
	e.unsubscribe = nil

	e.out.Stop()
	e.cancel()
	close(e.eventCh)
}

// beginLoadLocked switches to the loading state for t and returns the
// context and sequence number of the new load.
// Must be called with lock held.
func (e *Engine) beginLoadLocked(ctx context.Context, t *track.Track) (context.Context, uint64) {
	if e.loadCancel != nil {
		e.loadCancel()
	}
	e.loadSeq++
	loadCtx, cancel := context.WithCancel(ctx)
	e.loadCancel = cancel

	e.state = StateLoading
	e.store.IsLoading.Set(true)
	e.store.IsPlaying.Set(true)
	e.store.CurrentTime.Set(0)
	e.store.CurrentTrack.Set(t)
	e.out.Stop()

	zlog.Info().Msgf("playback: loading track: id=%s track=%s", t.ID, t)

	return loadCtx, e.loadSeq
}

// finishLoad fetches the bytes of t without holding the lock, then starts
// output if the load is still the newest one.
func (e *Engine) finishLoad(ctx context.Context, seq uint64, t *track.Track) error {
	data, readErr := e.storage.ReadAudioBytes(ctx, t.Path)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if seq != e.loadSeq {
		zlog.Debug().Msgf("playback: discarding superseded load: id=%s", t.ID)
		return ErrLoadSuperseded
	}
	e.loadCancel()
	e.loadCancel = nil

	if readErr != nil {
		return e.failLoadLocked(t, errors.Wrapf(readErr, "failed to read %s", t.Path))
	}
	if err := e.out.Load(data, t.Path); err != nil {
		return e.failLoadLocked(t, errors.Wrapf(err, "failed to decode %s", t.Path))
	}
	if err := e.out.Play(); err != nil {
		return e.failLoadLocked(t, errors.Wrap(err, "failed to start output"))
	}
	e.out.SetGain(loudness.Gain(e.store.Volume.Get()))

	e.state = StatePlaying
	e.store.IsLoading.Set(false)

	zlog.Info().Msgf("playback: track started: id=%s track=%s duration=%v", t.ID, t, t.Duration)

	e.sendEventLocked(Event{
		Type:  EventTrackStarted,
		Track: t,
		State: e.state,
	})

	return nil
}

// failLoadLocked returns the engine to idle after a failed load.
// Must be called with lock held.
func (e *Engine) failLoadLocked(t *track.Track, err error) error {
	e.out.Stop()
	e.state = StateIdle
	e.store.IsLoading.Set(false)
	e.store.IsPlaying.Set(false)

	zlog.Warn().Err(err).Msgf("playback: load failed: id=%s path=%s", t.ID, t.Path)

	e.sendEventLocked(Event{
		Type:  EventLoadFailed,
		Track: t,
		State: e.state,
		Err:   err,
	})

	return errors.Mark(err, ErrLoadFailed)
}

// onTrackEnded is the output's natural-end callback.
func (e *Engine) onTrackEnded() {
	e.mu.Lock()
	if e.closed || e.state != StatePlaying {
		// Stale callback from a track that was replaced or paused.
		e.mu.Unlock()
		return
	}

	ended := e.store.CurrentTrack.Get()
	zlog.Debug().Msgf("playback: track ended: id=%s position=%v", ended.ID, e.out.Position())

	e.sendEventLocked(Event{
		Type:  EventTrackEnded,
		Track: ended,
		State: e.state,
	})

	if _, ok := e.queue.Peek(); !ok {
		e.state = StateIdle
		e.store.IsPlaying.Set(false)
		zlog.Info().Msg("playback: queue ended")
		e.sendEventLocked(Event{
			Type:  EventQueueEnded,
			Track: ended,
			State: e.state,
		})
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := e.PlayNext(e.ctx); err != nil && !errors.Is(err, ErrLoadSuperseded) && !errors.Is(err, ErrClosed) {
		zlog.Warn().Err(err).Msg("playback: failed to advance after track end")
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (e *Engine) sendEventLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	case <-e.ctx.Done():
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping event: type=%s", ev.Type)
	}
}
