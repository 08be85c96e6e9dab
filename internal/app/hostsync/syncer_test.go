package hostsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tome/internal/app/host"
	"github.com/osa030/tome/internal/app/playback"
	"github.com/osa030/tome/internal/app/state"
	"github.com/osa030/tome/internal/domain/track"
)

type invocation struct {
	cmd  string
	args map[string]any
}

type fakeBridge struct {
	*host.Hub

	mu      sync.Mutex
	invokes []invocation
	block   bool
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{Hub: host.NewHub()}
}

func (b *fakeBridge) Name() string { return "fake" }

func (b *fakeBridge) Invoke(ctx context.Context, cmd string, args map[string]any) error {
	b.mu.Lock()
	b.invokes = append(b.invokes, invocation{cmd: cmd, args: args})
	block := b.block
	b.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (b *fakeBridge) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invokes = nil
}

func (b *fakeBridge) playbackPushes() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, inv := range b.invokes {
		if inv.cmd == host.CmdSetPlayback {
			out = append(out, inv.args)
		}
	}
	return out
}

func (b *fakeBridge) all() []invocation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]invocation(nil), b.invokes...)
}

// fakeEngine mirrors the engine's writes to the store.
type fakeEngine struct {
	store  *state.Store
	events chan playback.Event

	mu       sync.Mutex
	position time.Duration
	calls    []string
}

func newFakeEngine(store *state.Store) *fakeEngine {
	return &fakeEngine{store: store, events: make(chan playback.Event, 16)}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) Events() <-chan playback.Event { return e.events }

func (e *fakeEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *fakeEngine) start(t *track.Track) {
	e.store.CurrentTrack.Set(t)
	e.store.IsPlaying.Set(true)
	e.store.IsLoading.Set(false)
	e.events <- playback.Event{Type: playback.EventTrackStarted, Track: t, State: playback.StatePlaying}
}

func (e *fakeEngine) Pause() {
	e.record("pause")
	e.store.IsPlaying.Set(false)
	e.events <- playback.Event{Type: playback.EventStateChanged, State: playback.StatePaused}
}

func (e *fakeEngine) Resume() error {
	e.record("resume")
	e.store.IsPlaying.Set(true)
	e.events <- playback.Event{Type: playback.EventStateChanged, State: playback.StatePlaying}
	return nil
}

func (e *fakeEngine) TogglePlayback() error {
	e.record("toggle")
	return nil
}

func (e *fakeEngine) PlayNext(context.Context) error {
	e.record("next")
	return nil
}

func (e *fakeEngine) PlayPrev(context.Context) error {
	e.record("previous")
	return playback.ErrLoadSuperseded
}

// stubOutput is an audio output whose position is set by the test.
type stubOutput struct {
	mu       sync.Mutex
	position time.Duration
}

func (o *stubOutput) Load([]byte, string) error { return nil }
func (o *stubOutput) Play() error               { return nil }
func (o *stubOutput) Pause()                    {}
func (o *stubOutput) Stop()                     {}
func (o *stubOutput) SetGain(float64)           {}
func (o *stubOutput) SetMuted(bool)             {}
func (o *stubOutput) OnEnded(func())            {}

func (o *stubOutput) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position
}

func (o *stubOutput) seek(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = d
}

type stubStorage struct{}

func (stubStorage) ReadAudioBytes(_ context.Context, path string) ([]byte, error) {
	return []byte(path), nil
}

func newTrack(id string) *track.Track {
	return &track.Track{
		ID:       id,
		Path:     "/music/" + id + ".flac",
		Metadata: track.DefaultMetadata("/music/" + id + ".flac"),
		Duration: 4 * time.Minute,
	}
}

func runSyncer(t *testing.T, s *Syncer) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("syncer did not stop")
		}
	}
}

func TestSyncer_InitialPush(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	s := New(Config{Interval: time.Hour}, newFakeEngine(store), store, bridge)

	stop := runSyncer(t, s)
	defer stop()

	require.Eventually(t, func() bool { return len(bridge.all()) == 2 }, time.Second, 5*time.Millisecond)

	invokes := bridge.all()
	assert.Equal(t, host.CmdSetMetadata, invokes[0].cmd)
	assert.Equal(t, map[string]any{"track": nil}, invokes[0].args)
	assert.Equal(t, host.CmdSetPlayback, invokes[1].cmd)
	assert.Equal(t, map[string]any{"playing": false, "progress": nil}, invokes[1].args)
}

func TestSyncer_TrackStartedPushesMetadataThenPlayback(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	engine := newFakeEngine(store)
	s := New(Config{Interval: time.Hour}, engine, store, bridge)

	stop := runSyncer(t, s)
	defer stop()
	require.Eventually(t, func() bool { return len(bridge.all()) == 2 }, time.Second, 5*time.Millisecond)
	bridge.reset()

	a := newTrack("a")
	engine.start(a)

	require.Eventually(t, func() bool { return len(bridge.all()) == 2 }, time.Second, 5*time.Millisecond)
	invokes := bridge.all()
	assert.Equal(t, host.CmdSetMetadata, invokes[0].cmd)
	decoded, err := host.DecodeTrack(invokes[0].args["track"].(map[string]any))
	require.NoError(t, err)
	assert.Equal(t, "a", decoded.ID)
	assert.Equal(t, host.CmdSetPlayback, invokes[1].cmd)
	assert.Equal(t, true, invokes[1].args["playing"])
	assert.Equal(t, 0.0, invokes[1].args["progress"])
}

func TestSyncer_HostPauseWhilePlaying(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	engine := newFakeEngine(store)
	s := New(Config{Interval: time.Hour}, engine, store, bridge)

	stop := runSyncer(t, s)
	defer stop()

	engine.start(newTrack("a"))
	// Initial snapshot plus the track start.
	require.Eventually(t, func() bool { return len(bridge.all()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, true, bridge.playbackPushes()[1]["playing"])
	bridge.reset()

	assert.Equal(t, 1, bridge.Emit(host.EventPause))

	require.Eventually(t, func() bool { return len(bridge.playbackPushes()) == 1 }, time.Second, 5*time.Millisecond)
	// No further pushes while paused.
	time.Sleep(20 * time.Millisecond)
	pushes := bridge.playbackPushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, false, pushes[0]["playing"])
	assert.Equal(t, []string{"pause"}, engine.recorded())
}

func TestSyncer_HostPauseReportsOutputPosition(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	out := &stubOutput{}
	engine := playback.NewEngine(playback.Config{}, out, stubStorage{}, store)
	defer engine.Close()
	s := New(Config{Interval: time.Hour}, engine, store, bridge)

	stop := runSyncer(t, s)
	defer stop()
	require.Eventually(t, func() bool { return len(bridge.all()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, engine.PlayTrack(context.Background(), newTrack("a")))
	require.Eventually(t, func() bool { return len(bridge.all()) == 4 }, time.Second, 5*time.Millisecond)
	bridge.reset()

	// No tick runs in between, so only the push itself can pick this up.
	out.seek(42 * time.Second)
	assert.Equal(t, 1, bridge.Emit(host.EventPause))

	require.Eventually(t, func() bool { return len(bridge.playbackPushes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, map[string]any{"playing": false, "progress": 42.0}, bridge.playbackPushes()[0])
	assert.Equal(t, playback.StatePaused, engine.State())
	assert.Equal(t, 42.0, store.CurrentTime.Get())
}

func TestSyncer_ProgressTick(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	engine := newFakeEngine(store)
	engine.position = 42 * time.Second
	s := New(Config{Interval: 10 * time.Millisecond}, engine, store, bridge)

	stop := runSyncer(t, s)
	defer stop()

	engine.start(newTrack("a"))

	require.Eventually(t, func() bool {
		for _, p := range bridge.playbackPushes() {
			if p["progress"] == 42.0 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 42.0, store.CurrentTime.Get())
}

func TestSyncer_NoTickWhileLoading(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	engine := newFakeEngine(store)
	engine.position = 7 * time.Second
	s := New(Config{Interval: 5 * time.Millisecond}, engine, store, bridge)

	store.CurrentTrack.Set(newTrack("a"))
	store.IsPlaying.Set(true)
	store.IsLoading.Set(true)

	stop := runSyncer(t, s)
	time.Sleep(40 * time.Millisecond)
	stop()

	// Only the initial snapshot went out.
	assert.Len(t, bridge.playbackPushes(), 1)
	assert.Equal(t, 0.0, store.CurrentTime.Get())
}

func TestSyncer_HostEvents(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{event: host.EventPlay, want: "resume"},
		{event: host.EventPause, want: "pause"},
		{event: host.EventToggle, want: "toggle"},
		{event: host.EventNext, want: "next"},
		{event: host.EventPrevious, want: "previous"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			store := state.New(state.Initial{Volume: 0.8})
			bridge := newFakeBridge()
			engine := newFakeEngine(store)
			s := New(Config{Interval: time.Hour}, engine, store, bridge)

			stop := runSyncer(t, s)
			defer stop()
			// The initial snapshot goes out once the listeners are registered.
			require.Eventually(t, func() bool { return len(bridge.all()) == 2 }, time.Second, 5*time.Millisecond)

			bridge.Emit(tt.event)
			assert.Equal(t, []string{tt.want}, engine.recorded())
		})
	}
}

func TestSyncer_UnlistensOnExit(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	engine := newFakeEngine(store)
	s := New(Config{Interval: time.Hour}, engine, store, bridge)

	stop := runSyncer(t, s)
	require.Eventually(t, func() bool { return len(bridge.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, bridge.Emit(host.EventNext))
	stop()

	for _, event := range host.Events {
		assert.Zero(t, bridge.Emit(event), event)
	}
	assert.Equal(t, []string{"next"}, engine.recorded())
}

func TestSyncer_StopsWhenEngineCloses(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	engine := newFakeEngine(store)
	s := New(Config{Interval: time.Hour}, engine, store, newFakeBridge())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	close(engine.events)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("syncer did not stop")
	}
}

func TestSyncer_PushTimeout(t *testing.T) {
	store := state.New(state.Initial{Volume: 0.8})
	bridge := newFakeBridge()
	bridge.block = true
	s := New(Config{Interval: time.Hour, PushTimeout: 10 * time.Millisecond}, newFakeEngine(store), store, bridge)

	start := time.Now()
	s.Push(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, bridge.all(), 2)
	assert.Equal(t, uint64(1), s.Pushes())
}
