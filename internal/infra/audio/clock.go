package audio

import (
	"sync"
	"time"
)

// ClockOutput is a silent output that advances a wall clock through the
// decoded length of the track and reports the natural end like a speaker
// would.
type ClockOutput struct {
	mu sync.Mutex

	config Config

	loaded   bool
	length   time.Duration
	offset   time.Duration // Position at the last pause
	started  time.Time     // Zero while paused
	timer    *time.Timer
	gain     float64
	muted    bool
	ended    bool
	playback uint64
	onEnded  func()
}

// NewClockOutput creates a clock output.
func NewClockOutput(config Config) *ClockOutput {
	return &ClockOutput{config: config.withDefaults(), gain: 1}
}

// Load decodes data to validate it and learn its length.
func (o *ClockOutput) Load(data []byte, hint string) error {
	streamer, format, err := Decode(data, hint)
	if err != nil {
		return err
	}
	length := Length(streamer, format)
	_ = streamer.Close()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()
	o.loaded = true
	o.length = length
	return nil
}

// Play starts or resumes the clock. After the natural end it restarts from
// zero.
func (o *ClockOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.loaded {
		return ErrNothingLoaded
	}
	if o.ended {
		o.ended = false
		o.offset = 0
	}
	if !o.started.IsZero() {
		return nil
	}

	o.playback++
	id := o.playback
	o.started = time.Now()
	o.timer = time.AfterFunc(o.length-o.offset, func() { o.handleEnd(id) })
	return nil
}

// Pause stops the clock.
func (o *ClockOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started.IsZero() {
		return
	}
	o.offset = o.positionLocked()
	o.started = time.Time{}
	o.playback++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// Stop resets the output.
func (o *ClockOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *ClockOutput) stopLocked() {
	o.playback++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.loaded = false
	o.length = 0
	o.offset = 0
	o.started = time.Time{}
	o.ended = false
}

func (o *ClockOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
}

func (o *ClockOutput) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

// Gain returns the last gain set.
func (o *ClockOutput) Gain() (gain float64, muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gain, o.muted
}

func (o *ClockOutput) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.positionLocked()
}

func (o *ClockOutput) positionLocked() time.Duration {
	if o.ended {
		return o.length
	}
	pos := o.offset
	if !o.started.IsZero() {
		pos += time.Since(o.started)
	}
	return min(pos, o.length)
}

func (o *ClockOutput) OnEnded(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

func (o *ClockOutput) handleEnd(id uint64) {
	o.mu.Lock()
	if id != o.playback {
		o.mu.Unlock()
		return
	}
	o.ended = true
	o.started = time.Time{}
	o.timer = nil
	fn := o.onEnded
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
}
