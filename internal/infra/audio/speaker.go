//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

// Available indicates whether a sound device can be used in this build.
const Available = true

var (
	speakerOnce sync.Once
	speakerErr  error
)

// SpeakerOutput plays decoded tracks on the system speaker.
type SpeakerOutput struct {
	mu sync.Mutex

	config     Config
	sampleRate beep.SampleRate

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	gain     *effects.Gain
	volume   *effects.Volume

	gainValue float64
	muted     bool

	queued bool // Chain handed to the speaker
	ended  bool

	// Bumped on every Play and Stop so stale end callbacks are ignored.
	playbackID uint64
	onEnded    func()
}

// NewSpeakerOutput initializes the speaker and creates an output.
func NewSpeakerOutput(config Config) (*SpeakerOutput, error) {
	config = config.withDefaults()
	sr := beep.SampleRate(config.SampleRate)

	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sr, sr.N(config.BufferSize))
	})
	if speakerErr != nil {
		return nil, errors.Wrap(speakerErr, "failed to initialize speaker")
	}

	zlog.Debug().Msgf("audio: speaker initialized: sample_rate=%d buffer=%s", config.SampleRate, config.BufferSize)

	return &SpeakerOutput{
		config:     config,
		sampleRate: sr,
		gainValue:  1,
	}, nil
}

// NewOutput creates the output for this build.
func NewOutput(config Config) (*SpeakerOutput, error) {
	return NewSpeakerOutput(config)
}

// Load decodes data and prepares it paused at the start.
func (o *SpeakerOutput) Load(data []byte, hint string) error {
	streamer, format, err := Decode(data, hint)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()
	o.streamer = streamer
	o.format = format
	o.buildChainLocked()

	zlog.Debug().Msgf("audio: loaded: hint=%s rate=%d channels=%d length=%s",
		hint, format.SampleRate, format.NumChannels, Length(streamer, format))
	return nil
}

// buildChainLocked wires streamer -> resampler -> gain -> mute -> ctrl.
func (o *SpeakerOutput) buildChainLocked() {
	var s beep.Streamer = o.streamer
	if o.format.SampleRate != o.sampleRate {
		s = beep.Resample(o.config.ResampleQuality, o.format.SampleRate, o.sampleRate, s)
	}
	o.gain = &effects.Gain{Streamer: s, Gain: o.gainValue - 1}
	o.volume = &effects.Volume{Streamer: o.gain, Base: 2, Silent: o.muted}
	o.ctrl = &beep.Ctrl{Streamer: o.volume, Paused: true}
	o.queued = false
	o.ended = false
}

// Play starts or resumes the loaded track. After the natural end it
// restarts from the beginning.
func (o *SpeakerOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.streamer == nil {
		return ErrNothingLoaded
	}

	if o.ended {
		speaker.Lock()
		err := o.streamer.Seek(0)
		speaker.Unlock()
		if err != nil {
			return errors.Wrap(err, "failed to rewind")
		}
		o.buildChainLocked()
	}

	if !o.queued {
		o.playbackID++
		id := o.playbackID
		o.ctrl.Paused = false
		speaker.Play(beep.Seq(o.ctrl, beep.Callback(func() {
			// Runs under the speaker lock.
			go o.handleEnd(id)
		})))
		o.queued = true
		return nil
	}

	speaker.Lock()
	o.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Pause pauses output, keeping the position.
func (o *SpeakerOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl == nil {
		return
	}
	speaker.Lock()
	o.ctrl.Paused = true
	speaker.Unlock()
}

// Stop halts output and releases the track.
func (o *SpeakerOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *SpeakerOutput) stopLocked() {
	o.playbackID++
	if o.queued {
		speaker.Clear()
	}
	if o.streamer != nil {
		if err := o.streamer.Close(); err != nil {
			zlog.Warn().Err(err).Msg("audio: failed to close stream")
		}
	}
	o.streamer = nil
	o.ctrl = nil
	o.gain = nil
	o.volume = nil
	o.queued = false
	o.ended = false
}

// SetGain sets the linear amplitude multiplier.
func (o *SpeakerOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gainValue = gain
	if o.gain == nil {
		return
	}
	speaker.Lock()
	o.gain.Gain = gain - 1
	speaker.Unlock()
}

// SetMuted silences output without touching the gain.
func (o *SpeakerOutput) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.muted = muted
	if o.volume == nil {
		return
	}
	speaker.Lock()
	o.volume.Silent = muted
	speaker.Unlock()
}

// Position returns the position in the loaded track.
func (o *SpeakerOutput) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := o.streamer.Position()
	speaker.Unlock()
	return o.format.SampleRate.D(pos)
}

// OnEnded registers the natural-end callback.
func (o *SpeakerOutput) OnEnded(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

func (o *SpeakerOutput) handleEnd(id uint64) {
	o.mu.Lock()
	if id != o.playbackID || o.streamer == nil {
		o.mu.Unlock()
		return
	}
	o.ended = true
	o.queued = false
	fn := o.onEnded
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
}
