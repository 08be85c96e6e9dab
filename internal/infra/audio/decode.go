// Package audio provides the platform audio primitive used by the playback
// engine: a beep speaker output, and a clock output for builds without a
// sound device.
package audio

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNothingLoaded     = errors.New("no track loaded")
)

// Container formats recognised by Sniff.
const (
	FormatMP3  = "mp3"
	FormatFLAC = "flac"
	FormatWAV  = "wav"
	FormatOGG  = "ogg"
	FormatAIFF = "aiff"
	FormatMP4  = "mp4"
)

// Config holds output configuration.
type Config struct {
	SampleRate      int           // Output sample rate in Hz
	BufferSize      time.Duration // Speaker buffer length
	ResampleQuality int           // beep resampler quality, 1..6
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 100 * time.Millisecond
	}
	if c.ResampleQuality <= 0 {
		c.ResampleQuality = 4
	}
	return c
}

// Sniff identifies the container of data from its leading bytes, falling
// back to the extension of hint. It returns "" when neither is conclusive.
func Sniff(data []byte, hint string) string {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("FORM")) &&
		(bytes.Equal(data[8:12], []byte("AIFF")) || bytes.Equal(data[8:12], []byte("AIFC"))):
		return FormatAIFF
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatMP4
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}

	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(hint)), ".") {
	case "mp3":
		return FormatMP3
	case "flac":
		return FormatFLAC
	case "wav":
		return FormatWAV
	case "ogg", "oga":
		return FormatOGG
	case "aif", "aiff", "aifc":
		return FormatAIFF
	case "m4a", "mp4", "aac":
		return FormatMP4
	}
	return ""
}

// Decode decodes data into a seekable stream.
func Decode(data []byte, hint string) (beep.StreamSeekCloser, beep.Format, error) {
	format := Sniff(data, hint)
	r := bytes.NewReader(data)

	var (
		streamer beep.StreamSeekCloser
		f        beep.Format
		err      error
	)
	switch format {
	case FormatMP3:
		streamer, f, err = mp3.Decode(io.NopCloser(r))
	case FormatFLAC:
		streamer, f, err = flac.Decode(r)
	case FormatWAV:
		streamer, f, err = wav.Decode(r)
	case FormatOGG:
		streamer, f, err = vorbis.Decode(io.NopCloser(r))
	default:
		return nil, beep.Format{}, errors.Mark(errors.Newf("cannot decode %q (format %q)", filepath.Base(hint), format), ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", format)
	}
	return streamer, f, nil
}

// Length returns the duration of a decoded stream.
func Length(streamer beep.StreamSeekCloser, format beep.Format) time.Duration {
	return format.SampleRate.D(streamer.Len())
}
