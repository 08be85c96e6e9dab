// Package loudness maps the linear volume knob to a perceptual output gain.
package loudness

import "math"

const (
	a = 0.01
	b = 4.606

	// Below this knob position the exponential curve is replaced by a linear
	// ramp so there is no audible step near silence.
	linearBelow = 0.1
)

// Gain returns the output gain for a volume in [0,1]. The result is in [0,1].
// The linear ramp below 0.1 meets the exponential branch exactly at 0.1.
func Gain(volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	if volume < linearBelow {
		return volume * 10 * a * math.Exp(linearBelow*b)
	}
	return math.Min(a*math.Exp(b*volume), 1)
}
