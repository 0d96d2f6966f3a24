package audio

import "math"

// Normalize peak-normalizes samples to [-1, 1]. A silent buffer is returned
// unchanged.
func Normalize(samples []float64) []float64 {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	out := make([]float64, len(samples))
	if peak == 0 {
		copy(out, samples)
		return out
	}
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// Preroll prepends seconds of silence. Used on materialized round files to
// wake up Bluetooth and power-saving playback devices; the analysis copy of
// the reference never gets a preroll.
func Preroll(samples []float64, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	if n <= 0 {
		return samples
	}
	out := make([]float64, n+len(samples))
	copy(out[n:], samples)
	return out
}

// RMS returns the root mean square level of a buffer.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var energy float64
	for _, s := range samples {
		energy += s * s
	}
	return math.Sqrt(energy / float64(len(samples)))
}
