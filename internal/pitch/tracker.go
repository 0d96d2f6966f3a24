package pitch

import (
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/himanishpuri/ChirpArena/internal/config"
)

// Contour is the per-clip pitch analysis the matcher consumes. Unvoiced
// frames carry Voiced=false and F0=0 rather than a NaN sentinel, so the
// median and log arithmetic downstream never see NaN.
type Contour struct {
	F0          []float64 `json:"f0"`
	Voiced      []bool    `json:"voiced"`
	MedianHz    float64   `json:"median_hz"`
	VoicedRatio float64   `json:"voiced_ratio"`
	// Semitones is the smoothed relative contour: 12*log2(f0/median) on
	// voiced frames, 0 elsewhere, run through a centered moving average.
	Semitones []float64 `json:"contour_semitones"`
}

// Tracker estimates a fundamental-frequency contour from mono audio using a
// YIN-family frame-wise detector: FFT autocorrelation, cumulative-mean
// normalized difference, absolute threshold with parabolic refinement.
type Tracker struct {
	frameLen    int
	hopLen      int
	fMin        float64
	fMax        float64
	smoothWin   int
	voicedFloor float64
}

const (
	// yinThreshold is the CMND dip threshold below which a frame counts as
	// voiced. 0.15 is the usual YIN operating point for noisy vocal input.
	yinThreshold = 0.15

	// silenceRMS gates out frames with no usable signal before running the
	// lag search.
	silenceRMS = 0.005
)

func NewTracker(cfg config.Config) *Tracker {
	return &Tracker{
		frameLen:    cfg.FrameLength,
		hopLen:      cfg.HopLength,
		fMin:        cfg.FMinHz,
		fMax:        cfg.FMaxHz,
		smoothWin:   cfg.SmoothingWindow,
		voicedFloor: cfg.VoicedRatioFloor,
	}
}

// Extract computes the pitch contour of samples recorded at sampleRate.
// It never fails: silent or empty input yields a well-formed contour with
// VoicedRatio 0, MedianHz 0 and an all-zero semitone track.
func (t *Tracker) Extract(samples []float64, sampleRate int) Contour {
	nFrames := 0
	if len(samples) > 0 {
		nFrames = (len(samples) + t.hopLen - 1) / t.hopLen
	}

	c := Contour{
		F0:        make([]float64, nFrames),
		Voiced:    make([]bool, nFrames),
		Semitones: make([]float64, nFrames),
	}
	if nFrames == 0 {
		return c
	}

	frame := make([]float64, t.frameLen)
	voicedCount := 0
	for i := 0; i < nFrames; i++ {
		start := i * t.hopLen
		n := copy(frame, samples[start:min(start+t.frameLen, len(samples))])
		for j := n; j < t.frameLen; j++ {
			frame[j] = 0
		}

		if f0, ok := t.estimateFrame(frame, sampleRate); ok {
			c.F0[i] = f0
			c.Voiced[i] = true
			voicedCount++
		}
	}

	c.VoicedRatio = float64(voicedCount) / float64(nFrames)
	c.MedianHz = t.voicedMedian(c)
	c.Semitones = t.smoothedSemitones(c)
	return c
}

// estimateFrame runs YIN on a single frame. Returns (f0, true) when the
// frame is voiced.
func (t *Tracker) estimateFrame(frame []float64, sampleRate int) (float64, bool) {
	var energy float64
	for _, s := range frame {
		energy += s * s
	}
	if math.Sqrt(energy/float64(len(frame))) < silenceRMS {
		return 0, false
	}

	lagMin := int(float64(sampleRate) / t.fMax)
	lagMax := int(math.Ceil(float64(sampleRate) / t.fMin))
	if lagMin < 1 {
		lagMin = 1
	}
	if lagMax >= len(frame) {
		lagMax = len(frame) - 1
	}
	if lagMax <= lagMin {
		return 0, false
	}

	r := autocorrelate(frame, lagMax)

	// Difference function d(tau) = 2*(r(0) - r(tau)) under the usual
	// stationarity approximation, then cumulative-mean normalization.
	d := make([]float64, lagMax+1)
	cmnd := make([]float64, lagMax+1)
	cmnd[0] = 1
	var runningSum float64
	for tau := 1; tau <= lagMax; tau++ {
		d[tau] = 2 * (r[0] - r[tau])
		if d[tau] < 0 {
			d[tau] = 0
		}
		runningSum += d[tau]
		if runningSum > 0 {
			cmnd[tau] = d[tau] * float64(tau) / runningSum
		} else {
			cmnd[tau] = 1
		}
	}

	// Absolute-threshold search: first dip under yinThreshold, extended to
	// its local minimum. No dip under the threshold means unvoiced.
	best := -1
	for tau := lagMin; tau <= lagMax; tau++ {
		if cmnd[tau] < yinThreshold {
			for tau+1 <= lagMax && cmnd[tau+1] < cmnd[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		return 0, false
	}

	f0 := float64(sampleRate) / refineLag(cmnd, best)
	if f0 < t.fMin || f0 > t.fMax {
		return 0, false
	}
	return f0, true
}

// autocorrelate returns r[0..maxLag] computed through the FFT.
func autocorrelate(frame []float64, maxLag int) []float64 {
	n := 1
	for n < 2*len(frame) {
		n <<= 1
	}
	padded := make([]float64, n)
	copy(padded, frame)

	spec := fft.FFTReal(padded)
	for i, v := range spec {
		spec[i] = complex(real(v)*real(v)+imag(v)*imag(v), 0)
	}
	corr := fft.IFFT(spec)

	r := make([]float64, maxLag+1)
	for i := range r {
		r[i] = real(corr[i])
	}
	return r
}

// refineLag applies parabolic interpolation around the detected lag for
// sub-sample pitch precision.
func refineLag(cmnd []float64, tau int) float64 {
	if tau <= 0 || tau >= len(cmnd)-1 {
		return float64(tau)
	}
	a, b, c := cmnd[tau-1], cmnd[tau], cmnd[tau+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(tau)
	}
	shift := (a - c) / (2 * denom)
	if shift > 0.5 || shift < -0.5 {
		return float64(tau)
	}
	return float64(tau) + shift
}

// voicedMedian is the median f0 over voiced frames, forced to 0 when the
// voiced ratio is at or below the floor (a sparse estimate would just be
// noise).
func (t *Tracker) voicedMedian(c Contour) float64 {
	if c.VoicedRatio <= t.voicedFloor {
		return 0
	}
	voiced := make([]float64, 0, len(c.F0))
	for i, f := range c.F0 {
		if c.Voiced[i] {
			voiced = append(voiced, f)
		}
	}
	if len(voiced) == 0 {
		return 0
	}
	sort.Float64s(voiced)
	mid := len(voiced) / 2
	if len(voiced)%2 == 0 {
		return (voiced[mid-1] + voiced[mid]) / 2
	}
	return voiced[mid]
}

// smoothedSemitones builds the relative contour and smooths it with a
// centered moving average. Unvoiced frames are zero-filled before averaging,
// which pulls the contour toward zero at voice onsets and offsets; the
// matcher's template was built the same way, so both sides share the bias.
func (t *Tracker) smoothedSemitones(c Contour) []float64 {
	out := make([]float64, len(c.F0))
	if c.MedianHz <= 0 {
		return out
	}

	raw := make([]float64, len(c.F0))
	for i, f := range c.F0 {
		if c.Voiced[i] && f > 0 {
			raw[i] = 12 * math.Log2(f/c.MedianHz)
		}
	}

	half := t.smoothWin / 2
	for i := range raw {
		var sum float64
		for j := i - half; j <= i+half; j++ {
			if j >= 0 && j < len(raw) {
				sum += raw[j]
			}
		}
		out[i] = sum / float64(t.smoothWin)
	}
	return out
}
