package pitch

import (
	"math"
	"testing"

	"github.com/himanishpuri/ChirpArena/internal/config"
)

func sine(freq float64, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func newTestTracker() *Tracker {
	return NewTracker(config.Default())
}

func TestExtractSine(t *testing.T) {
	tr := newTestTracker()
	c := tr.Extract(sine(440, 1.0, 44100), 44100)

	if c.VoicedRatio < 0.8 {
		t.Errorf("Voiced ratio = %f, expected most frames voiced for a pure tone", c.VoicedRatio)
	}
	if math.Abs(c.MedianHz-440) > 440*0.01 {
		t.Errorf("Median pitch = %f Hz, expected within 1%% of 440", c.MedianHz)
	}

	// A constant-pitch tone should produce a near-flat relative contour.
	for i, st := range c.Semitones {
		if math.Abs(st) > 1.0 {
			t.Fatalf("Semitone %d = %f, expected near zero for constant pitch", i, st)
		}
	}
}

func TestExtractSilence(t *testing.T) {
	tr := newTestTracker()
	c := tr.Extract(make([]float64, 44100), 44100)

	if c.VoicedRatio != 0 {
		t.Errorf("Voiced ratio = %f, expected 0 for silence", c.VoicedRatio)
	}
	if c.MedianHz != 0 {
		t.Errorf("Median pitch = %f, expected 0 for silence", c.MedianHz)
	}
	for i, st := range c.Semitones {
		if st != 0 {
			t.Fatalf("Semitone %d = %f, expected 0 for silence", i, st)
		}
	}
	for i, v := range c.Voiced {
		if v {
			t.Fatalf("Frame %d marked voiced in silence", i)
		}
	}
}

func TestExtractEmpty(t *testing.T) {
	tr := newTestTracker()
	c := tr.Extract(nil, 44100)

	if len(c.F0) != 0 || len(c.Voiced) != 0 || len(c.Semitones) != 0 {
		t.Error("Empty input should yield empty contour slices")
	}
	if c.VoicedRatio != 0 || c.MedianHz != 0 {
		t.Error("Empty input should yield zero ratio and median")
	}
}

func TestExtractFrameCounts(t *testing.T) {
	tr := newTestTracker()
	samples := sine(440, 0.5, 44100)
	c := tr.Extract(samples, 44100)

	wantFrames := (len(samples) + 512 - 1) / 512
	if len(c.F0) != wantFrames {
		t.Errorf("Got %d frames, expected %d", len(c.F0), wantFrames)
	}
	if len(c.Voiced) != len(c.F0) || len(c.Semitones) != len(c.F0) {
		t.Error("Contour slices must have equal lengths")
	}
	if c.VoicedRatio < 0 || c.VoicedRatio > 1 {
		t.Errorf("Voiced ratio %f out of [0, 1]", c.VoicedRatio)
	}
}

func TestExtractRejectsOutOfRangePitch(t *testing.T) {
	tr := newTestTracker()

	// 60 Hz hum sits below FMin (130.81 Hz) and must not register as voiced.
	c := tr.Extract(sine(60, 1.0, 44100), 44100)
	for i, f := range c.F0 {
		if c.Voiced[i] && (f < 130.81 || f > 2093) {
			t.Fatalf("Frame %d voiced at %f Hz, outside the configured range", i, f)
		}
	}
}

func TestVoicedMedianSparseFloor(t *testing.T) {
	tr := newTestTracker()

	c := Contour{
		F0:          []float64{440, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		Voiced:      []bool{true, false, false, false, false, false, false, false, false, false, false, false},
		VoicedRatio: 1.0 / 12.0,
	}
	if got := tr.voicedMedian(c); got != 0 {
		t.Errorf("Median = %f, expected 0 below the voiced-ratio floor", got)
	}

	c.VoicedRatio = 0.5
	if got := tr.voicedMedian(c); got != 440 {
		t.Errorf("Median = %f, expected 440 above the floor", got)
	}
}

func TestVoicedMedianEvenCount(t *testing.T) {
	tr := newTestTracker()
	c := Contour{
		F0:          []float64{400, 500, 300, 600},
		Voiced:      []bool{true, true, true, true},
		VoicedRatio: 1,
	}
	if got := tr.voicedMedian(c); got != 450 {
		t.Errorf("Median = %f, expected 450 (average of middle pair)", got)
	}
}

func TestSmoothedSemitonesEdgeBias(t *testing.T) {
	tr := newTestTracker()

	// An octave above the median is +12 st everywhere; zero-filled smoothing
	// pulls the first and last samples toward zero.
	c := Contour{
		F0:       []float64{880, 880, 880, 880, 880, 880, 880},
		Voiced:   []bool{true, true, true, true, true, true, true},
		MedianHz: 440,
	}
	st := tr.smoothedSemitones(c)

	if math.Abs(st[3]-12) > 1e-9 {
		t.Errorf("Center sample = %f, expected 12", st[3])
	}
	// Edge sees 3 in-range samples of 12, divided by the full window of 5.
	if math.Abs(st[0]-36.0/5.0) > 1e-9 {
		t.Errorf("Edge sample = %f, expected %f", st[0], 36.0/5.0)
	}
}

func TestSmoothedSemitonesNoMedian(t *testing.T) {
	tr := newTestTracker()
	c := Contour{
		F0:       []float64{880, 880, 880},
		Voiced:   []bool{true, true, true},
		MedianHz: 0,
	}
	for i, st := range tr.smoothedSemitones(c) {
		if st != 0 {
			t.Fatalf("Semitone %d = %f, expected all zero without a median", i, st)
		}
	}
}

func TestRefineLag(t *testing.T) {
	// Symmetric dip at tau=2 refines to exactly 2.
	cmnd := []float64{1, 0.5, 0.1, 0.5, 1}
	if got := refineLag(cmnd, 2); got != 2 {
		t.Errorf("refineLag = %f, expected 2 for symmetric dip", got)
	}

	// Asymmetric dip shifts toward the lower neighbor.
	cmnd = []float64{1, 0.3, 0.1, 0.5, 1}
	got := refineLag(cmnd, 2)
	if got >= 2 || got < 1.5 {
		t.Errorf("refineLag = %f, expected shift into (1.5, 2)", got)
	}

	// Boundary lags are returned unrefined.
	if got := refineLag(cmnd, 0); got != 0 {
		t.Errorf("refineLag at boundary = %f, expected 0", got)
	}
}
