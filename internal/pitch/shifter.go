package pitch

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/ChirpArena/internal/audio"
)

// Shifter owns the base bird call and produces pitch-shifted variants of it,
// one per game round. Shifting preserves duration and is deterministic, so
// variants are memoized and materialized files are stable across restarts.
type Shifter struct {
	mu         sync.Mutex
	base       []float64
	sampleRate int
	cache      map[int][]float64
}

const (
	stretchWindow = 2048
	stretchHop    = 512
)

// NewShifter amplitude-normalizes the base call once and keeps it separate
// from any preroll-padded output; the analysis template must come from the
// clean base.
func NewShifter(base []float64, sampleRate int) *Shifter {
	return &Shifter{
		base:       audio.Normalize(base),
		sampleRate: sampleRate,
		cache:      make(map[int][]float64),
	}
}

// Base returns the normalized, preroll-free base waveform.
func (s *Shifter) Base() []float64 {
	return s.base
}

func (s *Shifter) SampleRate() int {
	return s.sampleRate
}

// GetShifted returns the base call shifted by the given number of semitones.
// Output length always equals the base length. Results are cached; repeated
// calls return the identical buffer.
func (s *Shifter) GetShifted(semitones int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[semitones]; ok {
		return cached
	}

	var out []float64
	if semitones == 0 {
		out = make([]float64, len(s.base))
		copy(out, s.base)
	} else {
		ratio := math.Pow(2, float64(semitones)/12)
		stretched := timeStretch(s.base, int(math.Round(float64(len(s.base))*ratio)))
		out = resampleLinear(stretched, len(s.base))
	}
	s.cache[semitones] = out
	return out
}

// Materialize writes one WAV per round shift (with the configured silence
// preroll) plus the clean base, into dir. It blocks until every file is on
// disk; the service must not accept traffic before it returns.
func (s *Shifter) Materialize(ctx context.Context, shifts []int, dir string, prerollSec float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating assets dir: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	for idx, st := range shifts {
		round := idx + 1
		shift := st
		g.Go(func() error {
			samples := audio.Preroll(s.GetShifted(shift), prerollSec, s.sampleRate)
			if err := audio.WriteFile(RoundFile(dir, round), samples, s.sampleRate); err != nil {
				return fmt.Errorf("round %d (%+d st): %w", round, shift, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return audio.WriteFile(BaseFile(dir), s.base, s.sampleRate)
	})
	return g.Wait()
}

// RoundFile is the on-disk name of a materialized round call.
func RoundFile(dir string, round int) string {
	return filepath.Join(dir, fmt.Sprintf("round_%d.wav", round))
}

// BaseFile is the on-disk name of the processed base call.
func BaseFile(dir string) string {
	return filepath.Join(dir, "base.wav")
}

// timeStretch resizes x to targetLen samples at unchanged pitch using
// windowed overlap-add. Short inputs fall back to plain resampling.
func timeStretch(x []float64, targetLen int) []float64 {
	if targetLen <= 0 {
		return nil
	}
	if len(x) <= stretchWindow || targetLen <= stretchWindow {
		return resampleLinear(x, targetLen)
	}

	out := make([]float64, targetLen)
	wsum := make([]float64, targetLen)
	win := hann(stretchWindow)

	span := float64(len(x)-stretchWindow) / float64(targetLen-stretchWindow)
	for outPos := 0; outPos+stretchWindow <= targetLen; outPos += stretchHop {
		inPos := int(math.Round(float64(outPos) * span))
		if inPos+stretchWindow > len(x) {
			inPos = len(x) - stretchWindow
		}
		for i := 0; i < stretchWindow; i++ {
			out[outPos+i] += x[inPos+i] * win[i]
			wsum[outPos+i] += win[i]
		}
	}
	for i := range out {
		if wsum[i] > 1e-8 {
			out[i] /= wsum[i]
		}
	}
	return out
}

// resampleLinear reads x at a constant fractional step so the result has
// exactly targetLen samples.
func resampleLinear(x []float64, targetLen int) []float64 {
	out := make([]float64, targetLen)
	if len(x) == 0 || targetLen == 0 {
		return out
	}
	if len(x) == 1 || targetLen == 1 {
		for i := range out {
			out[i] = x[0]
		}
		return out
	}
	step := float64(len(x)-1) / float64(targetLen-1)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
