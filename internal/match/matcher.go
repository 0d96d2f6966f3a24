package match

import (
	"math"

	"github.com/katalvlaran/lvlath/dtw"

	"github.com/himanishpuri/ChirpArena/internal/config"
	"github.com/himanishpuri/ChirpArena/internal/pitch"
)

// Failure reasons surfaced to the player. A failed attempt is a normal game
// event, not an error.
const (
	ReasonTooQuiet    = "Not enough sound detected. Speak louder!"
	ReasonTooShort    = "Call too short. Give the bird a full reply!"
	ReasonBadContour  = "That didn't sound like the bird! Try matching its call."
	ReasonPitchTooLow = "Not high enough! The bird needs to feel threatened."
)

// unvoicedSemitoneDiff stands in for the pitch offset when no median pitch
// exists; it is far below any sane tolerance, so the pitch gate always fails.
const unvoicedSemitoneDiff = -999

// minContourSamples is the shortest voiced span worth aligning.
const minContourSamples = 5

// Config holds the matching policy knobs.
type Config struct {
	DTWThreshold   float64
	WindowFrames   int // Sakoe-Chiba band width in frames; <= 0 disables the band
	MinVoicedRatio float64
	PitchTolerance float64 // semitones the player may fall below the target
	ContourCutoff  float64
	ContourWeight  float64
	PitchWeight    float64
}

// ConfigFrom extracts the matcher's knobs from the application config.
func ConfigFrom(app config.Config) Config {
	return Config{
		DTWThreshold:   app.DTWThreshold,
		WindowFrames:   app.DTWWindowFrames,
		MinVoicedRatio: app.MinVoicedRatio,
		PitchTolerance: app.PitchToleranceSemitones,
		ContourCutoff:  app.ContourCutoff,
		ContourWeight:  app.ContourWeight,
		PitchWeight:    app.PitchWeight,
	}
}

// Result is the complete outcome of one attempt. Every analysis path fills
// it in; there is no error return.
type Result struct {
	ContourMatch   bool    `json:"contour_match"`
	ContourScore   float64 `json:"contour_score"`
	PitchMatch     bool    `json:"pitch_match"`
	Passed         bool    `json:"passed"`
	DTWDistance    float64 `json:"dtw_distance"`
	PlayerMedianHz float64 `json:"player_median_hz"`
	TargetMinHz    float64 `json:"target_min_hz"`
	SemitoneDiff   float64 `json:"semitone_diff"`
	// PerformanceScore blends shape and pitch quality into 0..10000.
	PerformanceScore int    `json:"performance_score"`
	FailureReason    string `json:"failure_reason,omitempty"`

	// Time-normalized contours for visualization only; they never feed back
	// into scoring.
	TemplateTrimmed []float64 `json:"template_trimmed_st,omitempty"`
	PlayerResampled []float64 `json:"player_resampled_st,omitempty"`
}

// Matcher compares player contours against the reference call's contour
// using band-constrained dynamic time warping.
type Matcher struct {
	template []float64
	cfg      Config
}

// NewMatcher trims the template to its voiced span once. Templates with
// fewer than five voiced samples are kept untrimmed; the base call is a
// startup asset, so a degenerate template is a tuning problem rather than a
// runtime one.
func NewMatcher(template []float64, cfg Config) *Matcher {
	trimmed, ok := trimToVoiced(template)
	if !ok {
		trimmed = template
	}
	return &Matcher{template: trimmed, cfg: cfg}
}

// Template returns the trimmed reference contour.
func (m *Matcher) Template() []float64 {
	return m.template
}

// Analyze scores one player attempt against the template and the round's
// pitch floor. Each gate can short-circuit to a failing Result; no path
// panics or errors on degenerate input.
func (m *Matcher) Analyze(player pitch.Contour, targetHz float64) Result {
	res := Result{
		DTWDistance:    math.Inf(1),
		PlayerMedianHz: player.MedianHz,
		TargetMinHz:    targetHz,
		SemitoneDiff:   unvoicedSemitoneDiff,
	}

	// Gate 1: enough voiced audio to bother.
	if player.VoicedRatio < m.cfg.MinVoicedRatio {
		res.FailureReason = ReasonTooQuiet
		return res
	}

	// Gate 2: trim the player's contour to its voiced span.
	playerTrimmed, ok := trimToVoiced(player.Semitones)
	if !ok {
		res.FailureReason = ReasonTooShort
		return res
	}

	// Banded DTW. The band must admit at least one alignment path, so it is
	// widened to the length difference whenever the configured width is too
	// narrow.
	window := 0
	if m.cfg.WindowFrames > 0 {
		window = m.cfg.WindowFrames
		if diff := absInt(len(playerTrimmed) - len(m.template)); diff > window {
			window = diff
		}
	}
	dist, _, err := dtw.DTW(playerTrimmed, m.template, &dtw.DTWOptions{
		Window:     window,
		MemoryMode: dtw.RollingArray,
	})
	if err != nil || math.IsInf(dist, 1) {
		res.FailureReason = ReasonBadContour
		return res
	}

	// Path-length normalization keeps the distance comparable across clip
	// durations. The length of the optimal warping path is tracked in a
	// separate pass: the library's own backtrack selects predecessors by
	// exact float equality and can walk off the matrix on irregular
	// contours.
	normalized := dist / float64(alignmentLength(playerTrimmed, m.template, window))
	res.DTWDistance = normalized
	res.ContourScore = clamp01(1 - normalized/m.cfg.DTWThreshold)
	res.ContourMatch = res.ContourScore > m.cfg.ContourCutoff

	res.TemplateTrimmed = m.template
	res.PlayerResampled = resample(playerTrimmed, len(m.template))

	// Pitch gate: the player's median must reach the round's floor, give or
	// take the configured tolerance.
	if player.MedianHz > 0 && targetHz > 0 {
		res.SemitoneDiff = 12 * math.Log2(player.MedianHz/targetHz)
	}
	res.PitchMatch = res.SemitoneDiff >= -m.cfg.PitchTolerance

	res.Passed = res.ContourMatch && res.PitchMatch
	if !res.ContourMatch {
		res.FailureReason = ReasonBadContour
	} else if !res.PitchMatch {
		res.FailureReason = ReasonPitchTooLow
	}

	res.PerformanceScore = m.performanceScore(res.ContourScore, res.SemitoneDiff)
	return res
}

// performanceScore blends contour and pitch quality into 0..10000. It is
// computed on every attempt but only meaningful for passing rounds.
func (m *Matcher) performanceScore(contourScore, semitoneDiff float64) int {
	var pitchScore float64
	if m.cfg.PitchTolerance > 0 {
		pitchScore = clamp01(1 + semitoneDiff/m.cfg.PitchTolerance)
	} else if semitoneDiff >= 0 {
		pitchScore = 1
	}
	combined := m.cfg.ContourWeight*contourScore + m.cfg.PitchWeight*pitchScore
	return int(math.Round(combined * 10000))
}

// alignmentLength returns the number of steps on an optimal warping path
// between a and b under the same recurrence the distance was computed with
// (absolute cost, band of the given width, no slope penalty). Path lengths
// are carried forward through the dynamic program instead of recovered by
// backtracking, so float rounding cannot derail the walk. Ties break toward
// the diagonal; any optimal path's length serves the normalization equally.
func alignmentLength(a, b []float64, window int) int {
	n, m := len(a), len(b)
	inf := math.Inf(1)

	prevCost := make([]float64, m+1)
	currCost := make([]float64, m+1)
	prevLen := make([]int, m+1)
	currLen := make([]int, m+1)
	for j := 1; j <= m; j++ {
		prevCost[j] = inf
	}

	for i := 1; i <= n; i++ {
		currCost[0] = inf
		for j := 1; j <= m; j++ {
			if window > 0 && absInt(i-j) > window {
				currCost[j] = inf
				continue
			}
			bestCost, bestLen := prevCost[j-1], prevLen[j-1]
			if prevCost[j] < bestCost {
				bestCost, bestLen = prevCost[j], prevLen[j]
			}
			if currCost[j-1] < bestCost {
				bestCost, bestLen = currCost[j-1], currLen[j-1]
			}
			currCost[j] = math.Abs(a[i-1]-b[j-1]) + bestCost
			currLen[j] = bestLen + 1
		}
		prevCost, currCost = currCost, prevCost
		prevLen, currLen = currLen, prevLen
	}
	return prevLen[m]
}

// trimToVoiced slices a smoothed contour down to its first..last nonzero
// samples. Returns false when fewer than minContourSamples are nonzero.
func trimToVoiced(contour []float64) ([]float64, bool) {
	first, last, count := -1, -1, 0
	for i, v := range contour {
		if v != 0 {
			if first < 0 {
				first = i
			}
			last = i
			count++
		}
	}
	if count < minContourSamples {
		return nil, false
	}
	return contour[first : last+1], true
}

// resample linearly maps a contour onto n points for display alongside the
// template.
func resample(contour []float64, n int) []float64 {
	out := make([]float64, n)
	if len(contour) == 0 || n == 0 {
		return out
	}
	if len(contour) == 1 || n == 1 {
		for i := range out {
			out[i] = contour[0]
		}
		return out
	}
	step := float64(len(contour)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(contour)-1 {
			out[i] = contour[len(contour)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = contour[j]*(1-frac) + contour[j+1]*frac
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
