package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the game core. It is built once at startup
// and passed by value to the components that need it; nothing reads it through
// package-level state.
type Config struct {
	// Audio analysis
	SampleRate  int     `yaml:"sample_rate"`
	FrameLength int     `yaml:"frame_length"`
	HopLength   int     `yaml:"hop_length"`
	FMinHz      float64 `yaml:"f_min_hz"`
	FMaxHz      float64 `yaml:"f_max_hz"`
	// SmoothingWindow is the width (frames) of the centered moving average
	// applied to the relative-pitch contour.
	SmoothingWindow int `yaml:"smoothing_window"`
	// VoicedRatioFloor is the voiced ratio at or below which the median pitch
	// is reported as 0 (too sparse to trust).
	VoicedRatioFloor float64 `yaml:"voiced_ratio_floor"`

	// Matching thresholds
	DTWThreshold            float64 `yaml:"dtw_threshold"`
	DTWWindowFrames         int     `yaml:"dtw_window_frames"` // <= 0 means unconstrained
	MinVoicedRatio          float64 `yaml:"min_voiced_ratio"`
	PitchToleranceSemitones float64 `yaml:"pitch_tolerance"`
	ContourCutoff           float64 `yaml:"contour_cutoff"`
	ContourWeight           float64 `yaml:"contour_weight"`
	PitchWeight             float64 `yaml:"pitch_weight"`

	// Game rules
	RoundShifts []int         `yaml:"round_shifts"` // semitones per round, base-relative
	MaxTries    int           `yaml:"max_tries"`
	SessionTTL  time.Duration `yaml:"session_ttl"`

	// Reference audio
	AssetsDir      string  `yaml:"assets_dir"`
	BaseCallPath   string  `yaml:"base_call_path"`
	PrerollSeconds float64 `yaml:"preroll_seconds"`

	// Upload guards
	MinAudioBytes int64 `yaml:"min_audio_bytes"`
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`

	// Service
	Port           int      `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ScoreSecret    string   `yaml:"score_secret"`
}

// Default returns the tuning the game ships with.
func Default() Config {
	return Config{
		SampleRate:       44100,
		FrameLength:      2048,
		HopLength:        512,
		FMinHz:           130.81, // C3
		FMaxHz:           2093.0, // C7
		SmoothingWindow:  5,
		VoicedRatioFloor: 0.1,

		DTWThreshold:            5.5,
		DTWWindowFrames:         30,
		MinVoicedRatio:          0.05,
		PitchToleranceSemitones: 5.0,
		ContourCutoff:           0.35,
		ContourWeight:           0.65,
		PitchWeight:             0.35,

		RoundShifts: []int{-9, -6, -3},
		MaxTries:    3,
		SessionTTL:  time.Hour,

		AssetsDir:      "assets",
		BaseCallPath:   "assets/bird_call.wav",
		PrerollSeconds: 0.4,

		MinAudioBytes: 1000,
		MaxAudioBytes: 10 << 20,

		Port:           8080,
		DBPath:         "chirparena.sqlite3",
		AllowedOrigins: []string{"*"},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// MaxRounds is derived from the shift schedule: one round per shift.
func (c Config) MaxRounds() int {
	return len(c.RoundShifts)
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.HopLength <= 0 || c.FrameLength < c.HopLength {
		return fmt.Errorf("frame_length %d / hop_length %d invalid", c.FrameLength, c.HopLength)
	}
	if c.FMinHz <= 0 || c.FMaxHz <= c.FMinHz {
		return fmt.Errorf("pitch range [%f, %f] invalid", c.FMinHz, c.FMaxHz)
	}
	if c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be >= 1, got %d", c.SmoothingWindow)
	}
	if c.DTWThreshold <= 0 {
		return fmt.Errorf("dtw_threshold must be positive, got %f", c.DTWThreshold)
	}
	if len(c.RoundShifts) == 0 {
		return fmt.Errorf("round_shifts must name at least one round")
	}
	if c.MaxTries < 1 {
		return fmt.Errorf("max_tries must be >= 1, got %d", c.MaxTries)
	}
	if c.MinAudioBytes < 0 || c.MaxAudioBytes <= c.MinAudioBytes {
		return fmt.Errorf("audio byte bounds [%d, %d] invalid", c.MinAudioBytes, c.MaxAudioBytes)
	}
	return nil
}
