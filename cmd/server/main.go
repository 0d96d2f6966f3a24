package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/himanishpuri/ChirpArena/internal/audio"
	"github.com/himanishpuri/ChirpArena/internal/config"
	"github.com/himanishpuri/ChirpArena/internal/game"
	"github.com/himanishpuri/ChirpArena/internal/leaderboard"
	"github.com/himanishpuri/ChirpArena/internal/match"
	"github.com/himanishpuri/ChirpArena/internal/pitch"
	"github.com/himanishpuri/ChirpArena/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", getEnvOrDefault("CONFIG_PATH", ""), "Path to YAML config file (optional)")
		port       = flag.Int("port", getEnvIntOrDefault("PORT", 0), "HTTP port (overrides config)")
		assetsDir  = flag.String("assets", getEnvOrDefault("ASSETS_DIR", ""), "Directory for materialized round calls (overrides config)")
		baseCall   = flag.String("base-call", getEnvOrDefault("BASE_CALL", ""), "Path to the base bird call WAV (overrides config)")
		dbPath     = flag.String("db", getEnvOrDefault("DB_PATH", ""), "SQLite leaderboard path (overrides config)")
		origins    = flag.String("origins", getEnvOrDefault("ALLOWED_ORIGINS", ""), "Comma-separated CORS origins (overrides config)")
	)
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *assetsDir != "" {
		cfg.AssetsDir = *assetsDir
	}
	if *baseCall != "" {
		cfg.BaseCallPath = *baseCall
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *origins != "" {
		cfg.AllowedOrigins = strings.Split(*origins, ",")
	}
	if secret := os.Getenv("SCORE_SECRET"); secret != "" {
		cfg.ScoreSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	// The base call is a hard startup dependency. A missing or unreadable
	// asset fails fast instead of serving a game that cannot be played.
	base, sampleRate, err := audio.DecodeFile(cfg.BaseCallPath)
	if err != nil {
		log.Fatalf("Loading base call %s: %v", cfg.BaseCallPath, err)
	}
	log.Infof("Loaded base call: %s (%d samples @ %d Hz)", cfg.BaseCallPath, len(base), sampleRate)

	shifter := pitch.NewShifter(base, sampleRate)
	if err := shifter.Materialize(context.Background(), cfg.RoundShifts, cfg.AssetsDir, cfg.PrerollSeconds); err != nil {
		log.Fatalf("Materializing round calls: %v", err)
	}
	log.Infof("Materialized %d round calls in %s", cfg.MaxRounds(), cfg.AssetsDir)

	tracker := pitch.NewTracker(cfg)
	template := tracker.Extract(shifter.Base(), sampleRate)
	if template.MedianHz <= 0 {
		log.Fatalf("Base call has no usable pitch (voiced ratio %.2f)", template.VoicedRatio)
	}
	log.Infof("Base call pitch: %.1f Hz (voiced ratio %.2f)", template.MedianHz, template.VoicedRatio)

	matcher := match.NewMatcher(template.Semitones, match.ConfigFrom(cfg))
	sessions := game.NewStore(cfg.MaxRounds(), cfg.MaxTries, cfg.SessionTTL)
	minter := game.NewTokenMinter(cfg.ScoreSecret)

	boards, err := leaderboard.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Opening leaderboard: %v", err)
	}
	defer boards.Close()

	server := NewServer(cfg, tracker, matcher, sessions, boards, minter,
		template.MedianHz, int64(runtime.NumCPU()))
	if err := server.Start(); err != nil {
		log.Fatalf("Server: %v", err)
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or a default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
