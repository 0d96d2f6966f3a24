package main

import (
	"fmt"

	"github.com/himanishpuri/ChirpArena/internal/game"
	"github.com/himanishpuri/ChirpArena/internal/leaderboard"
)

// StartGameResponse is the response for POST /api/game/start
type StartGameResponse struct {
	SessionID string `json:"session_id"`
	Round     int    `json:"round"`
	MaxRounds int    `json:"max_rounds"`
	TriesLeft int    `json:"tries_left"`
	MaxTries  int    `json:"max_tries"`
	Message   string `json:"message"`
}

// PitchVisualization carries the current round's contour data for the
// frontend chart.
type PitchVisualization struct {
	PlayerContour    []float64 `json:"player_contour"`
	TemplateContour  []float64 `json:"template_contour"`
	TimeFrames       []int     `json:"time_frames"`
	TargetPitchHz    float64   `json:"target_pitch_hz"`
	PlayerMedianHz   float64   `json:"player_median_pitch_hz"`
	PitchToleranceSt float64   `json:"pitch_tolerance_semitones"`
}

// AnalyzeResponse is the response for POST /api/game/{id}/analyze
type AnalyzeResponse struct {
	SessionID        string  `json:"session_id"`
	Round            int     `json:"round"`
	TriesLeft        int     `json:"tries_left"`
	MaxTries         int     `json:"max_tries"`
	ContourMatch     bool    `json:"contour_match"`
	ContourScore     float64 `json:"contour_score"`
	PitchMatch       bool    `json:"pitch_match"`
	PlayerMedianHz   float64 `json:"player_median_pitch_hz"`
	TargetMinHz      float64 `json:"target_min_pitch_hz"`
	Passed           bool    `json:"passed"`
	PerformanceScore int     `json:"performance_score"`
	FailureReason    string  `json:"failure_reason,omitempty"`
	NextRound        *int    `json:"next_round"`
	GameOver         bool    `json:"game_over"`
	Result           string  `json:"result,omitempty"` // "win" | "lose"
	Message          string  `json:"message"`

	TotalScore *int   `json:"total_score,omitempty"`
	ScoreToken string `json:"score_token,omitempty"`

	PitchVisualization *PitchVisualization `json:"pitch_visualization,omitempty"`
	AllRounds          []game.RoundViz     `json:"all_rounds_visualization"`
}

// SubmitScoreRequest is the request body for POST /api/leaderboard
type SubmitScoreRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
	Score     int    `json:"score"`
	Token     string `json:"token"`
}

// Validate checks if the request is well-formed; token validity is checked
// separately against the server secret.
func (r *SubmitScoreRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	if r.Score < 0 {
		return fmt.Errorf("score must be non-negative")
	}
	return nil
}

// SubmitScoreResponse is the response for a successful score submission
type SubmitScoreResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Rank    int    `json:"rank"`
}

// LeaderboardResponse is the response for GET /api/leaderboard
type LeaderboardResponse struct {
	Entries []leaderboard.Entry `json:"entries"`
	Count   int                 `json:"count"`
}

// HealthResponse reports service readiness and the analyzed base call pitch
type HealthResponse struct {
	Status      string  `json:"status"`
	BasePitchHz float64 `json:"base_pitch_hz"`
	Rounds      int     `json:"rounds"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
