package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the closed set of session states. Transitions are switched
// exhaustively so an unhandled state fails compilation, not gameplay.
type Status int

const (
	StatusWaiting Status = iota
	StatusAnalyzing
	StatusRoundComplete
	StatusWon
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting_for_player"
	case StatusAnalyzing:
		return "analyzing"
	case StatusRoundComplete:
		return "round_complete"
	case StatusWon:
		return "game_won"
	case StatusLost:
		return "game_lost"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Terminal reports whether no further attempts are accepted.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrGameOver        = errors.New("game already over")
)

// RoundViz is the per-round visualization payload echoed back to the client
// so finished rounds stay on screen.
type RoundViz struct {
	Round           int       `json:"round"`
	Shift           int       `json:"shift"`
	TargetPitchHz   float64   `json:"target_pitch_hz"`
	PlayerMedianHz  float64   `json:"player_median_pitch_hz"`
	PlayerContour   []float64 `json:"player_contour"`
	TemplateContour []float64 `json:"template_contour"`
	TimeFrames      []int     `json:"time_frames"`
}

// Session is one play-through. All mutation goes through the Store and the
// Advance state machine while the session's own lock is held; the embedded
// mutex also serializes whole attempts so two in-flight analyses can never
// race on the try/round counters.
type Session struct {
	sync.Mutex

	ID           string
	CurrentRound int
	TriesLeft    int
	MaxTries     int
	MaxRounds    int
	Status       Status
	TotalScore   int
	RoundResults []bool
	RoundViz     []RoundViz
	CreatedAt    time.Time
}

// Advance applies one attempt's outcome. Callers must hold the session lock.
//
// Pass on the final round wins the game; otherwise the next round starts
// with the try budget untouched. A fail burns a try and loses the game when
// none remain. Terminal sessions reject further attempts.
func (s *Session) Advance(passed bool, performanceScore int) error {
	switch s.Status {
	case StatusWon, StatusLost:
		return fmt.Errorf("%w: session %s is %s", ErrGameOver, s.ID, s.Status)
	case StatusWaiting, StatusAnalyzing, StatusRoundComplete:
		// attempt accepted
	default:
		return fmt.Errorf("session %s in unknown status %d", s.ID, s.Status)
	}

	s.RoundResults = append(s.RoundResults, passed)

	if passed {
		s.TotalScore += performanceScore
		if s.CurrentRound >= s.MaxRounds {
			s.Status = StatusWon
		} else {
			s.CurrentRound++
			s.Status = StatusWaiting
		}
		return nil
	}

	s.TriesLeft--
	if s.TriesLeft <= 0 {
		s.Status = StatusLost
	} else {
		s.Status = StatusWaiting
	}
	return nil
}
