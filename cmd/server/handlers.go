package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"github.com/himanishpuri/ChirpArena/internal/audio"
	"github.com/himanishpuri/ChirpArena/internal/config"
	"github.com/himanishpuri/ChirpArena/internal/game"
	"github.com/himanishpuri/ChirpArena/internal/leaderboard"
	"github.com/himanishpuri/ChirpArena/internal/match"
	"github.com/himanishpuri/ChirpArena/internal/pitch"
	"github.com/himanishpuri/ChirpArena/pkg/logger"
)

// vizDownsample thins contours by this factor before they go over the wire.
const vizDownsample = 4

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	cfg      config.Config
	log      *logger.Logger
	tracker  *pitch.Tracker
	matcher  *match.Matcher
	sessions *game.Store
	boards   *leaderboard.Store
	minter   *game.TokenMinter

	// analysisSem bounds concurrent pitch tracking + DTW; each attempt is
	// CPU-bound for a few hundred milliseconds.
	analysisSem *semaphore.Weighted

	basePitchHz float64
}

// NewServer wires the analysis core into an HTTP server
func NewServer(cfg config.Config, tracker *pitch.Tracker, matcher *match.Matcher,
	sessions *game.Store, boards *leaderboard.Store, minter *game.TokenMinter,
	basePitchHz float64, parallelism int64) *Server {
	return &Server{
		cfg:         cfg,
		log:         logger.GetLogger(),
		tracker:     tracker,
		matcher:     matcher,
		sessions:    sessions,
		boards:      boards,
		minter:      minter,
		analysisSem: semaphore.NewWeighted(parallelism),
		basePitchHz: basePitchHz,
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "ChirpArena API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":      "GET /health",
			"startGame":   "POST /api/game/start",
			"birdCall":    "GET /api/game/{id}/bird-call",
			"analyze":     "POST /api/game/{id}/analyze",
			"leaderboard": "GET /api/leaderboard",
			"submitScore": "POST /api/leaderboard",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		BasePitchHz: s.basePitchHz,
		Rounds:      s.cfg.MaxRounds(),
	})
}

// handleStartGame handles POST /api/game/start
func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sess := s.sessions.Create(time.Now())
	s.log.Infof("Session %s created (%d live)", sess.ID, s.sessions.Len())

	s.respondJSON(w, http.StatusOK, StartGameResponse{
		SessionID: sess.ID,
		Round:     sess.CurrentRound,
		MaxRounds: sess.MaxRounds,
		TriesLeft: sess.TriesLeft,
		MaxTries:  sess.MaxTries,
		Message:   "The bird is calling... listen carefully!",
	})
}

// handleGameSession routes /api/game/{id}/bird-call and /api/game/{id}/analyze
func (s *Server) handleGameSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/game/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		s.respondError(w, http.StatusNotFound, "Unknown game endpoint")
		return
	}

	sess, err := s.sessions.Get(parts[0])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	switch parts[1] {
	case "bird-call":
		if r.Method != http.MethodGet {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.handleBirdCall(w, r, sess)
	case "analyze":
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.handleAnalyze(w, r, sess)
	default:
		s.respondError(w, http.StatusNotFound, "Unknown game endpoint")
	}
}

// handleBirdCall serves the current round's materialized reference call.
func (s *Server) handleBirdCall(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	sess.Lock()
	round := sess.CurrentRound
	sess.Unlock()

	path := pitch.RoundFile(s.cfg.AssetsDir, round)
	info, err := os.Stat(path)
	if err != nil {
		s.log.Errorf("Round %d audio missing at %s: %v", round, path, err)
		s.respondError(w, http.StatusInternalServerError, "Bird call audio not found")
		return
	}

	s.log.Debugf("Session %s round %d: serving %s (%s)", sess.ID, round, path, humanize.Bytes(uint64(info.Size())))
	w.Header().Set("X-Round", strconv.Itoa(round))
	w.Header().Set("X-Pitch-Shift", strconv.Itoa(s.cfg.RoundShifts[round-1]))
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// handleAnalyze runs one imitation attempt end to end: validate the upload,
// extract the player's contour, score it against the template, advance the
// session. The session lock is held for the whole attempt so counters can
// never be raced by a second in-flight request.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	sess.Lock()
	defer sess.Unlock()

	if sess.Status.Terminal() {
		s.respondError(w, http.StatusBadRequest, "Game already over")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes+(1<<20))
	if err := r.ParseMultipartForm(s.cfg.MaxAudioBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxAudioBytes+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	if int64(len(data)) < s.cfg.MinAudioBytes {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Audio file too small (%s, need at least %s)",
				humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(s.cfg.MinAudioBytes))))
		return
	}
	if int64(len(data)) > s.cfg.MaxAudioBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Audio file too large (max %s)", humanize.Bytes(uint64(s.cfg.MaxAudioBytes))))
		return
	}

	if err := s.analysisSem.Acquire(r.Context(), 1); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "Server busy")
		return
	}

	samples, sampleRate, err := audio.DecodeBytes(data)
	if err != nil {
		s.analysisSem.Release(1)
		s.respondError(w, http.StatusBadRequest, "Could not decode audio (mono 16-bit WAV expected)")
		return
	}

	contour := s.tracker.Extract(samples, sampleRate)
	shift := s.cfg.RoundShifts[sess.CurrentRound-1]
	targetHz := s.basePitchHz * math.Pow(2, float64(shift)/12)
	result := s.matcher.Analyze(contour, targetHz)
	s.analysisSem.Release(1)

	roundPlayed := sess.CurrentRound
	viz := s.buildViz(contour, targetHz, shift, roundPlayed)
	sess.RoundViz = append(sess.RoundViz, viz)

	if err := sess.Advance(result.Passed, result.PerformanceScore); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infof("Session %s round %d: passed=%v score=%d contour=%.3f median=%.1fHz target=%.1fHz",
		sess.ID, roundPlayed, result.Passed, result.PerformanceScore,
		result.ContourScore, result.PlayerMedianHz, targetHz)

	resp := AnalyzeResponse{
		SessionID:        sess.ID,
		Round:            roundPlayed,
		TriesLeft:        sess.TriesLeft,
		MaxTries:         sess.MaxTries,
		ContourMatch:     result.ContourMatch,
		ContourScore:     result.ContourScore,
		PitchMatch:       result.PitchMatch,
		PlayerMedianHz:   round2(result.PlayerMedianHz),
		TargetMinHz:      round2(targetHz),
		Passed:           result.Passed,
		PerformanceScore: result.PerformanceScore,
		FailureReason:    result.FailureReason,
		AllRounds:        sess.RoundViz,
	}
	resp.PitchVisualization = &PitchVisualization{
		PlayerContour:    viz.PlayerContour,
		TemplateContour:  viz.TemplateContour,
		TimeFrames:       viz.TimeFrames,
		TargetPitchHz:    targetHz,
		PlayerMedianHz:   result.PlayerMedianHz,
		PitchToleranceSt: s.cfg.PitchToleranceSemitones,
	}

	switch sess.Status {
	case game.StatusWon:
		resp.GameOver = true
		resp.Result = "win"
		resp.Message = "The bird falls silent... YOU WIN!"
		total := sess.TotalScore
		resp.TotalScore = &total
		resp.ScoreToken = s.minter.Mint(sess.ID, sess.TotalScore)
	case game.StatusLost:
		resp.GameOver = true
		resp.Result = "lose"
		resp.Message = "The bird out-sang you!"
		if result.FailureReason != "" {
			resp.Message = result.FailureReason
		}
		total := sess.TotalScore
		resp.TotalScore = &total
		resp.ScoreToken = s.minter.Mint(sess.ID, sess.TotalScore)
	case game.StatusWaiting, game.StatusAnalyzing, game.StatusRoundComplete:
		next := sess.CurrentRound
		resp.NextRound = &next
		if result.Passed {
			resp.Message = fmt.Sprintf("Nice call! The bird answers even higher... (Round %d)", next)
		} else {
			resp.Message = fmt.Sprintf("Not quite! %d tries left... (Round %d)", sess.TriesLeft, next)
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// buildViz packages the round's contour data, downsampled to keep the
// payload small.
func (s *Server) buildViz(contour pitch.Contour, targetHz float64, shift, round int) game.RoundViz {
	player := downsample(contour.Semitones, vizDownsample)
	template := downsample(s.matcher.Template(), vizDownsample)
	frames := make([]int, len(player))
	for i := range frames {
		frames[i] = i
	}
	return game.RoundViz{
		Round:           round,
		Shift:           shift,
		TargetPitchHz:   targetHz,
		PlayerMedianHz:  contour.MedianHz,
		PlayerContour:   player,
		TemplateContour: template,
		TimeFrames:      frames,
	}
}

// handleLeaderboard routes GET (top scores) and POST (token-gated submit).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTopScores(w, r)
	case http.MethodPost:
		s.handleSubmitScore(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTopScores handles GET /api/leaderboard
func (s *Server) handleTopScores(w http.ResponseWriter, r *http.Request) {
	limit := 8
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	entries, err := s.boards.Top(limit)
	if err != nil {
		s.log.Errorf("Failed to query leaderboard: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}
	s.respondJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries, Count: len(entries)})
}

// handleSubmitScore handles POST /api/leaderboard. The score token binds
// the submission to a finished session; any tampering with the score or
// session ID fails verification outright.
func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.minter.Verify(req.SessionID, req.Score, req.Token) {
		s.log.Warnf("Rejected leaderboard submission with bad token (session %s, score %d)", req.SessionID, req.Score)
		s.respondError(w, http.StatusForbidden, "Invalid score token")
		return
	}

	entry, err := s.boards.Submit(req.Name, req.SessionID, req.Score)
	if err != nil {
		if errors.Is(err, leaderboard.ErrAlreadySubmitted) {
			s.respondError(w, http.StatusConflict, "Score already submitted for this game")
			return
		}
		s.log.Errorf("Failed to store leaderboard entry: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to store score")
		return
	}

	rank, err := s.boards.Rank(entry)
	if err != nil {
		s.log.Warnf("Failed to compute rank: %v", err)
		rank = 0
	}

	s.log.Infof("Leaderboard entry: %s scored %d (rank %d)", entry.Name, entry.Score, rank)
	s.respondJSON(w, http.StatusCreated, SubmitScoreResponse{
		Message: "Score recorded",
		Name:    entry.Name,
		Score:   entry.Score,
		Rank:    rank,
	})
}

// downsample keeps every factor-th sample.
func downsample(xs []float64, factor int) []float64 {
	if factor <= 1 {
		out := make([]float64, len(xs))
		copy(out, xs)
		return out
	}
	out := make([]float64, 0, len(xs)/factor+1)
	for i := 0; i < len(xs); i += factor {
		out = append(out, xs[i])
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
