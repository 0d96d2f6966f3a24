package main

import (
	"fmt"
	"net/http"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	// Game endpoints
	mux.HandleFunc("/api/game/start", s.handleStartGame)
	mux.HandleFunc("/api/game/", s.handleGameSession)

	// Leaderboard endpoints
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)

	return corsMiddleware(s.cfg.AllowedOrigins)(mux)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Infof("ChirpArena server starting on %s", addr)
	s.log.Infof("   Assets: %s", s.cfg.AssetsDir)
	s.log.Infof("   Database: %s", s.cfg.DBPath)
	s.log.Infof("   Base call pitch: %.1f Hz", s.basePitchHz)
	s.log.Infof("   Rounds: %d, tries per round: %d", s.cfg.MaxRounds(), s.cfg.MaxTries)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET  /health                      - Health check")
	s.log.Infof("   POST /api/game/start              - Create game session")
	s.log.Infof("   GET  /api/game/{id}/bird-call     - Current round's reference call")
	s.log.Infof("   POST /api/game/{id}/analyze       - Submit an imitation attempt")
	s.log.Infof("   GET  /api/leaderboard             - Top scores")
	s.log.Infof("   POST /api/leaderboard             - Submit a final score")

	return http.ListenAndServe(addr, handler)
}
