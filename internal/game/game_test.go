package game

import (
	"errors"
	"testing"
	"time"
)

func newTestSession() *Session {
	return &Session{
		ID:           "test-session",
		CurrentRound: 1,
		TriesLeft:    3,
		MaxTries:     3,
		MaxRounds:    3,
		Status:       StatusWaiting,
	}
}

func TestAdvancePassMovesToNextRound(t *testing.T) {
	s := newTestSession()

	if err := s.Advance(true, 8000); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if s.CurrentRound != 2 {
		t.Errorf("Round = %d, expected 2", s.CurrentRound)
	}
	if s.TriesLeft != 3 {
		t.Errorf("TriesLeft = %d, a pass must not burn a try", s.TriesLeft)
	}
	if s.TotalScore != 8000 {
		t.Errorf("TotalScore = %d, expected 8000", s.TotalScore)
	}
	if s.Status != StatusWaiting {
		t.Errorf("Status = %s, expected waiting", s.Status)
	}
}

func TestAdvanceWinAccumulatesScore(t *testing.T) {
	s := newTestSession()

	scores := []int{8000, 7500, 9000}
	for _, sc := range scores {
		if err := s.Advance(true, sc); err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
	}

	if s.Status != StatusWon {
		t.Fatalf("Status = %s, expected game_won after passing all rounds", s.Status)
	}
	if s.TotalScore != 24500 {
		t.Errorf("TotalScore = %d, expected 24500", s.TotalScore)
	}
	if s.CurrentRound != 3 {
		t.Errorf("Round = %d, the final round must not advance past MaxRounds", s.CurrentRound)
	}
}

func TestAdvanceThreeFailsLoses(t *testing.T) {
	s := newTestSession()

	for i := 0; i < 2; i++ {
		if err := s.Advance(false, 0); err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if s.Status.Terminal() {
			t.Fatalf("Session terminal after %d fails", i+1)
		}
	}
	if s.TriesLeft != 1 {
		t.Errorf("TriesLeft = %d, expected 1", s.TriesLeft)
	}

	if err := s.Advance(false, 0); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if s.Status != StatusLost {
		t.Errorf("Status = %s, expected game_lost", s.Status)
	}
	if s.CurrentRound != 1 {
		t.Errorf("Round = %d, a loss must not advance the round", s.CurrentRound)
	}
}

func TestAdvanceFailedScoreNotCounted(t *testing.T) {
	s := newTestSession()

	if err := s.Advance(false, 5000); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if s.TotalScore != 0 {
		t.Errorf("TotalScore = %d, failed attempts must not score", s.TotalScore)
	}
}

func TestAdvanceTerminalRejects(t *testing.T) {
	s := newTestSession()
	s.Status = StatusWon

	err := s.Advance(true, 1000)
	if !errors.Is(err, ErrGameOver) {
		t.Fatalf("Expected ErrGameOver, got %v", err)
	}

	s.Status = StatusLost
	if err := s.Advance(false, 0); !errors.Is(err, ErrGameOver) {
		t.Fatalf("Expected ErrGameOver for lost session, got %v", err)
	}
}

func TestStatusStrings(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusWaiting, "waiting_for_player"},
		{StatusAnalyzing, "analyzing"},
		{StatusRoundComplete, "round_complete"},
		{StatusWon, "game_won"},
		{StatusLost, "game_lost"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, expected %q", tt.status, got, tt.expected)
		}
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	st := NewStore(3, 3, time.Hour)

	sess := st.Create(time.Now())
	if sess.ID == "" {
		t.Fatal("Expected non-empty session ID")
	}
	if sess.CurrentRound != 1 || sess.TriesLeft != 3 || sess.MaxRounds != 3 {
		t.Errorf("Fresh session misconfigured: round=%d tries=%d rounds=%d",
			sess.CurrentRound, sess.TriesLeft, sess.MaxRounds)
	}

	got, err := st.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != sess {
		t.Error("Get returned a different session instance")
	}
}

func TestStoreGetUnknown(t *testing.T) {
	st := NewStore(3, 3, time.Hour)
	if _, err := st.Get("no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreSweep(t *testing.T) {
	st := NewStore(3, 3, time.Hour)
	now := time.Now()

	old := st.Create(now.Add(-2 * time.Hour))
	fresh := st.Create(now)

	removed := st.Sweep(now)
	if removed != 1 {
		t.Errorf("Sweep removed %d sessions, expected 1", removed)
	}
	if _, err := st.Get(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("Expired session still retrievable")
	}
	if _, err := st.Get(fresh.ID); err != nil {
		t.Errorf("Fresh session swept: %v", err)
	}
}

func TestStoreCreateSweepsExpired(t *testing.T) {
	st := NewStore(3, 3, time.Hour)
	now := time.Now()

	st.Create(now.Add(-2 * time.Hour))
	st.Create(now)

	if st.Len() != 1 {
		t.Errorf("Store holds %d sessions, expected expired one swept on Create", st.Len())
	}
}

func TestTokenMintVerify(t *testing.T) {
	m := NewTokenMinter("test-secret")

	token := m.Mint("session-1", 24500)
	if token == "" {
		t.Fatal("Expected non-empty token")
	}
	if !m.Verify("session-1", 24500, token) {
		t.Error("Freshly minted token failed verification")
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	m := NewTokenMinter("test-secret")
	token := m.Mint("session-1", 24500)

	if m.Verify("session-1", 99999, token) {
		t.Error("Token verified with an altered score")
	}
	if m.Verify("session-2", 24500, token) {
		t.Error("Token verified with an altered session ID")
	}
	if m.Verify("session-1", 24500, token[:len(token)-2]+"00") {
		t.Error("Mangled token verified")
	}
}

func TestTokenSecretsIsolated(t *testing.T) {
	a := NewTokenMinter("secret-a")
	b := NewTokenMinter("secret-b")

	token := a.Mint("session-1", 100)
	if b.Verify("session-1", 100, token) {
		t.Error("Token minted under one secret verified under another")
	}
}

func TestTokenRandomSecret(t *testing.T) {
	m := NewTokenMinter("")
	token := m.Mint("session-1", 100)
	if !m.Verify("session-1", 100, token) {
		t.Error("Random-secret minter cannot verify its own token")
	}
}
