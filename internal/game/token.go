package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenMinter binds a finished session's total score to an unforgeable
// token. The leaderboard only accepts writes carrying a token minted here,
// so a client cannot submit an edited score.
type TokenMinter struct {
	secret []byte
}

// NewTokenMinter uses the provided secret, or a random per-process one when
// empty. A random secret invalidates tokens across restarts, which matches
// the session store's own lifetime.
func NewTokenMinter(secret string) *TokenMinter {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("generating score secret: %v", err))
		}
	}
	return &TokenMinter{secret: key}
}

// Mint issues the attestation for (sessionID, totalScore).
func (m *TokenMinter) Mint(sessionID string, totalScore int) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s:%d", sessionID, totalScore)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the keyed hash and requires an exact match; altering
// either the session ID or the score invalidates the token.
func (m *TokenMinter) Verify(sessionID string, totalScore int, token string) bool {
	want := m.Mint(sessionID, totalScore)
	return hmac.Equal([]byte(want), []byte(token))
}
