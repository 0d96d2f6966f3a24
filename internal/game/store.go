package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds live sessions in memory. Sessions are ephemeral: a restart
// forfeits every game in progress, and a TTL sweep reclaims abandoned ones.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl       time.Duration
	maxRounds int
	maxTries  int
}

func NewStore(maxRounds, maxTries int, ttl time.Duration) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		maxRounds: maxRounds,
		maxTries:  maxTries,
	}
}

// Create registers a fresh session. Expired sessions are swept
// opportunistically on every creation.
func (st *Store) Create(now time.Time) *Session {
	sess := &Session{
		ID:           uuid.NewString(),
		CurrentRound: 1,
		TriesLeft:    st.maxTries,
		MaxTries:     st.maxTries,
		MaxRounds:    st.maxRounds,
		Status:       StatusWaiting,
		CreatedAt:    now,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(now)
	st.sessions[sess.ID] = sess
	return sess
}

// Get looks up a session by ID.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Sweep drops sessions older than the TTL and returns how many were
// removed. Dropping only unlinks the map entry; an attempt already holding
// a swept session's lock still finishes coherently against its own record.
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sweepLocked(now)
}

func (st *Store) sweepLocked(now time.Time) int {
	cutoff := now.Add(-st.ttl)
	removed := 0
	for id, sess := range st.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
