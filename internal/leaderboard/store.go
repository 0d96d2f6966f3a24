package leaderboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MaxNameLength mirrors the display width of the arcade-style score table.
const MaxNameLength = 10

var ErrAlreadySubmitted = errors.New("score already submitted for this session")

// Entry is one leaderboard row. SessionID is unique so a score token is
// good for exactly one write.
type Entry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Name      string    `gorm:"type:varchar(10)" json:"name"`
	Score     int       `gorm:"index:idx_score" json:"score"`
	SessionID string    `gorm:"type:varchar(36);uniqueIndex:idx_session" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists scores in SQLite through gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Submit inserts one entry. Names are trimmed and clamped to MaxNameLength.
// A second submission for the same session is rejected.
func (s *Store) Submit(name, sessionID string, score int) (*Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "ANON"
	}
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = string(runes[:MaxNameLength])
	}

	entry := &Entry{Name: name, Score: score, SessionID: sessionID}
	if err := s.db.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("inserting entry: %w", err)
	}
	return entry, nil
}

// Top returns the best n entries, highest score first, earliest first on
// ties.
func (s *Store) Top(n int) ([]Entry, error) {
	var entries []Entry
	err := s.db.Order("score DESC, created_at ASC").Limit(n).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("querying top entries: %w", err)
	}
	return entries, nil
}

// Rank returns the 1-based position an entry holds on the board.
func (s *Store) Rank(entry *Entry) (int, error) {
	var above int64
	err := s.db.Model(&Entry{}).
		Where("score > ? OR (score = ? AND created_at < ?)", entry.Score, entry.Score, entry.CreatedAt).
		Count(&above).Error
	if err != nil {
		return 0, fmt.Errorf("querying rank: %w", err)
	}
	return int(above) + 1, nil
}
