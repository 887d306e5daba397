package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
)

// SessionRecord is the durable trace of one coaching session.
type SessionRecord struct {
	ID         string `gorm:"primaryKey"`
	AgentID    string
	ScenarioID string
	StartedAt  time.Time
	EndedAt    *time.Time
	TurnCount  int
}

// TurnRecord is the durable trace of one completed turn.
type TurnRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SessionID  string `gorm:"index"`
	TurnIndex  int
	Transcript string
	AgentText  string
	Emotion    string
	DurationMS int
	CreatedAt  time.Time
}

// Store persists sessions and turns in SQLite.
type Store struct {
	db     *gorm.DB
	logger *logging.Logger
}

// Open creates the database file and migrates the schema.
func Open(dsn string, logger *logging.Logger) (*Store, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&SessionRecord{}, &TurnRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// CreateSession records a new session.
func (s *Store) CreateSession(id, agentID, scenarioID string) error {
	record := SessionRecord{
		ID:         id,
		AgentID:    agentID,
		ScenarioID: scenarioID,
		StartedAt:  time.Now(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return errors.Wrap(errors.KindInternal, "storage.create_session", "insert session", err)
	}
	return nil
}

// EndSession stamps the session end time.
func (s *Store) EndSession(id string) error {
	now := time.Now()
	result := s.db.Model(&SessionRecord{}).Where("id = ?", id).Update("ended_at", &now)
	if result.Error != nil {
		return errors.Wrap(errors.KindInternal, "storage.end_session", "update session", result.Error)
	}
	return nil
}

// GetSession loads one session record.
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	var record SessionRecord
	err := s.db.First(&record, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.KindNotFound, "storage.get_session", "unknown session "+id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "storage.get_session", "load session", err)
	}
	return &record, nil
}

// SaveTurn appends a turn and bumps the session turn counter.
func (s *Store) SaveTurn(record TurnRecord) error {
	record.CreatedAt = time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Model(&SessionRecord{}).
			Where("id = ?", record.SessionID).
			UpdateColumn("turn_count", gorm.Expr("turn_count + 1")).Error
	})
	if err != nil {
		return errors.Wrap(errors.KindInternal, "storage.save_turn", "insert turn", err)
	}
	return nil
}

// ListTurns returns a session's turns in order.
func (s *Store) ListTurns(sessionID string) ([]TurnRecord, error) {
	var records []TurnRecord
	err := s.db.Where("session_id = ?", sessionID).Order("turn_index asc").Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "storage.list_turns", "load turns", err)
	}
	return records, nil
}
