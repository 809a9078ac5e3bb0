package relaylog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Result of one delivery attempt.
const (
	ResultAcked   = "acked"
	ResultFailed  = "failed"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

// Attempt records a single hand-off of an outbox packet to the hub.
type Attempt struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"index"`
	TxID       string    `gorm:"size:128;index"`
	Kind       string    `gorm:"size:32"`
	Requester  string    `gorm:"size:128;index"`
	Result     string    `gorm:"size:16;index"`
	Code       string    `gorm:"size:64"`
	Error      string    `gorm:"size:512"`
	Releases   int
	DurationMs int64
	CreatedAt  time.Time
}

// BeforeCreate assigns the attempt id.
func (a *Attempt) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AutoMigrate performs all schema migrations for the relay log.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Attempt{})
}

// Log persists relay attempts.
type Log struct {
	db *gorm.DB
}

// New wraps db. Call AutoMigrate first.
func New(db *gorm.DB) *Log {
	return &Log{db: db}
}

// Record stores attempt. A nil log discards it.
func (l *Log) Record(ctx context.Context, attempt *Attempt) error {
	if l == nil || l.db == nil {
		return nil
	}
	if attempt == nil {
		return errors.New("relaylog: nil attempt")
	}
	if len(attempt.Error) > 512 {
		attempt.Error = attempt.Error[:512]
	}
	return l.db.WithContext(ctx).Create(attempt).Error
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	TxID      string
	Requester string
	Result    string
	Limit     int
}

// List returns the newest attempts matching f.
func (l *Log) List(ctx context.Context, f Filter) ([]Attempt, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("relaylog: not configured")
	}
	query := l.db.WithContext(ctx).Model(&Attempt{})
	if v := strings.TrimSpace(f.TxID); v != "" {
		query = query.Where("tx_id = ?", v)
	}
	if v := strings.TrimSpace(f.Requester); v != "" {
		query = query.Where("requester = ?", v)
	}
	if v := strings.TrimSpace(f.Result); v != "" {
		query = query.Where("result = ?", v)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Attempt
	if err := query.Order("created_at desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Counts groups attempts by result.
func (l *Log) Counts(ctx context.Context) (map[string]int64, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("relaylog: not configured")
	}
	var rows []struct {
		Result string
		Total  int64
	}
	err := l.db.WithContext(ctx).Model(&Attempt{}).
		Select("result, count(*) as total").
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Result] = row.Total
	}
	return out, nil
}
