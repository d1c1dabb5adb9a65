package memory

import (
	"context"
	"strconv"
	"sync"

	"timed-quiz-service/internal/domain"
)

// ScoreStore is an append-only in-process score log.
type ScoreStore struct {
	mu      sync.RWMutex
	records []domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{}
}

func (s *ScoreStore) Append(_ context.Context, record domain.ScoreRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = strconv.Itoa(len(s.records) + 1)
	s.records = append(s.records, record)
	return record.ID, nil
}

// FetchAll returns a copy of every record in insertion order.
func (s *ScoreStore) FetchAll(_ context.Context) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScoreRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
