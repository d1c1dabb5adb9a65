package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"timed-quiz-service/internal/domain"
)

// ScoreStore keeps score records in a Redis stream. The stream entry id is the record
// id, and XRANGE returns records in insertion order:
//
//	XADD quiz:scores * record <json>
type ScoreStore struct {
	client *redis.Client
	stream string
}

const (
	defaultScoreStream = "quiz:scores"
	recordField        = "record"
)

func NewScoreStore(client *redis.Client) *ScoreStore {
	return &ScoreStore{client: client, stream: defaultScoreStream}
}

func (s *ScoreStore) Append(ctx context.Context, record domain.ScoreRecord) (string, error) {
	record.ID = ""
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal score: %w", err)
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{recordField: string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append score: %w", err)
	}
	return id, nil
}

func (s *ScoreStore) FetchAll(ctx context.Context) ([]domain.ScoreRecord, error) {
	messages, err := s.client.XRange(ctx, s.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	records := make([]domain.ScoreRecord, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values[recordField].(string)
		if !ok {
			continue
		}
		var record domain.ScoreRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode score %s: %w", msg.ID, err)
		}
		record.ID = msg.ID
		records = append(records, record)
	}
	return records, nil
}
