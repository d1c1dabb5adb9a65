package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"
	"timed-quiz-service/internal/domain"
)

type scoreRow struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ID               int64   `bun:"id,pk,autoincrement"`
	Player           string  `bun:"player,notnull"`
	Score            int     `bun:"score,notnull"`
	TotalQuestions   int     `bun:"total_questions,notnull"`
	AccuracyPercent  float64 `bun:"accuracy_percent,notnull"`
	TimeTakenSeconds int     `bun:"time_taken_seconds,notnull"`
	CreatedAtEpochMs int64   `bun:"created_at_ms,notnull"`
	DateISO          string  `bun:"date_iso,notnull"`
}

// ScoreStore persists score records in the scores table. Rows are only ever inserted.
type ScoreStore struct {
	db *bun.DB
}

func NewScoreStore(db *bun.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

func (s *ScoreStore) Append(ctx context.Context, record domain.ScoreRecord) (string, error) {
	row := scoreRow{
		Player:           record.Player,
		Score:            record.Score,
		TotalQuestions:   record.TotalQuestions,
		AccuracyPercent:  record.AccuracyPercent,
		TimeTakenSeconds: record.TimeTakenSeconds,
		CreatedAtEpochMs: record.CreatedAtEpochMs,
		DateISO:          record.DateISO,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return "", fmt.Errorf("insert score: %w", err)
	}
	return strconv.FormatInt(row.ID, 10), nil
}

func (s *ScoreStore) FetchAll(ctx context.Context) ([]domain.ScoreRecord, error) {
	var rows []scoreRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	records := make([]domain.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.ScoreRecord{
			ID:               strconv.FormatInt(row.ID, 10),
			Player:           row.Player,
			Score:            row.Score,
			TotalQuestions:   row.TotalQuestions,
			AccuracyPercent:  row.AccuracyPercent,
			TimeTakenSeconds: row.TimeTakenSeconds,
			CreatedAtEpochMs: row.CreatedAtEpochMs,
			DateISO:          row.DateISO,
		})
	}
	return records, nil
}
