package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader reads the question bank from a JSON array on disk.
type QuestionLoader struct {
	path string
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

func (l *QuestionLoader) LoadPool(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	var pool []domain.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", l.path, err)
	}
	return pool, nil
}
