package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

func TestPoolRepositoryCaches(t *testing.T) {
	loader := &countingLoader{PoolLoader: NewStaticPoolLoader(samplePool())}
	repo := NewPoolRepository(loader, time.Minute)

	pool, err := repo.LoadPool(context.Background())
	if err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(pool))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.LoadPool(context.Background()); err != nil {
		t.Fatalf("load pool 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPoolRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{PoolLoader: NewStaticPoolLoader(samplePool())}
	repo := NewPoolRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.LoadPool(context.Background()); err != nil {
		t.Fatalf("load pool: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.LoadPool(context.Background()); err != nil {
		t.Fatalf("load pool after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestPoolRepositoryDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{PoolLoader: NewStaticPoolLoader(nil)}
	repo := NewPoolRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.LoadPool(context.Background()); !errors.Is(err, domain.ErrPoolUnavailable) {
			t.Fatalf("expected pool unavailable, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected every failed load to retry, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	PoolLoader
	calls int
}

func (l *countingLoader) LoadPool(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.PoolLoader.LoadPool(ctx)
}

func samplePool() []domain.Question {
	return domain.FallbackQuestions()
}
