package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"timed-quiz-service/internal/domain"
)

// PoolLoader fetches the question bank from a backing store (file, Postgres, ...).
type PoolLoader interface {
	LoadPool(ctx context.Context) ([]domain.Question, error)
}

const poolKey = "pool"

// PoolRepository caches the question pool with TTL to avoid repeated loads.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	pool      []domain.Question
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PoolRepository) LoadPool(ctx context.Context) ([]domain.Question, error) {
	if pool, ok := r.cached(r.clock()); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		now := r.clock()
		if pool, ok := r.cached(now); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.pool = pool
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *PoolRepository) cached(now time.Time) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pool != nil && r.expiresAt.After(now) {
		return r.pool, true
	}
	return nil, false
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPoolLoader serves a fixed pool (useful for tests/demos).
type StaticPoolLoader struct {
	questions []domain.Question
}

func NewStaticPoolLoader(questions []domain.Question) *StaticPoolLoader {
	return &StaticPoolLoader{questions: questions}
}

func (l *StaticPoolLoader) LoadPool(_ context.Context) ([]domain.Question, error) {
	if len(l.questions) == 0 {
		return nil, domain.ErrPoolUnavailable
	}
	return l.questions, nil
}
