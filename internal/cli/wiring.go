package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/file"
	"timed-quiz-service/internal/infra/memory"
	pgstore "timed-quiz-service/internal/infra/postgres"
	redisstore "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/logger"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
}

// buildService picks the backing stores from config: Postgres beats Redis beats memory.
// The returned cleanup closes every connection that was opened.
func buildService(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.QuizService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.PoolLoader = memory.NewStaticPoolLoader(nil)
	if cfg.Quiz.QuestionsFile != "" {
		loader = file.NewQuestionLoader(cfg.Quiz.QuestionsFile)
	}

	var scores app.ScoreStore = memory.NewScoreStore()
	if redisClient != nil {
		scores = redisstore.NewScoreStore(redisClient)
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		loader = pgstore.NewQuestionLoader(pool)

		db := openBunDB(cfg.Postgres.URL)
		closers = append(closers, func() { _ = db.Close() })
		scores = pgstore.NewScoreStore(db)
	}

	poolTTL := config.TTLDuration(cfg.Quiz.PoolTTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewPoolRepository(redisClient, loader, poolTTL)
	} else {
		questions = memory.NewPoolRepository(loader, poolTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	autoAdvance := config.TTLDuration(cfg.Quiz.AutoAdvanceDelay, app.DefaultAutoAdvanceDelay)
	service := app.NewQuizService(sessions, questions, scores,
		app.WithLogger(log),
		app.WithTimings(app.DefaultTickInterval, autoAdvance),
	)
	return service, cleanup, nil
}
