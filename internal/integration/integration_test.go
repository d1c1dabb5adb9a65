package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	pginfra "timed-quiz-service/internal/infra/postgres"
	pgmigrations "timed-quiz-service/internal/infra/postgres/migrations"
	infraredis "timed-quiz-service/internal/infra/redis"
)

func TestQuizRoundTripEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateAndSeed(t, ctx, pgURL, sampleQuestions())
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	questions := infraredis.NewPoolRepository(redisClient, pginfra.NewQuestionLoader(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	scores := pginfra.NewScoreStore(db)
	service := app.NewQuizService(sessions, questions, scores, app.WithLogger(zap.NewNop()))

	players := []struct {
		name    string
		correct int
	}{{"Alice", 1}, {"Bob", 2}}
	for _, p := range players {
		snap, err := service.Start(ctx, p.name, 2, 30)
		if err != nil {
			t.Fatalf("start %s: %v", p.name, err)
		}
		if snap.TotalQuestions != 2 {
			t.Fatalf("expected the seeded bank, got %d questions", snap.TotalQuestions)
		}
		for i := 0; i < p.correct; i++ {
			current, _ := service.Snapshot(ctx, snap.ID)
			answer := correctAnswer(t, current.Question.Text)
			if _, ok, err := service.SelectAnswer(ctx, snap.ID, i, answer); err != nil || !ok {
				t.Fatalf("select %d: ok=%v err=%v", i, ok, err)
			}
			service.Navigate(ctx, snap.ID, domain.Next)
		}
		record, err := service.Submit(ctx, snap.ID)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if record.Score != p.correct {
			t.Fatalf("%s: expected score %d, got %d", p.name, p.correct, record.Score)
		}
		if _, err := service.SaveScore(ctx, snap.ID); err != nil {
			t.Fatalf("save: %v", err)
		}
		service.End(ctx, snap.ID)
	}

	view, err := service.Leaderboard(ctx, domain.FilterToday, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(view.Entries) != 2 || view.Entries[0].Record.Player != "Bob" || view.Entries[1].Record.Player != "Alice" {
		t.Fatalf("expected Bob ahead of Alice, got %+v", view.Entries)
	}
	if view.Entries[0].Record.AccuracyPercent != 100 || view.Entries[1].Record.AccuracyPercent != 50 {
		t.Fatalf("unexpected accuracy %+v", view.Entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			t.Fatalf("marshal options: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (text, options, correct_index, category) VALUES (?, ?::jsonb, ?, ?)`,
			q.Text, string(options), q.CorrectIndex, q.Category); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
	return db
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectIndex: 1, Category: "Math"},
		{Text: "Which gas do plants absorb?", Options: []string{"Oxygen", "Helium", "Carbon dioxide", "Neon"}, CorrectIndex: 2, Category: "Science"},
	}
}

func correctAnswer(t *testing.T, text string) int {
	t.Helper()
	for _, q := range sampleQuestions() {
		if q.Text == text {
			return q.CorrectIndex
		}
	}
	t.Fatalf("unknown question %q", text)
	return -1
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
