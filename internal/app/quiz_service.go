package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/monitoring"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionSource loads the question bank.
type QuestionSource interface {
	LoadPool(ctx context.Context) ([]domain.Question, error)
}

// ScoreStore is the append-only record store behind the leaderboard.
type ScoreStore interface {
	Append(ctx context.Context, record domain.ScoreRecord) (string, error)
	FetchAll(ctx context.Context) ([]domain.ScoreRecord, error)
}

// QuizService contains the quiz and leaderboard use cases.
type QuizService struct {
	sessions  SessionRepository
	questions QuestionSource
	scores    ScoreStore
	log       *zap.Logger

	scheduler        Scheduler
	now              func() time.Time
	newID            func() string
	tickInterval     time.Duration
	autoAdvanceDelay time.Duration
	fallback         []domain.Question

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

// WithScheduler replaces the timer source used by new sessions.
func WithScheduler(scheduler Scheduler) Option {
	return func(s *QuizService) { s.scheduler = scheduler }
}

// WithClock replaces time.Now for score timestamps and leaderboard windows.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRand makes question sampling deterministic.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

// WithTimings overrides the countdown unit and the auto-advance delay.
func WithTimings(tick, autoAdvance time.Duration) Option {
	return func(s *QuizService) {
		s.tickInterval = tick
		s.autoAdvanceDelay = autoAdvance
	}
}

// WithFallbackPool replaces the built-in pool used when the bank is unavailable.
func WithFallbackPool(pool []domain.Question) Option {
	return func(s *QuizService) { s.fallback = pool }
}

func NewQuizService(sessions SessionRepository, questions QuestionSource, scores ScoreStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:  sessions,
		questions: questions,
		scores:    scores,
		log:       zap.NewNop(),
		scheduler: SystemScheduler(),
		now:       time.Now,
		newID:     uuid.NewString,
		fallback:  domain.FallbackQuestions(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the question pool and begins a new session for player.
func (s *QuizService) Start(ctx context.Context, player string, totalQuestions, timePerQuestion int) (domain.SessionSnapshot, error) {
	pool := s.loadPool(ctx)

	s.rndMu.Lock()
	session, err := StartSession(s.newID(), player, pool, totalQuestions, timePerQuestion, Runtime{
		Scheduler:        s.scheduler,
		Rand:             s.rnd,
		Now:              s.now,
		TickInterval:     s.tickInterval,
		AutoAdvanceDelay: s.autoAdvanceDelay,
	})
	s.rndMu.Unlock()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	s.sessions.Put(session)
	monitoring.SessionsStarted.Inc()
	s.log.Info("quiz started",
		zap.String("session", session.ID()),
		zap.String("player", session.Player()),
		zap.Int("questions", session.Len()),
		zap.Int("timePerQuestion", timePerQuestion),
	)
	return session.Snapshot(), nil
}

// loadPool returns the playable part of the bank, or the fallback pool when the bank
// fails or has nothing playable. Sessions never learn which one they got.
func (s *QuizService) loadPool(ctx context.Context) []domain.Question {
	pool, err := s.questions.LoadPool(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrPoolUnavailable, err)
	} else {
		pool = s.playable(pool)
		if len(pool) == 0 {
			err = fmt.Errorf("%w: bank is empty", domain.ErrPoolUnavailable)
		}
	}
	if err != nil {
		monitoring.PoolFallbacks.Inc()
		s.log.Warn("using fallback questions", zap.Error(err), zap.Int("fallback", len(s.fallback)))
		return s.fallback
	}
	return pool
}

func (s *QuizService) playable(pool []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(pool))
	for i, q := range pool {
		if err := q.Validate(); err != nil {
			s.log.Warn("skipping question", zap.Int("position", i), zap.Error(err))
			continue
		}
		out = append(out, q)
	}
	return out
}

// Snapshot returns the current state of a session.
func (s *QuizService) Snapshot(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// SelectAnswer records a choice for the current question. Stale selections are ignored
// and reported through the returned flag, not as an error.
func (s *QuizService) SelectAnswer(_ context.Context, sessionID string, questionIndex, optionIndex int) (domain.SessionSnapshot, bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, false, domain.ErrSessionNotFound
	}
	accepted := session.SelectAnswer(questionIndex, optionIndex)
	if accepted {
		monitoring.AnswersSelected.Inc()
	}
	return session.Snapshot(), accepted, nil
}

// Navigate moves a session to the previous or next question.
func (s *QuizService) Navigate(_ context.Context, sessionID string, dir domain.Direction) (domain.SessionSnapshot, bool, error) {
	if dir != domain.Previous && dir != domain.Next {
		return domain.SessionSnapshot{}, false, &domain.ValidationError{Field: "direction", Reason: "must be previous or next"}
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, false, domain.ErrSessionNotFound
	}
	moved := session.GoTo(dir)
	return session.Snapshot(), moved, nil
}

// Submit finalizes a session. Calling it again returns the same record.
func (s *QuizService) Submit(_ context.Context, sessionID string) (domain.ScoreRecord, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ScoreRecord{}, domain.ErrSessionNotFound
	}
	wasActive := session.State() == domain.StateActive
	record, err := session.Submit()
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if wasActive {
		monitoring.SessionsSubmitted.Inc()
		s.log.Info("quiz submitted",
			zap.String("session", sessionID),
			zap.Int("score", record.Score),
			zap.Int("total", record.TotalQuestions),
		)
	}
	return record, nil
}

// Results returns the per-question breakdown of a submitted session.
func (s *QuizService) Results(_ context.Context, sessionID string) ([]domain.QuestionResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Results()
}

// Subscribe returns a channel that receives session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionSnapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// SaveScore appends the submitted record to the score store once. Later calls return
// the id of the first successful save. A store failure leaves the session untouched so
// the save can be retried.
func (s *QuizService) SaveScore(ctx context.Context, sessionID string) (string, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	session.saveMu.Lock()
	defer session.saveMu.Unlock()
	if id, saved := session.savedRecordID(); saved {
		return id, nil
	}
	if session.State() != domain.StateSubmitted {
		return "", domain.ErrSessionNotSubmitted
	}
	record, err := session.Submit()
	if err != nil {
		return "", err
	}

	id, err := s.scores.Append(ctx, record)
	if err != nil {
		monitoring.StoreErrors.WithLabelValues("append").Inc()
		s.log.Error("save score failed", zap.String("session", sessionID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	session.markSaved(id)
	monitoring.ScoresSaved.Inc()
	s.log.Info("score saved", zap.String("session", sessionID), zap.String("record", id))
	return id, nil
}

// Leaderboard fetches every stored record and ranks it. A store failure is returned as
// ErrStoreUnavailable, never as an empty board.
func (s *QuizService) Leaderboard(ctx context.Context, filter domain.LeaderboardFilter, limit int) (domain.LeaderboardView, error) {
	records, err := s.scores.FetchAll(ctx)
	if err != nil {
		monitoring.StoreErrors.WithLabelValues("fetch").Inc()
		s.log.Error("load leaderboard failed", zap.String("filter", string(filter)), zap.Error(err))
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return domain.LeaderboardView{}, err
		}
		return domain.LeaderboardView{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return BuildLeaderboard(records, filter, s.now(), limit), nil
}

// End discards a session and cancels its timers.
func (s *QuizService) End(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}
