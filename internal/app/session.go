package app

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

const (
	// DefaultTickInterval is one countdown unit.
	DefaultTickInterval = time.Second
	// DefaultAutoAdvanceDelay is how long a selection waits before moving on.
	DefaultAutoAdvanceDelay = time.Second
	// MaxTimePerQuestion caps the per-question countdown, in seconds.
	MaxTimePerQuestion = 3600
)

// Runtime carries the collaborators a session needs to run its timers.
// Zero fields are replaced with production defaults.
type Runtime struct {
	Scheduler        Scheduler
	Rand             *rand.Rand
	Now              func() time.Time
	TickInterval     time.Duration
	AutoAdvanceDelay time.Duration
}

func (r Runtime) withDefaults() Runtime {
	if r.Scheduler == nil {
		r.Scheduler = SystemScheduler()
	}
	if r.Rand == nil {
		r.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.TickInterval <= 0 {
		r.TickInterval = DefaultTickInterval
	}
	if r.AutoAdvanceDelay <= 0 {
		r.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	return r
}

// Session is one timed play-through for a single participant.
// All events (ticks, selections, navigation, submission) are applied under one lock
// in arrival order.
type Session struct {
	id              string
	player          string
	questions       []domain.Question
	timePerQuestion int
	rt              Runtime

	mu            sync.Mutex
	state         domain.SessionState
	answers       map[int]int
	currentIndex  int
	timeRemaining int
	result        *domain.ScoreRecord
	savedID       string
	closed        bool

	// saveMu serializes saves so a record reaches the store at most once.
	saveMu sync.Mutex

	// countdown and advance are the only two timers a session may own.
	// The generation counters discard callbacks that fired after being stopped.
	countdown    Timer
	countdownGen uint64
	advance      Timer
	advanceGen   uint64

	subscribers map[chan domain.SessionSnapshot]struct{}
}

// StartSession validates the parameters, samples the question set and starts the countdown.
// Every question in pool must pass Question.Validate.
func StartSession(id, player string, pool []domain.Question, totalQuestions, timePerQuestion int, rt Runtime) (*Session, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, &domain.ValidationError{Field: "player", Reason: "name is required"}
	}
	if totalQuestions <= 0 {
		return nil, &domain.ValidationError{Field: "totalQuestions", Reason: "must be positive"}
	}
	if timePerQuestion <= 0 {
		return nil, &domain.ValidationError{Field: "timePerQuestion", Reason: "must be positive"}
	}
	if timePerQuestion > MaxTimePerQuestion {
		return nil, &domain.ValidationError{Field: "timePerQuestion", Reason: fmt.Sprintf("must be at most %d", MaxTimePerQuestion)}
	}
	if len(pool) == 0 {
		return nil, &domain.ValidationError{Field: "pool", Reason: "no questions available"}
	}
	for i, q := range pool {
		if err := q.Validate(); err != nil {
			return nil, &domain.ValidationError{Field: "pool", Reason: fmt.Sprintf("question %d: %v", i, err)}
		}
	}

	rt = rt.withDefaults()
	n := totalQuestions
	if len(pool) < n {
		n = len(pool)
	}

	s := &Session{
		id:              id,
		player:          player,
		questions:       sampleQuestions(pool, n, rt.Rand),
		timePerQuestion: timePerQuestion,
		rt:              rt,
		state:           domain.StateActive,
		answers:         make(map[int]int),
		subscribers:     make(map[chan domain.SessionSnapshot]struct{}),
	}

	s.mu.Lock()
	s.restartCountdownLocked()
	s.mu.Unlock()
	return s, nil
}

// sampleQuestions shuffles a copy of pool with Fisher-Yates and keeps the first n.
func sampleQuestions(pool []domain.Question, n int, rnd *rand.Rand) []domain.Question {
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Player returns the trimmed participant name.
func (s *Session) Player() string { return s.player }

// Len returns the fixed number of questions in the session.
func (s *Session) Len() int { return len(s.questions) }

// State returns the current lifecycle phase.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectAnswer records optionIndex for questionIndex. Selections for any question other
// than the current one, or after submission, are ignored. It reports whether the answer
// was recorded.
func (s *Session) SelectAnswer(questionIndex, optionIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked() || questionIndex != s.currentIndex {
		return false
	}
	if optionIndex < 0 || optionIndex >= len(s.questions[questionIndex].Options) {
		return false
	}

	s.answers[questionIndex] = optionIndex
	if questionIndex < len(s.questions)-1 {
		s.scheduleAdvanceLocked(questionIndex)
	} else {
		s.stopAdvanceLocked()
	}
	s.broadcastLocked()
	return true
}

// GoTo moves to the neighbouring question and restarts the countdown.
// Moving past either end is a no-op.
func (s *Session) GoTo(dir domain.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked() {
		return false
	}
	if !s.goToLocked(dir) {
		return false
	}
	s.broadcastLocked()
	return true
}

// Tick advances the countdown by one unit. At zero the session moves to the next
// question, or submits when the last question runs out.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickLocked() {
		s.broadcastLocked()
	}
}

// Submit finalizes the session and returns its score record. Repeated calls return
// the first record unchanged.
func (s *Session) Submit() (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return *s.result, nil
	}
	if s.closed {
		return domain.ScoreRecord{}, domain.ErrSessionNotFound
	}
	record := s.submitLocked()
	s.broadcastLocked()
	return record, nil
}

// Snapshot returns a presentation copy of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Results returns the per-question breakdown once the session has been submitted.
func (s *Session) Results() ([]domain.QuestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return nil, domain.ErrSessionNotSubmitted
	}
	out := make([]domain.QuestionResult, 0, len(s.questions))
	for i, q := range s.questions {
		row := domain.QuestionResult{
			Index:         i,
			Question:      q.Text,
			UserAnswer:    domain.NotAnswered,
			CorrectAnswer: q.Options[q.CorrectIndex],
			Category:      q.CategoryOrDefault(),
		}
		if selected, ok := s.answers[i]; ok {
			selected := selected
			row.SelectedOption = &selected
			row.UserAnswer = q.Options[selected]
			row.Correct = selected == q.CorrectIndex
		}
		out = append(out, row)
	}
	return out, nil
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close cancels every pending timer and ends all subscriptions. A closed session
// ignores further events.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopCountdownLocked()
	s.stopAdvanceLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) savedRecordID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedID, s.savedID != ""
}

func (s *Session) markSaved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.savedID == "" {
		s.savedID = id
	}
}

func (s *Session) activeLocked() bool {
	return !s.closed && s.state == domain.StateActive
}

func (s *Session) goToLocked(dir domain.Direction) bool {
	target := s.currentIndex
	switch dir {
	case domain.Previous:
		target--
	case domain.Next:
		target++
	default:
		return false
	}
	if target < 0 || target >= len(s.questions) {
		return false
	}
	s.stopAdvanceLocked()
	s.restartCountdownLocked()
	s.currentIndex = target
	return true
}

func (s *Session) tickLocked() bool {
	if !s.activeLocked() || s.timeRemaining == 0 {
		return false
	}
	s.timeRemaining--
	if s.timeRemaining > 0 {
		return true
	}
	if s.currentIndex < len(s.questions)-1 {
		s.goToLocked(domain.Next)
	} else {
		s.submitLocked()
	}
	return true
}

func (s *Session) submitLocked() domain.ScoreRecord {
	s.stopCountdownLocked()
	s.stopAdvanceLocked()

	n := len(s.questions)
	score := 0
	for i, q := range s.questions {
		if selected, ok := s.answers[i]; ok && selected == q.CorrectIndex {
			score++
		}
	}
	// Only the final question's remaining time is subtracted; unused time on
	// earlier questions is not credited back.
	taken := n*s.timePerQuestion - s.timeRemaining

	now := s.rt.Now()
	record := domain.ScoreRecord{
		Player:           s.player,
		Score:            score,
		TotalQuestions:   n,
		AccuracyPercent:  roundTenth(100 * float64(score) / float64(n)),
		TimeTakenSeconds: taken,
		CreatedAtEpochMs: now.UnixMilli(),
		DateISO:          domain.CalendarDate(now),
	}
	s.result = &record
	s.state = domain.StateSubmitted
	return record
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Session) restartCountdownLocked() {
	s.stopCountdownLocked()
	s.timeRemaining = s.timePerQuestion
	s.scheduleTickLocked()
}

func (s *Session) scheduleTickLocked() {
	gen := s.countdownGen
	s.countdown = s.rt.Scheduler.AfterFunc(s.rt.TickInterval, func() {
		s.onCountdown(gen)
	})
}

func (s *Session) stopCountdownLocked() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	s.countdownGen++
}

func (s *Session) onCountdown(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.countdownGen || !s.activeLocked() {
		return
	}
	s.countdown = nil
	changed := s.tickLocked()
	// tickLocked schedules a fresh countdown when it navigates.
	if s.activeLocked() && s.countdown == nil {
		s.scheduleTickLocked()
	}
	if changed {
		s.broadcastLocked()
	}
}

func (s *Session) scheduleAdvanceLocked(index int) {
	s.stopAdvanceLocked()
	gen := s.advanceGen
	s.advance = s.rt.Scheduler.AfterFunc(s.rt.AutoAdvanceDelay, func() {
		s.onAutoAdvance(gen, index)
	})
}

func (s *Session) stopAdvanceLocked() {
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
	s.advanceGen++
}

func (s *Session) onAutoAdvance(gen uint64, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.advanceGen || !s.activeLocked() || s.currentIndex != index {
		return
	}
	s.advance = nil
	if _, ok := s.answers[index]; !ok {
		return
	}
	if s.goToLocked(domain.Next) {
		s.broadcastLocked()
	}
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow readers only need the latest state.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:              s.id,
		Player:          s.player,
		State:           s.state,
		CurrentIndex:    s.currentIndex,
		TotalQuestions:  len(s.questions),
		TimePerQuestion: s.timePerQuestion,
		TimeRemaining:   s.timeRemaining,
		Answered:        len(s.answers),
	}
	if s.state == domain.StateActive {
		q := s.questions[s.currentIndex]
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		snap.Question = &domain.QuestionView{
			Index:    s.currentIndex,
			Text:     q.Text,
			Options:  options,
			Category: q.CategoryOrDefault(),
		}
		if selected, ok := s.answers[s.currentIndex]; ok {
			snap.SelectedOption = &selected
		}
	}
	if s.result != nil {
		record := *s.result
		snap.Result = &record
	}
	return snap
}
