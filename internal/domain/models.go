package domain

import "time"

// Question is a single multiple-choice item from the question bank.
type Question struct {
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswer"`
	Category     string   `json:"category,omitempty"`
}

// OptionsPerQuestion is the number of choices every question carries.
const OptionsPerQuestion = 4

// Validate reports whether the question can be played.
func (q Question) Validate() error {
	if q.Text == "" {
		return &ValidationError{Field: "question", Reason: "text is empty"}
	}
	if len(q.Options) != OptionsPerQuestion {
		return &ValidationError{Field: "options", Reason: "expected 4 options"}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return &ValidationError{Field: "correctAnswer", Reason: "index out of range"}
	}
	return nil
}

// CategoryOrDefault returns the category, or "General" when none was set.
func (q Question) CategoryOrDefault() string {
	if q.Category == "" {
		return "General"
	}
	return q.Category
}

// SessionState is the lifecycle phase of a quiz session.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateActive    SessionState = "active"
	StateSubmitted SessionState = "submitted"
)

// Direction selects the neighbour question for navigation.
type Direction string

const (
	Previous Direction = "previous"
	Next     Direction = "next"
)

// ScoreRecord is the finalized outcome of a session. It is immutable once stored.
type ScoreRecord struct {
	ID               string  `json:"id,omitempty"`
	Player           string  `json:"playerName"`
	Score            int     `json:"score"`
	TotalQuestions   int     `json:"totalQuestions"`
	AccuracyPercent  float64 `json:"accuracy"`
	TimeTakenSeconds int     `json:"timeTaken"`
	CreatedAtEpochMs int64   `json:"timestamp"`
	DateISO          string  `json:"date"`
}

// DateLayout is the calendar-day format stored on score records.
const DateLayout = "2006-01-02"

// CalendarDate returns the UTC calendar day of t in DateLayout.
func CalendarDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// QuestionView is what a player sees; it never exposes the correct index.
type QuestionView struct {
	Index    int      `json:"index"`
	Text     string   `json:"question"`
	Options  []string `json:"options"`
	Category string   `json:"category"`
}

// SessionSnapshot is a read-only copy of a session for presentation layers.
type SessionSnapshot struct {
	ID              string        `json:"id"`
	Player          string        `json:"player"`
	State           SessionState  `json:"state"`
	CurrentIndex    int           `json:"currentIndex"`
	TotalQuestions  int           `json:"totalQuestions"`
	TimePerQuestion int           `json:"timePerQuestion"`
	TimeRemaining   int           `json:"timeRemaining"`
	Question        *QuestionView `json:"question,omitempty"`
	SelectedOption  *int          `json:"selectedOption,omitempty"`
	Answered        int           `json:"answered"`
	Result          *ScoreRecord  `json:"result,omitempty"`
}

// QuestionResult is one row of the post-quiz breakdown.
type QuestionResult struct {
	Index          int    `json:"index"`
	Question       string `json:"question"`
	SelectedOption *int   `json:"selectedOption,omitempty"`
	UserAnswer     string `json:"userAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	Category       string `json:"category"`
	Correct        bool   `json:"correct"`
}

// NotAnswered is the breakdown text for a question left without a selection.
const NotAnswered = "Not answered"

// LeaderboardFilter restricts which records are ranked.
type LeaderboardFilter string

const (
	FilterAll   LeaderboardFilter = "all"
	FilterToday LeaderboardFilter = "today"
	FilterWeek  LeaderboardFilter = "week"
)

// ParseLeaderboardFilter maps user input onto a filter. Empty input means all.
func ParseLeaderboardFilter(raw string) (LeaderboardFilter, error) {
	switch LeaderboardFilter(raw) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterToday:
		return FilterToday, nil
	case FilterWeek:
		return FilterWeek, nil
	}
	return "", &ValidationError{Field: "filter", Reason: "must be one of all, today, week"}
}

// RankedScore pairs a record with its 1-based leaderboard position.
type RankedScore struct {
	Rank   int         `json:"rank"`
	Record ScoreRecord `json:"record"`
}

// LeaderboardView is the ranked, truncated result of a leaderboard query.
type LeaderboardView struct {
	Filter       LeaderboardFilter `json:"filter"`
	Entries      []RankedScore     `json:"entries"`
	TotalRecords int               `json:"totalRecords"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}
