package app

import (
	"sort"
	"time"

	"timed-quiz-service/internal/domain"
)

// DefaultLeaderboardLimit is the number of entries shown when no limit is given.
const DefaultLeaderboardLimit = 10

// weekWindowDays is the trailing window length for FilterWeek, today included.
const weekWindowDays = 7

// Rank filters records by the calendar window relative to now, orders them by score
// (highest first, ties keep their input order) and returns at most limit entries.
// records is not modified.
func Rank(records []domain.ScoreRecord, filter domain.LeaderboardFilter, now time.Time, limit int) []domain.RankedScore {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	kept := filterRecords(records, filter, now)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	ranked := make([]domain.RankedScore, 0, len(kept))
	for i, record := range kept {
		ranked = append(ranked, domain.RankedScore{Rank: i + 1, Record: record})
	}
	return ranked
}

// BuildLeaderboard wraps Rank with the pre-filter record count so callers can tell
// "no scores yet" apart from "no scores match this filter".
func BuildLeaderboard(records []domain.ScoreRecord, filter domain.LeaderboardFilter, now time.Time, limit int) domain.LeaderboardView {
	return domain.LeaderboardView{
		Filter:       filter,
		Entries:      Rank(records, filter, now, limit),
		TotalRecords: len(records),
		GeneratedAt:  now,
	}
}

func filterRecords(records []domain.ScoreRecord, filter domain.LeaderboardFilter, now time.Time) []domain.ScoreRecord {
	today := domain.CalendarDate(now)
	weekStart := domain.CalendarDate(now.UTC().AddDate(0, 0, -(weekWindowDays - 1)))

	kept := make([]domain.ScoreRecord, 0, len(records))
	for _, record := range records {
		switch filter {
		case domain.FilterToday:
			if record.DateISO != today {
				continue
			}
		case domain.FilterWeek:
			// YYYY-MM-DD compares correctly as a string.
			if record.DateISO < weekStart {
				continue
			}
		}
		kept = append(kept, record)
	}
	return kept
}
