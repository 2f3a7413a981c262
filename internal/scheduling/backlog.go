package scheduling

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/studyplan/internal/entity"
)

// Priority score terms.
const (
	OverdueWeight    = 10.0
	LapseWeight      = 5.0
	StabilityWeight  = 3.0
	StabilityCeiling = 10.0
	ErrorNoteBonus   = 20.0
	RelearningBonus  = 15.0
)

// Ranked pairs a card with its priority score.
type Ranked struct {
	Card  *entity.Card
	Score float64
}

// PriorityScore ranks how urgently an overdue card should be reviewed.
func PriorityScore(card *entity.Card, now time.Time) float64 {
	overdue := 0.0
	if card.Due.Before(now) {
		overdue = now.Sub(card.Due).Hours() / 24
	}
	score := OverdueWeight*overdue +
		LapseWeight*float64(card.Lapses) +
		StabilityWeight*(StabilityCeiling-card.Stability)
	if card.Content.Type == entity.ContentErrorNote {
		score += ErrorNoteBonus
	}
	if card.State == entity.StateRelearning {
		score += RelearningBonus
	}
	return score
}

// Rank orders cards by descending score, then earlier due, then id.
func Rank(cards []*entity.Card, now time.Time) []Ranked {
	ranked := lo.Map(cards, func(c *entity.Card, _ int) Ranked {
		return Ranked{Card: c, Score: PriorityScore(c, now)}
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Card.Due.Equal(b.Card.Due) {
			return a.Card.Due.Before(b.Card.Due)
		}
		return a.Card.ID < b.Card.ID
	})
	return ranked
}

// Assignment is a planned new due date for one card.
type Assignment struct {
	Card  *entity.Card
	Score float64
	Due   time.Time
}

// StudyDays returns the next n study days starting with the local date of from.
// The search is bounded to 7*n+7 calendar days.
func StudyDays(from time.Time, n int, set entity.WeekdaySet, loc *time.Location) []time.Time {
	if n <= 0 {
		return nil
	}
	if len(set) == 0 {
		set = entity.AllWeekdays
	}
	start := startOfDay(from, loc)
	days := make([]time.Time, 0, n)
	for i := 0; i < 7*n+7 && len(days) < n; i++ {
		d := start.AddDate(0, 0, i)
		if set.Contains(d.Weekday()) {
			days = append(days, d)
		}
	}
	return days
}

// Distribute fills days in order with ranked cards, capacity per day.
// When the cards exceed len(days)*capacity the per-day quota grows to fit them all.
// Each card keeps its local time of day.
func Distribute(ranked []Ranked, days []time.Time, capacity int, loc *time.Location) []Assignment {
	if len(ranked) == 0 || len(days) == 0 {
		return nil
	}
	quota := capacity
	if need := (len(ranked) + len(days) - 1) / len(days); quota < need {
		quota = need
	}
	out := make([]Assignment, 0, len(ranked))
	for i, r := range ranked {
		d := days[i/quota]
		due := r.Card.Due.In(loc)
		out = append(out, Assignment{
			Card:  r.Card,
			Score: r.Score,
			Due: time.Date(d.Year(), d.Month(), d.Day(),
				due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), loc),
		})
	}
	return out
}

// PlanRecovery spreads the overdue cards across the next n study days at the given daily capacity.
func PlanRecovery(cards []*entity.Card, now time.Time, n, capacity int, prefs entity.LearnerPreferences) []Assignment {
	overdue := lo.Filter(cards, func(c *entity.Card, _ int) bool { return c.IsDue(now) })
	loc := prefs.Location()
	return Distribute(Rank(overdue, now), StudyDays(now, n, prefs.StudyDays, loc), capacity, loc)
}
