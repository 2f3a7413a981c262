package scheduling

import (
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/studyplan/internal/entity"
)

// DefaultSecondsPerItem is the flat time estimate for one review.
const DefaultSecondsPerItem = 30

// ForecastDays is the length of the upcoming-load forecast.
const ForecastDays = 7

// DayLoad is the number of cards due on one local date.
type DayLoad struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summary is the dashboard rollup for one learner.
type Summary struct {
	LearnerID        string                     `json:"learner_id"`
	TotalDue         int                        `json:"total_due"`
	Overdue          int                        `json:"overdue"`
	ByContentType    map[entity.ContentType]int `json:"by_content_type"`
	ByState          map[entity.State]int       `json:"by_state"`
	EstimatedSeconds int                        `json:"estimated_seconds"`
	EstimatedMinutes float64                    `json:"estimated_minutes"`
	Forecast         []DayLoad                  `json:"forecast"`
	GeneratedAt      time.Time                  `json:"generated_at"`
}

// Summarize rolls up the due cards and the cards due over the next ForecastDays.
func Summarize(learnerID string, due, upcoming []*entity.Card, now time.Time, loc *time.Location, secondsPerItem int) Summary {
	if secondsPerItem <= 0 {
		secondsPerItem = DefaultSecondsPerItem
	}
	today := startOfDay(now, loc)

	byType := make(map[entity.ContentType]int, len(entity.ContentTypes))
	for _, t := range entity.ContentTypes {
		byType[t] = 0
	}
	for t, n := range lo.CountValuesBy(due, func(c *entity.Card) entity.ContentType { return c.Content.Type }) {
		byType[t] = n
	}

	forecast := make([]DayLoad, ForecastDays)
	index := make(map[string]int, ForecastDays)
	for i := range forecast {
		key := today.AddDate(0, 0, i+1).Format(time.DateOnly)
		forecast[i] = DayLoad{Date: key}
		index[key] = i
	}
	for _, c := range upcoming {
		if i, ok := index[c.Due.In(loc).Format(time.DateOnly)]; ok {
			forecast[i].Count++
		}
	}

	seconds := len(due) * secondsPerItem
	return Summary{
		LearnerID:        learnerID,
		TotalDue:         len(due),
		Overdue:          lo.CountBy(due, func(c *entity.Card) bool { return c.Due.Before(today) }),
		ByContentType:    byType,
		ByState:          lo.CountValuesBy(due, func(c *entity.Card) entity.State { return c.State }),
		EstimatedSeconds: seconds,
		EstimatedMinutes: float64(seconds) / 60,
		Forecast:         forecast,
		GeneratedAt:      now,
	}
}
