package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/studyplan/internal/entity"
)

func TestSummarize(t *testing.T) {
	mk := func(id string, ct entity.ContentType, st entity.State, due time.Time) *entity.Card {
		c := entity.NewCard(id, "l1", entity.ContentRef{Type: ct, ID: id}, epoch)
		c.State = st
		c.Due = due
		return c
	}
	due := []*entity.Card{
		mk("a", entity.ContentFlashcard, entity.StateReview, epoch.Add(-2*day)),
		mk("b", entity.ContentFlashcard, entity.StateNew, epoch),
		mk("c", entity.ContentErrorNote, entity.StateRelearning, epoch.Add(-time.Hour)),
	}
	upcoming := []*entity.Card{
		mk("d", entity.ContentQuestion, entity.StateReview, epoch.Add(day)),
		mk("e", entity.ContentQuestion, entity.StateReview, epoch.Add(day+time.Hour)),
		mk("f", entity.ContentQuestion, entity.StateReview, epoch.Add(3*day)),
		mk("g", entity.ContentQuestion, entity.StateReview, epoch.Add(30*day)),
	}

	s := Summarize("l1", due, upcoming, epoch, time.UTC, 0)

	assert.Equal(t, 3, s.TotalDue)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 2, s.ByContentType[entity.ContentFlashcard])
	assert.Equal(t, 0, s.ByContentType[entity.ContentQuestion])
	assert.Equal(t, 1, s.ByContentType[entity.ContentErrorNote])
	assert.Equal(t, 1, s.ByState[entity.StateRelearning])
	assert.Equal(t, 90, s.EstimatedSeconds)
	assert.InDelta(t, 1.5, s.EstimatedMinutes, 1e-9)

	require.Len(t, s.Forecast, ForecastDays)
	assert.Equal(t, "2025-03-04", s.Forecast[0].Date)
	assert.Equal(t, 2, s.Forecast[0].Count)
	assert.Equal(t, 1, s.Forecast[2].Count)
	assert.Equal(t, 0, s.Forecast[6].Count)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("l1", nil, nil, epoch, time.UTC, 45)
	assert.Zero(t, s.TotalDue)
	assert.Zero(t, s.EstimatedSeconds)
	assert.Len(t, s.ByContentType, len(entity.ContentTypes))
}
