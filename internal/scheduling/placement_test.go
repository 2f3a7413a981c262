package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/studyplan/internal/entity"
)

// stubCounter answers counts from a per-date table.
type stubCounter struct {
	counts map[string]int
	err    error
	calls  int
}

func (s *stubCounter) CountDueBetween(_ context.Context, _ string, _ entity.ContentType, from, _ time.Time, _ string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[from.Format(time.DateOnly)], nil
}

func smartPrefs(days entity.WeekdaySet, flashcardCap int) entity.LearnerPreferences {
	return entity.EffectivePreferences("l1", &entity.LearnerPreferences{
		Placement: entity.PlacementSmart,
		StudyDays: days,
		DailyCaps: map[entity.ContentType]int{entity.ContentFlashcard: flashcardCap},
	})
}

func request(ideal time.Time) PlacementRequest {
	return PlacementRequest{LearnerID: "l1", CardID: "c1", ContentType: entity.ContentFlashcard, Ideal: ideal}
}

// epoch is a Monday.
func TestPlaceKeepsIdealWhenFree(t *testing.T) {
	counter := &stubCounter{}
	got := NewPlacer(counter, time.Second).Place(context.Background(), request(epoch), smartPrefs(nil, 5))
	assert.Equal(t, epoch, got.Due.UTC())
	assert.Equal(t, PlacedIdeal, got.Reason)
	assert.NoError(t, got.Err)
}

func TestPlaceSkipsUnavailableDays(t *testing.T) {
	prefs := entity.EffectivePreferences("l1", &entity.LearnerPreferences{
		StudyDays: entity.WeekdaySet{time.Thursday},
	})
	got := NewPlacer(nil, 0).Place(context.Background(), request(epoch), prefs)
	assert.Equal(t, epoch.AddDate(0, 0, 3), got.Due.UTC())
	assert.Equal(t, time.Thursday, got.Due.Weekday())
	assert.Equal(t, PlacedAvailability, got.Reason)
}

func TestPlaceTraditionalIgnoresCaps(t *testing.T) {
	counter := &stubCounter{counts: map[string]int{epoch.Format(time.DateOnly): 99}}
	prefs := smartPrefs(nil, 2)
	prefs.Placement = entity.PlacementTraditional
	got := NewPlacer(counter, 0).Place(context.Background(), request(epoch), prefs)
	assert.Equal(t, epoch, got.Due.UTC())
	assert.Zero(t, counter.calls)
}

func TestPlaceMovesPastFullDay(t *testing.T) {
	// Cap of 2 with two cards already on the ideal date and a Mon/Wed schedule.
	counter := &stubCounter{counts: map[string]int{epoch.Format(time.DateOnly): 2}}
	prefs := smartPrefs(entity.WeekdaySet{time.Monday, time.Wednesday}, 2)

	got := NewPlacer(counter, time.Second).Place(context.Background(), request(epoch), prefs)
	require.NoError(t, got.Err)
	assert.Equal(t, epoch.AddDate(0, 0, 2), got.Due.UTC())
	assert.Equal(t, PlacedCapacity, got.Reason)
	assert.Equal(t, epoch.Hour(), got.Due.UTC().Hour())
}

func TestPlaceForcesIdealWhenEverythingFull(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i <= CapacitySearchDays+AvailabilitySearchDays; i++ {
		counts[epoch.AddDate(0, 0, i).Format(time.DateOnly)] = 10
	}
	got := NewPlacer(&stubCounter{counts: counts}, 0).Place(context.Background(), request(epoch.Add(3*time.Hour)), smartPrefs(nil, 10))
	assert.Equal(t, epoch.Add(3*time.Hour), got.Due)
	assert.Equal(t, PlacedForced, got.Reason)
}

func TestPlaceDegradesOnCountFailure(t *testing.T) {
	prefs := smartPrefs(entity.WeekdaySet{time.Tuesday}, 2)
	got := NewPlacer(&stubCounter{err: errors.New("db down")}, time.Second).Place(context.Background(), request(epoch), prefs)
	assert.Error(t, got.Err)
	assert.Equal(t, PlacedDegraded, got.Reason)
	assert.Equal(t, epoch.AddDate(0, 0, 1), got.Due.UTC())
}

func TestPlaceNoStudyDaysReturnsIdeal(t *testing.T) {
	prefs := entity.LearnerPreferences{Placement: entity.PlacementSmart, Timezone: "UTC"}
	got := NewPlacer(&stubCounter{}, 0).Place(context.Background(), request(epoch), prefs)
	assert.Equal(t, epoch, got.Due)
	assert.Equal(t, PlacedIdeal, got.Reason)
}

func TestPlaceUsesLearnerTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 20:00 UTC Monday is already Tuesday in Tokyo.
	ideal := time.Date(2025, 3, 3, 20, 0, 0, 0, time.UTC)
	prefs := entity.EffectivePreferences("l1", &entity.LearnerPreferences{
		StudyDays: entity.WeekdaySet{time.Tuesday},
		Timezone:  "Asia/Tokyo",
	})
	got := NewPlacer(nil, 0).Place(context.Background(), request(ideal), prefs)
	assert.Equal(t, ideal, got.Due.UTC())
	assert.Equal(t, time.Tuesday, got.Due.In(loc).Weekday())
}
