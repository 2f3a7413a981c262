package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/eslsoft/studyplan/internal/entity"
)

// Search windows for calendar placement, in days.
const (
	AvailabilitySearchDays = 14
	CapacitySearchDays     = 30
)

// DayLoadCounter reports how many of a learner's cards of one type are due inside [from, to).
// excludeCardID is left out of the count so a card never competes with itself.
type DayLoadCounter interface {
	CountDueBetween(ctx context.Context, learnerID string, contentType entity.ContentType, from, to time.Time, excludeCardID string) (int, error)
}

// PlacementReason explains which rule produced a placement.
type PlacementReason string

const (
	PlacedIdeal        PlacementReason = "ideal"
	PlacedAvailability PlacementReason = "availability"
	PlacedCapacity     PlacementReason = "capacity"
	PlacedForced       PlacementReason = "forced"
	PlacedDegraded     PlacementReason = "degraded"
)

// Placement is the result of mapping an ideal due date onto the calendar.
type Placement struct {
	Due    time.Time
	Reason PlacementReason
	// Err is set when a capacity read failed; Due is still usable.
	Err error
}

// PlacementRequest describes one card to place.
type PlacementRequest struct {
	LearnerID   string
	CardID      string
	ContentType entity.ContentType
	Ideal       time.Time
}

// Placer maps ideal due dates onto study days under soft per-type caps.
type Placer struct {
	counter     DayLoadCounter
	readTimeout time.Duration
}

// NewPlacer builds a Placer. A zero readTimeout disables the per-read deadline.
func NewPlacer(counter DayLoadCounter, readTimeout time.Duration) *Placer {
	return &Placer{counter: counter, readTimeout: readTimeout}
}

// Place runs the availability step and, in smart mode, the capacity step.
func (p *Placer) Place(ctx context.Context, req PlacementRequest, prefs entity.LearnerPreferences) Placement {
	loc := prefs.Location()
	available, ok := nextStudyDay(req.Ideal, prefs.StudyDays, loc)
	if !ok {
		return Placement{Due: req.Ideal, Reason: PlacedIdeal}
	}
	reason := PlacedIdeal
	if !available.Equal(req.Ideal) {
		reason = PlacedAvailability
	}
	if prefs.Placement != entity.PlacementSmart || p.counter == nil {
		return Placement{Due: available, Reason: reason}
	}

	limit := prefs.CapFor(req.ContentType)
	for i := 0; i <= CapacitySearchDays; i++ {
		candidate := available.In(loc).AddDate(0, 0, i)
		if !prefs.StudyDays.Contains(candidate.Weekday()) {
			continue
		}
		count, err := p.count(ctx, req, candidate, loc)
		if err != nil {
			return Placement{
				Due:    available,
				Reason: PlacedDegraded,
				Err:    fmt.Errorf("count cards due on %s: %w", candidate.Format(time.DateOnly), err),
			}
		}
		if count < limit {
			if i > 0 {
				reason = PlacedCapacity
			}
			return Placement{Due: candidate, Reason: reason}
		}
	}
	return Placement{Due: req.Ideal, Reason: PlacedForced}
}

func (p *Placer) count(ctx context.Context, req PlacementRequest, d time.Time, loc *time.Location) (int, error) {
	if p.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.readTimeout)
		defer cancel()
	}
	from := startOfDay(d, loc)
	return p.counter.CountDueBetween(ctx, req.LearnerID, req.ContentType, from, from.AddDate(0, 0, 1), req.CardID)
}

// nextStudyDay advances t to the nearest study day within the availability window.
func nextStudyDay(t time.Time, days entity.WeekdaySet, loc *time.Location) (time.Time, bool) {
	local := t.In(loc)
	for i := 0; i <= AvailabilitySearchDays; i++ {
		candidate := local.AddDate(0, 0, i)
		if days.Contains(candidate.Weekday()) {
			return candidate, true
		}
	}
	return t, false
}
