package scheduling

import (
	"time"

	"github.com/eslsoft/studyplan/internal/entity"
)

// RecomputeProgress is the fraction of the planned gap a passive review must reach
// before a successful grade is allowed to move the schedule.
const RecomputeProgress = 0.7

// NeedsRecompute decides whether a review goes through the grade processor.
func NeedsRecompute(card *entity.Card, grade entity.Grade, active bool, now time.Time) bool {
	if active || !grade.Success() || grade == entity.GradeHard {
		return true
	}
	if card.LastReview == nil || card.Due.IsZero() || card.ScheduledDays <= 0 {
		return true
	}
	return Progress(card, now) >= RecomputeProgress
}

// Progress is elapsed time since the last review as a fraction of the planned gap.
func Progress(card *entity.Card, now time.Time) float64 {
	if card.LastReview == nil || card.ScheduledDays <= 0 {
		return 0
	}
	return actualElapsed(card, now) / float64(card.ScheduledDays)
}

// Touch records a passive review that leaves the memory state and due date untouched.
func Touch(card *entity.Card, now time.Time) *entity.Card {
	next := card.Clone()
	reviewed := now
	next.LastReview = &reviewed
	next.UpdatedAt = now
	return next
}
