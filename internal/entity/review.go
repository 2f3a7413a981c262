package entity

import (
	"strings"
	"time"
)

// ReviewSubmission is a learner's answer to one presentation of a content item.
type ReviewSubmission struct {
	Content ContentRef
	// CardID, when set, addresses the card directly; ownership is then checked.
	CardID      string
	Grade       Grade
	TimeSpentMs int64
	// Active reviews were explicitly requested by the learner; passive ones came from browsing.
	Active bool
}

// Validate checks the submission before any scheduling work.
func (s ReviewSubmission) Validate() error {
	if !s.Grade.Valid() {
		return ErrInvalidGrade
	}
	if strings.TrimSpace(s.CardID) == "" {
		if err := s.Content.Validate(); err != nil {
			return err
		}
	}
	if s.TimeSpentMs < 0 {
		return Validation("time spent must not be negative")
	}
	return nil
}

// ReviewEvent is the append-only record of one review.
type ReviewEvent struct {
	ID          string
	CardID      string
	LearnerID   string
	Content     ContentRef
	Grade       Grade
	TimeSpentMs int64
	Active      bool
	// Recomputed is false when a passive review left the schedule untouched.
	Recomputed    bool
	State         State
	Stability     float64
	Difficulty    float64
	ScheduledDays int
	Due           time.Time
	ReviewedAt    time.Time
}

// NewReviewEvent snapshots the card after a review.
func NewReviewEvent(id string, sub ReviewSubmission, card *Card, recomputed bool, now time.Time) *ReviewEvent {
	return &ReviewEvent{
		ID:            id,
		CardID:        card.ID,
		LearnerID:     card.LearnerID,
		Content:       card.Content,
		Grade:         sub.Grade,
		TimeSpentMs:   sub.TimeSpentMs,
		Active:        sub.Active,
		Recomputed:    recomputed,
		State:         card.State,
		Stability:     card.Stability,
		Difficulty:    card.Difficulty,
		ScheduledDays: card.ScheduledDays,
		Due:           card.Due,
		ReviewedAt:    now,
	}
}
