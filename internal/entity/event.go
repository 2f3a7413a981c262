package entity

import "time"

// Event topics.
const (
	TopicReviewCommitted = "review.committed"
	TopicCardsChanged    = "cards.changed"
)

// Event is a post-commit notification delivered to background handlers.
type Event interface {
	Topic() string
	Learner() string
}

// ReviewCommitted is published once a review's card update has been stored.
type ReviewCommitted struct {
	Card       *Card
	Review     *ReviewEvent
	OccurredAt time.Time
}

func (e ReviewCommitted) Topic() string   { return TopicReviewCommitted }
func (e ReviewCommitted) Learner() string { return e.Card.LearnerID }

// CardsChanged is published after an administrative bulk operation.
// Cards holds the updated snapshots; Deleted lists removed card IDs.
type CardsChanged struct {
	LearnerID  string
	Op         string
	Cards      []*Card
	Deleted    []string
	OccurredAt time.Time
}

func (e CardsChanged) Topic() string   { return TopicCardsChanged }
func (e CardsChanged) Learner() string { return e.LearnerID }
