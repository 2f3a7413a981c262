package repository

import (
	"context"

	"github.com/eslsoft/studyplan/internal/entity"
)

// PreferencesRepository persists learner scheduling preferences.
type PreferencesRepository interface {
	// Get returns nil without error when the learner never saved preferences.
	Get(ctx context.Context, learnerID string) (*entity.LearnerPreferences, error)
	Save(ctx context.Context, prefs *entity.LearnerPreferences) (*entity.LearnerPreferences, error)
}

// ReviewLogRepository is the append-only review history.
type ReviewLogRepository interface {
	// Append is idempotent on the event ID so retried deliveries do not duplicate history.
	Append(ctx context.Context, event *entity.ReviewEvent) error
	ListByCard(ctx context.Context, cardID string, limit int) ([]*entity.ReviewEvent, error)
}

// ContentCatalog resolves content references owned by the content subsystem.
type ContentCatalog interface {
	Lookup(ctx context.Context, ref entity.ContentRef) (entity.Content, error)
	Register(ctx context.Context, content entity.Content) error
}

// CalendarHook mirrors placed due dates into the learner's external calendar.
type CalendarHook interface {
	Sync(ctx context.Context, card *entity.Card) error
}
