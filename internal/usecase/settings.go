package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
	"github.com/eslsoft/studyplan/internal/scheduling"
)

// Settings tunes the scheduling use cases.
type Settings struct {
	DefaultMode     entity.SchedulingMode
	SecondsPerItem  int
	ConflictRetries int
	ReadTimeout     time.Duration
	DashboardTTL    time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultMode:     entity.DefaultMode,
		SecondsPerItem:  scheduling.DefaultSecondsPerItem,
		ConflictRetries: 3,
		ReadTimeout:     2 * time.Second,
		DashboardTTL:    30 * time.Second,
	}
}

// EventPublisher hands committed changes to background handlers.
type EventPublisher interface {
	Publish(ctx context.Context, event entity.Event) error
}

func (s Settings) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.ReadTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.ReadTimeout)
}

// effectivePreferences reads the learner's stored preferences under the read timeout.
// A failed read degrades to the defaults.
func effectivePreferences(ctx context.Context, repo repository.PreferencesRepository, learnerID string, s Settings, log logrus.FieldLogger) entity.LearnerPreferences {
	readCtx, cancel := s.readContext(ctx)
	defer cancel()

	stored, err := repo.Get(readCtx, learnerID)
	if err != nil {
		log.WithField("learner_id", learnerID).WithError(err).Warn("preferences unavailable, using defaults")
		stored = nil
	}
	return s.resolve(learnerID, stored)
}

// resolve fills stored preferences with defaults, using the configured default mode.
func (s Settings) resolve(learnerID string, stored *entity.LearnerPreferences) entity.LearnerPreferences {
	if s.DefaultMode.Valid() && (stored == nil || stored.Mode == "") {
		base := entity.LearnerPreferences{LearnerID: learnerID}
		if stored != nil {
			base = *stored
		}
		base.Mode = s.DefaultMode
		stored = &base
	}
	return entity.EffectivePreferences(learnerID, stored)
}

// publish hands an event to the dispatcher. Failures are logged, never returned.
func publish(ctx context.Context, p EventPublisher, event entity.Event, log logrus.FieldLogger) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.WithFields(logrus.Fields{
			"topic":      event.Topic(),
			"learner_id": event.Learner(),
		}).WithError(entity.Integration("publish", err)).Error("integration failure")
	}
}

func requireLearner(learnerID string) error {
	if learnerID == "" {
		return entity.ErrInvalidLearnerID
	}
	return nil
}
