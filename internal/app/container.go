package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/config"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/infrastructure/eventbus"
	"github.com/eslsoft/studyplan/internal/repository"
	"github.com/eslsoft/studyplan/internal/usecase"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config      *config.Config
	Logger      *logrus.Logger
	DB          *database.DB
	Catalog     repository.ContentCatalog
	ReviewLogs  repository.ReviewLogRepository
	Reviews     usecase.ReviewUsecase
	Dashboard   usecase.DashboardUsecase
	Preferences usecase.PreferencesUsecase
	Admin       usecase.CardAdminUsecase
	Events      *eventbus.Dispatcher
}

// Store is the storage-only subset used by schema and backup commands.
type Store struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *database.DB
}

// NewSettings derives the use case settings from configuration.
func NewSettings(cfg *config.Config) (usecase.Settings, error) {
	s := usecase.DefaultSettings()
	sc := cfg.Scheduler
	if sc.DefaultMode != "" {
		mode, err := entity.ParseSchedulingMode(sc.DefaultMode)
		if err != nil {
			return usecase.Settings{}, err
		}
		s.DefaultMode = mode
	}
	if sc.SecondsPerItem > 0 {
		s.SecondsPerItem = sc.SecondsPerItem
	}
	if sc.ConflictRetries >= 0 {
		s.ConflictRetries = sc.ConflictRetries
	}
	if sc.ReadTimeout > 0 {
		s.ReadTimeout = sc.ReadTimeout
	}
	if sc.DashboardTTL > 0 {
		s.DashboardTTL = sc.DashboardTTL
	}
	return s, nil
}

// NewSubscriptions routes domain events to their background handlers.
func NewSubscriptions(
	history *usecase.HistoryRecorder,
	calendar *usecase.CalendarSync,
	invalidator *usecase.DashboardInvalidator,
) []eventbus.Subscription {
	return []eventbus.Subscription{
		{Topic: entity.TopicReviewCommitted, Handler: history},
		{Topic: entity.TopicReviewCommitted, Handler: calendar},
		{Topic: entity.TopicReviewCommitted, Handler: invalidator},
		{Topic: entity.TopicCardsChanged, Handler: calendar},
		{Topic: entity.TopicCardsChanged, Handler: invalidator},
	}
}
