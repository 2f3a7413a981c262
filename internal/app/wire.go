//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/eslsoft/studyplan/internal/adapter/calendar"
	adapterrepo "github.com/eslsoft/studyplan/internal/adapter/repository"
	"github.com/eslsoft/studyplan/internal/infrastructure/config"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/infrastructure/eventbus"
	"github.com/eslsoft/studyplan/internal/infrastructure/logger"
	"github.com/eslsoft/studyplan/internal/usecase"
)

var configSet = wire.NewSet(
	config.Load,
	logger.NewLogger,
)

var databaseSet = wire.NewSet(
	database.NewDB,
)

var repositorySet = wire.NewSet(
	adapterrepo.NewCardRepository,
	adapterrepo.NewPreferencesRepository,
	adapterrepo.NewReviewLogRepository,
	adapterrepo.NewContentCatalog,
	calendar.NewLogHook,
)

var eventSet = wire.NewSet(
	usecase.NewHistoryRecorder,
	usecase.NewCalendarSync,
	usecase.NewDashboardInvalidator,
	NewSubscriptions,
	eventbus.NewDispatcher,
	wire.Bind(new(usecase.EventPublisher), new(*eventbus.Dispatcher)),
)

var usecaseSet = wire.NewSet(
	NewSettings,
	usecase.NewReviewUsecase,
	usecase.NewDashboardUsecase,
	usecase.NewPreferencesUsecase,
	usecase.NewCardAdminUsecase,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		databaseSet,
		repositorySet,
		eventSet,
		usecaseSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}

// InitializeStore opens only the configured database.
func InitializeStore() (*Store, func(), error) {
	wire.Build(
		configSet,
		databaseSet,
		wire.Struct(new(Store), "*"),
	)
	return nil, nil, nil
}
