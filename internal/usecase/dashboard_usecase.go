package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
	"github.com/eslsoft/studyplan/internal/scheduling"
)

// DashboardUsecase serves cached per-learner review summaries.
type DashboardUsecase interface {
	GetDashboardSummary(ctx context.Context, learnerID string) (scheduling.Summary, error)
	// Invalidate drops the cached summary of a learner.
	Invalidate(learnerID string)
}

// NewDashboardUsecase wires the stores used by the summary.
func NewDashboardUsecase(cards repository.CardRepository, prefs repository.PreferencesRepository, log *logrus.Logger, settings Settings) DashboardUsecase {
	return &dashboardUsecase{
		cards:    cards,
		prefs:    prefs,
		log:      log.WithField("usecase", "dashboard"),
		settings: settings,
		clock:    time.Now,
		cache:    make(map[string]cachedSummary),
		gens:     make(map[string]uint64),
	}
}

type cachedSummary struct {
	summary scheduling.Summary
	expires time.Time
}

type dashboardUsecase struct {
	cards    repository.CardRepository
	prefs    repository.PreferencesRepository
	log      logrus.FieldLogger
	settings Settings
	clock    func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedSummary
	// gens counts invalidations so a summary computed before one is not cached after it.
	gens map[string]uint64
}

func (u *dashboardUsecase) GetDashboardSummary(ctx context.Context, learnerID string) (scheduling.Summary, error) {
	if err := requireLearner(learnerID); err != nil {
		return scheduling.Summary{}, err
	}
	if s, ok := u.cached(learnerID); ok {
		return s, nil
	}

	v, err, _ := u.group.Do(learnerID, func() (any, error) {
		u.mu.Lock()
		gen := u.gens[learnerID]
		u.mu.Unlock()

		summary, err := u.compute(ctx, learnerID)
		if err != nil {
			return nil, err
		}
		if u.settings.DashboardTTL > 0 {
			u.mu.Lock()
			if u.gens[learnerID] == gen {
				u.cache[learnerID] = cachedSummary{summary: summary, expires: u.clock().Add(u.settings.DashboardTTL)}
			}
			u.mu.Unlock()
		}
		return summary, nil
	})
	if err != nil {
		return scheduling.Summary{}, err
	}
	return v.(scheduling.Summary), nil
}

func (u *dashboardUsecase) Invalidate(learnerID string) {
	u.mu.Lock()
	delete(u.cache, learnerID)
	u.gens[learnerID]++
	u.mu.Unlock()
	u.group.Forget(learnerID)
}

func (u *dashboardUsecase) cached(learnerID string) (scheduling.Summary, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	entry, ok := u.cache[learnerID]
	if !ok {
		return scheduling.Summary{}, false
	}
	if !u.clock().Before(entry.expires) {
		delete(u.cache, learnerID)
		return scheduling.Summary{}, false
	}
	return entry.summary, true
}

func (u *dashboardUsecase) compute(ctx context.Context, learnerID string) (scheduling.Summary, error) {
	now := u.clock()
	horizon := now.AddDate(0, 0, scheduling.ForecastDays+1)

	var (
		prefs    entity.LearnerPreferences
		due      []*entity.Card
		upcoming []*entity.Card
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prefs = effectivePreferences(gctx, u.prefs, learnerID, u.settings, u.log)
		return nil
	})
	g.Go(func() error {
		var err error
		due, err = u.cards.ListDue(gctx, repository.DueQuery{LearnerID: learnerID, Before: now})
		return err
	})
	g.Go(func() error {
		var err error
		upcoming, err = u.cards.ListDue(gctx, repository.DueQuery{LearnerID: learnerID, After: &now, Before: horizon})
		return err
	})
	if err := g.Wait(); err != nil {
		return scheduling.Summary{}, err
	}
	return scheduling.Summarize(learnerID, due, upcoming, now, prefs.Location(), u.settings.SecondsPerItem), nil
}
