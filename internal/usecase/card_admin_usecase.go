package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
	"github.com/eslsoft/studyplan/internal/scheduling"
)

// Bulk operation names carried by entity.CardsChanged.
const (
	OpReschedule = "reschedule"
	OpReset      = "reset"
	OpDelete     = "delete"
	OpRecover    = "recover"
	OpPrune      = "prune"
)

// RescheduleTarget moves cards either onto the calendar date of Date or across the next
// SpreadDays study days. Cards keep their local time of day.
type RescheduleTarget struct {
	Date       *time.Time
	SpreadDays int
}

// Validate requires exactly one target.
func (t RescheduleTarget) Validate() error {
	switch {
	case t.Date != nil && t.SpreadDays != 0:
		return entity.Validation("reschedule target must be either a date or spread days")
	case t.Date == nil && t.SpreadDays <= 0:
		return entity.Validation("reschedule target requires a date or positive spread days")
	}
	return nil
}

// RecoveryPlan reports a backlog redistribution.
type RecoveryPlan struct {
	LearnerID   string
	Days        int
	Capacity    int
	Assignments []scheduling.Assignment
	Applied     int
}

// CardAdminUsecase covers listing and administrative bulk changes to a learner's cards.
type CardAdminUsecase interface {
	ListCards(ctx context.Context, query *repository.ListCardQuery) ([]*entity.Card, int64, error)
	Reschedule(ctx context.Context, learnerID, filter string, target RescheduleTarget) (int, error)
	ResetProgress(ctx context.Context, learnerID, filter string) (int, error)
	DeleteCards(ctx context.Context, learnerID, filter string) (int, error)
	RecoverBacklog(ctx context.Context, learnerID string, days int) (RecoveryPlan, error)
	// PruneOrphans deletes cards whose content no longer exists in the catalog.
	PruneOrphans(ctx context.Context, learnerID string) (int, error)
	DeleteCard(ctx context.Context, learnerID, cardID string) error
}

// NewCardAdminUsecase wires the stores, the catalog and the event publisher.
func NewCardAdminUsecase(
	cards repository.CardRepository,
	prefs repository.PreferencesRepository,
	catalog repository.ContentCatalog,
	publisher EventPublisher,
	log *logrus.Logger,
	settings Settings,
) CardAdminUsecase {
	return &cardAdminUsecase{
		cards:     cards,
		prefs:     prefs,
		catalog:   catalog,
		publisher: publisher,
		log:       log.WithField("usecase", "card_admin"),
		settings:  settings,
		clock:     time.Now,
	}
}

type cardAdminUsecase struct {
	cards     repository.CardRepository
	prefs     repository.PreferencesRepository
	catalog   repository.ContentCatalog
	publisher EventPublisher
	log       logrus.FieldLogger
	settings  Settings
	clock     func() time.Time
}

func (u *cardAdminUsecase) ListCards(ctx context.Context, query *repository.ListCardQuery) ([]*entity.Card, int64, error) {
	if query == nil {
		return nil, 0, entity.ErrInvalidLearnerID
	}
	if err := requireLearner(query.LearnerID); err != nil {
		return nil, 0, err
	}
	filter, err := repository.ParseCardFilter(query)
	if err != nil {
		return nil, 0, err
	}
	return u.cards.List(ctx, filter)
}

func (u *cardAdminUsecase) selectCards(ctx context.Context, learnerID, expr string) ([]*entity.Card, error) {
	if err := requireLearner(learnerID); err != nil {
		return nil, err
	}
	filter, err := repository.ParseCardFilter(&repository.ListCardQuery{
		LearnerID:   learnerID,
		FilterOrder: repository.FilterOrder{Filter: expr},
	})
	if err != nil {
		return nil, err
	}
	cards, _, err := u.cards.List(ctx, filter)
	return cards, err
}

func (u *cardAdminUsecase) Reschedule(ctx context.Context, learnerID, filter string, target RescheduleTarget) (int, error) {
	if err := target.Validate(); err != nil {
		return 0, err
	}
	cards, err := u.selectCards(ctx, learnerID, filter)
	if err != nil {
		return 0, err
	}
	now := u.clock()
	prefs := effectivePreferences(ctx, u.prefs, learnerID, u.settings, u.log)
	loc := prefs.Location()

	due := make(map[string]time.Time, len(cards))
	if target.Date != nil {
		day := *target.Date
		for _, c := range cards {
			local := c.Due.In(loc)
			due[c.ID] = time.Date(day.Year(), day.Month(), day.Day(),
				local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
		}
	} else {
		days := scheduling.StudyDays(now, target.SpreadDays, prefs.StudyDays, loc)
		for _, a := range scheduling.Distribute(scheduling.Rank(cards, now), days, 0, loc) {
			due[a.Card.ID] = a.Due
		}
	}

	updated, err := u.applyEach(ctx, cards, func(c *entity.Card) bool {
		d, ok := due[c.ID]
		if !ok {
			return false
		}
		c.Due = d
		c.UpdatedAt = now
		return true
	})
	u.changed(ctx, learnerID, OpReschedule, updated, nil, now)
	return len(updated), err
}

func (u *cardAdminUsecase) ResetProgress(ctx context.Context, learnerID, filter string) (int, error) {
	cards, err := u.selectCards(ctx, learnerID, filter)
	if err != nil {
		return 0, err
	}
	now := u.clock()
	updated, err := u.applyEach(ctx, cards, func(c *entity.Card) bool {
		c.Reset(now)
		return true
	})
	u.changed(ctx, learnerID, OpReset, updated, nil, now)
	return len(updated), err
}

func (u *cardAdminUsecase) DeleteCards(ctx context.Context, learnerID, filter string) (int, error) {
	cards, err := u.selectCards(ctx, learnerID, filter)
	if err != nil {
		return 0, err
	}
	return u.delete(ctx, learnerID, OpDelete, lo.Map(cards, func(c *entity.Card, _ int) string { return c.ID }))
}

func (u *cardAdminUsecase) RecoverBacklog(ctx context.Context, learnerID string, days int) (RecoveryPlan, error) {
	if err := requireLearner(learnerID); err != nil {
		return RecoveryPlan{}, err
	}
	if days <= 0 {
		return RecoveryPlan{}, entity.Validation("recovery days must be positive")
	}
	now := u.clock()
	prefs := effectivePreferences(ctx, u.prefs, learnerID, u.settings, u.log)
	overdue, err := u.cards.ListDue(ctx, repository.DueQuery{LearnerID: learnerID, Before: now})
	if err != nil {
		return RecoveryPlan{}, err
	}

	plan := RecoveryPlan{
		LearnerID:   learnerID,
		Days:        days,
		Capacity:    prefs.DailyCapacity,
		Assignments: scheduling.PlanRecovery(overdue, now, days, prefs.DailyCapacity, prefs),
	}
	due := make(map[string]time.Time, len(plan.Assignments))
	for _, a := range plan.Assignments {
		due[a.Card.ID] = a.Due
	}
	updated, err := u.applyEach(ctx, overdue, func(c *entity.Card) bool {
		d, ok := due[c.ID]
		if !ok {
			return false
		}
		c.Due = d
		c.UpdatedAt = now
		return true
	})
	plan.Applied = len(updated)
	u.changed(ctx, learnerID, OpRecover, updated, nil, now)
	u.log.WithFields(logrus.Fields{
		"learner_id": learnerID,
		"days":       days,
		"overdue":    len(overdue),
		"applied":    plan.Applied,
	}).Info("backlog redistributed")
	return plan, err
}

func (u *cardAdminUsecase) PruneOrphans(ctx context.Context, learnerID string) (int, error) {
	cards, err := u.selectCards(ctx, learnerID, "")
	if err != nil {
		return 0, err
	}
	var orphans []string
	for _, c := range cards {
		readCtx, cancel := u.settings.readContext(ctx)
		_, err := u.catalog.Lookup(readCtx, c.Content)
		cancel()
		switch {
		case errors.Is(err, entity.ErrNotFound):
			orphans = append(orphans, c.ID)
		case err != nil:
			u.log.WithFields(logrus.Fields{
				"card_id": c.ID,
				"content": c.Content.String(),
			}).WithError(err).Warn("content lookup failed, card kept")
		}
	}
	return u.delete(ctx, learnerID, OpPrune, orphans)
}

func (u *cardAdminUsecase) DeleteCard(ctx context.Context, learnerID, cardID string) error {
	if err := requireLearner(learnerID); err != nil {
		return err
	}
	card, err := u.cards.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.LearnerID != learnerID {
		return entity.ErrCardNotOwned
	}
	_, err = u.delete(ctx, learnerID, OpDelete, []string{cardID})
	return err
}

func (u *cardAdminUsecase) delete(ctx context.Context, learnerID, op string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := u.cards.Delete(ctx, learnerID, ids)
	if err != nil {
		return 0, err
	}
	u.changed(ctx, learnerID, op, nil, ids, u.clock())
	u.log.WithFields(logrus.Fields{
		"learner_id": learnerID,
		"op":         op,
		"deleted":    n,
	}).Info("cards deleted")
	return n, nil
}

// applyEach writes mutate's changes card by card, reloading and retrying a card on version conflicts.
// It stops at the first non-retryable error and returns the cards written so far.
func (u *cardAdminUsecase) applyEach(ctx context.Context, cards []*entity.Card, mutate func(*entity.Card) bool) ([]*entity.Card, error) {
	var updated []*entity.Card
	for _, card := range cards {
		current := card
		for attempt := 0; ; attempt++ {
			next := current.Clone()
			if !mutate(next) {
				break
			}
			saved, err := u.cards.Update(ctx, next)
			if err == nil {
				updated = append(updated, saved)
				break
			}
			if !entity.IsRetryable(err) || attempt >= u.settings.ConflictRetries {
				return updated, err
			}
			if current, err = u.cards.GetByID(ctx, card.ID); err != nil {
				return updated, err
			}
		}
	}
	return updated, nil
}

func (u *cardAdminUsecase) changed(ctx context.Context, learnerID, op string, cards []*entity.Card, deleted []string, now time.Time) {
	if len(cards) == 0 && len(deleted) == 0 {
		return
	}
	publish(ctx, u.publisher, entity.CardsChanged{
		LearnerID:  learnerID,
		Op:         op,
		Cards:      cards,
		Deleted:    deleted,
		OccurredAt: now,
	}, u.log)
}
