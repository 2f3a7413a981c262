package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
	"github.com/eslsoft/studyplan/internal/scheduling"
)

// DueFilter narrows the due queue.
type DueFilter struct {
	ContentTypes []entity.ContentType
	// Limit caps the queue length. Zero means no limit.
	Limit int
}

// DueCard is one entry of the due queue.
type DueCard struct {
	Card        *entity.Card
	Priority    float64
	OverdueDays float64
}

// ReviewUsecase schedules reviews for a learner's cards.
type ReviewUsecase interface {
	// CreateCard returns the learner's card for ref, creating it on first presentation.
	CreateCard(ctx context.Context, learnerID string, ref entity.ContentRef) (*entity.Card, error)
	SubmitReview(ctx context.Context, learnerID string, sub entity.ReviewSubmission) (*entity.Card, error)
	// PreviewReview returns the outcome of every grade without storing anything.
	PreviewReview(ctx context.Context, learnerID, cardID string) (map[entity.Grade]*entity.Card, error)
	GetDueCards(ctx context.Context, learnerID string, filter DueFilter) ([]DueCard, error)
}

// NewReviewUsecase wires the stores, the catalog and the event publisher.
func NewReviewUsecase(
	cards repository.CardRepository,
	prefs repository.PreferencesRepository,
	catalog repository.ContentCatalog,
	publisher EventPublisher,
	log *logrus.Logger,
	settings Settings,
) ReviewUsecase {
	return &reviewUsecase{
		cards:     cards,
		prefs:     prefs,
		catalog:   catalog,
		publisher: publisher,
		placer:    scheduling.NewPlacer(cards, settings.ReadTimeout),
		locks:     newKeyLock(),
		log:       log.WithField("usecase", "review"),
		settings:  settings,
		clock:     time.Now,
		newID:     uuid.NewString,
	}
}

type reviewUsecase struct {
	cards     repository.CardRepository
	prefs     repository.PreferencesRepository
	catalog   repository.ContentCatalog
	publisher EventPublisher
	placer    *scheduling.Placer
	locks     *keyLock
	log       logrus.FieldLogger
	settings  Settings
	clock     func() time.Time
	newID     func() string
}

func (u *reviewUsecase) CreateCard(ctx context.Context, learnerID string, ref entity.ContentRef) (*entity.Card, error) {
	if err := requireLearner(learnerID); err != nil {
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	unlock := u.locks.Lock(cardKey(learnerID, ref))
	defer unlock()
	return u.findOrCreate(ctx, learnerID, ref)
}

// findOrCreate must run under the card's key lock.
func (u *reviewUsecase) findOrCreate(ctx context.Context, learnerID string, ref entity.ContentRef) (*entity.Card, error) {
	existing, err := u.cards.FindByContent(ctx, learnerID, ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	readCtx, cancel := u.settings.readContext(ctx)
	_, err = u.catalog.Lookup(readCtx, ref)
	cancel()
	if err != nil {
		return nil, err
	}

	card, err := u.cards.Create(ctx, entity.NewCard(u.newID(), learnerID, ref, u.clock()))
	if errors.Is(err, entity.ErrDuplicateCard) {
		// Created concurrently by another process.
		return u.cards.FindByContent(ctx, learnerID, ref)
	}
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{
		"learner_id": learnerID,
		"card_id":    card.ID,
		"content":    ref.String(),
	}).Info("card created")
	return card, nil
}

func (u *reviewUsecase) SubmitReview(ctx context.Context, learnerID string, sub entity.ReviewSubmission) (*entity.Card, error) {
	if err := requireLearner(learnerID); err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	ref := sub.Content
	if sub.CardID != "" {
		card, err := u.ownedCard(ctx, learnerID, sub.CardID)
		if err != nil {
			return nil, err
		}
		ref = card.Content
	}

	unlock := u.locks.Lock(cardKey(learnerID, ref))
	defer unlock()

	card, err := u.findOrCreate(ctx, learnerID, ref)
	if err != nil {
		return nil, err
	}
	prefs := effectivePreferences(ctx, u.prefs, learnerID, u.settings, u.log)

	for attempt := 0; ; attempt++ {
		now := u.clock()
		next, recomputed, err := u.schedule(ctx, card, sub, prefs, now)
		if err != nil {
			return nil, err
		}

		updated, err := u.cards.Update(ctx, next)
		if err == nil {
			event := entity.NewReviewEvent(u.newID(), sub, updated, recomputed, now)
			publish(ctx, u.publisher, entity.ReviewCommitted{Card: updated, Review: event, OccurredAt: now}, u.log)
			u.log.WithFields(logrus.Fields{
				"learner_id":     learnerID,
				"card_id":        updated.ID,
				"grade":          sub.Grade.String(),
				"recomputed":     recomputed,
				"state":          updated.State,
				"scheduled_days": updated.ScheduledDays,
				"due":            updated.Due.Format(time.RFC3339),
			}).Debug("review recorded")
			return updated, nil
		}
		if !entity.IsRetryable(err) || attempt >= u.settings.ConflictRetries {
			return nil, err
		}
		u.log.WithFields(logrus.Fields{
			"card_id": card.ID,
			"attempt": attempt + 1,
		}).Debug("card changed concurrently, reloading")
		if card, err = u.cards.GetByID(ctx, card.ID); err != nil {
			return nil, err
		}
	}
}

// schedule runs the threshold gate, the grade processor and calendar placement.
func (u *reviewUsecase) schedule(ctx context.Context, card *entity.Card, sub entity.ReviewSubmission, prefs entity.LearnerPreferences, now time.Time) (*entity.Card, bool, error) {
	if !scheduling.NeedsRecompute(card, sub.Grade, sub.Active, now) {
		return scheduling.Touch(card, now), false, nil
	}
	next, err := scheduling.Review(card, sub.Grade, now, scheduling.SelectParameters(prefs, now))
	if err != nil {
		return nil, false, err
	}
	placement := u.placer.Place(ctx, scheduling.PlacementRequest{
		LearnerID:   card.LearnerID,
		CardID:      card.ID,
		ContentType: card.Content.Type,
		Ideal:       next.Due,
	}, prefs)
	if placement.Err != nil {
		u.log.WithFields(logrus.Fields{
			"card_id": card.ID,
			"ideal":   next.Due.Format(time.RFC3339),
		}).WithError(placement.Err).Warn("day load unavailable, placed on study day only")
	}
	next.Due = placement.Due
	return next, true, nil
}

func (u *reviewUsecase) ownedCard(ctx context.Context, learnerID, cardID string) (*entity.Card, error) {
	card, err := u.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.LearnerID != learnerID {
		return nil, entity.ErrCardNotOwned
	}
	return card, nil
}

func (u *reviewUsecase) PreviewReview(ctx context.Context, learnerID, cardID string) (map[entity.Grade]*entity.Card, error) {
	if err := requireLearner(learnerID); err != nil {
		return nil, err
	}
	card, err := u.ownedCard(ctx, learnerID, cardID)
	if err != nil {
		return nil, err
	}
	now := u.clock()
	prefs := effectivePreferences(ctx, u.prefs, learnerID, u.settings, u.log)
	return scheduling.Preview(card, now, scheduling.SelectParameters(prefs, now))
}

func (u *reviewUsecase) GetDueCards(ctx context.Context, learnerID string, filter DueFilter) ([]DueCard, error) {
	if err := requireLearner(learnerID); err != nil {
		return nil, err
	}
	for _, t := range filter.ContentTypes {
		if !t.Valid() {
			return nil, entity.Validationf("unknown content type %q", t)
		}
	}
	if filter.Limit < 0 {
		return nil, entity.Validation("limit must not be negative")
	}

	now := u.clock()
	prefs := effectivePreferences(ctx, u.prefs, learnerID, u.settings, u.log)
	query := repository.DueQuery{
		LearnerID:    learnerID,
		Before:       now,
		ContentTypes: filter.ContentTypes,
	}
	if prefs.Placement != entity.PlacementSmart {
		query.Limit = filter.Limit
	}
	cards, err := u.cards.ListDue(ctx, query)
	if err != nil {
		return nil, err
	}

	var ranked []scheduling.Ranked
	if prefs.Placement == entity.PlacementSmart {
		ranked = allocateByDistribution(scheduling.Rank(cards, now), prefs.Distribution, filter.Limit)
	} else {
		ranked = lo.Map(cards, func(c *entity.Card, _ int) scheduling.Ranked {
			return scheduling.Ranked{Card: c, Score: scheduling.PriorityScore(c, now)}
		})
	}
	return lo.Map(ranked, func(r scheduling.Ranked, _ int) DueCard {
		return DueCard{
			Card:        r.Card,
			Priority:    r.Score,
			OverdueDays: math.Max(0, now.Sub(r.Card.Due).Hours()/24),
		}
	}), nil
}

// allocateByDistribution picks limit cards from a ranked queue, reserving slots per content
// type by the distribution ratios. Unused slots go to the highest remaining scores.
// The result keeps rank order.
func allocateByDistribution(ranked []scheduling.Ranked, dist map[entity.ContentType]float64, limit int) []scheduling.Ranked {
	if limit <= 0 || len(ranked) <= limit {
		return ranked
	}
	byType := lo.GroupBy(ranked, func(r scheduling.Ranked) entity.ContentType { return r.Card.Content.Type })
	total := lo.SumBy(lo.Keys(byType), func(t entity.ContentType) float64 { return dist[t] })

	picked := make(map[string]bool, limit)
	if total > 0 {
		for _, t := range entity.ContentTypes {
			quota := int(math.Floor(dist[t] / total * float64(limit)))
			for _, r := range lo.Slice(byType[t], 0, quota) {
				picked[r.Card.ID] = true
			}
		}
	}
	for _, r := range ranked {
		if len(picked) >= limit {
			break
		}
		picked[r.Card.ID] = true
	}
	return lo.Filter(ranked, func(r scheduling.Ranked, _ int) bool { return picked[r.Card.ID] })
}
