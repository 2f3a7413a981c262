package usecase

import (
	"context"
	"errors"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
)

// HistoryRecorder appends committed reviews to the review log.
type HistoryRecorder struct {
	logs repository.ReviewLogRepository
}

func NewHistoryRecorder(logs repository.ReviewLogRepository) *HistoryRecorder {
	return &HistoryRecorder{logs: logs}
}

func (h *HistoryRecorder) Name() string { return "review_history" }

func (h *HistoryRecorder) Handle(ctx context.Context, event entity.Event) error {
	committed, ok := event.(entity.ReviewCommitted)
	if !ok || committed.Review == nil {
		return nil
	}
	return h.logs.Append(ctx, committed.Review)
}

// CalendarSync mirrors placed due dates into the calendar hook.
type CalendarSync struct {
	hook repository.CalendarHook
}

func NewCalendarSync(hook repository.CalendarHook) *CalendarSync {
	return &CalendarSync{hook: hook}
}

func (h *CalendarSync) Name() string { return "calendar_sync" }

func (h *CalendarSync) Handle(ctx context.Context, event entity.Event) error {
	switch e := event.(type) {
	case entity.ReviewCommitted:
		return h.hook.Sync(ctx, e.Card)
	case entity.CardsChanged:
		var errs []error
		for _, card := range e.Cards {
			if err := h.hook.Sync(ctx, card); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

// DashboardInvalidator drops cached summaries when a learner's cards change.
type DashboardInvalidator struct {
	dashboard DashboardUsecase
}

func NewDashboardInvalidator(dashboard DashboardUsecase) *DashboardInvalidator {
	return &DashboardInvalidator{dashboard: dashboard}
}

func (h *DashboardInvalidator) Name() string { return "dashboard_invalidation" }

func (h *DashboardInvalidator) Handle(_ context.Context, event entity.Event) error {
	h.dashboard.Invalidate(event.Learner())
	return nil
}
