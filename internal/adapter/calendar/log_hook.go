package calendar

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
)

// LogHook records calendar placements in the application log. It stands in for
// a planner integration and is the default CalendarHook.
type LogHook struct {
	log logrus.FieldLogger
}

// NewLogHook constructs the log-backed calendar hook.
func NewLogHook(log *logrus.Logger) repository.CalendarHook {
	return &LogHook{log: log.WithField("component", "calendar")}
}

func (h *LogHook) Sync(ctx context.Context, card *entity.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{
		"learner_id":   card.LearnerID,
		"card_id":      card.ID,
		"content_type": card.Content.Type,
		"content_id":   card.Content.ID,
		"due":          card.Due.Format(time.RFC3339),
	}).Info("calendar entry synced")
	return nil
}
