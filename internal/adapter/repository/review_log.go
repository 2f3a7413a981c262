package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/repository"
)

var reviewLogColumns = []string{
	"id", "card_id", "learner_id", "content_type", "content_id", "grade", "time_spent_ms",
	"active", "recomputed", "state", "stability", "difficulty", "scheduled_days", "due_at", "reviewed_at",
}

// ReviewLogRepository appends review events to review_logs.
type ReviewLogRepository struct {
	db *database.DB
}

// NewReviewLogRepository constructs a SQL-backed review history.
func NewReviewLogRepository(db *database.DB) repository.ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

func (r *ReviewLogRepository) Append(ctx context.Context, e *entity.ReviewEvent) error {
	query, args := r.db.Builder().Insert(database.ReviewLogsTable).
		Columns(reviewLogColumns...).
		Values(
			e.ID, e.CardID, e.LearnerID, string(e.Content.Type), e.Content.ID, int(e.Grade), e.TimeSpentMs,
			e.Active, e.Recomputed, string(e.State), e.Stability, e.Difficulty, e.ScheduledDays,
			toMillis(e.Due), toMillis(e.ReviewedAt),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.DoNothing(),
		).
		Query()
	if err := exec(ctx, r.db, query, args, nil); err != nil {
		return fmt.Errorf("append review log: %w", err)
	}
	return nil
}

func (r *ReviewLogRepository) ListByCard(ctx context.Context, cardID string, limit int) ([]*entity.ReviewEvent, error) {
	selector := r.db.Builder().Select(reviewLogColumns...).
		From(entsql.Table(database.ReviewLogsTable)).
		Where(entsql.EQ("card_id", cardID)).
		OrderBy(entsql.Desc("reviewed_at"), entsql.Desc("id"))
	if limit > 0 {
		selector.Limit(limit)
	}
	query, args := selector.Query()

	var rows entsql.Rows
	if err := r.db.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	defer rows.Close()

	var events []*entity.ReviewEvent
	for rows.Next() {
		var (
			e                  entity.ReviewEvent
			contentType, state string
			grade              int
			dueAt, reviewedAt  int64
		)
		if err := rows.Scan(
			&e.ID, &e.CardID, &e.LearnerID, &contentType, &e.Content.ID, &grade, &e.TimeSpentMs,
			&e.Active, &e.Recomputed, &state, &e.Stability, &e.Difficulty, &e.ScheduledDays, &dueAt, &reviewedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}
		e.Content.Type = entity.ContentType(contentType)
		e.Grade = entity.Grade(grade)
		e.State = entity.State(state)
		e.Due = fromMillis(dueAt)
		e.ReviewedAt = fromMillis(reviewedAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review logs: %w", err)
	}
	return events, nil
}
