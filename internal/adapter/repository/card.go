package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/repository"
)

var cardColumns = []string{
	"id", "learner_id", "content_type", "content_id", "state", "due_at",
	"stability", "difficulty", "elapsed_days", "scheduled_days", "reps", "lapses",
	"last_review_at", "version", "created_at", "updated_at",
}

// CardRepository stores cards in the cards table.
type CardRepository struct {
	db *database.DB
}

// NewCardRepository constructs a SQL-backed card repository.
func NewCardRepository(db *database.DB) repository.CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	rec := card.Clone()
	if rec.Version == 0 {
		rec.Version = 1
	}
	query, args := r.db.Builder().Insert(database.CardsTable).
		Columns(cardColumns...).
		Values(cardValues(rec)...).
		Query()
	if err := translateError(exec(ctx, r.db, query, args, nil), entity.ErrDuplicateCard, nil); err != nil {
		if err == entity.ErrDuplicateCard {
			return nil, err
		}
		return nil, fmt.Errorf("create card: %w", err)
	}
	return rec, nil
}

func (r *CardRepository) Update(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	rec := card.Clone()
	query, args := r.db.Builder().Update(database.CardsTable).
		Set("state", string(rec.State)).
		Set("due_at", toMillis(rec.Due)).
		Set("stability", rec.Stability).
		Set("difficulty", rec.Difficulty).
		Set("elapsed_days", rec.ElapsedDays).
		Set("scheduled_days", rec.ScheduledDays).
		Set("reps", rec.Reps).
		Set("lapses", rec.Lapses).
		Set("last_review_at", nullMillis(rec.LastReview)).
		Set("updated_at", toMillis(rec.UpdatedAt)).
		Add("version", 1).
		Where(entsql.And(
			entsql.EQ("id", rec.ID),
			entsql.EQ("version", rec.Version),
		)).
		Query()

	var res sql.Result
	if err := exec(ctx, r.db, query, args, &res); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, rec.ID); err != nil {
			return nil, err
		}
		return nil, entity.ErrVersionMismatch
	}
	rec.Version++
	return rec, nil
}

func (r *CardRepository) GetByID(ctx context.Context, id string) (*entity.Card, error) {
	cards, err := r.selectCards(ctx, func(s *entsql.Selector) {
		s.Where(entsql.EQ("id", id)).Limit(1)
	})
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	if len(cards) == 0 {
		return nil, entity.ErrCardNotFound
	}
	return cards[0], nil
}

func (r *CardRepository) FindByContent(ctx context.Context, learnerID string, ref entity.ContentRef) (*entity.Card, error) {
	cards, err := r.selectCards(ctx, func(s *entsql.Selector) {
		s.Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.EQ("content_type", string(ref.Type)),
			entsql.EQ("content_id", ref.ID),
		)).Limit(1)
	})
	if err != nil {
		return nil, fmt.Errorf("find card: %w", err)
	}
	if len(cards) == 0 {
		return nil, nil
	}
	return cards[0], nil
}

func (r *CardRepository) ListDue(ctx context.Context, q repository.DueQuery) ([]*entity.Card, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("learner_id", q.LearnerID),
		entsql.LTE("due_at", toMillis(q.Before)),
	}
	if q.After != nil {
		preds = append(preds, entsql.GT("due_at", toMillis(*q.After)))
	}
	if len(q.ContentTypes) > 0 {
		preds = append(preds, entsql.In("content_type", lo.ToAnySlice(lo.Map(q.ContentTypes, func(t entity.ContentType, _ int) string {
			return string(t)
		}))...))
	}
	cards, err := r.selectCards(ctx, func(s *entsql.Selector) {
		s.Where(entsql.And(preds...)).OrderBy("due_at", "id")
		if q.Limit > 0 {
			s.Limit(q.Limit)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list due cards: %w", err)
	}
	return cards, nil
}

func (r *CardRepository) List(ctx context.Context, filter repository.CardFilter) ([]*entity.Card, int64, error) {
	pred := cardPredicate(filter)

	countQuery, countArgs := r.db.Builder().Select(entsql.Count("*")).
		From(entsql.Table(database.CardsTable)).
		Where(pred).
		Query()
	var total int64
	if err := queryRow(ctx, r.db, countQuery, countArgs, &total); err != nil {
		return nil, 0, fmt.Errorf("count cards: %w", err)
	}

	cards, err := r.selectCards(ctx, func(s *entsql.Selector) {
		s.Where(pred)
		applyCardOrdering(s, filter)
		if filter.Limit > 0 {
			s.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			s.Offset(filter.Offset)
		}
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}
	return cards, total, nil
}

func (r *CardRepository) Delete(ctx context.Context, learnerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := r.db.Builder().Delete(database.CardsTable).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.In("id", lo.ToAnySlice(ids)...),
		)).
		Query()
	var res sql.Result
	if err := exec(ctx, r.db, query, args, &res); err != nil {
		return 0, fmt.Errorf("delete cards: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cards: %w", err)
	}
	return int(affected), nil
}

func (r *CardRepository) CountDueBetween(ctx context.Context, learnerID string, contentType entity.ContentType, from, to time.Time, excludeCardID string) (int, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("learner_id", learnerID),
		entsql.EQ("content_type", string(contentType)),
		entsql.GTE("due_at", toMillis(from)),
		entsql.LT("due_at", toMillis(to)),
	}
	if excludeCardID != "" {
		preds = append(preds, entsql.NEQ("id", excludeCardID))
	}
	query, args := r.db.Builder().Select(entsql.Count("*")).
		From(entsql.Table(database.CardsTable)).
		Where(entsql.And(preds...)).
		Query()
	var n int
	if err := queryRow(ctx, r.db, query, args, &n); err != nil {
		return 0, fmt.Errorf("count due cards: %w", err)
	}
	return n, nil
}

func (r *CardRepository) selectCards(ctx context.Context, build func(*entsql.Selector)) ([]*entity.Card, error) {
	selector := r.db.Builder().Select(cardColumns...).From(entsql.Table(database.CardsTable))
	build(selector)
	query, args := selector.Query()

	var rows entsql.Rows
	if err := r.db.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*entity.Card
	for rows.Next() {
		card, err := scanCard(&rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func cardPredicate(f repository.CardFilter) *entsql.Predicate {
	preds := []*entsql.Predicate{entsql.EQ("learner_id", f.LearnerID)}
	if len(f.ContentTypes) > 0 {
		preds = append(preds, entsql.In("content_type", lo.ToAnySlice(f.ContentTypes)...))
	}
	if len(f.ContentIDs) > 0 {
		preds = append(preds, entsql.In("content_id", lo.ToAnySlice(f.ContentIDs)...))
	}
	if len(f.States) > 0 {
		preds = append(preds, entsql.In("state", lo.ToAnySlice(f.States)...))
	}
	if f.DueAfter != nil {
		preds = append(preds, entsql.GTE("due_at", toMillis(*f.DueAfter)))
	}
	if f.DueBefore != nil {
		preds = append(preds, entsql.LTE("due_at", toMillis(*f.DueBefore)))
	}
	if f.MinLapses != nil {
		preds = append(preds, entsql.GTE("lapses", *f.MinLapses))
	}
	if f.MaxLapses != nil {
		preds = append(preds, entsql.LTE("lapses", *f.MaxLapses))
	}
	if f.MaxStability != nil {
		preds = append(preds, entsql.LTE("stability", *f.MaxStability))
	}
	return entsql.And(preds...)
}

func applyCardOrdering(s *entsql.Selector, f repository.CardFilter) {
	seen := map[string]bool{}
	for _, term := range []struct {
		key  string
		desc bool
	}{
		{key: f.PrimaryKey, desc: f.PrimaryDesc},
		{key: f.SecondaryKey, desc: f.SecondaryDesc},
		{key: "id"},
	} {
		col, ok := repository.OrderColumn(term.key)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		if term.desc {
			s.OrderBy(entsql.Desc(col))
		} else {
			s.OrderBy(entsql.Asc(col))
		}
	}
}

func cardValues(c *entity.Card) []any {
	return []any{
		c.ID, c.LearnerID, string(c.Content.Type), c.Content.ID, string(c.State), toMillis(c.Due),
		c.Stability, c.Difficulty, c.ElapsedDays, c.ScheduledDays, c.Reps, c.Lapses,
		nullMillis(c.LastReview), c.Version, toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	}
}

func scanCard(rows *entsql.Rows) (*entity.Card, error) {
	var (
		c                           entity.Card
		contentType, state          string
		dueAt, createdAt, updatedAt int64
		lastReview                  sql.NullInt64
	)
	if err := rows.Scan(
		&c.ID, &c.LearnerID, &contentType, &c.Content.ID, &state, &dueAt,
		&c.Stability, &c.Difficulty, &c.ElapsedDays, &c.ScheduledDays, &c.Reps, &c.Lapses,
		&lastReview, &c.Version, &createdAt, &updatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan card: %w", err)
	}
	c.Content.Type = entity.ContentType(contentType)
	c.State = entity.State(state)
	c.Due = fromMillis(dueAt)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	if lastReview.Valid {
		t := fromMillis(lastReview.Int64)
		c.LastReview = &t
	}
	return &c, nil
}
