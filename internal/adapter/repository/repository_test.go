package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/config"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/repository"
)

var epoch = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "adapter.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func flashcard(id string) entity.ContentRef {
	return entity.ContentRef{Type: entity.ContentFlashcard, ID: id}
}

func TestCardRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(newTestDB(t))

	card := entity.NewCard("c1", "learner-1", flashcard("f1"), epoch)
	created, err := repo.Create(ctx, card)
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.Version)

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateNew, got.State)
	assert.Equal(t, flashcard("f1"), got.Content)
	assert.True(t, got.Due.Equal(epoch))
	assert.Nil(t, got.LastReview)

	found, err := repo.FindByContent(ctx, "learner-1", flashcard("f1"))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "c1", found.ID)

	missing, err := repo.FindByContent(ctx, "learner-2", flashcard("f1"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCardRepositoryDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(newTestDB(t))

	_, err := repo.Create(ctx, entity.NewCard("c1", "learner-1", flashcard("f1"), epoch))
	require.NoError(t, err)
	_, err = repo.Create(ctx, entity.NewCard("c2", "learner-1", flashcard("f1"), epoch))
	assert.ErrorIs(t, err, entity.ErrDuplicateCard)
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestCardRepositoryOptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(newTestDB(t))

	created, err := repo.Create(ctx, entity.NewCard("c1", "learner-1", flashcard("f1"), epoch))
	require.NoError(t, err)

	next := created.Clone()
	next.State = entity.StateLearning
	next.ScheduledDays = 3
	next.Reps = 1
	reviewed := epoch.Add(time.Hour)
	next.LastReview = &reviewed
	next.Due = epoch.AddDate(0, 0, 3)

	updated, err := repo.Update(ctx, next)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Version)

	stale := created.Clone()
	stale.Reps = 7
	_, err = repo.Update(ctx, stale)
	assert.ErrorIs(t, err, entity.ErrVersionMismatch)
	assert.True(t, entity.IsRetryable(err))

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reps)
	assert.Equal(t, entity.StateLearning, got.State)
	require.NotNil(t, got.LastReview)
	assert.True(t, got.LastReview.Equal(reviewed))

	ghost := created.Clone()
	ghost.ID = "missing"
	_, err = repo.Update(ctx, ghost)
	assert.ErrorIs(t, err, entity.ErrCardNotFound)
}

func seedCards(t *testing.T, repo repository.CardRepository) {
	t.Helper()
	ctx := context.Background()
	specs := []struct {
		id     string
		ref    entity.ContentRef
		due    time.Time
		lapses int
		state  entity.State
	}{
		{"c1", flashcard("f1"), epoch.AddDate(0, 0, -2), 0, entity.StateReview},
		{"c2", entity.ContentRef{Type: entity.ContentQuestion, ID: "q1"}, epoch.AddDate(0, 0, -1), 3, entity.StateRelearning},
		{"c3", entity.ContentRef{Type: entity.ContentErrorNote, ID: "e1"}, epoch, 1, entity.StateReview},
		{"c4", flashcard("f2"), epoch.AddDate(0, 0, 2), 0, entity.StateLearning},
	}
	for _, s := range specs {
		c := entity.NewCard(s.id, "learner-1", s.ref, epoch.AddDate(0, 0, -10))
		c.Due = s.due
		c.Lapses = s.lapses
		c.State = s.state
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}
	other := entity.NewCard("x1", "learner-2", flashcard("f1"), epoch)
	_, err := repo.Create(ctx, other)
	require.NoError(t, err)
}

func ids(cards []*entity.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestCardRepositoryListDue(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(newTestDB(t))
	seedCards(t, repo)

	due, err := repo.ListDue(ctx, repository.DueQuery{LearnerID: "learner-1", Before: epoch})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(due))

	limited, err := repo.ListDue(ctx, repository.DueQuery{
		LearnerID:    "learner-1",
		Before:       epoch,
		ContentTypes: []entity.ContentType{entity.ContentQuestion, entity.ContentErrorNote},
		Limit:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids(limited))

	after := epoch
	upcoming, err := repo.ListDue(ctx, repository.DueQuery{LearnerID: "learner-1", After: &after, Before: epoch.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.Equal(t, []string{"c4"}, ids(upcoming))
}

func TestCardRepositoryListWithFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(newTestDB(t))
	seedCards(t, repo)

	filter, err := repository.ParseCardFilter(&repository.ListCardQuery{
		LearnerID:   "learner-1",
		FilterOrder: repository.FilterOrder{Filter: "lapses >= 1", OrderBy: "lapses desc"},
	})
	require.NoError(t, err)
	cards, total, err := repo.List(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"c2", "c3"}, ids(cards))

	filter, err = repository.ParseCardFilter(&repository.ListCardQuery{
		LearnerID:   "learner-1",
		Pagination:  repository.Pagination{PageNo: 2, PageSize: 2},
		FilterOrder: repository.FilterOrder{Filter: "content_type in ['flashcard', 'question', 'error_note']"},
	})
	require.NoError(t, err)
	cards, total, err = repo.List(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"c3", "c4"}, ids(cards))

	for _, c := range cards {
		assert.True(t, filter.Matches(c))
	}
}

func TestCardRepositoryCountAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewCardRepository(newTestDB(t))
	seedCards(t, repo)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := repo.CountDueBetween(ctx, "learner-1", entity.ContentFlashcard, from, from.AddDate(0, 0, 1), "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CountDueBetween(ctx, "learner-1", entity.ContentFlashcard, from, from.AddDate(0, 0, 1), "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	deleted, err := repo.Delete(ctx, "learner-1", []string{"c1", "c2", "x1"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = repo.GetByID(ctx, "x1")
	require.NoError(t, err)
}

func TestPreferencesRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferencesRepository(newTestDB(t))

	got, err := repo.Get(ctx, "learner-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	exam := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	maxInterval := 21
	prefs := &entity.LearnerPreferences{
		LearnerID:           "learner-1",
		Mode:                entity.ModeIntensive,
		AutoAdjust:          true,
		ExamDate:            &exam,
		MaxIntervalOverride: &maxInterval,
		Placement:           entity.PlacementSmart,
		StudyDays:           entity.WeekdaySet{time.Monday, time.Wednesday},
		DailyCaps:           map[entity.ContentType]int{entity.ContentFlashcard: 2},
		DailyCapacity:       40,
		Distribution:        map[entity.ContentType]float64{entity.ContentQuestion: 1},
		Timezone:            "Europe/Berlin",
		UpdatedAt:           epoch,
	}
	_, err = repo.Save(ctx, prefs)
	require.NoError(t, err)

	got, err = repo.Get(ctx, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.ModeIntensive, got.Mode)
	assert.True(t, got.AutoAdjust)
	require.NotNil(t, got.ExamDate)
	assert.True(t, got.ExamDate.Equal(exam))
	require.NotNil(t, got.MaxIntervalOverride)
	assert.Equal(t, 21, *got.MaxIntervalOverride)
	assert.Equal(t, entity.WeekdaySet{time.Monday, time.Wednesday}, got.StudyDays)
	assert.Equal(t, 2, got.DailyCaps[entity.ContentFlashcard])
	assert.Equal(t, 1.0, got.Distribution[entity.ContentQuestion])
	assert.Equal(t, "Europe/Berlin", got.Timezone)

	prefs.Mode = entity.ModeRelaxed
	prefs.ExamDate = nil
	prefs.MaxIntervalOverride = nil
	_, err = repo.Save(ctx, prefs)
	require.NoError(t, err)

	got, err = repo.Get(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ModeRelaxed, got.Mode)
	assert.Nil(t, got.ExamDate)
	assert.Nil(t, got.MaxIntervalOverride)
}

func TestReviewLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewLogRepository(newTestDB(t))

	card := entity.NewCard("c1", "learner-1", flashcard("f1"), epoch)
	card.State = entity.StateLearning
	card.ScheduledDays = 3
	sub := entity.ReviewSubmission{Content: card.Content, Grade: entity.GradeGood, TimeSpentMs: 1200, Active: true}

	first := entity.NewReviewEvent("e1", sub, card, true, epoch)
	second := entity.NewReviewEvent("e2", sub, card, false, epoch.Add(time.Hour))
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))
	require.NoError(t, repo.Append(ctx, first), "append must be idempotent")

	events, err := repo.ListByCard(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.False(t, events[0].Recomputed)
	assert.Equal(t, entity.GradeGood, events[1].Grade)
	assert.True(t, events[1].Active)
	assert.EqualValues(t, 1200, events[1].TimeSpentMs)

	limited, err := repo.ListByCard(ctx, "c1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestContentCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewContentCatalog(newTestDB(t))

	contents := []entity.Content{
		entity.FlashcardContent{ID: "f1", DeckID: "d1", Front: "ephemeral"},
		entity.QuestionContent{ID: "q1", BankID: "b1", Subject: "algebra", Difficulty: 3},
		entity.ErrorNoteContent{ID: "e1", SourceQuestionID: "q1", Subject: "sign error"},
	}
	for _, c := range contents {
		require.NoError(t, catalog.Register(ctx, c))
	}
	for _, want := range contents {
		got, err := catalog.Lookup(ctx, want.Ref())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, catalog.Register(ctx, entity.FlashcardContent{ID: "f1", DeckID: "d1", Front: "fleeting"}))
	got, err := catalog.Lookup(ctx, flashcard("f1"))
	require.NoError(t, err)
	assert.Equal(t, "fleeting", got.Title())

	_, err = catalog.Lookup(ctx, flashcard("missing"))
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}

func TestTranslateError(t *testing.T) {
	dup := errors.New("dup")
	nf := errors.New("nf")
	assert.NoError(t, translateError(nil, dup, nf))
	assert.Equal(t, dup, translateError(errors.New("UNIQUE constraint failed: cards.id"), dup, nf))
	other := errors.New("boom")
	assert.Equal(t, other, translateError(other, dup, nf))
}
