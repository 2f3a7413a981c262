package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/scheduling"
)

var reviewNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type reviewFixture struct {
	uc        *reviewUsecase
	cards     *fakeCardRepo
	prefs     *fakePrefsRepo
	catalog   *fakeCatalog
	publisher *fakePublisher
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := &reviewFixture{
		cards:     newFakeCardRepo(),
		prefs:     newFakePrefsRepo(),
		publisher: &fakePublisher{},
		catalog: newFakeCatalog(
			entity.FlashcardContent{ID: "f1", DeckID: "d1", Front: "ubiquitous"},
			entity.FlashcardContent{ID: "f2", DeckID: "d1", Front: "ephemeral"},
			entity.QuestionContent{ID: "q1", BankID: "b1", Subject: "algebra"},
			entity.ErrorNoteContent{ID: "e1", SourceQuestionID: "q1", Subject: "sign error"},
		),
	}
	uc := NewReviewUsecase(f.cards, f.prefs, f.catalog, f.publisher, testLogger(), DefaultSettings()).(*reviewUsecase)
	uc.clock = fixedClock(reviewNow)
	seq := 0
	uc.newID = func() string {
		seq++
		return "id-" + string(rune('a'+seq-1))
	}
	f.uc = uc
	return f
}

var f1 = entity.ContentRef{Type: entity.ContentFlashcard, ID: "f1"}

func TestCreateCardIsIdempotent(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	first, err := f.uc.CreateCard(ctx, "learner-1", f1)
	if err != nil {
		t.Fatalf("CreateCard returned error: %v", err)
	}
	if first.State != entity.StateNew || first.Stability != entity.InitialStability || first.Difficulty != entity.InitialDifficulty {
		t.Fatalf("unexpected new card: %+v", first)
	}
	if !first.Due.Equal(reviewNow) {
		t.Fatalf("expected new card due now, got %v", first.Due)
	}

	second, err := f.uc.CreateCard(ctx, "learner-1", f1)
	if err != nil {
		t.Fatalf("second CreateCard returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same card, got %s and %s", first.ID, second.ID)
	}
}

func TestCreateCardValidation(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	if _, err := f.uc.CreateCard(ctx, "", f1); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected validation error for missing learner, got %v", err)
	}
	if _, err := f.uc.CreateCard(ctx, "learner-1", entity.ContentRef{Type: "video", ID: "v1"}); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	missing := entity.ContentRef{Type: entity.ContentFlashcard, ID: "nope"}
	if _, err := f.uc.CreateCard(ctx, "learner-1", missing); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected not found for unknown content, got %v", err)
	}
}

func TestSubmitReviewNewCardEasy(t *testing.T) {
	f := newReviewFixture(t)

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{
		Content: f1, Grade: entity.GradeEasy, Active: true, TimeSpentMs: 2500,
	})
	if err != nil {
		t.Fatalf("SubmitReview returned error: %v", err)
	}
	if card.Stability != 5.0 || card.ScheduledDays != 5 || card.State != entity.StateLearning {
		t.Fatalf("unexpected card after EASY: stability=%v days=%d state=%s", card.Stability, card.ScheduledDays, card.State)
	}
	if want := reviewNow.AddDate(0, 0, 5); !card.Due.Equal(want) {
		t.Fatalf("due = %v, want %v", card.Due, want)
	}
	if card.Version != 2 {
		t.Fatalf("expected version 2 after one update, got %d", card.Version)
	}

	events := f.publisher.published()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	committed, ok := events[0].(entity.ReviewCommitted)
	if !ok {
		t.Fatalf("unexpected event type %T", events[0])
	}
	if !committed.Review.Recomputed || committed.Review.Grade != entity.GradeEasy || committed.Review.TimeSpentMs != 2500 {
		t.Fatalf("unexpected review event: %+v", committed.Review)
	}
	if committed.Review.CardID != card.ID || committed.Review.ScheduledDays != 5 {
		t.Fatalf("review event does not match card: %+v", committed.Review)
	}
}

func TestSubmitReviewNewCardAgain(t *testing.T) {
	f := newReviewFixture(t)

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{
		Content: f1, Grade: entity.GradeAgain, Active: true,
	})
	if err != nil {
		t.Fatalf("SubmitReview returned error: %v", err)
	}
	if card.ScheduledDays != 1 || card.State != entity.StateRelearning || card.Lapses != 1 {
		t.Fatalf("unexpected card after AGAIN: %+v", card)
	}
	if want := reviewNow.AddDate(0, 0, 1); !card.Due.Equal(want) {
		t.Fatalf("due = %v, want %v", card.Due, want)
	}
}

func TestSubmitReviewPassiveBelowThresholdOnlyTouches(t *testing.T) {
	f := newReviewFixture(t)
	last := reviewNow.AddDate(0, 0, -2)
	seeded := f.cards.put(&entity.Card{
		ID: "c1", LearnerID: "learner-1", Content: f1,
		Due: last.AddDate(0, 0, 10), Stability: 12, Difficulty: 4.2,
		ScheduledDays: 10, Reps: 4, State: entity.StateReview, LastReview: &last,
	})

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{
		Content: f1, Grade: entity.GradeGood, Active: false,
	})
	if err != nil {
		t.Fatalf("SubmitReview returned error: %v", err)
	}
	if card.Stability != seeded.Stability || card.Difficulty != seeded.Difficulty || !card.Due.Equal(seeded.Due) {
		t.Fatalf("passive review changed memory state: %+v", card)
	}
	if card.Reps != seeded.Reps || card.ScheduledDays != seeded.ScheduledDays {
		t.Fatalf("passive review changed counters: %+v", card)
	}
	if card.LastReview == nil || !card.LastReview.Equal(reviewNow) {
		t.Fatalf("expected last review stamped at now, got %v", card.LastReview)
	}
	committed := f.publisher.published()[0].(entity.ReviewCommitted)
	if committed.Review.Recomputed {
		t.Fatal("expected passive review to be recorded as not recomputed")
	}
}

func TestSubmitReviewByCardIDChecksOwnership(t *testing.T) {
	f := newReviewFixture(t)
	f.cards.put(entity.NewCard("c1", "learner-1", f1, reviewNow))

	_, err := f.uc.SubmitReview(context.Background(), "learner-2", entity.ReviewSubmission{CardID: "c1", Grade: entity.GradeGood, Active: true})
	if !errors.Is(err, entity.ErrUnauthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{CardID: "c1", Grade: entity.GradeGood, Active: true})
	if err != nil {
		t.Fatalf("SubmitReview by card id returned error: %v", err)
	}
	if card.ID != "c1" || card.ScheduledDays != 3 {
		t.Fatalf("unexpected card: %+v", card)
	}

	_, err = f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{CardID: "missing", Grade: entity.GradeGood})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitReviewRejectsUnknownGrade(t *testing.T) {
	f := newReviewFixture(t)
	_, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{Content: f1, Grade: 7})
	if !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitReviewRetriesConflicts(t *testing.T) {
	f := newReviewFixture(t)
	f.cards.put(entity.NewCard("c1", "learner-1", f1, reviewNow))
	f.cards.conflicts = 2

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{Content: f1, Grade: entity.GradeGood, Active: true})
	if err != nil {
		t.Fatalf("expected conflicts to be retried, got %v", err)
	}
	if card.Version != 4 {
		t.Fatalf("expected version 4 after two concurrent bumps and one write, got %d", card.Version)
	}
	if f.cards.updates != 1 {
		t.Fatalf("expected exactly one stored update, got %d", f.cards.updates)
	}
}

func TestSubmitReviewPropagatesConflictAfterRetries(t *testing.T) {
	f := newReviewFixture(t)
	f.cards.put(entity.NewCard("c1", "learner-1", f1, reviewNow))
	f.cards.conflicts = 10

	_, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{Content: f1, Grade: entity.GradeGood, Active: true})
	if !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(f.publisher.published()) != 0 {
		t.Fatal("no event may be published for a failed review")
	}
}

func TestSubmitReviewDegradesOnAuxiliaryFailures(t *testing.T) {
	f := newReviewFixture(t)
	f.prefs.err = errUnavailable
	f.publisher.err = errUnavailable

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{Content: f1, Grade: entity.GradeGood, Active: true})
	if err != nil {
		t.Fatalf("auxiliary failures must not fail the review: %v", err)
	}
	if card.ScheduledDays != 3 {
		t.Fatalf("expected balanced defaults to apply, got %d days", card.ScheduledDays)
	}
}

func TestSubmitReviewSmartPlacementSkipsFullDay(t *testing.T) {
	f := newReviewFixture(t)
	f.prefs.items["learner-1"] = &entity.LearnerPreferences{
		LearnerID: "learner-1",
		Placement: entity.PlacementSmart,
		DailyCaps: map[entity.ContentType]int{entity.ContentFlashcard: 2},
	}
	ideal := reviewNow.AddDate(0, 0, 3)
	for _, id := range []string{"p1", "p2"} {
		c := entity.NewCard(id, "learner-1", entity.ContentRef{Type: entity.ContentFlashcard, ID: id}, reviewNow)
		c.Due = ideal
		f.cards.put(c)
	}

	card, err := f.uc.SubmitReview(context.Background(), "learner-1", entity.ReviewSubmission{Content: f1, Grade: entity.GradeGood, Active: true})
	if err != nil {
		t.Fatalf("SubmitReview returned error: %v", err)
	}
	if want := ideal.AddDate(0, 0, 1); !card.Due.Equal(want) {
		t.Fatalf("due = %v, want next day below cap %v", card.Due, want)
	}
	if card.ScheduledDays != 3 {
		t.Fatalf("scheduled days must keep the processor output, got %d", card.ScheduledDays)
	}
}

func TestReviewedCardLeavesDueQueue(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	if _, err := f.uc.CreateCard(ctx, "learner-1", f1); err != nil {
		t.Fatalf("CreateCard returned error: %v", err)
	}

	due, err := f.uc.GetDueCards(ctx, "learner-1", DueFilter{})
	if err != nil {
		t.Fatalf("GetDueCards returned error: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected new card to be due, got %d", len(due))
	}

	for _, g := range entity.Grades {
		if _, err := f.uc.SubmitReview(ctx, "learner-1", entity.ReviewSubmission{Content: f1, Grade: g, Active: true}); err != nil {
			t.Fatalf("SubmitReview(%s) returned error: %v", g, err)
		}
		due, err = f.uc.GetDueCards(ctx, "learner-1", DueFilter{})
		if err != nil {
			t.Fatalf("GetDueCards returned error: %v", err)
		}
		if len(due) != 0 {
			t.Fatalf("card reviewed with %s must not be due before its due date", g)
		}
	}
}

func seedQueue(f *reviewFixture) {
	add := func(id string, ref entity.ContentRef, overdue time.Duration, stability float64) {
		c := entity.NewCard(id, "learner-1", ref, reviewNow.AddDate(0, 0, -30))
		c.Due = reviewNow.Add(-overdue)
		c.Stability = stability
		c.State = entity.StateReview
		f.cards.put(c)
	}
	add("flash", f1, 5*24*time.Hour, 1)
	add("note", entity.ContentRef{Type: entity.ContentErrorNote, ID: "e1"}, 24*time.Hour, 1)
	add("question", entity.ContentRef{Type: entity.ContentQuestion, ID: "q1"}, 6*24*time.Hour, 9.9)
	future := entity.NewCard("later", "learner-1", entity.ContentRef{Type: entity.ContentFlashcard, ID: "f2"}, reviewNow)
	future.Due = reviewNow.Add(time.Hour)
	f.cards.put(future)
}

func dueIDs(cards []DueCard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Card.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetDueCardsOrdering(t *testing.T) {
	f := newReviewFixture(t)
	seedQueue(f)
	ctx := context.Background()

	due, err := f.uc.GetDueCards(ctx, "learner-1", DueFilter{})
	if err != nil {
		t.Fatalf("GetDueCards returned error: %v", err)
	}
	if got, want := dueIDs(due), []string{"question", "flash", "note"}; !equalIDs(got, want) {
		t.Fatalf("traditional order = %v, want %v", got, want)
	}

	f.prefs.items["learner-1"] = &entity.LearnerPreferences{LearnerID: "learner-1", Placement: entity.PlacementSmart}
	due, err = f.uc.GetDueCards(ctx, "learner-1", DueFilter{})
	if err != nil {
		t.Fatalf("GetDueCards returned error: %v", err)
	}
	if got, want := dueIDs(due), []string{"flash", "question", "note"}; !equalIDs(got, want) {
		t.Fatalf("smart order = %v, want %v", got, want)
	}
	if due[0].OverdueDays != 5 {
		t.Fatalf("expected 5 overdue days, got %v", due[0].OverdueDays)
	}

	due, err = f.uc.GetDueCards(ctx, "learner-1", DueFilter{ContentTypes: []entity.ContentType{entity.ContentErrorNote}})
	if err != nil {
		t.Fatalf("GetDueCards returned error: %v", err)
	}
	if got := dueIDs(due); !equalIDs(got, []string{"note"}) {
		t.Fatalf("filtered queue = %v", got)
	}

	if _, err := f.uc.GetDueCards(ctx, "learner-1", DueFilter{ContentTypes: []entity.ContentType{"video"}}); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAllocateByDistribution(t *testing.T) {
	var ranked []scheduling.Ranked
	for i, id := range []string{"f1", "f2", "f3", "f4", "q1", "q2"} {
		typ := entity.ContentFlashcard
		if id[0] == 'q' {
			typ = entity.ContentQuestion
		}
		ranked = append(ranked, scheduling.Ranked{
			Card:  &entity.Card{ID: id, Content: entity.ContentRef{Type: typ, ID: id}},
			Score: float64(100 - i),
		})
	}
	dist := map[entity.ContentType]float64{entity.ContentFlashcard: 0.5, entity.ContentQuestion: 0.5}

	got := allocateByDistribution(ranked, dist, 4)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.Card.ID)
	}
	if want := []string{"f1", "f2", "q1", "q2"}; !equalIDs(ids, want) {
		t.Fatalf("allocation = %v, want %v", ids, want)
	}

	if got := allocateByDistribution(ranked, dist, 0); len(got) != len(ranked) {
		t.Fatalf("zero limit must keep every card, got %d", len(got))
	}

	notesOnly := map[entity.ContentType]float64{entity.ContentErrorNote: 1}
	got = allocateByDistribution(ranked, notesOnly, 3)
	ids = ids[:0]
	for _, r := range got {
		ids = append(ids, r.Card.ID)
	}
	if want := []string{"f1", "f2", "f3"}; !equalIDs(ids, want) {
		t.Fatalf("unused quota must fall back to rank order, got %v", ids)
	}
}

func TestPreviewReview(t *testing.T) {
	f := newReviewFixture(t)
	f.cards.put(entity.NewCard("c1", "learner-1", f1, reviewNow))

	outcomes, err := f.uc.PreviewReview(context.Background(), "learner-1", "c1")
	if err != nil {
		t.Fatalf("PreviewReview returned error: %v", err)
	}
	if len(outcomes) != 4 {
		t.Fatalf("expected four outcomes, got %d", len(outcomes))
	}
	if outcomes[entity.GradeEasy].ScheduledDays < outcomes[entity.GradeGood].ScheduledDays ||
		outcomes[entity.GradeGood].ScheduledDays < outcomes[entity.GradeHard].ScheduledDays {
		t.Fatalf("preview intervals are not ordered: %+v", outcomes)
	}
	if stored := f.cards.get("c1"); stored.Version != 1 || stored.Reps != 0 {
		t.Fatal("preview must not store anything")
	}
	if _, err := f.uc.PreviewReview(context.Background(), "learner-2", "c1"); !errors.Is(err, entity.ErrUnauthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}
