package repository

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/pkg/filterexpr"
)

// ListCardQuery selects a learner's cards with a filter expression, ordering and paging.
type ListCardQuery struct {
	Pagination
	FilterOrder

	LearnerID string
}

// CardFilter is the typed form of a card filter expression.
type CardFilter struct {
	LearnerID    string
	ContentTypes []string
	ContentIDs   []string
	States       []string
	DueAfter     *time.Time
	DueBefore    *time.Time
	MinLapses    *int
	MaxLapses    *int
	MaxStability *float64

	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool

	Limit  int
	Offset int
}

// DueQuery selects cards due inside (After, Before].
type DueQuery struct {
	LearnerID    string
	Before       time.Time
	After        *time.Time
	ContentTypes []entity.ContentType
	Limit        int
}

// CardRepository persists learning item cards.
type CardRepository interface {
	// Create inserts a new card, failing with entity.ErrDuplicateCard when the learner already has one for the content.
	Create(ctx context.Context, card *entity.Card) (*entity.Card, error)
	// Update writes the card if its stored version still equals card.Version and returns it with the version bumped.
	Update(ctx context.Context, card *entity.Card) (*entity.Card, error)
	GetByID(ctx context.Context, id string) (*entity.Card, error)
	// FindByContent returns nil without error when the learner has no card for ref.
	FindByContent(ctx context.Context, learnerID string, ref entity.ContentRef) (*entity.Card, error)
	ListDue(ctx context.Context, query DueQuery) ([]*entity.Card, error)
	List(ctx context.Context, filter CardFilter) ([]*entity.Card, int64, error)
	Delete(ctx context.Context, learnerID string, ids []string) (int, error)
	CountDueBetween(ctx context.Context, learnerID string, contentType entity.ContentType, from, to time.Time, excludeCardID string) (int, error)
}

func appendString(field reflect.Value, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string literal, got %T", value)
	}
	field.Set(reflect.Append(field, reflect.ValueOf(s)))
	return nil
}

// CardFilterSchema whitelists the fields and operators of card filter expressions, e.g.
//
//	content_type in ['flashcard', 'question'] && due <= timestamp('2025-01-01T00:00:00Z') && lapses >= 2
var CardFilterSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"content_type": {
			Kind:   filterexpr.KindString,
			Ops:    map[filterexpr.Op]string{filterexpr.OpEQ: "ContentTypes", filterexpr.OpIN: "ContentTypes"},
			Setter: filterSetter,
			Enum:   []string{string(entity.ContentFlashcard), string(entity.ContentQuestion), string(entity.ContentErrorNote)},
		},
		"content_id": {
			Kind:   filterexpr.KindString,
			Ops:    map[filterexpr.Op]string{filterexpr.OpEQ: "ContentIDs", filterexpr.OpIN: "ContentIDs"},
			Setter: filterSetter,
		},
		"state": {
			Kind:   filterexpr.KindString,
			Ops:    map[filterexpr.Op]string{filterexpr.OpEQ: "States", filterexpr.OpIN: "States"},
			Setter: filterSetter,
			Enum:   []string{string(entity.StateNew), string(entity.StateLearning), string(entity.StateReview), string(entity.StateRelearning)},
		},
		"due": {
			Kind: filterexpr.KindTimestamp,
			Ops:  map[filterexpr.Op]string{filterexpr.OpGTE: "DueAfter", filterexpr.OpLTE: "DueBefore"},
		},
		"lapses": {
			Kind: filterexpr.KindNumber,
			Ops:  map[filterexpr.Op]string{filterexpr.OpGTE: "MinLapses", filterexpr.OpLTE: "MaxLapses"},
		},
		"stability": {
			Kind: filterexpr.KindNumber,
			Ops:  map[filterexpr.Op]string{filterexpr.OpLTE: "MaxStability"},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary: "due",
		FallbackKey:    "id",
		Fields: map[string]filterexpr.OrderField{
			"due":        {Expr: "due_at"},
			"created_at": {Expr: "created_at"},
			"updated_at": {Expr: "updated_at"},
			"stability":  {Expr: "stability"},
			"difficulty": {Expr: "difficulty"},
			"lapses":     {Expr: "lapses"},
			"id":         {Expr: "id"},
		},
	},
}

func filterSetter(field reflect.Value, value any) error {
	switch v := value.(type) {
	case []string:
		for _, s := range v {
			if err := appendString(field, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return appendString(field, value)
	}
}

// ParseCardFilter binds a list query into a typed CardFilter. Malformed expressions are validation errors.
func ParseCardFilter(query *ListCardQuery) (CardFilter, error) {
	if query == nil {
		query = &ListCardQuery{}
	}
	filter := CardFilter{LearnerID: query.LearnerID}
	if err := filterexpr.Bind(query, &filter, CardFilterSchema); err != nil {
		return CardFilter{}, entity.Validationf("card filter: %v", err)
	}
	if query.PageSize > 0 {
		filter.Limit = int(query.PageSize)
		filter.Offset = int(query.Offset())
	}
	return filter, nil
}

// OrderColumn maps an order key to its column.
func OrderColumn(key string) (string, bool) {
	f, ok := CardFilterSchema.Order.Fields[key]
	return f.Expr, ok
}

// Matches evaluates the filter against a card in memory.
func (f CardFilter) Matches(c *entity.Card) bool {
	if f.LearnerID != "" && c.LearnerID != f.LearnerID {
		return false
	}
	if len(f.ContentTypes) > 0 && !lo.Contains(f.ContentTypes, string(c.Content.Type)) {
		return false
	}
	if len(f.ContentIDs) > 0 && !lo.Contains(f.ContentIDs, c.Content.ID) {
		return false
	}
	if len(f.States) > 0 && !lo.Contains(f.States, string(c.State)) {
		return false
	}
	if f.DueAfter != nil && c.Due.Before(*f.DueAfter) {
		return false
	}
	if f.DueBefore != nil && c.Due.After(*f.DueBefore) {
		return false
	}
	if f.MinLapses != nil && c.Lapses < *f.MinLapses {
		return false
	}
	if f.MaxLapses != nil && c.Lapses > *f.MaxLapses {
		return false
	}
	if f.MaxStability != nil && c.Stability > *f.MaxStability {
		return false
	}
	return true
}
