package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/repository"
)

// ContentCatalog is the SQL-backed content lookup. Payloads are stored as JSON
// and decoded by content type.
type ContentCatalog struct {
	db    *database.DB
	clock func() time.Time
}

// NewContentCatalog constructs a SQL-backed content catalog.
func NewContentCatalog(db *database.DB) repository.ContentCatalog {
	return &ContentCatalog{db: db, clock: time.Now}
}

func (c *ContentCatalog) Lookup(ctx context.Context, ref entity.ContentRef) (entity.Content, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	query, args := c.db.Builder().Select("payload").
		From(entsql.Table(database.ContentsTable)).
		Where(entsql.And(
			entsql.EQ("content_type", string(ref.Type)),
			entsql.EQ("content_id", ref.ID),
		)).
		Query()

	var payload string
	err := translateError(queryRow(ctx, c.db, query, args, &payload), nil, entity.ErrContentNotFound)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("lookup content %s: %w", ref, err)
	}
	return decodeContent(ref, []byte(payload))
}

func (c *ContentCatalog) Register(ctx context.Context, content entity.Content) error {
	ref := content.Ref()
	if err := ref.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode content %s: %w", ref, err)
	}
	query, args := c.db.Builder().Insert(database.ContentsTable).
		Columns("content_type", "content_id", "title", "payload", "created_at").
		Values(string(ref.Type), ref.ID, content.Title(), string(payload), toMillis(c.clock())).
		OnConflict(
			entsql.ConflictColumns("content_type", "content_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("title")
				u.SetExcluded("payload")
			}),
		).
		Query()
	if err := exec(ctx, c.db, query, args, nil); err != nil {
		return fmt.Errorf("register content %s: %w", ref, err)
	}
	return nil
}

func decodeContent(ref entity.ContentRef, payload []byte) (entity.Content, error) {
	switch ref.Type {
	case entity.ContentFlashcard:
		var v entity.FlashcardContent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode flashcard %s: %w", ref.ID, err)
		}
		v.ID = ref.ID
		return v, nil
	case entity.ContentQuestion:
		var v entity.QuestionContent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", ref.ID, err)
		}
		v.ID = ref.ID
		return v, nil
	case entity.ContentErrorNote:
		var v entity.ErrorNoteContent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode error note %s: %w", ref.ID, err)
		}
		v.ID = ref.ID
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidContentType, ref.Type)
	}
}
