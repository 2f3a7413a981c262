package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeCardRepo struct {
	mu    sync.RWMutex
	items map[string]*entity.Card
	// conflicts makes the next N updates fail as if another writer got there first.
	conflicts    int
	updates      int
	listDueCalls int
	countErr     error
}

func newFakeCardRepo() *fakeCardRepo {
	return &fakeCardRepo{items: make(map[string]*entity.Card)}
}

func (r *fakeCardRepo) put(c *entity.Card) *entity.Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := c.Clone()
	if copy.Version == 0 {
		copy.Version = 1
	}
	r.items[copy.ID] = copy
	return copy.Clone()
}

func (r *fakeCardRepo) get(id string) *entity.Card {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[id].Clone()
}

func (r *fakeCardRepo) Create(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.LearnerID == card.LearnerID && c.Content == card.Content {
			return nil, entity.ErrDuplicateCard
		}
	}
	copy := card.Clone()
	copy.Version = 1
	r.items[copy.ID] = copy
	return copy.Clone(), nil
}

func (r *fakeCardRepo) Update(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[card.ID]
	if !ok {
		return nil, entity.ErrCardNotFound
	}
	if r.conflicts > 0 {
		r.conflicts--
		existing.Version++
	}
	if existing.Version != card.Version {
		return nil, entity.ErrVersionMismatch
	}
	copy := card.Clone()
	copy.Version++
	r.items[copy.ID] = copy
	r.updates++
	return copy.Clone(), nil
}

func (r *fakeCardRepo) GetByID(ctx context.Context, id string) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, entity.ErrCardNotFound
	}
	return c.Clone(), nil
}

func (r *fakeCardRepo) FindByContent(ctx context.Context, learnerID string, ref entity.ContentRef) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.LearnerID == learnerID && c.Content == ref {
			return c.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeCardRepo) sorted(keep func(*entity.Card) bool) []*entity.Card {
	var out []*entity.Card
	for _, c := range r.items {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *fakeCardRepo) ListDue(ctx context.Context, q repository.DueQuery) ([]*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.listDueCalls++
	r.mu.Unlock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sorted(func(c *entity.Card) bool {
		if c.LearnerID != q.LearnerID || c.Due.After(q.Before) {
			return false
		}
		if q.After != nil && !c.Due.After(*q.After) {
			return false
		}
		if len(q.ContentTypes) > 0 {
			found := false
			for _, t := range q.ContentTypes {
				found = found || t == c.Content.Type
			}
			return found
		}
		return true
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *fakeCardRepo) List(ctx context.Context, filter repository.CardFilter) ([]*entity.Card, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sorted(filter.Matches)
	total := int64(len(out))
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*entity.Card{}, total, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (r *fakeCardRepo) Delete(ctx context.Context, learnerID string, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if c, ok := r.items[id]; ok && c.LearnerID == learnerID {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeCardRepo) CountDueBetween(ctx context.Context, learnerID string, contentType entity.ContentType, from, to time.Time, excludeCardID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.items {
		if c.LearnerID == learnerID && c.Content.Type == contentType && c.ID != excludeCardID &&
			!c.Due.Before(from) && c.Due.Before(to) {
			n++
		}
	}
	return n, nil
}

type fakePrefsRepo struct {
	mu    sync.RWMutex
	items map[string]*entity.LearnerPreferences
	err   error
}

func newFakePrefsRepo() *fakePrefsRepo {
	return &fakePrefsRepo{items: make(map[string]*entity.LearnerPreferences)}
}

func (r *fakePrefsRepo) Get(ctx context.Context, learnerID string) (*entity.LearnerPreferences, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[learnerID]
	if !ok {
		return nil, nil
	}
	copy := *p
	return &copy, nil
}

func (r *fakePrefsRepo) Save(ctx context.Context, prefs *entity.LearnerPreferences) (*entity.LearnerPreferences, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *prefs
	r.items[prefs.LearnerID] = &copy
	out := copy
	return &out, nil
}

type fakeCatalog struct {
	mu    sync.RWMutex
	items map[entity.ContentRef]entity.Content
	err   error
}

func newFakeCatalog(contents ...entity.Content) *fakeCatalog {
	c := &fakeCatalog{items: make(map[entity.ContentRef]entity.Content)}
	for _, content := range contents {
		c.items[content.Ref()] = content
	}
	return c
}

func (c *fakeCatalog) Lookup(ctx context.Context, ref entity.ContentRef) (entity.Content, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.items[ref]
	if !ok {
		return nil, entity.ErrContentNotFound
	}
	return content, nil
}

func (c *fakeCatalog) Register(ctx context.Context, content entity.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[content.Ref()] = content
	return nil
}

func (c *fakeCatalog) remove(ref entity.ContentRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, ref)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []entity.Event
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event entity.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []entity.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.Event(nil), p.events...)
}

type fakeReviewLogs struct {
	mu     sync.Mutex
	events map[string]*entity.ReviewEvent
}

func (l *fakeReviewLogs) Append(ctx context.Context, event *entity.ReviewEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events == nil {
		l.events = make(map[string]*entity.ReviewEvent)
	}
	l.events[event.ID] = event
	return nil
}

func (l *fakeReviewLogs) ListByCard(ctx context.Context, cardID string, limit int) ([]*entity.ReviewEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entity.ReviewEvent
	for _, e := range l.events {
		if e.CardID == cardID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCalendar struct {
	mu     sync.Mutex
	synced []string
	err    error
}

func (c *fakeCalendar) Sync(ctx context.Context, card *entity.Card) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.synced = append(c.synced, card.ID)
	return nil
}

var errUnavailable = errors.New("store unavailable")
