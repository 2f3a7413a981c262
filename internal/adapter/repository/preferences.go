package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/database"
	"github.com/eslsoft/studyplan/internal/infrastructure/database/types"
	"github.com/eslsoft/studyplan/internal/repository"
)

var preferencesColumns = []string{
	"learner_id", "mode", "auto_adjust", "exam_date", "max_interval_override", "placement",
	"study_days", "daily_caps", "daily_capacity", "distribution", "timezone", "updated_at",
}

// PreferencesRepository stores one preferences row per learner.
type PreferencesRepository struct {
	db *database.DB
}

// NewPreferencesRepository constructs a SQL-backed preferences repository.
func NewPreferencesRepository(db *database.DB) repository.PreferencesRepository {
	return &PreferencesRepository{db: db}
}

func (r *PreferencesRepository) Get(ctx context.Context, learnerID string) (*entity.LearnerPreferences, error) {
	query, args := r.db.Builder().Select(preferencesColumns...).
		From(entsql.Table(database.PreferencesTable)).
		Where(entsql.EQ("learner_id", learnerID)).
		Query()

	var (
		p            entity.LearnerPreferences
		mode, place  string
		examDate     sql.NullInt64
		maxInterval  sql.NullInt64
		studyDays    types.JSON[[]time.Weekday]
		caps         types.JSON[map[entity.ContentType]int]
		distribution types.JSON[map[entity.ContentType]float64]
		updatedAt    int64
	)
	err := queryRow(ctx, r.db, query, args,
		&p.LearnerID, &mode, &p.AutoAdjust, &examDate, &maxInterval, &place,
		&studyDays, &caps, &p.DailyCapacity, &distribution, &p.Timezone, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	p.Mode = entity.SchedulingMode(mode)
	p.Placement = entity.PlacementMode(place)
	p.StudyDays = entity.WeekdaySet(studyDays.V)
	p.DailyCaps = caps.V
	p.Distribution = distribution.V
	p.UpdatedAt = fromMillis(updatedAt)
	if examDate.Valid {
		t := fromMillis(examDate.Int64)
		p.ExamDate = &t
	}
	if maxInterval.Valid {
		v := int(maxInterval.Int64)
		p.MaxIntervalOverride = &v
	}
	return &p, nil
}

func (r *PreferencesRepository) Save(ctx context.Context, prefs *entity.LearnerPreferences) (*entity.LearnerPreferences, error) {
	p := *prefs
	query, args := r.db.Builder().Insert(database.PreferencesTable).
		Columns(preferencesColumns...).
		Values(
			p.LearnerID, string(p.Mode), p.AutoAdjust, nullMillis(p.ExamDate), nullInt(p.MaxIntervalOverride), string(p.Placement),
			types.NewJSON([]time.Weekday(p.StudyDays)), types.NewJSON(p.DailyCaps), p.DailyCapacity,
			types.NewJSON(p.Distribution), p.Timezone, toMillis(p.UpdatedAt),
		).
		OnConflict(
			entsql.ConflictColumns("learner_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := exec(ctx, r.db, query, args, nil); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return &p, nil
}
