package usecase

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/repository"
)

// PreferencesPatch changes only the fields that are set.
type PreferencesPatch struct {
	Mode                *entity.SchedulingMode
	AutoAdjust          *bool
	ExamDate            *time.Time
	ClearExamDate       bool
	MaxIntervalOverride *int
	ClearMaxInterval    bool
	Placement           *entity.PlacementMode
	StudyDays           entity.WeekdaySet
	// DailyCaps is merged into the stored caps.
	DailyCaps     map[entity.ContentType]int
	DailyCapacity *int
	// Distribution replaces the stored ratios.
	Distribution map[entity.ContentType]float64
	Timezone     *string
}

// PreferencesUsecase reads and edits learner scheduling preferences.
type PreferencesUsecase interface {
	// Get returns the effective preferences, defaults filled in.
	Get(ctx context.Context, learnerID string) (entity.LearnerPreferences, error)
	Update(ctx context.Context, learnerID string, patch PreferencesPatch) (entity.LearnerPreferences, error)
}

// NewPreferencesUsecase wires the preferences store.
func NewPreferencesUsecase(repo repository.PreferencesRepository, log *logrus.Logger, settings Settings) PreferencesUsecase {
	return &preferencesUsecase{
		repo:     repo,
		log:      log.WithField("usecase", "preferences"),
		settings: settings,
		clock:    time.Now,
	}
}

type preferencesUsecase struct {
	repo     repository.PreferencesRepository
	log      logrus.FieldLogger
	settings Settings
	clock    func() time.Time
}

func (u *preferencesUsecase) Get(ctx context.Context, learnerID string) (entity.LearnerPreferences, error) {
	if err := requireLearner(learnerID); err != nil {
		return entity.LearnerPreferences{}, err
	}
	stored, err := u.repo.Get(ctx, learnerID)
	if err != nil {
		return entity.LearnerPreferences{}, err
	}
	return u.settings.resolve(learnerID, stored), nil
}

func (u *preferencesUsecase) Update(ctx context.Context, learnerID string, patch PreferencesPatch) (entity.LearnerPreferences, error) {
	if err := requireLearner(learnerID); err != nil {
		return entity.LearnerPreferences{}, err
	}
	stored, err := u.repo.Get(ctx, learnerID)
	if err != nil {
		return entity.LearnerPreferences{}, err
	}
	if stored == nil {
		stored = &entity.LearnerPreferences{LearnerID: learnerID}
	}

	next := *stored
	patch.applyTo(&next)
	if err := next.Validate(); err != nil {
		return entity.LearnerPreferences{}, err
	}
	next.Normalize(u.clock())

	saved, err := u.repo.Save(ctx, &next)
	if err != nil {
		return entity.LearnerPreferences{}, err
	}
	u.log.WithFields(logrus.Fields{
		"learner_id": learnerID,
		"mode":       saved.Mode,
		"placement":  saved.Placement,
	}).Info("preferences updated")
	return u.Get(ctx, learnerID)
}

func (p PreferencesPatch) applyTo(prefs *entity.LearnerPreferences) {
	if p.Mode != nil {
		prefs.Mode = *p.Mode
	}
	if p.AutoAdjust != nil {
		prefs.AutoAdjust = *p.AutoAdjust
	}
	switch {
	case p.ClearExamDate:
		prefs.ExamDate = nil
	case p.ExamDate != nil:
		t := *p.ExamDate
		prefs.ExamDate = &t
	}
	switch {
	case p.ClearMaxInterval:
		prefs.MaxIntervalOverride = nil
	case p.MaxIntervalOverride != nil:
		v := *p.MaxIntervalOverride
		prefs.MaxIntervalOverride = &v
	}
	if p.Placement != nil {
		prefs.Placement = *p.Placement
	}
	if p.StudyDays != nil {
		prefs.StudyDays = append(entity.WeekdaySet(nil), p.StudyDays...)
	}
	if len(p.DailyCaps) > 0 {
		prefs.DailyCaps = lo.Assign(prefs.DailyCaps, p.DailyCaps)
	}
	if p.DailyCapacity != nil {
		prefs.DailyCapacity = *p.DailyCapacity
	}
	if p.Distribution != nil {
		prefs.Distribution = lo.Assign(p.Distribution)
	}
	if p.Timezone != nil {
		prefs.Timezone = *p.Timezone
	}
}
