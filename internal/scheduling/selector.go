package scheduling

import (
	"math"
	"time"

	"github.com/eslsoft/studyplan/internal/entity"
)

// Exam-distance thresholds, in days, for automatic mode selection.
const (
	CrammingWithinDays  = 15
	IntensiveWithinDays = 30
	BalancedWithinDays  = 90
)

// SelectParameters resolves the preset active for a learner at now.
// Expects preferences already passed through entity.EffectivePreferences.
func SelectParameters(prefs entity.LearnerPreferences, now time.Time) Parameters {
	mode := prefs.Mode
	if prefs.AutoAdjust && prefs.ExamDate != nil {
		mode = modeForExamDistance(daysUntil(now, *prefs.ExamDate, prefs.Location()))
	}
	params := Preset(mode)
	if o := prefs.MaxIntervalOverride; o != nil && *o >= entity.MinMaxInterval && *o != params.MaximumInterval {
		params.MaximumInterval = *o
	}
	return params
}

func modeForExamDistance(days int) entity.SchedulingMode {
	switch {
	case days <= CrammingWithinDays:
		return entity.ModeCramming
	case days <= IntensiveWithinDays:
		return entity.ModeIntensive
	case days <= BalancedWithinDays:
		return entity.ModeBalanced
	default:
		return entity.ModeRelaxed
	}
}

// daysUntil counts calendar days between the local dates of now and target.
func daysUntil(now, target time.Time, loc *time.Location) int {
	from := startOfDay(now, loc)
	to := startOfDay(target, loc)
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
