package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eslsoft/studyplan/internal/entity"
)

func TestSelectParametersManual(t *testing.T) {
	prefs := entity.EffectivePreferences("l1", &entity.LearnerPreferences{Mode: entity.ModeIntensive})
	p := SelectParameters(prefs, epoch)
	assert.Equal(t, entity.ModeIntensive, p.Mode)
	assert.Equal(t, 30, p.MaximumInterval)
}

func TestSelectParametersDefaultsToBalanced(t *testing.T) {
	p := SelectParameters(entity.EffectivePreferences("l1", nil), epoch)
	assert.Equal(t, entity.ModeBalanced, p.Mode)
}

func TestSelectParametersAutoAdjust(t *testing.T) {
	cases := []struct {
		days int
		want entity.SchedulingMode
	}{
		{-3, entity.ModeCramming},
		{0, entity.ModeCramming},
		{15, entity.ModeCramming},
		{16, entity.ModeIntensive},
		{30, entity.ModeIntensive},
		{31, entity.ModeBalanced},
		{90, entity.ModeBalanced},
		{91, entity.ModeRelaxed},
	}
	for _, tc := range cases {
		exam := epoch.AddDate(0, 0, tc.days)
		prefs := entity.EffectivePreferences("l1", &entity.LearnerPreferences{
			Mode:       entity.ModeRelaxed,
			AutoAdjust: true,
			ExamDate:   &exam,
		})
		assert.Equal(t, tc.want, SelectParameters(prefs, epoch).Mode, "days=%d", tc.days)
	}
}

func TestSelectParametersAutoAdjustWithoutExam(t *testing.T) {
	prefs := entity.EffectivePreferences("l1", &entity.LearnerPreferences{Mode: entity.ModeRelaxed, AutoAdjust: true})
	assert.Equal(t, entity.ModeRelaxed, SelectParameters(prefs, epoch).Mode)
}

func TestSelectParametersMaxIntervalOverride(t *testing.T) {
	override := 21
	exam := epoch.AddDate(0, 0, 10)
	prefs := entity.EffectivePreferences("l1", &entity.LearnerPreferences{
		AutoAdjust:          true,
		ExamDate:            &exam,
		MaxIntervalOverride: &override,
	})
	p := SelectParameters(prefs, epoch)
	assert.Equal(t, entity.ModeCramming, p.Mode)
	assert.Equal(t, 21, p.MaximumInterval)
	assert.Equal(t, 7, Preset(entity.ModeCramming).MaximumInterval, "preset must stay untouched")
}

func TestDaysUntilAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2025, 3, 8, 12, 0, 0, 0, loc)
	exam := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)
	assert.Equal(t, 2, daysUntil(now, exam, loc))
}

func TestPresetsOrdered(t *testing.T) {
	order := []entity.SchedulingMode{entity.ModeCramming, entity.ModeIntensive, entity.ModeBalanced, entity.ModeRelaxed}
	for i := 1; i < len(order); i++ {
		prev, cur := Preset(order[i-1]), Preset(order[i])
		assert.Less(t, prev.MaximumInterval, cur.MaximumInterval)
		assert.Greater(t, prev.TargetRetention, cur.TargetRetention)
	}
}
