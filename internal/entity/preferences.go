package entity

import (
	"fmt"
	"strings"
	"time"
)

// MinMaxInterval is the smallest accepted maximum-interval override: the EASY floor.
const MinMaxInterval = 5

// MaxMaxInterval bounds the maximum-interval override at one hundred years.
const MaxMaxInterval = 36500

// SchedulingMode names a parameter preset.
type SchedulingMode string

const (
	ModeCramming  SchedulingMode = "cramming"
	ModeIntensive SchedulingMode = "intensive"
	ModeBalanced  SchedulingMode = "balanced"
	ModeRelaxed   SchedulingMode = "relaxed"
)

// Valid reports whether m names a known preset.
func (m SchedulingMode) Valid() bool {
	switch m {
	case ModeCramming, ModeIntensive, ModeBalanced, ModeRelaxed:
		return true
	}
	return false
}

// ParseSchedulingMode converts user input into a SchedulingMode.
func ParseSchedulingMode(raw string) (SchedulingMode, error) {
	m := SchedulingMode(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
	return m, nil
}

// PlacementMode selects how ideal due dates are placed on the calendar.
type PlacementMode string

const (
	// PlacementTraditional only honours study days.
	PlacementTraditional PlacementMode = "traditional"
	// PlacementSmart additionally enforces per-type daily caps.
	PlacementSmart PlacementMode = "smart"
)

// ParsePlacementMode converts user input into a PlacementMode.
func ParsePlacementMode(raw string) (PlacementMode, error) {
	switch m := PlacementMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case PlacementTraditional, PlacementSmart:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlacement, raw)
	}
}

// WeekdaySet is the set of days a learner is willing to study.
type WeekdaySet []time.Weekday

// AllWeekdays is the default study-day set.
var AllWeekdays = WeekdaySet{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// Contains reports whether d is a study day.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	for _, w := range s {
		if w == d {
			return true
		}
	}
	return false
}

// ParseWeekdays accepts three-letter or full English day names.
func ParseWeekdays(values []string) (WeekdaySet, error) {
	out := make(WeekdaySet, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if v == name || v == name[:3] {
				if !out.Contains(d) {
					out = append(out, d)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWeekday, v)
		}
	}
	return out, nil
}

// LearnerPreferences is the stored, possibly partial, scheduling configuration of a learner.
type LearnerPreferences struct {
	LearnerID           string
	Mode                SchedulingMode
	AutoAdjust          bool
	ExamDate            *time.Time
	MaxIntervalOverride *int
	Placement           PlacementMode
	StudyDays           WeekdaySet
	DailyCaps           map[ContentType]int
	DailyCapacity       int
	Distribution        map[ContentType]float64
	Timezone            string
	UpdatedAt           time.Time
}

// Defaults applied by EffectivePreferences.
var (
	DefaultDailyCaps = map[ContentType]int{
		ContentFlashcard: 50,
		ContentQuestion:  30,
		ContentErrorNote: 20,
	}
	DefaultDistribution = map[ContentType]float64{
		ContentFlashcard: 0.5,
		ContentQuestion:  0.3,
		ContentErrorNote: 0.2,
	}
)

const (
	DefaultMode          = ModeBalanced
	DefaultPlacement     = PlacementTraditional
	DefaultDailyCapacity = 100
	DefaultTimezone      = "UTC"
)

// EffectivePreferences resolves stored preferences into a complete set, filling every
// missing field with its default. A nil input yields the defaults for learnerID.
func EffectivePreferences(learnerID string, stored *LearnerPreferences) LearnerPreferences {
	out := LearnerPreferences{LearnerID: learnerID}
	if stored != nil {
		out = *stored
		out.LearnerID = learnerID
		if stored.ExamDate != nil {
			t := *stored.ExamDate
			out.ExamDate = &t
		}
		if stored.MaxIntervalOverride != nil {
			v := *stored.MaxIntervalOverride
			out.MaxIntervalOverride = &v
		}
		out.StudyDays = append(WeekdaySet(nil), stored.StudyDays...)
	}
	if !out.Mode.Valid() {
		out.Mode = DefaultMode
	}
	if out.Placement != PlacementSmart {
		out.Placement = DefaultPlacement
	}
	if len(out.StudyDays) == 0 {
		out.StudyDays = append(WeekdaySet(nil), AllWeekdays...)
	}
	if out.MaxIntervalOverride != nil {
		switch v := *out.MaxIntervalOverride; {
		case v < MinMaxInterval:
			out.MaxIntervalOverride = nil
		case v > MaxMaxInterval:
			capped := MaxMaxInterval
			out.MaxIntervalOverride = &capped
		}
	}
	out.DailyCaps = mergeCaps(stored)
	out.Distribution = mergeDistribution(stored)
	if out.DailyCapacity <= 0 {
		out.DailyCapacity = DefaultDailyCapacity
	}
	if _, err := time.LoadLocation(out.Timezone); err != nil || out.Timezone == "" {
		out.Timezone = DefaultTimezone
	}
	return out
}

func mergeCaps(stored *LearnerPreferences) map[ContentType]int {
	caps := make(map[ContentType]int, len(DefaultDailyCaps))
	for k, v := range DefaultDailyCaps {
		caps[k] = v
	}
	if stored == nil {
		return caps
	}
	for k, v := range stored.DailyCaps {
		if k.Valid() && v > 0 {
			caps[k] = v
		}
	}
	return caps
}

func mergeDistribution(stored *LearnerPreferences) map[ContentType]float64 {
	if stored != nil && len(stored.Distribution) > 0 {
		var total float64
		for k, v := range stored.Distribution {
			if k.Valid() && v > 0 {
				total += v
			}
		}
		if total > 0 {
			out := make(map[ContentType]float64, len(ContentTypes))
			for _, k := range ContentTypes {
				if v := stored.Distribution[k]; v > 0 {
					out[k] = v / total
				}
			}
			return out
		}
	}
	out := make(map[ContentType]float64, len(DefaultDistribution))
	for k, v := range DefaultDistribution {
		out[k] = v
	}
	return out
}

// Location returns the learner's time zone, UTC when unknown.
func (p LearnerPreferences) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil || p.Timezone == "" {
		return time.UTC
	}
	return loc
}

// CapFor returns the daily cap for a content type.
func (p LearnerPreferences) CapFor(t ContentType) int {
	if v, ok := p.DailyCaps[t]; ok && v > 0 {
		return v
	}
	return DefaultDailyCaps[t]
}

// Validate rejects preference values that can never be honoured.
func (p *LearnerPreferences) Validate() error {
	if strings.TrimSpace(p.LearnerID) == "" {
		return ErrInvalidLearnerID
	}
	if p.Mode != "" && !p.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
	}
	if p.Placement != "" && p.Placement != PlacementSmart && p.Placement != PlacementTraditional {
		return fmt.Errorf("%w: %q", ErrInvalidPlacement, p.Placement)
	}
	if p.MaxIntervalOverride != nil && (*p.MaxIntervalOverride < MinMaxInterval || *p.MaxIntervalOverride > MaxMaxInterval) {
		return ErrInvalidMaxInterval
	}
	for _, d := range p.StudyDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
	}
	for k, v := range p.DailyCaps {
		if !k.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidContentType, k)
		}
		if v < 0 {
			return Validationf("daily cap for %s must not be negative", k)
		}
	}
	for k, v := range p.Distribution {
		if !k.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidContentType, k)
		}
		if v < 0 {
			return Validationf("distribution ratio for %s must not be negative", k)
		}
	}
	if p.DailyCapacity < 0 {
		return Validation("daily capacity must not be negative")
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimezone, p.Timezone)
		}
	}
	return nil
}

// Normalize ensures defaults & constraints before persistence.
func (p *LearnerPreferences) Normalize(now time.Time) {
	p.LearnerID = strings.TrimSpace(p.LearnerID)
	p.Timezone = strings.TrimSpace(p.Timezone)
	if p.ExamDate != nil {
		t := p.ExamDate.UTC()
		p.ExamDate = &t
	}
	p.UpdatedAt = now
}
