package scheduling

import (
	"math"
	"time"

	"github.com/eslsoft/studyplan/internal/entity"
)

// Review applies a grade to a card and returns the next snapshot. The input is not mutated.
func Review(card *entity.Card, grade entity.Grade, now time.Time, p Parameters) (*entity.Card, error) {
	if card == nil {
		return nil, entity.Validation("card required")
	}
	if !grade.Valid() {
		return nil, entity.ErrInvalidGrade
	}

	actual := actualElapsed(card, now)
	interval, stability := p.step(card, grade, actual)
	switch grade {
	case entity.GradeHard:
		// A capped HARD keeps at most GOOD's stability.
		if good, goodStability := p.step(card, entity.GradeGood, actual); interval > good {
			interval = good
			stability = math.Min(stability, goodStability)
		}
	case entity.GradeEasy:
		if good, _ := p.step(card, entity.GradeGood, actual); interval < good {
			interval = good
		}
	}

	next := card.Clone()
	next.Stability = stability
	next.Difficulty = p.nextDifficulty(card, grade)
	next.State = nextState(card.State, grade)
	next.Reps++
	if grade == entity.GradeAgain {
		next.Lapses++
	}
	next.ElapsedDays = int(math.Floor(actual))
	next.ScheduledDays = interval
	reviewed := now
	next.LastReview = &reviewed
	next.Due = now.AddDate(0, 0, interval)
	next.UpdatedAt = now
	return next, nil
}

// Preview returns the outcome of every grade without committing to one.
func Preview(card *entity.Card, now time.Time, p Parameters) (map[entity.Grade]*entity.Card, error) {
	out := make(map[entity.Grade]*entity.Card, len(entity.Grades))
	for _, g := range entity.Grades {
		next, err := Review(card, g, now, p)
		if err != nil {
			return nil, err
		}
		out[g] = next
	}
	return out, nil
}

func nextState(current entity.State, grade entity.Grade) entity.State {
	switch {
	case grade == entity.GradeAgain:
		return entity.StateRelearning
	case current == entity.StateNew:
		return entity.StateLearning
	default:
		return entity.StateReview
	}
}

func actualElapsed(card *entity.Card, now time.Time) float64 {
	if card.LastReview == nil {
		return 0
	}
	d := now.Sub(*card.LastReview).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// step computes the interval in days and the new stability for one grade.
func (p Parameters) step(card *entity.Card, grade entity.Grade, actual float64) (int, float64) {
	w := p.Weights
	first := card.State == entity.StateNew
	prev := card.Stability
	if !validPositive(prev) {
		prev = w[WMinStability]
	}

	switch grade {
	case entity.GradeAgain:
		if first {
			return AgainInterval, w[WAgainSeed]
		}
		lapses := float64(card.Lapses + 1)
		s := w[WForgetScale] * math.Pow(prev, w[WForgetStabilityExp]) / (1 + w[WForgetLapseDecay]*lapses)
		if !validPositive(s) || s < w[WMinStability] {
			s = w[WMinStability]
		}
		if s > prev {
			s = prev
		}
		return AgainInterval, s

	case entity.GradeHard:
		s := w[WHardSeed]
		if !first {
			s = w[WHardRatio] * float64(card.ScheduledDays)
		}
		return p.clampStep(s, HardFloor)

	case entity.GradeGood:
		if first {
			return p.clampStep(w[WGoodSeed], GoodFloor)
		}
		s := p.grow(card, prev, actual, 1)
		if prev < p.Recovery.StabilityBelow && s < p.Recovery.GoodThreshold {
			s *= p.Recovery.multiplier(false, card.Lapses)
		}
		return p.clampStep(s, GoodFloor)

	default:
		if first {
			return p.clampStep(w[WEasySeed], EasyFloor)
		}
		s := p.grow(card, prev, actual, w[WEasyBonus])
		if prev < p.Recovery.StabilityBelow && s < p.Recovery.EasyThreshold {
			s *= p.Recovery.multiplier(true, card.Lapses)
		}
		return p.clampStep(s, EasyFloor)
	}
}

// grow applies the success growth curve. Elapsed never counts for less than the planned gap.
func (p Parameters) grow(card *entity.Card, prev, actual, bonus float64) float64 {
	w := p.Weights
	elapsed := math.Max(actual, float64(card.ScheduledDays))
	retrievability := math.Exp(-elapsed / prev)
	difficulty := clamp(card.Difficulty, entity.MinDifficulty, entity.MaxDifficulty)
	growth := w[WGrowthScale] *
		math.Pow(difficulty, -w[WDifficultyExp]) *
		math.Pow(prev, w[WStabilityExp]) *
		(math.Exp(w[WRetrievabilityGain]*(1-retrievability)) - 1)
	return prev * (1 + growth*bonus)
}

// clampStep converts stability to a whole-day interval within [floor, MaximumInterval].
func (p Parameters) clampStep(stability float64, floor int) (int, float64) {
	ceiling := min(p.MaximumInterval, entity.MaxMaxInterval)
	if ceiling < floor {
		ceiling = floor
	}
	switch {
	case math.IsInf(stability, 1):
		return ceiling, float64(ceiling)
	case !validPositive(stability):
		return floor, float64(floor)
	}
	raw := stability * p.retentionFactor()
	if !validPositive(raw) {
		return floor, stability
	}
	days := int(math.Min(math.Round(raw), float64(ceiling)))
	if days < floor {
		days = floor
	}
	return days, stability
}

func (p Parameters) nextDifficulty(card *entity.Card, grade entity.Grade) float64 {
	w := p.Weights
	d := card.Difficulty
	if card.State == entity.StateNew || !validPositive(d) {
		d = w[WInitialDifficulty]
	}
	if grade == entity.GradeAgain {
		d += w[WDifficultyStep]
	} else {
		d += w[WDifficultyStep] * float64(int(grade)-int(entity.GradeGood))
	}
	return clamp(d, entity.MinDifficulty, entity.MaxDifficulty)
}

func validPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
