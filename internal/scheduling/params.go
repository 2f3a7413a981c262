// Package scheduling holds the pure memory model and calendar placement rules.
// Nothing here performs I/O except through the DayLoadCounter handed to a Placer.
package scheduling

import (
	"math"

	"github.com/eslsoft/studyplan/internal/entity"
)

// Weight indexes.
const (
	WAgainSeed = iota
	WHardSeed
	WGoodSeed
	WEasySeed
	WInitialDifficulty
	WHardRatio
	WDifficultyStep
	WMinStability
	WGrowthScale
	WDifficultyExp
	WStabilityExp
	WRetrievabilityGain
	WForgetScale
	WForgetStabilityExp
	WForgetLapseDecay
	WEasyBonus

	weightCount
)

// Interval floors per grade, in days.
const (
	AgainInterval = 1
	HardFloor     = 2
	GoodFloor     = 3
	EasyFloor     = 5
)

// Weights is the tunable vector consumed by the grade processor.
type Weights [weightCount]float64

// RecoveryBoost lifts very low stabilities after a successful recall.
type RecoveryBoost struct {
	// StabilityBelow gates the boost on the prior stability.
	StabilityBelow float64
	GoodThreshold  float64
	GoodMin        float64
	GoodMax        float64
	EasyThreshold  float64
	EasyMin        float64
	EasyMax        float64
	LapseDecay     float64
}

// multiplier returns max(min, max/(1+decay*lapses)).
func (r RecoveryBoost) multiplier(easy bool, lapses int) float64 {
	lo, hi := r.GoodMin, r.GoodMax
	if easy {
		lo, hi = r.EasyMin, r.EasyMax
	}
	return math.Max(lo, hi/(1+r.LapseDecay*float64(lapses)))
}

// Parameters is an immutable scheduling preset.
type Parameters struct {
	Mode            entity.SchedulingMode
	TargetRetention float64
	MaximumInterval int
	Weights         Weights
	Recovery        RecoveryBoost
}

// retentionFactor scales stability (days to 90% recall) to days to the target retention.
func (p Parameters) retentionFactor() float64 {
	if p.TargetRetention <= 0 || p.TargetRetention >= 1 {
		return 1
	}
	return math.Log(p.TargetRetention) / math.Log(0.9)
}

var defaultRecovery = RecoveryBoost{
	StabilityBelow: 1.0,
	GoodThreshold:  2.0,
	GoodMin:        2.0,
	GoodMax:        4.0,
	EasyThreshold:  3.0,
	EasyMin:        3.0,
	EasyMax:        5.0,
	LapseDecay:     0.5,
}

func presetWeights(growth float64) Weights {
	return Weights{
		WAgainSeed:          0.4,
		WHardSeed:           2.0,
		WGoodSeed:           3.0,
		WEasySeed:           5.0,
		WInitialDifficulty:  5.0,
		WHardRatio:          0.5,
		WDifficultyStep:     0.6,
		WMinStability:       0.1,
		WGrowthScale:        growth,
		WDifficultyExp:      0.3,
		WStabilityExp:       -0.15,
		WRetrievabilityGain: 1.6,
		WForgetScale:        0.5,
		WForgetStabilityExp: 0.8,
		WForgetLapseDecay:   0.5,
		WEasyBonus:          1.3,
	}
}

// Presets ordered by increasing maximum interval and decreasing urgency.
var presets = map[entity.SchedulingMode]Parameters{
	entity.ModeCramming: {
		Mode:            entity.ModeCramming,
		TargetRetention: 0.95,
		MaximumInterval: 7,
		Weights:         presetWeights(1.4),
		Recovery:        defaultRecovery,
	},
	entity.ModeIntensive: {
		Mode:            entity.ModeIntensive,
		TargetRetention: 0.92,
		MaximumInterval: 30,
		Weights:         presetWeights(1.6),
		Recovery:        defaultRecovery,
	},
	entity.ModeBalanced: {
		Mode:            entity.ModeBalanced,
		TargetRetention: 0.90,
		MaximumInterval: 180,
		Weights:         presetWeights(1.8),
		Recovery:        defaultRecovery,
	},
	entity.ModeRelaxed: {
		Mode:            entity.ModeRelaxed,
		TargetRetention: 0.85,
		MaximumInterval: 365,
		Weights:         presetWeights(2.0),
		Recovery:        defaultRecovery,
	},
}

// Preset returns a copy of the named preset, balanced for unknown names.
func Preset(mode entity.SchedulingMode) Parameters {
	if p, ok := presets[mode]; ok {
		return p
	}
	return presets[entity.ModeBalanced]
}
