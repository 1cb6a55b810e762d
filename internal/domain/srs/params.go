package srs

import (
	"time"

	"github.com/phrazzld/welk/internal/domain"
)

// Params defines all configurable parameters for the SM-2 algorithm
type Params struct {
	// Core limits
	MinEaseFactor     float64
	MaxEaseFactor     float64
	InitialEaseFactor float64

	// Adjustments for different grades
	EaseFactorAdjustment map[domain.ReviewGrade]float64
	IntervalModifier     map[domain.ReviewGrade]float64

	// Special case handling
	FirstReviewIntervals map[domain.ReviewGrade]int
	AgainReviewMinutes   int
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the defaults.
type ParamsConfig struct {
	MinEaseFactor     float64
	MaxEaseFactor     float64
	InitialEaseFactor float64

	AgainEaseFactorAdjustment float64
	HardEaseFactorAdjustment  float64
	GoodEaseFactorAdjustment  float64
	EasyEaseFactorAdjustment  float64

	HardIntervalModifier float64
	EasyIntervalModifier float64

	FirstReviewHardInterval int
	FirstReviewGoodInterval int
	FirstReviewEasyInterval int

	AgainReviewMinutes int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor:     1.3,
		MaxEaseFactor:     2.5,
		InitialEaseFactor: 2.5,

		EaseFactorAdjustment: map[domain.ReviewGrade]float64{
			domain.GradeAgain: -0.20,
			domain.GradeHard:  -0.15,
			domain.GradeGood:  0.0,
			domain.GradeEasy:  0.15,
		},

		IntervalModifier: map[domain.ReviewGrade]float64{
			domain.GradeAgain: 0.0, // reset
			domain.GradeHard:  1.2,
			domain.GradeGood:  1.0, // ease factor is used instead
			domain.GradeEasy:  1.3,
		},

		FirstReviewIntervals: map[domain.ReviewGrade]int{
			domain.GradeHard: 1,
			domain.GradeGood: 1,
			domain.GradeEasy: 2,
		},

		AgainReviewMinutes: 10,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
	}
	if config.InitialEaseFactor > 0 {
		params.InitialEaseFactor = config.InitialEaseFactor
	}

	if config.AgainEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeAgain] = config.AgainEaseFactorAdjustment
	}
	if config.HardEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeHard] = config.HardEaseFactorAdjustment
	}
	if config.GoodEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeGood] = config.GoodEaseFactorAdjustment
	}
	if config.EasyEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeEasy] = config.EasyEaseFactorAdjustment
	}

	if config.HardIntervalModifier > 0 {
		params.IntervalModifier[domain.GradeHard] = config.HardIntervalModifier
	}
	if config.EasyIntervalModifier > 0 {
		params.IntervalModifier[domain.GradeEasy] = config.EasyIntervalModifier
	}

	if config.FirstReviewHardInterval > 0 {
		params.FirstReviewIntervals[domain.GradeHard] = config.FirstReviewHardInterval
	}
	if config.FirstReviewGoodInterval > 0 {
		params.FirstReviewIntervals[domain.GradeGood] = config.FirstReviewGoodInterval
	}
	if config.FirstReviewEasyInterval > 0 {
		params.FirstReviewIntervals[domain.GradeEasy] = config.FirstReviewEasyInterval
	}

	if config.AgainReviewMinutes > 0 {
		params.AgainReviewMinutes = config.AgainReviewMinutes
	}

	return params
}

// FixedIntervalParams holds the delay applied for each grade by FixedInterval.
type FixedIntervalParams struct {
	Again time.Duration
	Hard  time.Duration
	Good  time.Duration
	Easy  time.Duration
}

// DefaultFixedIntervalParams returns the stock intervals:
// again 10 minutes, hard 1 hour, good 1 day, easy 7 days.
func DefaultFixedIntervalParams() FixedIntervalParams {
	return FixedIntervalParams{
		Again: 10 * time.Minute,
		Hard:  time.Hour,
		Good:  24 * time.Hour,
		Easy:  7 * 24 * time.Hour,
	}
}

// withDefaults fills non-positive intervals from the defaults.
func (p FixedIntervalParams) withDefaults() FixedIntervalParams {
	d := DefaultFixedIntervalParams()
	if p.Again <= 0 {
		p.Again = d.Again
	}
	if p.Hard <= 0 {
		p.Hard = d.Hard
	}
	if p.Good <= 0 {
		p.Good = d.Good
	}
	if p.Easy <= 0 {
		p.Easy = d.Easy
	}
	return p
}
