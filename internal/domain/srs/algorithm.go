package srs

import (
	"time"

	"github.com/phrazzld/welk/internal/domain"
)

// cardState is the scheduling state the SM-2 variant derives from a card's
// review history. It is never persisted; replaying the history rebuilds it.
type cardState struct {
	Interval           int // days
	EaseFactor         float64
	ConsecutiveCorrect int
	ReviewCount        int
	LastReviewedAt     time.Time
	NextReviewAt       time.Time
}

func newCardState(params *Params) cardState {
	return cardState{EaseFactor: params.InitialEaseFactor}
}

// calculateNewEaseFactor determines the new ease factor based on the grade.
//
// Higher values mean the card is easier and intervals grow faster. The result is
// clamped between params.MinEaseFactor and params.MaxEaseFactor:
//   - "again" decreases the ease factor the most (typically -0.20)
//   - "hard" decreases it moderately (typically -0.15)
//   - "good" leaves it unchanged
//   - "easy" increases it (typically +0.15)
func calculateNewEaseFactor(
	currentEF float64,
	grade domain.ReviewGrade,
	params *Params,
) float64 {
	newEF := currentEF + params.EaseFactorAdjustment[grade]

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	if newEF > params.MaxEaseFactor {
		newEF = params.MaxEaseFactor
	}

	return newEF
}

// calculateNewInterval determines the new interval in days.
//
//   - "again" resets the interval to 0 (the card comes back in minutes)
//   - a first review (currentInterval == 0) uses params.FirstReviewIntervals
//   - "good" right after a lapse grows the interval by 1.5
//   - otherwise "good" multiplies by the ease factor, "hard" by its modifier and
//     "easy" by its modifier times the ease factor
func calculateNewInterval(
	currentInterval int,
	consecutiveCorrect int,
	easeFactor float64,
	grade domain.ReviewGrade,
	params *Params,
) int {
	if grade == domain.GradeAgain {
		return 0
	}

	if currentInterval == 0 {
		return params.FirstReviewIntervals[grade]
	}

	if consecutiveCorrect == 0 && grade == domain.GradeGood {
		return int(float64(currentInterval) * 1.5)
	}

	var modifier float64
	if grade == domain.GradeGood {
		modifier = easeFactor
	} else {
		modifier = params.IntervalModifier[grade]
		if grade == domain.GradeEasy {
			modifier *= easeFactor
		}
	}

	return int(float64(currentInterval) * modifier)
}

// calculateNextReviewDate converts an interval into the next review instant.
// Failed cards come back after params.AgainReviewMinutes; all others after
// the interval in days.
func calculateNextReviewDate(
	interval int,
	grade domain.ReviewGrade,
	now time.Time,
	params *Params,
) time.Time {
	if grade == domain.GradeAgain {
		return now.Add(time.Duration(params.AgainReviewMinutes) * time.Minute)
	}

	return now.AddDate(0, 0, interval)
}

// calculateNextState returns the state that follows state after a review with
// the given grade at now. The input is not modified.
func calculateNextState(
	state cardState,
	grade domain.ReviewGrade,
	now time.Time,
	params *Params,
) cardState {
	next := state
	next.ReviewCount++
	next.LastReviewedAt = now
	next.EaseFactor = calculateNewEaseFactor(state.EaseFactor, grade, params)

	if grade == domain.GradeAgain {
		next.ConsecutiveCorrect = 0
	} else {
		next.ConsecutiveCorrect++
	}

	next.Interval = calculateNewInterval(
		state.Interval,
		state.ConsecutiveCorrect,
		next.EaseFactor,
		grade,
		params,
	)
	next.NextReviewAt = calculateNextReviewDate(next.Interval, grade, now, params)

	return next
}
