package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/welk/internal/domain"
)

// Common errors
var (
	ErrInvalidGrade     = errors.New("invalid review grade")
	ErrUnknownAlgorithm = errors.New("unknown scheduling algorithm")
)

// Algorithm names accepted by New.
const (
	NameFixed = "fixed"
	NameSM2   = "sm2"
)

// Algorithm computes when a card should be reviewed next.
//
// Implementations must be pure: the same history, grade and instant always
// produce the same result. An empty history is valid.
type Algorithm interface {
	CalculateNextReview(
		reviews []domain.CardReview,
		grade domain.ReviewGrade,
		now time.Time,
	) (time.Time, error)
}

var (
	_ Algorithm = FixedInterval{}
	_ Algorithm = (*SM2)(nil)
)

// FixedInterval schedules every card a constant delay after the review,
// chosen by grade alone. History is ignored.
type FixedInterval struct {
	params FixedIntervalParams
}

// NewFixedInterval creates a FixedInterval; non-positive intervals fall back
// to the defaults.
func NewFixedInterval(params FixedIntervalParams) FixedInterval {
	return FixedInterval{params: params.withDefaults()}
}

// CalculateNextReview implements Algorithm.
func (f FixedInterval) CalculateNextReview(
	_ []domain.CardReview,
	grade domain.ReviewGrade,
	now time.Time,
) (time.Time, error) {
	p := f.params.withDefaults()

	var delay time.Duration
	switch grade {
	case domain.GradeAgain:
		delay = p.Again
	case domain.GradeHard:
		delay = p.Hard
	case domain.GradeGood:
		delay = p.Good
	case domain.GradeEasy:
		delay = p.Easy
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidGrade, grade)
	}

	return now.Add(delay), nil
}

// SM2 is an adaptive SM-2 variant. It replays the card's review history to
// rebuild ease factor and interval, then applies the new grade.
type SM2 struct {
	params *Params
}

// NewSM2 creates an SM2 scheduler. A nil params uses NewDefaultParams.
func NewSM2(params *Params) *SM2 {
	if params == nil {
		params = NewDefaultParams()
	}
	return &SM2{params: params}
}

// CalculateNextReview implements Algorithm.
func (s *SM2) CalculateNextReview(
	reviews []domain.CardReview,
	grade domain.ReviewGrade,
	now time.Time,
) (time.Time, error) {
	if !grade.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidGrade, grade)
	}

	state := s.replay(reviews)
	state = calculateNextState(state, grade, now, s.params)
	return state.NextReviewAt, nil
}

// replay folds the history into a scheduling state. Reviews with an unknown
// grade are skipped.
func (s *SM2) replay(reviews []domain.CardReview) cardState {
	state := newCardState(s.params)
	for _, r := range reviews {
		if !r.Grade.Valid() {
			continue
		}
		state = calculateNextState(state, r.Grade, r.Timestamp, s.params)
	}
	return state
}

// New returns the algorithm registered under name. An empty name selects the
// fixed-interval scheduler.
func New(name string, fixed FixedIntervalParams, sm2 *Params) (Algorithm, error) {
	switch name {
	case "", NameFixed:
		return NewFixedInterval(fixed), nil
	case NameSM2:
		return NewSM2(sm2), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}
