package domain

import (
	"errors"
	"time"
)

// ReviewGrade represents the user's self-assessed recall quality for a card.
type ReviewGrade string

// Possible review grade values, from "forgotten" to "very easy".
const (
	GradeAgain ReviewGrade = "again"
	GradeHard  ReviewGrade = "hard"
	GradeGood  ReviewGrade = "good"
	GradeEasy  ReviewGrade = "easy"
)

// ErrInvalidReviewGrade is returned when a grade is not one of the known values.
var ErrInvalidReviewGrade = errors.New("invalid review grade")

// Grades lists every grade in ordinal order.
var Grades = []ReviewGrade{GradeAgain, GradeHard, GradeGood, GradeEasy}

// Valid reports whether g is a known grade.
func (g ReviewGrade) Valid() bool {
	return g.Ordinal() >= 0
}

// Ordinal returns the severity index of the grade (again=0 .. easy=3),
// or -1 for an unknown grade.
func (g ReviewGrade) Ordinal() int {
	switch g {
	case GradeAgain:
		return 0
	case GradeHard:
		return 1
	case GradeGood:
		return 2
	case GradeEasy:
		return 3
	default:
		return -1
	}
}

// ParseReviewGrade converts a string into a ReviewGrade.
func ParseReviewGrade(s string) (ReviewGrade, error) {
	g := ReviewGrade(s)
	if !g.Valid() {
		return "", ErrInvalidReviewGrade
	}
	return g, nil
}

// GradeFromOutcome maps the two-way swipe outcome onto a grade.
// A positive outcome is good, a negative one is again.
func GradeFromOutcome(positive bool) ReviewGrade {
	if positive {
		return GradeGood
	}
	return GradeAgain
}

// CardReview is an immutable record of one study of a card.
type CardReview struct {
	Timestamp time.Time   `json:"timestamp"`
	Grade     ReviewGrade `json:"grade"`
}

// NewCardReview creates a review at the given instant.
func NewCardReview(grade ReviewGrade, at time.Time) (CardReview, error) {
	if !grade.Valid() {
		return CardReview{}, ErrInvalidReviewGrade
	}
	return CardReview{Timestamp: at.UTC(), Grade: grade}, nil
}
