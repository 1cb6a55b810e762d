// Package domain contains the flashcard entities of the application: decks,
// cards and their drafts, review records and grades, and users. It is
// independent of persistence, scheduling and presentation.
package domain
