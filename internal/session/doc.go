// Package session implements the study session: the state machine that
// coordinates deck selection, the visible card list, flipping, grading,
// editing, creation and deletion on top of the repository ports.
//
// A Session is safe for concurrent use. Its observable state is published as
// immutable Snapshots; every mutation produces a new one.
package session
