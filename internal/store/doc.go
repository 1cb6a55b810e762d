// Package store defines the persistence ports the study session depends on.
// Implementations live under internal/platform; the session never sees a
// database handle, only these interfaces and the errors below.
package store
