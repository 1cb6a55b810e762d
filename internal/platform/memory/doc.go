// Package memory provides in-process implementations of the store
// interfaces. Data lives only as long as the Store value; it backs the
// "memory" database driver and the session tests.
package memory
