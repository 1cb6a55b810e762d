// Package task runs background work bound to a cancellable scope.
// A Group owns its goroutines: stopping it cancels their context and waits
// for every one of them to return.
package task
