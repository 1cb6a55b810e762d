// Package stream provides a small reactive value holder used to publish
// repository and session state to any number of observers.
//
// A subscription always starts with the current value and then sees every
// later value, except that a slow reader only ever gets the latest one.
// Subscriptions end when their context is done.
package stream
