// Package auth signs users in and out, tracks the signed-in user as a
// stream, and issues the JWT access tokens the HTTP API accepts.
package auth
