// Package api serves the study session over JSON HTTP. It translates
// requests into session and auth operations and maps their errors onto
// status codes without leaking internal details.
package api
