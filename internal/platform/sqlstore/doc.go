// Package sqlstore implements the card, deck and user repositories on a SQL
// database. It runs on embedded sqlite (modernc.org/sqlite) or on PostgreSQL
// through pgx, builds its queries with squirrel and scans rows with sqlx.
//
// The schema is managed by goose migrations embedded in the binary and
// applied by Open.
//
// Watch streams are fed from the deck list the store re-reads after each of
// its own writes. Writes made by another process are not observed.
package sqlstore
