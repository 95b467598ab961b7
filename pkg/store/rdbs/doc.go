/*
Package rdbs implements the relational event store backend.

Events live in a single `events` table reached through database/sql.
Two drivers are wired in: lib/pq when the database URL carries a
postgres:// (or postgresql://) scheme, and the pure-Go modernc.org/sqlite
driver for everything else, where the URL is treated as a SQLite path or
DSN. Both drivers accept the $N placeholder style used here.

# Schema

	CREATE TABLE events (
		id             TEXT PRIMARY KEY,
		timestamp      DOUBLE PRECISION,
		source         TEXT,
		tags           TEXT,   -- comma joined
		content        TEXT,
		custom_headers TEXT    -- JSON array of {name,value}, NULL when none
	)

The schema is created on open when missing, together with an index on
timestamp.

# Semantics

Save is a plain insert; a duplicate id is a silent no-op (ON CONFLICT DO
NOTHING), which makes ingest idempotent — unlike the file backend, where
duplicates materialize. Search pushes the time window and ordering into
SQL (WHERE timestamp >= start AND timestamp < end+1, ORDER BY timestamp)
and applies the regex predicates in-process while streaming the result
set, since SQL LIKE cannot express the filter language. The end bound is
widened by one second in SQL because filters compare against the integer
floor of the timestamp; the in-process predicate enforces the exact
bound.
*/
package rdbs
