/*
Package store defines the event store contract shared by all backends.

An EventStore durably appends events and serves historical range scans
with a filter predicate. Two interchangeable backends implement the
contract:

  - pkg/store/naive: append-only segment files partitioned into
    fixed-width time buckets, one file per bucket
  - pkg/store/rdbs: a single relational table reached through
    database/sql (SQLite or Postgres)

# Contract

Save must not return success until the event is recoverable after a
process crash; each backend documents its flush policy. Search returns a
Cursor over matching events in the requested order and never blocks
waiting for future events: it is a historical scan only, bounded by the
store contents at scan start. Close flushes and releases all resources.

A store instance has a single exclusive writer and any number of
concurrent readers. Cursors obtained from Search are independent of each
other but are not themselves safe for concurrent use.

# Cursor protocol

	cur, err := st.Search(ctx, f)
	if err != nil { ... }
	defer cur.Close()
	for {
		ev, err := cur.Next()
		if err != nil { ... }     // read failure, iteration is over
		if ev == nil { break }    // exhausted
		...
	}

A read failure terminates the iteration; callers surface it by closing
the channel the results were streaming to.
*/
package store
