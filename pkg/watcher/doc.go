/*
Package watcher tails log files and ships appended lines to a collector
as events.

One watcher process follows any number of files. Every appended line
becomes one event: a fresh UUID, the watcher's wall clock as timestamp,
the file's configured alias (or path) as source, the watcher's static
tags, and the line as content. Events flow through a bounded in-memory
queue to a single shipper goroutine that owns the push channel.

# Rotation and resume

Files are followed through rotation: when the tailed file is moved or
truncated, the tailer reopens it by name. Read offsets are persisted to
a small bbolt database in the watcher's data directory, so a restarted
watcher resumes where it stopped instead of re-shipping old lines; a
file never seen before is tailed from its current end. Running without
a data directory disables persistence and always starts at the end.

# Delivery

The shipper redials the collector with exponential backoff. Delivery is
at most once: when the collector stays unreachable long enough for the
queue to fill, new lines are counted, logged and dropped. Spooling to
disk is a non-goal; logs that matter are still in the source file.
*/
package watcher
