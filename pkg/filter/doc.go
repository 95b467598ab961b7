/*
Package filter compiles filter descriptors into event predicates.

A Filter is a conjunctive descriptor: every present field must match for
an event to pass, and absent fields match everything. The same compiled
predicate backs both the historical search path (store scans) and the
live dispatch path (broker fan-out), so a query behaves identically over
stored and in-flight events.

# Descriptor fields

	id       regex matched against the event id
	source   regex matched against the event source
	content  regex matched against the event content
	tags     list of regexes; passes if any regex matches any event tag
	start    integer seconds; floor(event timestamp) >= start
	end      integer seconds; floor(event timestamp) <= end
	order    "asc" or "desc" (historical queries only, default "asc")

On the wire a filter is a single JSON object with these keys; unknown
keys are ignored.

# Regex flavor

All patterns use Go's regexp package, i.e. RE2 syntax: no backreferences
or lookaround, linear-time matching. Every match is an unanchored
substring search, so `web` matches `my-web-1`; anchor with ^ and $ for
exact matches. `.` does not match a newline; prefix a content pattern
with (?s) to span lines, or (?m) to anchor per line.

# Evaluation order

Compiled predicates short-circuit in a fixed order chosen to keep regex
work off the hot path of large scans: time bounds, id, source, tags,
content. Predicates are pure functions of the event and safe for
concurrent use.
*/
package filter
