/*
Package model defines the event record and its textual wire codec.

An event is the atomic unit moved through Theia: watchers produce events
from appended log bytes, the collector persists and fans them out, and
clients receive them back over the find and live channels. The same byte
representation is used on the wire and inside file-store segments.

# Wire format

An event serializes to UTF-8 text. The four well-known headers always come
first, in this order, one per line:

	id:331c531d-6eb4-4fb5-84d3-ea6937b01fdd
	timestamp:1509989630.6749051
	source:/var/log/auth.log
	tags:auth,prod
	Door has been unlocked.

Any extra headers follow the leading four in insertion order, one
`name:value` pair per line. The newline terminating the final header is
the separator; everything after it is the content, verbatim, with no
trailing newline added. Header values are single-line by construction:
producers truncate a value at its first newline.

Parsing is line oriented. Each line is split at the first colon; the first
line with no colon starts the content, which then runs to the end of the
input. Unknown headers are preserved in Extra. A duplicated well-known
header keeps the last value seen.

Timestamps are fractional seconds since the Unix epoch. The parser
tolerates a single leading space before the decimal value because older
producers emit `timestamp: <v>`.

# Errors

Parse failures return a *ParseError wrapping one of the sentinel errors
in this package. A missing timestamp is special: the partially decoded
event is returned alongside the error so the collector can stamp its own
receive time (see ErrMissingTimestamp).

# See Also

  - pkg/filter for matching events against filter descriptors
  - pkg/store for persistence of serialized events
*/
package model
