/*
Package naive implements the file-per-bucket event store backend.

Events live in one flat directory. Wall-clock time is partitioned into
fixed-width buckets (default 60 s); each bucket owns one append-only
segment file named after the bucket's lower bound in decimal seconds.
An event belongs to the bucket floor(timestamp / width) * width.

# Segment layout

A segment is a concatenation of framed records:

	<serialized event bytes><RS><length><RS>\n

where RS is the ASCII record separator (0x1e) and length is the decimal
byte length of the serialized event preceding the trailer. The trailer
lets a scan walk the file frame by frame without re-parsing event bodies:
a candidate trailer is accepted only when its decimal length equals the
exact distance back to the start of the record, so separator bytes inside
event content cannot misalign the scan.

# Index and recovery

There is no index file. At startup the directory is listed and each file
whose name parses as an integer becomes a segment entry (name, byte size,
mtime); other names are ignored. The newest segment is verified and, if a
crash left a half-written record at its tail, truncated back to the last
whole frame. Older segments are verified lazily the first time they are
reopened for appending.

# Durability

Save appends under a mutex guarding the write cursor. The active segment
is fsynced every 64 writes and a background flush loop fsyncs all open
segments at least once per half bucket width; an event is therefore
recoverable at most one flush interval after Save returns, and typically
immediately. The flush loop also closes write handles for buckets that
have gone quiet.

# Scans

Search snapshots the candidate segment list and each segment's byte size
up front, so concurrent appends never extend an in-progress scan.
Buckets disjoint from the filter's start/end window are skipped without
touching disk. Within a bucket events come back in append order;
descending scans buffer the bucket and reverse it. Cancellation is
observed at every bucket boundary.
*/
package naive
