package naive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/model"
)

// segmentSnapshot pins a segment's identity and byte size at scan start,
// so appends racing with the scan are never observed.
type segmentSnapshot struct {
	id   int64
	path string
	size int64
}

func sortSnapshots(segs []segmentSnapshot, desc bool) {
	sort.Slice(segs, func(i, j int) bool {
		if desc {
			return segs[i].id > segs[j].id
		}
		return segs[i].id < segs[j].id
	})
}

// cursor walks candidate segments bucket by bucket, buffering one
// bucket's matches at a time. Cancellation is checked at every bucket
// boundary.
type cursor struct {
	ctx  context.Context
	pred filter.Predicate
	segs []segmentSnapshot
	desc bool

	buffered []*model.Event
	nextSeg  int
	failed   bool
}

func (c *cursor) Next() (*model.Event, error) {
	for {
		if c.failed {
			return nil, fmt.Errorf("cursor is in a failed state")
		}
		if len(c.buffered) > 0 {
			ev := c.buffered[0]
			c.buffered = c.buffered[1:]
			return ev, nil
		}
		if c.nextSeg >= len(c.segs) {
			return nil, nil
		}
		if err := c.ctx.Err(); err != nil {
			c.failed = true
			return nil, err
		}

		seg := c.segs[c.nextSeg]
		c.nextSeg++
		events, err := c.readSegment(seg)
		if err != nil {
			c.failed = true
			return nil, err
		}
		if c.desc {
			reverse(events)
		}
		c.buffered = events
	}
}

func (c *cursor) Close() error {
	c.segs = nil
	c.buffered = nil
	return nil
}

// readSegment reads one segment up to its snapshot size and returns the
// events accepted by the predicate, in append order. A record inside a
// valid frame that fails to parse is a read error and terminates the
// scan; a torn tail past the last whole frame is silently ignored.
func (c *cursor) readSegment(seg segmentSnapshot) ([]*model.Event, error) {
	f, err := os.Open(seg.path)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", seg.path, err)
	}
	defer f.Close()

	buf := make([]byte, seg.size)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read segment %s: %w", seg.path, err)
	}
	buf = buf[:n]

	var events []*model.Event
	pos := 0
	for {
		raw, next, ok := nextFrame(buf, pos)
		if !ok {
			break
		}
		pos = next

		ev, err := model.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("decode record in segment %s: %w", seg.path, err)
		}
		if c.pred(ev) {
			events = append(events, ev)
		}
	}
	return events, nil
}

func reverse(events []*model.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
