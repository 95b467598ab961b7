package store

import (
	"context"
	"errors"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/model"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("event store is closed")

// Cursor iterates a lazy sequence of events produced by Search.
// Next returns (nil, nil) once the sequence is exhausted and a non-nil
// error if the underlying read failed; either way the iteration is over.
// A Cursor must be closed to release file handles or database rows.
type Cursor interface {
	Next() (*model.Event, error)
	Close() error
}

// EventStore is the interface for durable event persistence.
type EventStore interface {
	// Save durably appends an event. It must not return success until
	// the event survives a crash of the process, within the flush policy
	// documented by the backend.
	Save(ctx context.Context, ev *model.Event) error

	// Search returns a cursor over stored events matching the filter, in
	// the order the filter requests. The cursor observes only events
	// stored before the scan started.
	Search(ctx context.Context, f *filter.Filter) (Cursor, error)

	// Close flushes and releases all resources.
	Close() error
}
