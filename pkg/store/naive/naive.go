package naive

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/log"
	"github.com/theia-log/theia/pkg/model"
	"github.com/theia-log/theia/pkg/store"
)

const (
	// DefaultBucketWidth is the time span covered by one segment file.
	DefaultBucketWidth int64 = 60

	// syncEvery is the number of appends between forced fsyncs of the
	// active segment, on top of the periodic flush loop.
	syncEvery = 64
)

// segment tracks one bucket's file. size counts only bytes of whole
// frames known to be on disk; scans snapshot it instead of re-stating
// the file.
type segment struct {
	id       int64
	path     string
	size     int64
	modified time.Time
	verified bool
}

// Store is the file-per-bucket EventStore backend.
type Store struct {
	dir           string
	width         int64
	flushInterval time.Duration
	logger        zerolog.Logger

	mu       sync.Mutex
	segments map[int64]*segment
	open     map[int64]*os.File
	pending  int
	closed   bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Option adjusts store construction.
type Option func(*Store)

// WithBucketWidth sets the bucket width in seconds.
func WithBucketWidth(seconds int64) Option {
	return func(s *Store) {
		if seconds > 0 {
			s.width = seconds
		}
	}
}

// WithFlushInterval overrides the periodic fsync interval. The default
// is half the bucket width.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// Open opens (or creates) the store directory, rebuilds the in-memory
// bucket index from the directory listing and starts the flush loop.
// File names that do not parse as integers are ignored. The newest
// segment is checked for a torn tail record and truncated if needed.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:      dir,
		width:    DefaultBucketWidth,
		segments: make(map[int64]*segment),
		open:     make(map[int64]*os.File),
		logger:   log.WithComponent("store.naive"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.flushInterval == 0 {
		s.flushInterval = time.Duration(s.width) * time.Second / 2
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	go s.flushLoop()
	return s, nil
}

func (s *Store) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("list store directory: %w", err)
	}

	var newest *segment
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat segment %s: %w", entry.Name(), err)
		}
		seg := &segment{
			id:       id,
			path:     filepath.Join(s.dir, entry.Name()),
			size:     info.Size(),
			modified: info.ModTime(),
		}
		s.segments[id] = seg
		if newest == nil || seg.id > newest.id {
			newest = seg
		}
	}

	// A crash can only have torn the segment that was being written;
	// older segments are verified lazily if they are ever reopened for
	// appending.
	if newest != nil {
		if err := s.recoverSegment(newest); err != nil {
			return err
		}
	}

	if n := len(s.segments); n > 0 {
		first, last := s.span()
		s.logger.Info().
			Int("segments", n).
			Int64("from", first).
			Int64("to", last).
			Msg("Loaded segment index")
	} else {
		s.logger.Info().Str("dir", s.dir).Msg("Starting with empty store")
	}
	return nil
}

func (s *Store) span() (first, last int64) {
	first, last = math.MaxInt64, math.MinInt64
	for id := range s.segments {
		if id < first {
			first = id
		}
		if id > last {
			last = id
		}
	}
	return first, last + s.width
}

// recoverSegment truncates a segment back to its last whole frame.
func (s *Store) recoverSegment(seg *segment) error {
	buf, err := os.ReadFile(seg.path)
	if err != nil {
		return fmt.Errorf("recover segment %s: %w", seg.path, err)
	}
	valid := validLength(buf)
	if valid < len(buf) {
		s.logger.Warn().
			Str("segment", seg.path).
			Int("torn_bytes", len(buf)-valid).
			Msg("Truncating half-written tail record")
		if err := os.Truncate(seg.path, int64(valid)); err != nil {
			return fmt.Errorf("truncate segment %s: %w", seg.path, err)
		}
	}
	seg.size = int64(valid)
	seg.verified = true
	return nil
}

func (s *Store) bucketFor(ts float64) int64 {
	return int64(math.Floor(ts/float64(s.width))) * s.width
}

// Save appends the event to its bucket's segment. The write is framed so
// that a torn append is detected and dropped on the next open; a failed
// write never corrupts records already on disk.
func (s *Store) Save(ctx context.Context, ev *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := frame(model.Marshal(ev))
	bucket := s.bucketFor(ev.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	f, seg, err := s.appendHandle(bucket)
	if err != nil {
		return err
	}
	n, err := f.Write(payload)
	if err != nil {
		// A short write leaves a torn tail; force re-verification before
		// this segment is appended to again.
		seg.verified = false
		delete(s.open, bucket)
		_ = f.Close()
		return fmt.Errorf("append event to segment %s: %w", seg.path, err)
	}
	seg.size += int64(n)
	seg.modified = time.Now()

	s.pending++
	if s.pending >= syncEvery {
		s.pending = 0
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync segment %s: %w", seg.path, err)
		}
	}
	return nil
}

// appendHandle returns the open write handle for a bucket, opening and
// verifying the segment on first use. Caller holds s.mu.
func (s *Store) appendHandle(bucket int64) (*os.File, *segment, error) {
	if f, ok := s.open[bucket]; ok {
		return f, s.segments[bucket], nil
	}

	seg, ok := s.segments[bucket]
	if !ok {
		seg = &segment{
			id:       bucket,
			path:     filepath.Join(s.dir, strconv.FormatInt(bucket, 10)),
			verified: true,
		}
		s.segments[bucket] = seg
	} else if !seg.verified {
		if err := s.recoverSegment(seg); err != nil {
			return nil, nil, err
		}
	}

	f, err := os.OpenFile(seg.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open segment %s: %w", seg.path, err)
	}
	s.open[bucket] = f
	return f, seg, nil
}

// Search compiles the filter and returns a cursor over matching events.
// Only buckets whose interval intersects the filter's time window are
// visited; within a bucket events stream in append order, reversed for
// descending scans.
func (s *Store) Search(ctx context.Context, f *filter.Filter) (store.Cursor, error) {
	pred, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	candidates := make([]segmentSnapshot, 0, len(s.segments))
	for id, seg := range s.segments {
		if f.Start != nil && id+s.width-1 < *f.Start {
			continue
		}
		if f.End != nil && id > *f.End {
			continue
		}
		candidates = append(candidates, segmentSnapshot{id: id, path: seg.path, size: seg.size})
	}
	s.mu.Unlock()

	sortSnapshots(candidates, f.Descending())
	return &cursor{
		ctx:  ctx,
		pred: pred,
		segs: candidates,
		desc: f.Descending(),
	}, nil
}

// Close stops the flush loop, syncs and closes all open segments and
// marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for bucket, f := range s.open {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.open, bucket)
	}
	return firstErr
}

// flushLoop periodically fsyncs open segments and drops write handles
// for buckets that have gone quiet.
func (s *Store) flushLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flushOpen()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) flushOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idle := time.Now().Add(-2 * s.flushInterval)
	for bucket, f := range s.open {
		if err := f.Sync(); err != nil {
			s.logger.Error().Err(err).Int64("bucket", bucket).Msg("Segment sync failed")
			continue
		}
		if seg := s.segments[bucket]; seg.modified.Before(idle) {
			_ = f.Close()
			delete(s.open, bucket)
		}
	}
	s.pending = 0
}
