package watcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nxadm/tail"
	"github.com/rs/zerolog"

	"github.com/theia-log/theia/pkg/client"
	"github.com/theia-log/theia/pkg/config"
	"github.com/theia-log/theia/pkg/log"
	"github.com/theia-log/theia/pkg/metrics"
	"github.com/theia-log/theia/pkg/model"
)

const (
	defaultBuffer   = 1024
	offsetsInterval = 2 * time.Second
	maxBackoff      = 30 * time.Second
)

// Shipper is the outbound side of the watcher: one open push channel.
type Shipper interface {
	Send(ev *model.Event) error
	Close() error
}

// Config holds the watcher configuration.
type Config struct {
	// Collector is the host:port of the collector's push endpoint.
	Collector string

	// Files are the files to follow.
	Files []config.WatchFile

	// Tags are attached to every produced event.
	Tags []string

	// DataDir holds the offsets database. Empty disables persistence
	// and every file starts tailing at its end.
	DataDir string

	// Buffer is the in-memory event queue length. Zero means 1024.
	Buffer int
}

// Watcher follows files and ships their appended lines as events.
type Watcher struct {
	cfg     Config
	logger  zerolog.Logger
	offsets *offsetDB
	events  chan *model.Event
	tails   []*tail.Tail

	// dialFn is swapped out by tests.
	dialFn func(ctx context.Context) (Shipper, error)
}

// New creates a watcher. When cfg.DataDir is set, the offsets database
// is opened (and created) there.
func New(cfg Config) (*Watcher, error) {
	if cfg.Collector == "" {
		return nil, fmt.Errorf("watcher: collector address is required")
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("watcher: no files to watch")
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = defaultBuffer
	}

	w := &Watcher{
		cfg:    cfg,
		logger: log.WithComponent("watcher"),
		events: make(chan *model.Event, cfg.Buffer),
	}
	w.dialFn = func(ctx context.Context) (Shipper, error) {
		return client.Dial(ctx, cfg.Collector)
	}

	if cfg.DataDir != "" {
		offsets, err := openOffsets(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		w.offsets = offsets
	}
	return w, nil
}

// Run tails every configured file and ships events until ctx is
// cancelled. It blocks.
func (w *Watcher) Run(ctx context.Context) error {
	for _, f := range w.cfg.Files {
		t, err := w.follow(f)
		if err != nil {
			w.stopTails()
			return err
		}
		w.tails = append(w.tails, t)
		go w.readLines(t, f)
	}

	go w.saveOffsetsLoop(ctx)

	w.ship(ctx)

	// Tell only reports a position while the tailer's file is open, so the
	// final offsets are taken before the tailers are stopped.
	w.saveOffsets()
	w.stopTails()
	if w.offsets != nil {
		_ = w.offsets.close()
	}
	return nil
}

// follow opens one tailer, resuming from the persisted offset when
// there is one and from the end of the file otherwise.
func (w *Watcher) follow(f config.WatchFile) (*tail.Tail, error) {
	location := &tail.SeekInfo{Whence: io.SeekEnd}
	if w.offsets != nil {
		if offset, ok := w.offsets.get(f.Path); ok {
			location = &tail.SeekInfo{Offset: offset, Whence: io.SeekStart}
		}
	}

	t, err := tail.TailFile(f.Path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: location,
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", f.Path, err)
	}

	w.logger.Info().Str("file", f.Path).Str("source", sourceName(f)).Msg("Following file")
	return t, nil
}

// readLines turns one file's appended lines into events on the queue.
// The queue never blocks a reader: when the collector is unreachable
// long enough to fill it, new lines are dropped and counted.
func (w *Watcher) readLines(t *tail.Tail, f config.WatchFile) {
	source := sourceName(f)
	for line := range t.Lines {
		if line.Err != nil {
			w.logger.Warn().Err(line.Err).Str("file", f.Path).Msg("Tail error")
			continue
		}
		metrics.WatcherLinesRead.Inc()

		ev := &model.Event{
			ID:        uuid.New().String(),
			Timestamp: model.Now(),
			Source:    source,
			Tags:      w.cfg.Tags,
			Content:   line.Text,
		}

		select {
		case w.events <- ev:
		default:
			metrics.WatcherEventsDropped.Inc()
			w.logger.Debug().Str("file", f.Path).Msg("Event queue full, dropping line")
		}
	}
}

// ship drains the event queue into the push channel, redialing with
// exponential backoff when the collector goes away.
func (w *Watcher) ship(ctx context.Context) {
	var conn Shipper
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			for attempt := 0; attempt < 2; attempt++ {
				if conn == nil {
					conn = w.redial(ctx)
					if conn == nil {
						return // ctx cancelled while backing off
					}
				}
				err := conn.Send(ev)
				if err == nil {
					break
				}
				w.logger.Warn().Err(err).Msg("Push channel failed, redialing")
				_ = conn.Close()
				conn = nil
			}
			if conn == nil {
				metrics.WatcherEventsDropped.Inc()
			}
		}
	}
}

// redial keeps dialing until it succeeds or ctx is cancelled.
func (w *Watcher) redial(ctx context.Context) Shipper {
	backoff := time.Second
	for {
		conn, err := w.dialFn(ctx)
		if err == nil {
			w.logger.Info().Str("collector", w.cfg.Collector).Msg("Connected to collector")
			return conn
		}
		w.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Collector unreachable")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func (w *Watcher) saveOffsetsLoop(ctx context.Context) {
	if w.offsets == nil {
		return
	}
	ticker := time.NewTicker(offsetsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.saveOffsets()
		}
	}
}

func (w *Watcher) saveOffsets() {
	if w.offsets == nil {
		return
	}
	for _, t := range w.tails {
		offset, err := t.Tell()
		if err != nil {
			continue
		}
		if err := w.offsets.put(t.Filename, offset); err != nil {
			w.logger.Warn().Err(err).Str("file", t.Filename).Msg("Could not persist offset")
		}
	}
}

func (w *Watcher) stopTails() {
	for _, t := range w.tails {
		_ = t.Stop()
		t.Cleanup()
	}
}

func sourceName(f config.WatchFile) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Path
}
