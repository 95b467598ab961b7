package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/model"
)

// ServerError is a one-line error message the collector sent in place
// of an event stream, typically a rejected filter.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "collector: " + e.Message
}

// EventFunc receives one streamed event. Returning an error stops the
// stream and surfaces that error to the caller.
type EventFunc func(*model.Event) error

// Query issues historical and live queries against one collector.
type Query struct {
	addr string
}

// NewQuery creates a query client for a collector address (host:port).
func NewQuery(addr string) *Query {
	return &Query{addr: addr}
}

// Find opens a /find channel, sends the filter and invokes fn for every
// event in the historical stream. It returns nil once the server closes
// the channel after the last event.
func (q *Query) Find(ctx context.Context, f *filter.Filter, fn EventFunc) error {
	return q.stream(ctx, "/find", f, fn)
}

// Live opens a /live channel, sends the filter and invokes fn for every
// matching event until ctx is cancelled or the collector goes away. A
// cancelled context returns nil: closing the channel is how a live
// client says goodbye.
func (q *Query) Live(ctx context.Context, f *filter.Filter, fn EventFunc) error {
	err := q.stream(ctx, "/live", f, fn)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (q *Query) stream(ctx context.Context, path string, f *filter.Filter, fn EventFunc) error {
	conn, err := dial(ctx, q.addr, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the channel when the context goes; that unblocks ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send filter: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event stream: %w", err)
		}

		ev, perr := model.Parse(data)
		if perr != nil {
			if msg, ok := errorLine(data); ok {
				return &ServerError{Message: msg}
			}
			return fmt.Errorf("decode streamed event: %w", perr)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// errorLine recognizes the collector's one-line error messages.
func errorLine(data []byte) (string, bool) {
	text := string(data)
	if strings.HasPrefix(text, "error: ") && !strings.Contains(text, "\n") {
		return strings.TrimPrefix(text, "error: "), true
	}
	return "", false
}
