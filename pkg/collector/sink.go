package collector

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Sink errors that evict a live subscriber.
var (
	ErrSubscriberGone = errors.New("subscriber channel is gone")
	ErrBufferFull     = errors.New("subscriber outbound buffer did not drain")
)

// connSink adapts a live channel to the broker's Sink interface. It
// owns a writer goroutine draining a bounded outbound buffer, so the
// broker's dispatch never blocks on the network: Send either enqueues
// within the grace period or fails, and a failed write deadline kills
// the writer, which in turn fails every later Send.
type connSink struct {
	conn    *websocket.Conn
	out     chan []byte
	timeout time.Duration
	grace   time.Duration

	quit     chan struct{}
	dead     chan struct{}
	quitOnce sync.Once
}

func newConnSink(conn *websocket.Conn, buffer int, timeout, grace time.Duration) *connSink {
	s := &connSink{
		conn:    conn,
		out:     make(chan []byte, buffer),
		timeout: timeout,
		grace:   grace,
		quit:    make(chan struct{}),
		dead:    make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Send enqueues one serialized event for delivery. It waits at most the
// grace period on a full buffer.
func (s *connSink) Send(payload []byte) error {
	select {
	case s.out <- payload:
		return nil
	case <-s.dead:
		return ErrSubscriberGone
	default:
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case s.out <- payload:
		return nil
	case <-s.dead:
		return ErrSubscriberGone
	case <-timer.C:
		return ErrBufferFull
	}
}

// Close stops the writer. The connection itself is closed by the owning
// handler.
func (s *connSink) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *connSink) writeLoop() {
	defer close(s.dead)
	for {
		select {
		case payload := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				// Unblock the handler's read loop as well.
				_ = s.conn.Close()
				return
			}
		case <-s.quit:
			return
		}
	}
}
