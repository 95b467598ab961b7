package collector

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/metrics"
	"github.com/theia-log/theia/pkg/model"
)

// handlePush runs the /event channel: one serialized event per inbound
// message, no replies, terminal on client disconnect.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, cleanup, err := s.upgrade(w, r)
	if err != nil {
		return
	}
	defer cleanup()

	logger := s.logger.With().Str("path", "/event").Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("Push channel open")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("Push channel closed")
			return
		}
		metrics.EventsReceived.Inc()

		ev, err := model.Parse(data)
		if err != nil {
			if errors.Is(err, model.ErrMissingTimestamp) && ev != nil {
				// Producer-supplied timestamps are authoritative; the
				// receive time is only a fallback.
				ev.Timestamp = model.Now()
			} else {
				metrics.ParseFailures.Inc()
				logger.Warn().Err(err).Int("bytes", len(data)).Msg("Skipping unparseable event")
				continue
			}
		}

		if err := s.store.Save(r.Context(), ev); err != nil {
			metrics.SaveFailures.Inc()
			logger.Error().Err(err).Str("event", ev.ID).Msg("Store write failed, closing push channel")
			return
		}
		metrics.EventsStored.Inc()

		s.broker.Dispatch(ev)
	}
}

// handleFind runs the /find channel: one filter in, a bounded stream of
// historical events out, then a server-initiated close.
func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	conn, cleanup, err := s.upgrade(w, r)
	if err != nil {
		return
	}
	defer cleanup()

	logger := s.logger.With().Str("path", "/find").Str("remote", conn.RemoteAddr().String()).Logger()

	f, ok := s.readFilter(conn, logger)
	if !ok {
		return
	}

	// The read pump only watches for the client going away; any further
	// inbound messages are discarded.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	cur, err := s.store.Search(ctx, f)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejecting find query")
		s.writeError(conn, err)
		return
	}
	defer cur.Close()
	metrics.FindQueries.Inc()

	streamed := 0
	for {
		ev, err := cur.Next()
		if err != nil {
			logger.Error().Err(err).Int("streamed", streamed).Msg("Search failed mid-stream")
			return
		}
		if ev == nil {
			break
		}

		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, model.Marshal(ev)); err != nil {
			logger.Debug().Err(err).Int("streamed", streamed).Msg("Find client went away")
			return
		}
		streamed++
		metrics.FindEventsStreamed.Inc()
	}

	logger.Debug().Int("streamed", streamed).Msg("Find stream complete")
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.cfg.WriteTimeout))
}

// handleLive runs the /live channel: one filter in, then matching
// events until the client disconnects or the subscriber is evicted.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, cleanup, err := s.upgrade(w, r)
	if err != nil {
		return
	}
	defer cleanup()

	logger := s.logger.With().Str("path", "/live").Str("remote", conn.RemoteAddr().String()).Logger()

	f, ok := s.readFilter(conn, logger)
	if !ok {
		return
	}
	pred, err := filter.Compile(f)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejecting live filter")
		s.writeError(conn, err)
		return
	}

	sink := newConnSink(conn, s.cfg.SendBuffer, s.cfg.WriteTimeout, s.cfg.SendGrace)
	defer sink.Close()

	id := s.broker.Subscribe(sink, pred)
	defer s.broker.Unsubscribe(id)
	logger.Debug().Str("subscription", id).Msg("Live channel subscribed")

	// No read idle timeout here: a silent live client is a healthy live
	// client. Inbound messages past the filter are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logger.Debug().Err(err).Str("subscription", id).Msg("Live channel closed")
			return
		}
	}
}

// readFilter reads and decodes the mandatory first message of a find or
// live channel. On failure it reports the one-line error to the client
// and returns ok=false.
func (s *Server) readFilter(conn *websocket.Conn, logger zerolog.Logger) (*filter.Filter, bool) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	f, err := filter.Decode(data)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejecting malformed filter")
		s.writeError(conn, err)
		return nil, false
	}
	return f, true
}
