/*
Package collector implements the Theia collector server.

The collector terminates client message channels on three paths, all
carried over WebSocket, and coordinates the event store, the live
broker and the codec:

	┌────────────────────── COLLECTOR ───────────────────────┐
	│                                                         │
	│  /event ──► parse ──► store.Save ──► broker.Dispatch    │
	│                                          │              │
	│  /live  ──► filter ──► subscribe ◄───────┘              │
	│                          │ matching events              │
	│                          ▼                              │
	│                    outbound buffers ──► subscribers     │
	│                                                         │
	│  /find  ──► filter ──► store.Search ──► event stream    │
	│                                                         │
	│  /metrics, /healthz on the same listener                │
	└─────────────────────────────────────────────────────────┘

# Channel protocols

/event carries one serialized event per inbound message and never
replies. A message that fails to parse is logged and skipped; the
channel stays open, because a watcher mis-framing one event is no
reason to drop its connection. Events without a timestamp header are
stamped with the collector's receive time. A store write failure closes
the channel without dispatching the event.

/find expects a filter JSON object as its first inbound message.
Malformed JSON or a regex that fails to compile gets a one-line error
message back and the channel is closed. Otherwise the matching
historical events stream out one per message and the server closes the
channel after the last one. A client disconnect mid-stream abandons the
scan at the next bucket boundary.

/live expects the same first message. On success the channel is
registered with the broker and matching events flow until the client
disconnects or the subscriber is evicted for not draining its outbound
buffer. Further inbound messages are ignored. The server never
initiates the close on a healthy subscriber; there is deliberately no
read idle timeout on this path.

# Concurrency

Every channel is owned by one handler goroutine that reads inbound
messages; live channels additionally own a writer goroutine draining a
bounded outbound buffer. Broker dispatch runs synchronously on the push
handler, so ingest throughput is bounded by storage, not by fan-out
scheduling, and each subscriber observes events in arrival order per
push channel. Outbound writes carry a deadline (default 5 s); a live
subscriber that cannot drain within its buffer's grace period is
evicted rather than ever stalling dispatch.
*/
package collector
