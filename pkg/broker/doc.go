/*
Package broker fans incoming events out to live subscribers.

The broker owns the subscription set: every live client that has sent
its filter is registered here as a (sink, predicate) pair under a
subscription id. The collector's push handler calls Dispatch once per
accepted event; the broker serializes the event once, evaluates each
subscriber's compiled filter and hands the payload to every matching
sink.

# Delivery guarantees

Dispatch runs synchronously on the caller's goroutine, so each
subscriber observes events in the order Dispatch was called. No ordering
across subscribers is promised.

Dispatch never blocks on a slow subscriber. A sink is expected to
enqueue the payload on a bounded outbound buffer and return an error
when the buffer stays full past its grace period or the connection is
gone; any sink error evicts the subscription on the spot. Backpressure
is subscriber eviction, not producer stall.

# Concurrency

The subscription set is read-mostly: dispatches take a read lock and
iterate a snapshot, membership changes take the write lock. Evictions
found during a dispatch are applied after the iteration, so concurrent
dispatches never invalidate each other's snapshots.
*/
package broker
