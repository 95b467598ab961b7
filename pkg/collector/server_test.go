package collector

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theia-log/theia/pkg/broker"
	"github.com/theia-log/theia/pkg/client"
	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/model"
	"github.com/theia-log/theia/pkg/store/naive"
)

// testCollector is a full collector on an httptest listener backed by a
// file store in a temp directory.
type testCollector struct {
	addr   string
	server *Server
}

func startCollector(t *testing.T) *testCollector {
	t.Helper()

	st, err := naive.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := NewServer(Config{}, st, broker.New())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testCollector{
		addr:   strings.TrimPrefix(ts.URL, "http://"),
		server: srv,
	}
}

func (c *testCollector) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(client.ChannelURL(c.addr, path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func pushEvent(t *testing.T, conn *websocket.Conn, ev *model.Event) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, model.Marshal(ev)))
}

func findIDs(t *testing.T, addr string, f *filter.Filter) []string {
	t.Helper()
	var ids []string
	err := client.NewQuery(addr).Find(context.Background(), f, func(ev *model.Event) error {
		ids = append(ids, ev.ID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

// waitForIDs polls /find until the expected ids show up; pushes are
// acknowledged by nothing, so tests synchronize through the store.
func waitForIDs(t *testing.T, addr string, f *filter.Filter, want []string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var got []string
	for time.Now().Before(deadline) {
		got = findIDs(t, addr, f)
		if assert.ObjectsAreEqual(want, got) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v, last saw %v", want, got)
}

func testEvent(id string, ts float64, content string, tags ...string) *model.Event {
	return &model.Event{ID: id, Timestamp: ts, Source: "test", Tags: tags, Content: content}
}

func TestPushThenFind(t *testing.T) {
	c := startCollector(t)
	push := c.dial(t, "/event")

	pushEvent(t, push, testEvent("ev1", 100, "one", "web"))
	pushEvent(t, push, testEvent("ev2", 200, "two", "web", "prod"))
	pushEvent(t, push, testEvent("ev3", 300, "three", "db"))

	waitForIDs(t, c.addr, &filter.Filter{}, []string{"ev1", "ev2", "ev3"})
	waitForIDs(t, c.addr, &filter.Filter{Tags: []string{"web.*"}}, []string{"ev1", "ev2"})

	start, end := int64(150), int64(250)
	waitForIDs(t, c.addr, &filter.Filter{Start: &start, End: &end}, []string{"ev2"})
}

func TestFindDescending(t *testing.T) {
	c := startCollector(t)
	push := c.dial(t, "/event")
	pushEvent(t, push, testEvent("ev1", 100, "one"))
	pushEvent(t, push, testEvent("ev2", 200, "two"))

	waitForIDs(t, c.addr, &filter.Filter{Order: filter.OrderDesc}, []string{"ev2", "ev1"})
}

func TestPushSkipsUnparseableMessage(t *testing.T) {
	c := startCollector(t)
	push := c.dial(t, "/event")

	// No colon on the first line: not an event. The channel must stay
	// open and keep accepting real events.
	require.NoError(t, push.WriteMessage(websocket.TextMessage, []byte("complete garbage")))
	pushEvent(t, push, testEvent("ev1", 100, "real one"))

	waitForIDs(t, c.addr, &filter.Filter{}, []string{"ev1"})
}

func TestPushStampsMissingTimestamp(t *testing.T) {
	c := startCollector(t)
	push := c.dial(t, "/event")

	require.NoError(t, push.WriteMessage(websocket.TextMessage,
		[]byte("id:no-ts\nsource:src\ntags:\npayload")))

	waitForIDs(t, c.addr, &filter.Filter{}, []string{"no-ts"})

	var stamped float64
	err := client.NewQuery(c.addr).Find(context.Background(), &filter.Filter{}, func(ev *model.Event) error {
		stamped = ev.Timestamp
		return nil
	})
	require.NoError(t, err)
	assert.InDelta(t, model.Now(), stamped, 30)
}

func TestFindRejectsMalformedFilter(t *testing.T) {
	c := startCollector(t)
	conn := c.dial(t, "/find")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "error: "))

	// The server closes after the error message.
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestFindRejectsBadRegex(t *testing.T) {
	c := startCollector(t)

	err := client.NewQuery(c.addr).Find(context.Background(), &filter.Filter{ID: "(["},
		func(*model.Event) error { return nil })

	var serr *client.ServerError
	require.ErrorAs(t, err, &serr)
}

func TestLiveReceivesMatchingEvents(t *testing.T) {
	c := startCollector(t)

	live := c.dial(t, "/live")
	require.NoError(t, live.WriteMessage(websocket.TextMessage, []byte(`{"content":"\\[ERR\\]"}`)))

	// Subscription happens after the filter message is processed; wait
	// for the broker to pick it up.
	deadline := time.Now().Add(5 * time.Second)
	for c.server.broker.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, c.server.broker.Count())

	push := c.dial(t, "/event")
	pushEvent(t, push, testEvent("e1", 100, "ok"))
	pushEvent(t, push, testEvent("e2", 101, "[ERR] a"))
	pushEvent(t, push, testEvent("e3", 102, "[ERR] b"))

	var got []string
	for len(got) < 2 {
		require.NoError(t, live.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := live.ReadMessage()
		require.NoError(t, err)
		ev, err := model.Parse(data)
		require.NoError(t, err)
		got = append(got, ev.ID)
	}
	assert.Equal(t, []string{"e2", "e3"}, got)
}

func TestLiveClientDisconnectRemovesSubscription(t *testing.T) {
	c := startCollector(t)

	live := c.dial(t, "/live")
	require.NoError(t, live.WriteMessage(websocket.TextMessage, []byte(`{}`)))

	deadline := time.Now().Add(5 * time.Second)
	for c.server.broker.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, c.server.broker.Count())

	require.NoError(t, live.Close())
	for c.server.broker.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, c.server.broker.Count())
}

func TestQueryLiveClient(t *testing.T) {
	c := startCollector(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 8)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.NewQuery(c.addr).Live(ctx, &filter.Filter{Source: "test"}, func(ev *model.Event) error {
			received <- ev.ID
			return nil
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for c.server.broker.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	push := c.dial(t, "/event")
	pushEvent(t, push, testEvent("live-1", 100, "hello"))

	select {
	case id := <-received:
		assert.Equal(t, "live-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for live event")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("live client did not stop on context cancellation")
	}
}
