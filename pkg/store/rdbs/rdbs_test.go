package rdbs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/model"
	"github.com/theia-log/theia/pkg/store"
)

func int64p(v int64) *int64 { return &v }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// The cursor streams rows while other saves may run; a single
	// in-memory connection keeps every statement on the same database.
	db.SetMaxOpenConns(1)

	st, err := New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testEvent(id string, ts float64, source string, tags ...string) *model.Event {
	return &model.Event{
		ID:        id,
		Timestamp: ts,
		Source:    source,
		Tags:      tags,
		Content:   "content of " + id,
	}
}

func collect(t *testing.T, cur store.Cursor) []string {
	t.Helper()
	defer cur.Close()

	var out []string
	for {
		ev, err := cur.Next()
		require.NoError(t, err)
		if ev == nil {
			return out
		}
		out = append(out, ev.ID)
	}
}

func seedThree(t *testing.T, st *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, testEvent("ev1", 100, "web-1", "web")))
	require.NoError(t, st.Save(ctx, testEvent("ev2", 200, "web-2", "web", "prod")))
	require.NoError(t, st.Save(ctx, testEvent("ev3", 300, "db-1", "db")))
}

func TestSaveAndSearchAll(t *testing.T) {
	st := openTestStore(t)
	seedThree(t, st)

	cur, err := st.Search(context.Background(), &filter.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ev1", "ev2", "ev3"}, collect(t, cur))
}

func TestDuplicateIDIsNoOp(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	original := testEvent("ev1", 100, "first")
	require.NoError(t, st.Save(ctx, original))
	require.NoError(t, st.Save(ctx, testEvent("ev1", 999, "second")))

	cur, err := st.Search(ctx, &filter.Filter{})
	require.NoError(t, err)
	defer cur.Close()

	ev, err := cur.Next()
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "first", ev.Source)
	assert.Equal(t, float64(100), ev.Timestamp)

	ev, err = cur.Next()
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestSearchByTagRegex(t *testing.T) {
	st := openTestStore(t)
	seedThree(t, st)

	cur, err := st.Search(context.Background(), &filter.Filter{Tags: []string{"web.*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ev1", "ev2"}, collect(t, cur))
}

func TestSearchTimeWindow(t *testing.T) {
	st := openTestStore(t)
	seedThree(t, st)

	cur, err := st.Search(context.Background(), &filter.Filter{Start: int64p(150), End: int64p(250)})
	require.NoError(t, err)
	assert.Equal(t, []string{"ev2"}, collect(t, cur))
}

func TestSearchEndBoundUsesTimestampFloor(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, testEvent("in", 100.5, "src")))
	require.NoError(t, st.Save(ctx, testEvent("out", 101.5, "src")))

	cur, err := st.Search(ctx, &filter.Filter{End: int64p(100)})
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, collect(t, cur))
}

func TestSearchDescending(t *testing.T) {
	st := openTestStore(t)
	seedThree(t, st)

	cur, err := st.Search(context.Background(), &filter.Filter{Order: filter.OrderDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"ev3", "ev2", "ev1"}, collect(t, cur))
}

func TestCustomHeadersRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ev := testEvent("ev1", 100, "src", "x")
	ev.Extra = []model.Header{{Name: "host", Value: "web-1"}, {Name: "pid", Value: "7"}}
	require.NoError(t, st.Save(ctx, ev))

	cur, err := st.Search(ctx, &filter.Filter{})
	require.NoError(t, err)
	defer cur.Close()

	got, err := cur.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev.Extra, got.Extra)
}

func TestSearchCompileErrorSurfaces(t *testing.T) {
	st := openTestStore(t)

	_, err := st.Search(context.Background(), &filter.Filter{Source: "(["})
	var cerr *filter.CompileError
	assert.ErrorAs(t, err, &cerr)
}

func TestClosedStore(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Close())

	err := st.Save(context.Background(), testEvent("ev1", 100, "src"))
	assert.ErrorIs(t, err, store.ErrClosed)

	_, err = st.Search(context.Background(), &filter.Filter{})
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestSaveInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS events_timestamp_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO events").WillReturnError(sql.ErrConnDone)

	st, err := New(db)
	require.NoError(t, err)
	defer st.Close()

	err = st.Save(context.Background(), testEvent("ev1", 100, "src"))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
