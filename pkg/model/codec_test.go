package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalLayout(t *testing.T) {
	ev := &Event{
		ID:        "331c531d",
		Timestamp: 1509989630.6749051,
		Source:    "/dev/sensors/door1-sensor",
		Tags:      []string{"sensors", "home"},
		Content:   "Door has been unlocked.",
	}

	want := "id:331c531d\n" +
		"timestamp:1509989630.6749051\n" +
		"source:/dev/sensors/door1-sensor\n" +
		"tags:sensors,home\n" +
		"Door has been unlocked."

	assert.Equal(t, want, string(Marshal(ev)))
}

func TestMarshalEmptyTagsAndContent(t *testing.T) {
	ev := &Event{ID: "a", Timestamp: 10, Source: "src"}

	want := "id:a\ntimestamp:10.0000000\nsource:src\ntags:\n"
	assert.Equal(t, want, string(Marshal(ev)))
}

func TestMarshalExtraHeadersInInsertionOrder(t *testing.T) {
	ev := &Event{ID: "a", Timestamp: 1, Source: "s"}
	ev.SetExtra("host", "web-1")
	ev.SetExtra("pid", "4242")
	ev.SetExtra("host", "web-2") // replaces in place

	want := "id:a\ntimestamp:1.0000000\nsource:s\ntags:\n" +
		"host:web-2\npid:4242\n"
	assert.Equal(t, want, string(Marshal(ev)))
}

func TestMarshalTruncatesMultilineHeaderValues(t *testing.T) {
	ev := &Event{ID: "a\nb", Timestamp: 1, Source: "s\nneak"}

	got := string(Marshal(ev))
	assert.Contains(t, got, "id:a\n")
	assert.Contains(t, got, "source:s\n")
	assert.NotContains(t, got, "neak")
}

func TestRoundTrip(t *testing.T) {
	// Scenario: serialize then parse yields a structurally equal event.
	ev := &Event{
		ID:        "A",
		Timestamp: 1000.5,
		Source:    "src",
		Tags:      []string{"x", "y"},
		Content:   "hello\nworld",
	}

	parsed, err := Parse(Marshal(ev))
	require.NoError(t, err)
	assert.Equal(t, ev, parsed)
}

func TestRoundTripWithExtras(t *testing.T) {
	ev := &Event{
		ID:        "evt-1",
		Timestamp: 42.25,
		Source:    "svc",
		Tags:      []string{"a"},
		Content:   "line with a : colon\nand more",
		Extra:     []Header{{Name: "host", Value: "web-1"}},
	}

	parsed, err := Parse(Marshal(ev))
	require.NoError(t, err)
	assert.Equal(t, ev, parsed)
}

func TestReserializeNormalizesHeaderOrder(t *testing.T) {
	// Parsing then serializing fixes the leading-four header order, no
	// matter how a producer ordered them.
	in := "timestamp:1\nsource:s\nid:a\ntags:x\nbody"
	ev, err := Parse([]byte(in))
	require.NoError(t, err)

	want := "id:a\ntimestamp:1.0000000\nsource:s\ntags:x\nbody"
	assert.Equal(t, want, string(Marshal(ev)))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Event
	}{
		{
			name:  "content after headers",
			input: "id:a\ntimestamp:12.5\nsource:s\ntags:x,y\nhello",
			want: Event{
				ID: "a", Timestamp: 12.5, Source: "s",
				Tags: []string{"x", "y"}, Content: "hello",
			},
		},
		{
			name:  "no content",
			input: "id:a\ntimestamp:12.5\nsource:s\ntags:\n",
			want:  Event{ID: "a", Timestamp: 12.5, Source: "s"},
		},
		{
			name:  "missing source and tags tolerated",
			input: "id:a\ntimestamp:3\n",
			want:  Event{ID: "a", Timestamp: 3},
		},
		{
			name:  "timestamp with leading space",
			input: "id:a\ntimestamp: 1509989630.6749051\nsource:s\ntags:\n",
			want:  Event{ID: "a", Timestamp: 1509989630.6749051, Source: "s"},
		},
		{
			name:  "duplicate known header keeps last value",
			input: "id:a\nid:b\ntimestamp:1\n",
			want:  Event{ID: "b", Timestamp: 1},
		},
		{
			name:  "unknown headers preserved in order",
			input: "id:a\ntimestamp:1\nzeta:1\nalpha:2\n",
			want: Event{
				ID: "a", Timestamp: 1,
				Extra: []Header{{Name: "zeta", Value: "1"}, {Name: "alpha", Value: "2"}},
			},
		},
		{
			name:  "empty tag elements discarded",
			input: "id:a\ntimestamp:1\ntags:,x,,y,\n",
			want:  Event{ID: "a", Timestamp: 1, Tags: []string{"x", "y"}},
		},
		{
			name:  "content keeps embedded newlines and colons",
			input: "id:a\ntimestamp:1\nmulti line\nwith:colon later",
			want:  Event{ID: "a", Timestamp: 1, Content: "multi line\nwith:colon later"},
		},
		{
			name:  "blank line starts content",
			input: "id:a\ntimestamp:1\n\ntrailing body",
			want:  Event{ID: "a", Timestamp: 1, Content: "\ntrailing body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty input", input: "", want: ErrEmptyInput},
		{name: "missing id", input: "timestamp:1\nsource:s\n", want: ErrMissingID},
		{name: "missing timestamp", input: "id:a\nsource:s\n", want: ErrMissingTimestamp},
		{name: "non numeric timestamp", input: "id:a\ntimestamp:yesterday\n", want: ErrBadTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestParseMissingTimestampReturnsPartialEvent(t *testing.T) {
	// The collector stamps its own receive time on this path, so the
	// decoded fields must survive the error.
	ev, err := Parse([]byte("id:a\nsource:s\ntags:x\nhello"))
	require.ErrorIs(t, err, ErrMissingTimestamp)
	require.NotNil(t, ev)
	assert.Equal(t, "a", ev.ID)
	assert.Equal(t, "s", ev.Source)
	assert.Equal(t, []string{"x"}, ev.Tags)
	assert.Equal(t, "hello", ev.Content)
}

func TestUnixFloor(t *testing.T) {
	ev := &Event{Timestamp: 100.999}
	assert.Equal(t, int64(100), ev.Unix())
}
