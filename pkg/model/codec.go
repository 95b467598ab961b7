package model

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// Sentinel parse failures. A *ParseError returned by Parse wraps exactly
// one of these.
var (
	ErrEmptyInput       = errors.New("empty event payload")
	ErrMissingID        = errors.New("missing id header")
	ErrMissingTimestamp = errors.New("missing timestamp header")
	ErrBadTimestamp     = errors.New("malformed timestamp header")
)

// ParseError reports a failure to decode an event from its wire form.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse event: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Well-known header names, always emitted first and in this order.
const (
	headerID        = "id"
	headerTimestamp = "timestamp"
	headerSource    = "source"
	headerTags      = "tags"
)

// Marshal serializes an event to its wire form.
//
// The four well-known headers are emitted first, in fixed order, followed
// by the extra headers in insertion order, followed by the content. The
// newline after the final header separates it from the content; no
// trailing newline is appended after the content. Header values are
// truncated at their first newline, keeping every header on one line.
func Marshal(e *Event) []byte {
	var buf bytes.Buffer
	buf.WriteString(headerID)
	buf.WriteByte(':')
	buf.WriteString(singleLine(e.ID))
	buf.WriteByte('\n')

	buf.WriteString(headerTimestamp)
	buf.WriteByte(':')
	buf.WriteString(FormatTimestamp(e.Timestamp))
	buf.WriteByte('\n')

	buf.WriteString(headerSource)
	buf.WriteByte(':')
	buf.WriteString(singleLine(e.Source))
	buf.WriteByte('\n')

	buf.WriteString(headerTags)
	buf.WriteByte(':')
	for i, tag := range e.Tags {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(singleLine(tag))
	}
	buf.WriteByte('\n')

	for _, h := range e.Extra {
		buf.WriteString(singleLine(h.Name))
		buf.WriteByte(':')
		buf.WriteString(singleLine(h.Value))
		buf.WriteByte('\n')
	}

	buf.WriteString(e.Content)
	return buf.Bytes()
}

// FormatTimestamp renders an event timestamp the way producers emit it,
// with seven fractional digits.
func FormatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 7, 64)
}

// Parse decodes an event from its wire form.
//
// Lines are read from the start of the input and split at the first
// colon. The first line without a colon starts the content, which runs
// verbatim to the end of the input. Well-known headers populate the typed
// fields; unknown headers are kept in Extra in order of first occurrence.
// A duplicated well-known header keeps the last value.
//
// A missing or malformed id or timestamp yields a *ParseError. For a
// missing timestamp only, the partially decoded event is returned along
// with the error so the caller may assign a receive timestamp (see the
// collector push path).
func Parse(data []byte) (*Event, error) {
	if len(data) == 0 {
		return nil, &ParseError{Err: ErrEmptyInput}
	}

	ev := &Event{}
	var sawID, sawTimestamp bool

	pos := 0
	for pos < len(data) {
		lineEnd := bytes.IndexByte(data[pos:], '\n')
		var line []byte
		if lineEnd < 0 {
			line = data[pos:]
		} else {
			line = data[pos : pos+lineEnd]
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			// Everything from this line on, newlines included, is content.
			ev.Content = string(data[pos:])
			return finishParse(ev, sawID, sawTimestamp)
		}

		name := string(line[:colon])
		value := string(line[colon+1:])
		switch name {
		case headerID:
			ev.ID = value
			sawID = true
		case headerTimestamp:
			ts, err := parseTimestamp(value)
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			ev.Timestamp = ts
			sawTimestamp = true
		case headerSource:
			ev.Source = value
		case headerTags:
			ev.Tags = splitTags(value)
		default:
			ev.SetExtra(name, value)
		}

		if lineEnd < 0 {
			break
		}
		pos += lineEnd + 1
	}

	return finishParse(ev, sawID, sawTimestamp)
}

func finishParse(ev *Event, sawID, sawTimestamp bool) (*Event, error) {
	if !sawID {
		return nil, &ParseError{Err: ErrMissingID}
	}
	if !sawTimestamp {
		return ev, &ParseError{Err: ErrMissingTimestamp}
	}
	return ev, nil
}

// parseTimestamp tolerates a single leading space before the decimal
// value; older producers emit `timestamp: <v>`.
func parseTimestamp(value string) (float64, error) {
	value = strings.TrimPrefix(value, " ")
	ts, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, ErrBadTimestamp
	}
	return ts, nil
}

func splitTags(value string) []string {
	var tags []string
	for _, tag := range strings.Split(value, ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func singleLine(value string) string {
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx]
	}
	return value
}
