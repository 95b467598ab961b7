package model

import (
	"math"
	"time"
)

// Header is a single extra header carried by an event. Extra headers are
// not interpreted by the collector; they are preserved verbatim through
// serialization and storage.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event represents a log record occurring at a specific time.
//
// Each event is uniquely identified by its ID in the whole system. An
// event comes from a Source and always carries a Timestamp, expressed in
// fractional seconds since the Unix epoch. The timestamp is normally
// assigned by the producer; the collector stamps its own receive time
// only when the producer did not.
//
// Tags are arbitrary strings attached by the producer to help filtering.
// Content is the payload, an arbitrary UTF-8 text which may contain
// newlines.
type Event struct {
	ID        string
	Timestamp float64
	Source    string
	Tags      []string
	Content   string
	Extra     []Header
}

// Unix returns the integer floor of the event timestamp. Filter time
// bounds compare against this value.
func (e *Event) Unix() int64 {
	return int64(math.Floor(e.Timestamp))
}

// Time converts the event timestamp to a time.Time.
func (e *Event) Time() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Now returns the current wall clock as an event timestamp.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// SetExtra appends an extra header, replacing the value in place if a
// header with the same name is already present.
func (e *Event) SetExtra(name, value string) {
	for i := range e.Extra {
		if e.Extra[i].Name == name {
			e.Extra[i].Value = value
			return
		}
	}
	e.Extra = append(e.Extra, Header{Name: name, Value: value})
}

// GetExtra returns the value of the named extra header and whether it is
// present.
func (e *Event) GetExtra(name string) (string, bool) {
	for i := range e.Extra {
		if e.Extra[i].Name == name {
			return e.Extra[i].Value, true
		}
	}
	return "", false
}
