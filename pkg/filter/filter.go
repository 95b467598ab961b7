package filter

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/theia-log/theia/pkg/model"
)

// Sort orders accepted by the order field.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filter is the wire-level filter descriptor. All present fields are
// conjunctive; a zero Filter matches every event.
type Filter struct {
	ID      string   `json:"id,omitempty"`
	Source  string   `json:"source,omitempty"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Start   *int64   `json:"start,omitempty"`
	End     *int64   `json:"end,omitempty"`
	Order   string   `json:"order,omitempty"`
}

// Descending reports whether a historical query wants newest-first
// results. The default order is ascending.
func (f *Filter) Descending() bool {
	return f.Order == OrderDesc
}

// Decode unmarshals a filter descriptor from its JSON wire form.
// Unknown keys are ignored; an invalid order value is rejected.
func Decode(data []byte) (*Filter, error) {
	f := &Filter{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if f.Order != "" && f.Order != OrderAsc && f.Order != OrderDesc {
		return nil, fmt.Errorf("decode filter: invalid order %q", f.Order)
	}
	return f, nil
}

// Predicate is the compiled, pure form of a filter. Implementations
// retain no state between calls and are safe for concurrent use.
type Predicate func(*model.Event) bool

// CompileError reports a filter field whose regex failed to compile.
type CompileError struct {
	Field   string
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile filter %s pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Compile builds the predicate for a filter descriptor. Each present
// regex is compiled exactly once; the first failure aborts with a
// *CompileError naming the offending field.
//
// Evaluation short-circuits in a fixed order: time bounds, id, source,
// tags, content. Regexes late in the chain never run when an earlier
// check already rejected the event, which keeps content regexes off the
// bulk of a large scan.
func Compile(f *Filter) (Predicate, error) {
	var (
		idRe, sourceRe, contentRe *regexp.Regexp
		tagRes                    []*regexp.Regexp
		err                       error
	)

	if f.ID != "" {
		if idRe, err = regexp.Compile(f.ID); err != nil {
			return nil, &CompileError{Field: "id", Pattern: f.ID, Err: err}
		}
	}
	if f.Source != "" {
		if sourceRe, err = regexp.Compile(f.Source); err != nil {
			return nil, &CompileError{Field: "source", Pattern: f.Source, Err: err}
		}
	}
	for _, pattern := range f.Tags {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &CompileError{Field: "tags", Pattern: pattern, Err: err}
		}
		tagRes = append(tagRes, re)
	}
	if f.Content != "" {
		if contentRe, err = regexp.Compile(f.Content); err != nil {
			return nil, &CompileError{Field: "content", Pattern: f.Content, Err: err}
		}
	}

	start, end := f.Start, f.End

	return func(ev *model.Event) bool {
		if start != nil || end != nil {
			ts := ev.Unix()
			if start != nil && ts < *start {
				return false
			}
			if end != nil && ts > *end {
				return false
			}
		}
		if idRe != nil && !idRe.MatchString(ev.ID) {
			return false
		}
		if sourceRe != nil && !sourceRe.MatchString(ev.Source) {
			return false
		}
		if len(tagRes) > 0 && !anyTagMatches(tagRes, ev.Tags) {
			return false
		}
		if contentRe != nil && !contentRe.MatchString(ev.Content) {
			return false
		}
		return true
	}, nil
}

// anyTagMatches stops at the first matching (regex, tag) pair.
func anyTagMatches(res []*regexp.Regexp, tags []string) bool {
	for _, re := range res {
		for _, tag := range tags {
			if re.MatchString(tag) {
				return true
			}
		}
	}
	return false
}
