package query

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// DefaultBaseURL is the portal's search results endpoint.
const DefaultBaseURL = "https://www.vspsor.com/Search/Results"

// ErrInvalidSubject is returned for county names that cannot be encoded.
var ErrInvalidSubject = errors.New("invalid subject name")

// Filter is one of the portal's mutually exclusive offender status filters.
type Filter int

const (
	FilterAll Filter = iota
	FilterHomeless
	FilterNotIncarcerated
	FilterCivillyCommitted
	FilterIncarcerated
)

// NumFilters is the number of filters queried per county.
const NumFilters = 5

// Filters lists every filter in output order.
var Filters = [NumFilters]Filter{
	FilterAll,
	FilterHomeless,
	FilterNotIncarcerated,
	FilterCivillyCommitted,
	FilterIncarcerated,
}

// String returns the filter's display name.
func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "All"
	case FilterHomeless:
		return "Homeless"
	case FilterNotIncarcerated:
		return "NotIncarcerated"
	case FilterCivillyCommitted:
		return "CivillyCommitted"
	case FilterIncarcerated:
		return "Incarcerated"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// WireValue returns the value sent in the portal's Filter parameter.
// The unfiltered search is spelled "None" by the portal.
func (f Filter) WireValue() string {
	if f == FilterAll {
		return "None"
	}
	return f.String()
}

// MarshalText encodes the filter by name.
func (f Filter) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a filter name or wire value.
func (f *Filter) UnmarshalText(text []byte) error {
	parsed, err := ParseFilter(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFilter resolves a display name or wire value (case-insensitive).
func ParseFilter(s string) (Filter, error) {
	for _, f := range Filters {
		if strings.EqualFold(s, f.String()) || strings.EqualFold(s, f.WireValue()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown filter: %s", s)
}

// Target is one (county, filter) search, resolved to a URL.
type Target struct {
	Subject string `json:"subject"`
	Filter  Filter `json:"filter"`
	URL     string `json:"url"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Subject, t.Filter)
}

// Builder constructs targets against a base URL.
type Builder struct {
	BaseURL string
}

// NewBuilder returns a Builder for baseURL, or the portal default when empty.
func NewBuilder(baseURL string) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Builder{BaseURL: baseURL}
}

// BuildTargets returns one target per filter for the portal default.
func BuildTargets(subject string) ([]Target, error) {
	return NewBuilder("").BuildTargets(subject)
}

// BuildTargets returns one target per filter, in Filters order.
func (b *Builder) BuildTargets(subject string) ([]Target, error) {
	if strings.TrimSpace(subject) == "" || !utf8.ValidString(subject) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}

	targets := make([]Target, 0, NumFilters)
	for _, f := range Filters {
		targets = append(targets, Target{
			Subject: subject,
			Filter:  f,
			URL:     b.url(subject, f),
		})
	}
	return targets, nil
}

// url keeps the portal's parameter order; url.Values.Encode would sort it.
func (b *Builder) url(subject string, f Filter) string {
	params := [][2]string{
		{"Filter", f.WireValue()},
		{"firstName", ""},
		{"lastName", ""},
		{"registrationNumber", ""},
		{"Address", ""},
		{"County", subject},
		{"Zip", ""},
	}

	var sb strings.Builder
	sb.WriteString(b.BaseURL)
	sb.WriteByte('?')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p[0])
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[1]))
	}
	return sb.String()
}
