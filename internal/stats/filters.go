// Package stats computes pageview statistics for websites: the filter model
// shared by every stats query, the PostgreSQL query itself, a Redis cache in
// front of it, and an ordered fan-out across websites.
package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the time bucket used to group pageviews.
type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
	UnitMonth  Unit = "month"
	UnitYear   Unit = "year"
)

// Units lists every unit from finest to coarsest.
var Units = []Unit{UnitMinute, UnitHour, UnitDay, UnitMonth, UnitYear}

// ParseUnit returns the Unit named s.
func ParseUnit(s string) (Unit, bool) {
	for _, u := range Units {
		if string(u) == s {
			return u, true
		}
	}
	return "", false
}

// rank orders units from finest (0) to coarsest.
func (u Unit) rank() int {
	for i, v := range Units {
		if v == u {
			return i
		}
	}
	return -1
}

// CoarserOrEqual reports whether u is at least as coarse as other.
func (u Unit) CoarserOrEqual(other Unit) bool {
	return u.rank() >= other.rank()
}

// Filters are the free-text dimensions a caller may narrow stats by. Empty
// fields are absent. Compare is carried through untouched and never applied
// to queries.
type Filters struct {
	URL      string `json:"url,omitempty"`
	Referrer string `json:"referrer,omitempty"`
	Title    string `json:"title,omitempty"`
	Host     string `json:"host,omitempty"`
	OS       string `json:"os,omitempty"`
	Browser  string `json:"browser,omitempty"`
	Device   string `json:"device,omitempty"`
	Country  string `json:"country,omitempty"`
	Region   string `json:"region,omitempty"`
	City     string `json:"city,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Compare  string `json:"compare,omitempty"`
}

// PageviewFilters is the full query input for one stats call: the request
// filters plus the resolved date range, bucket unit, and timezone.
type PageviewFilters struct {
	Filters
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Unit      Unit      `json:"unit"`
	Timezone  string    `json:"timezone,omitempty"`
}

// StatPoint is one bucket of the pageview series: X is the bucket start in
// the query timezone, Y the number of pageviews in it.
type StatPoint struct {
	X string `json:"x"`
	Y int64  `json:"y"`
}

type column struct {
	name  string
	value func(Filters) string
}

// filterColumns maps filters to the columns they constrain. Event columns
// live on website_event (e), visitor attributes on session (s).
var filterColumns = []column{
	{"e.url_path", func(f Filters) string { return f.URL }},
	{"e.referrer_domain", func(f Filters) string { return f.Referrer }},
	{"e.page_title", func(f Filters) string { return f.Title }},
	{"e.hostname", func(f Filters) string { return f.Host }},
	{"e.tag", func(f Filters) string { return f.Tag }},
	{"s.os", func(f Filters) string { return f.OS }},
	{"s.browser", func(f Filters) string { return f.Browser }},
	{"s.device", func(f Filters) string { return f.Device }},
	{"s.country", func(f Filters) string { return f.Country }},
	{"s.region", func(f Filters) string { return f.Region }},
	{"s.city", func(f Filters) string { return f.City }},
}

// Where returns " AND col = $n" clauses for every non-empty filter, numbering
// placeholders after the argOffset arguments the caller already bound.
func (f Filters) Where(argOffset int) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(filterColumns))
	for _, c := range filterColumns {
		v := c.value(f)
		if v == "" {
			continue
		}
		args = append(args, v)
		fmt.Fprintf(&b, " AND %s = $%d", c.name, argOffset+len(args))
	}
	return b.String(), args
}

// HasSessionFilters reports whether any filter needs the session join.
func (f Filters) HasSessionFilters() bool {
	return f.OS != "" || f.Browser != "" || f.Device != "" ||
		f.Country != "" || f.Region != "" || f.City != ""
}

// cacheKey renders a stable identity for a website + filters pair.
func (f PageviewFilters) cacheKey(websiteID string) string {
	parts := []string{
		websiteID,
		strconv.FormatInt(f.StartDate.UnixMilli(), 10),
		strconv.FormatInt(f.EndDate.UnixMilli(), 10),
		string(f.Unit),
		f.Timezone,
	}
	for _, c := range filterColumns {
		parts = append(parts, c.value(f.Filters))
	}
	return strings.Join(parts, "\x1f")
}
