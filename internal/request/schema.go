// Package request validates query strings against per-method schemas and
// extracts the date range, filters, and timezone of stats requests.
package request

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/stats"
)

// Kind is the value type a query parameter must parse as.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindNumber
	KindEpochMillis
	KindUnit
	KindTimezone
)

// Rule constrains a single query parameter.
type Rule struct {
	Kind     Kind
	Required bool
	// Min applies to KindInt only.
	Min int64
}

// Rules maps parameter names to their rule.
type Rules map[string]Rule

// Schema maps an HTTP method to the rules its query must satisfy. Methods
// with no entry are not validated.
type Schema map[string]Rules

// ValidationError lists the offending parameters and why each was rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FilterParams are the free-text filter parameters every stats route accepts.
var FilterParams = []string{
	"url", "referrer", "title", "host", "os", "browser",
	"device", "country", "region", "city", "tag", "compare",
}

// PageviewsSchema validates GET /api/websites/pageviews.
var PageviewsSchema = Schema{
	http.MethodGet: withFilters(Rules{
		"page":     {Kind: KindInt, Required: true, Min: 1},
		"pageSize": {Kind: KindInt, Required: true, Min: 1},
		"startAt":  {Kind: KindEpochMillis, Required: true},
		"endAt":    {Kind: KindEpochMillis, Required: true},
		"unit":     {Kind: KindUnit},
		"timezone": {Kind: KindTimezone},
	}),
}

func withFilters(r Rules) Rules {
	for _, name := range FilterParams {
		r[name] = Rule{Kind: KindString}
	}
	return r
}

// Validate checks q against the rules for method. It returns a
// *ValidationError naming every failing parameter.
func (s Schema) Validate(method string, q url.Values) error {
	rules, ok := s[method]
	if !ok {
		return nil
	}
	fields := make(map[string]string)
	for name, rule := range rules {
		raw := q.Get(name)
		if raw == "" {
			if rule.Required {
				fields[name] = "is required"
			}
			continue
		}
		if msg := rule.check(raw); msg != "" {
			fields[name] = msg
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (r Rule) check(raw string) string {
	switch r.Kind {
	case KindInt:
		n, ok := parseInteger(raw)
		if !ok {
			return "must be an integer"
		}
		if n < r.Min {
			return fmt.Sprintf("must be at least %d", r.Min)
		}
	case KindNumber:
		if _, ok := parseNumber(raw); !ok {
			return "must be a number"
		}
	case KindEpochMillis:
		if _, ok := parseEpochMillis(raw); !ok {
			return fmt.Sprintf("must be epoch milliseconds within ±%.0f", maxEpochMillis)
		}
	case KindUnit:
		if _, ok := stats.ParseUnit(raw); !ok {
			return "must be one of year, month, day, hour, minute"
		}
	case KindTimezone:
		if !validTimezone(raw) {
			return "must be a valid IANA timezone"
		}
	}
	return ""
}

func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxEpochMillis bounds timestamps to ±100,000,000 days around the epoch.
const maxEpochMillis = 8.64e15

func parseEpochMillis(raw string) (int64, bool) {
	f, ok := parseNumber(raw)
	if !ok || math.Abs(f) > maxEpochMillis {
		return 0, false
	}
	return int64(f), true
}

// parseInteger accepts any numeric literal with an integral value, so "2"
// and "2.0" are both 2.
func parseInteger(raw string) (int64, bool) {
	f, ok := parseNumber(raw)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func validTimezone(name string) bool {
	if name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Int returns the integer value of a validated parameter.
func Int(q url.Values, name string) int {
	n, _ := parseInteger(q.Get(name))
	return int(n)
}
