package request

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/stats"
	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
)

// Range is the resolved time window of a stats request.
type Range struct {
	StartDate time.Time
	EndDate   time.Time
	Unit      stats.Unit
}

// DateRange reads startAt and endAt (epoch milliseconds) and resolves the
// bucket unit. A requested unit finer than the span allows is replaced by the
// finest allowed one.
func DateRange(r *http.Request) (Range, error) {
	q := r.URL.Query()
	startMs, ok := parseEpochMillis(q.Get("startAt"))
	if !ok {
		return Range{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "startAt must be epoch milliseconds")
	}
	endMs, ok := parseEpochMillis(q.Get("endAt"))
	if !ok {
		return Range{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "endAt must be epoch milliseconds")
	}
	start := time.UnixMilli(startMs).UTC()
	end := time.UnixMilli(endMs).UTC()
	if end.Before(start) {
		return Range{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"endAt (%d) is before startAt (%d)", endMs, startMs)
	}

	unit := MinimumUnit(start, end)
	if requested, ok := stats.ParseUnit(q.Get("unit")); ok && isAllowed(requested, start, end) {
		unit = requested
	}
	return Range{StartDate: start, EndDate: end, Unit: unit}, nil
}

// MinimumUnit is the finest unit that keeps the series for [start, end] to a
// reasonable number of buckets.
func MinimumUnit(start, end time.Time) stats.Unit {
	span := end.Sub(start)
	switch {
	case span <= 60*time.Minute:
		return stats.UnitMinute
	case span <= 48*time.Hour:
		return stats.UnitHour
	case !end.After(start.AddDate(0, 12, 0)):
		return stats.UnitDay
	case !end.After(start.AddDate(0, 24, 0)):
		return stats.UnitMonth
	default:
		return stats.UnitYear
	}
}

// AllowedUnits lists the units a request over [start, end] may ask for, from
// finest to coarsest.
func AllowedUnits(start, end time.Time) []stats.Unit {
	minUnit := MinimumUnit(start, end)
	if minUnit == stats.UnitYear {
		minUnit = stats.UnitMonth
	}
	var units []stats.Unit
	for _, u := range stats.Units {
		if u.CoarserOrEqual(minUnit) {
			units = append(units, u)
		}
	}
	return units
}

func isAllowed(u stats.Unit, start, end time.Time) bool {
	for _, a := range AllowedUnits(start, end) {
		if a == u {
			return true
		}
	}
	return false
}

// Filters copies the free-text filter parameters from the query.
func Filters(r *http.Request) stats.Filters {
	q := r.URL.Query()
	return stats.Filters{
		URL:      q.Get("url"),
		Referrer: q.Get("referrer"),
		Title:    q.Get("title"),
		Host:     q.Get("host"),
		OS:       q.Get("os"),
		Browser:  q.Get("browser"),
		Device:   q.Get("device"),
		Country:  q.Get("country"),
		Region:   q.Get("region"),
		City:     q.Get("city"),
		Tag:      q.Get("tag"),
		Compare:  q.Get("compare"),
	}
}

// Timezone returns the requested timezone, defaulting to UTC.
func Timezone(r *http.Request) string {
	if tz := r.URL.Query().Get("timezone"); tz != "" {
		return tz
	}
	return "UTC"
}

// String renders the range for logs.
func (rg Range) String() string {
	return fmt.Sprintf("%s..%s/%s", rg.StartDate.Format(time.RFC3339), rg.EndDate.Format(time.RFC3339), rg.Unit)
}
