package report

import (
	"strings"
	"time"
)

// Page size limits. Interactive queries are clamped hard; callers that ask
// for more than the interactive cap are treated as export-sized and allowed
// up to the export cap.
const (
	interactivePageSizeCap = 200
	exportPageSizeCap      = 100000
)

// Query carries the filter, sort and pagination parameters of one report
// request. A nil FromUTC or ToUTC means no date filter ("all time").
type Query struct {
	FromUTC    *time.Time
	ToUTC      *time.Time
	CategoryID *int64
	Search     string
	SortColumn string
	SortDesc   bool
	PerUser    bool
	Page       int
	PageSize   int
}

// page returns the 1-based page number.
func (q Query) page() int {
	if q.Page < 1 {
		return 1
	}
	return q.Page
}

// limit clamps the page size to the interactive cap, or the export cap for
// export-sized requests.
func (q Query) limit() int {
	maxLimit := interactivePageSizeCap
	if q.PageSize > interactivePageSizeCap {
		maxLimit = exportPageSizeCap
	}
	switch {
	case q.PageSize < 1:
		return 1
	case q.PageSize > maxLimit:
		return maxLimit
	default:
		return q.PageSize
	}
}

// offset returns the row offset of the requested page.
func (q Query) offset() int {
	return (q.page() - 1) * q.limit()
}

// like returns the SQL LIKE pattern for the search term, or "" when the
// query has no usable search.
func (q Query) like() string {
	term := strings.TrimSpace(q.Search)
	if term == "" {
		return ""
	}
	return "%" + term + "%"
}

// epochBounds converts the window to Unix epoch seconds. noFilter is true
// when either bound is absent, in which case every row is admitted.
func (q Query) epochBounds() (fromEpoch, toEpoch int64, noFilter bool) {
	if q.FromUTC == nil || q.ToUTC == nil {
		return 0, 0, true
	}
	return q.FromUTC.Unix(), q.ToUTC.Unix(), false
}

// ResolvePreset translates a named date preset into an explicit UTC window.
// Unknown presets leave from/to untouched; "all-time" clears them.
func ResolvePreset(preset string, now time.Time, from, to *time.Time) (*time.Time, *time.Time) {
	switch strings.ToLower(preset) {
	case "all-time":
		return nil, nil
	case "last-month":
		startOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		startOfLastMonth := startOfThisMonth.AddDate(0, -1, 0)
		endOfLastMonth := startOfThisMonth.Add(-time.Second)
		return &startOfLastMonth, &endOfLastMonth
	case "last-3-months":
		start := now.AddDate(0, -3, 0)
		return &start, &now
	case "last-6-months":
		start := now.AddDate(0, -6, 0)
		return &start, &now
	case "last-year", "1-year":
		start := now.AddDate(-1, 0, 0)
		return &start, &now
	default:
		return from, to
	}
}
