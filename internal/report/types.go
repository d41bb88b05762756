package report

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DataSource identifies which system a merged row was built from.
type DataSource string

const (
	DataSourceMoodle    DataSource = "moodle"
	DataSourceWordPress DataSource = "wordpress"
	DataSourceMerged    DataSource = "merged"
)

// OptionalString is an enrichment field that may be absent in a source.
// Absence is carried explicitly instead of as magic marker strings, so the
// merge logic only ever checks Valid; display sentinels ("No Phone", "-")
// are applied at the rendering edge.
type OptionalString struct {
	String string
	Valid bool
}

// Present builds a valid OptionalString.
func Present(value string) OptionalString {
	return OptionalString{String: value, Valid: true}
}

// Or returns the value, or the given display sentinel when absent.
func (o OptionalString) Or(sentinel string) string {
	if o.Valid {
		return o.String
	}
	return sentinel
}

// legacy marker strings that some upstream records carry in place of an
// empty field; treated as absent at the scan boundary
var legacySentinels = map[string]bool{
	"-":           true,
	"No Phone":    true,
	"No SAID":     true,
	"No PPRA":     true,
	"No Province": true,
	"No Agency":   true,
}

// Scan implements sql.Scanner. NULL, empty and legacy sentinel values all
// scan as absent.
func (o *OptionalString) Scan(src any) error {
	o.String, o.Valid = "", false
	if src == nil {
		return nil
	}

	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into OptionalString", src)
	}

	s = strings.TrimSpace(s)
	if s == "" || legacySentinels[s] {
		return nil
	}

	o.String, o.Valid = s, true
	return nil
}

// Value implements driver.Valuer.
func (o OptionalString) Value() (driver.Value, error) {
	if !o.Valid {
		return nil, nil
	}
	return o.String, nil
}

// MarshalJSON emits the value or null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.String)
}

// UnmarshalJSON accepts a string or null.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		o.String, o.Valid = "", false
		return nil
	}
	if err := json.Unmarshal(data, &o.String); err != nil {
		return err
	}
	o.Valid = o.String != ""
	return nil
}

// MoodleReportRow is one course-completion record from the LMS, enriched
// with the user's custom profile fields.
type MoodleReportRow struct {
	UserID               int            `json:"userId"`
	FirstName            string         `json:"firstName"`
	LastName             string         `json:"lastName"`
	Email                string         `json:"email"`
	PhoneNumber          OptionalString `json:"phoneNumber"`
	PpraNo               OptionalString `json:"ppraNo"`
	IDNo                 OptionalString `json:"idNo"`
	Province             OptionalString `json:"province"`
	Agency               OptionalString `json:"agency"`
	CourseName           string         `json:"courseName"`
	Category             string         `json:"category"`
	EnrolmentDate        time.Time      `json:"enrolmentDate"`
	CompletionDate       time.Time      `json:"completionDate"`
	FourthCompletionDate time.Time      `json:"fourthCompletionDate"`
}

// WordPressReportRow is one membership profile record from the shop side.
// The course/date fields mirror the Moodle shape so both sources can flow
// through one merge and render path; WordPress has no course data, so the
// three dates all carry the registration time.
type WordPressReportRow struct {
	UserID               int            `json:"userId"`
	FirstName            string         `json:"firstName"`
	LastName             string         `json:"lastName"`
	Email                string         `json:"email"`
	PhoneNumber          OptionalString `json:"phoneNumber"`
	PpraNo               OptionalString `json:"ppraNo"`
	IDNo                 OptionalString `json:"idNo"`
	Province             OptionalString `json:"province"`
	Agency               OptionalString `json:"agency"`
	CourseName           string         `json:"courseName"`
	Category             string         `json:"category"`
	EnrolmentDate        time.Time      `json:"enrolmentDate"`
	CompletionDate       time.Time      `json:"completionDate"`
	FourthCompletionDate time.Time      `json:"fourthCompletionDate"`
}

// MergedReportRow is the reconciled view over both sources. At most one of
// HighlightRed/HighlightBlue is ever set; rows present in both sources have
// neither.
type MergedReportRow struct {
	UserID               int            `json:"userId"`
	FirstName            string         `json:"firstName"`
	LastName             string         `json:"lastName"`
	Email                string         `json:"email"`
	PhoneNumber          OptionalString `json:"phoneNumber"`
	PpraNo               OptionalString `json:"ppraNo"`
	IDNo                 OptionalString `json:"idNo"`
	Province             OptionalString `json:"province"`
	Agency               OptionalString `json:"agency"`
	CourseName           string         `json:"courseName"`
	Category             string         `json:"category"`
	EnrolmentDate        time.Time      `json:"enrolmentDate"`
	CompletionDate       time.Time      `json:"completionDate"`
	FourthCompletionDate time.Time      `json:"fourthCompletionDate"`
	HighlightRed         bool           `json:"highlightRed"`
	HighlightBlue        bool           `json:"highlightBlue"`
	DataSource           DataSource     `json:"dataSource"`
}

// CourseCategory is a Moodle course category used as a filter parameter.
type CourseCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PagedResult is one page of a filtered result set. TotalCount reflects the
// full filtered set, not just the returned page.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

// Summary holds the dashboard headline numbers.
type Summary struct {
	SalesTotal      float64 `json:"salesTotal"`
	EnrolmentCount  int     `json:"enrolmentCount"`
	CompletionCount int     `json:"completionCount"`
}
