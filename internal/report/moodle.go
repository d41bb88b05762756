package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"charter-reporter/internal/mariadb"
)

// MoodleReader executes windowed course-completion aggregation queries
// against the LMS source. Every call runs in its own read-only transaction
// on a dedicated session.
type MoodleReader struct {
	factory *mariadb.Factory
}

// NewMoodleReader creates a new Moodle report reader
func NewMoodleReader(factory *mariadb.Factory) *MoodleReader {
	return &MoodleReader{factory: factory}
}

// moodleBaseCTE builds the CTE pipeline shared by the report and count
// queries:
//   - rank each user's completions chronologically to find the 4th
//     completion timestamp (the windowing anchor and milestone flag),
//   - compute per-course enrolment time, falling back to completion time
//     when the enrolment record is missing,
//   - pivot the custom profile fields, taking the first non-empty value
//     across the shortnames that have been used historically.
//
// The prefix comes from configuration, never from the caller.
func moodleBaseCTE(prefix string) string {
	return fmt.Sprintf(`
WITH UserCompletionRank AS (
    SELECT userid, course, timecompleted,
           ROW_NUMBER() OVER (PARTITION BY userid ORDER BY timecompleted ASC) AS completion_rank
    FROM %[1]scourse_completions
    WHERE timecompleted IS NOT NULL
),
FourthCompletion AS (
    SELECT userid, timecompleted AS fourth_completion_time
    FROM UserCompletionRank
    WHERE completion_rank = 4
),
UserEnrolment AS (
    SELECT ue.userid, e.courseid, MIN(ue.timecreated) AS timeenrolled
    FROM %[1]suser_enrolments ue
    JOIN %[1]senrol e ON ue.enrolid = e.id
    GROUP BY ue.userid, e.courseid
),
EnrolmentWithFallback AS (
    SELECT cc.userid,
           cc.course AS courseid,
           COALESCE(en.timeenrolled, cc.timecompleted) AS effective_enrolment_time
    FROM %[1]scourse_completions cc
    LEFT JOIN UserEnrolment en ON cc.userid = en.userid AND cc.course = en.courseid
    WHERE cc.timecompleted IS NOT NULL
),
CustomFields AS (
    SELECT uid.userid,
           MAX(CASE WHEN uif.shortname = 'ppranumber' THEN NULLIF(uid.data, '') END) AS ppra_no,
           MAX(CASE WHEN uif.shortname = 'said' THEN NULLIF(uid.data, '') END) AS id_no,
           MAX(CASE WHEN uif.shortname IN ('region_province', 'province', 'user_province', 'employerprovince', 'workprovince') THEN NULLIF(uid.data, '') END) AS province,
           MAX(CASE WHEN uif.shortname IN ('region_agency', 'agency_name', 'agency', 'agencyname', 'employeragency', 'workagency', 'agencycompany') THEN NULLIF(uid.data, '') END) AS agency
    FROM %[1]suser_info_data uid
    JOIN %[1]suser_info_field uif ON uid.fieldid = uif.id
    WHERE uif.shortname IN (
        'ppranumber', 'said',
        'region_province', 'province', 'user_province', 'employerprovince', 'workprovince',
        'region_agency', 'agency_name', 'agency', 'agencyname', 'employeragency', 'workagency', 'agencycompany')
    GROUP BY uid.userid
),
Base AS (
    SELECT u.id AS UserId,
           u.firstname AS FirstName,
           u.lastname AS LastName,
           u.email AS Email,
           NULLIF(u.phone1, '') AS PhoneNumber,
           cf.ppra_no AS PpraNo,
           cf.id_no AS IdNo,
           cf.province AS Province,
           cf.agency AS Agency,
           c.fullname AS CourseName,
           c.category AS CategoryId,
           cat.name AS Category,
           ef.effective_enrolment_time AS EnrolmentEpoch,
           cc.timecompleted AS CompletionEpoch,
           fc.fourth_completion_time AS FourthCompletionEpoch
    FROM %[1]suser u
    JOIN %[1]scourse_completions cc ON u.id = cc.userid
    JOIN %[1]scourse c ON cc.course = c.id
    JOIN %[1]scourse_categories cat ON c.category = cat.id
    JOIN FourthCompletion fc ON u.id = fc.userid
    JOIN EnrolmentWithFallback ef ON u.id = ef.userid AND c.id = ef.courseid
    LEFT JOIN CustomFields cf ON u.id = cf.userid
    WHERE cc.timecompleted IS NOT NULL
)`, prefix)
}

// moodleFilter appends the window, category and search predicates over the
// Base CTE. Only the fragments that apply are emitted, and every value travels
// as a bind parameter.
func moodleFilter(q Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if fromEpoch, toEpoch, noFilter := q.epochBounds(); !noFilter {
		clauses = append(clauses, `FourthCompletionEpoch BETWEEN ? AND ?`)
		args = append(args, fromEpoch, toEpoch)
	}

	if q.CategoryID != nil {
		clauses = append(clauses, `CategoryId = ?`)
		args = append(args, *q.CategoryID)
	}

	if like := q.like(); like != "" {
		clauses = append(clauses, `(FirstName LIKE ? OR LastName LIKE ? OR Email LIKE ?
		OR PhoneNumber LIKE ? OR CourseName LIKE ? OR Category LIKE ? OR PpraNo LIKE ?
		OR IdNo LIKE ? OR Province LIKE ? OR Agency LIKE ?)`)
		for i := 0; i < 10; i++ {
			args = append(args, like)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, "\n  AND "), args
}

// GetReport returns one page of the LMS completion report plus the total
// matching row count, both read under the same transaction snapshot.
func (r *MoodleReader) GetReport(ctx context.Context, q Query) (PagedResult[MoodleReportRow], error) {
	var result PagedResult[MoodleReportRow]

	err := r.factory.WithReadOnlyTx(ctx, mariadb.SourceMoodle, func(tx *sql.Tx) error {
		prefix := r.factory.Prefix(mariadb.SourceMoodle)
		where, filterArgs := moodleFilter(q)

		query := moodleBaseCTE(prefix) + `
SELECT UserId, FirstName, LastName, Email, PhoneNumber,
       PpraNo, IdNo, Province, Agency,
       CourseName, Category,
       EnrolmentEpoch, CompletionEpoch, FourthCompletionEpoch,
       COUNT(*) OVER () AS TotalRows
FROM Base` + where + `
ORDER BY ` + orderByExpr(q.SortColumn, q.SortDesc) + `
LIMIT ? OFFSET ?`

		args := append(append([]any{}, filterArgs...), q.limit(), q.offset())

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("moodle report query failed: %w", err)
		}
		defer rows.Close()

		var (
			items []MoodleReportRow
			total int
		)
		for rows.Next() {
			var row MoodleReportRow
			var enrolEpoch, completionEpoch, fourthEpoch int64
			if err := rows.Scan(
				&row.UserID, &row.FirstName, &row.LastName, &row.Email, &row.PhoneNumber,
				&row.PpraNo, &row.IDNo, &row.Province, &row.Agency,
				&row.CourseName, &row.Category,
				&enrolEpoch, &completionEpoch, &fourthEpoch,
				&total,
			); err != nil {
				return fmt.Errorf("failed to scan moodle report row: %w", err)
			}
			row.EnrolmentDate = time.Unix(enrolEpoch, 0).UTC()
			row.CompletionDate = time.Unix(completionEpoch, 0).UTC()
			row.FourthCompletionDate = time.Unix(fourthEpoch, 0).UTC()
			items = append(items, row)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("moodle report rows failed: %w", err)
		}

		// An offset past the end returns no rows, which loses the windowed
		// count; fall back to a count-only query in the same snapshot.
		if len(items) == 0 && q.offset() > 0 {
			countQuery := moodleBaseCTE(prefix) + `
SELECT COUNT(*) FROM Base` + where
			if err := tx.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
				return fmt.Errorf("moodle report count failed: %w", err)
			}
		}

		result = PagedResult[MoodleReportRow]{
			Items:      items,
			TotalCount: total,
			Page:       q.page(),
			PageSize:   q.limit(),
		}
		return nil
	})
	if err != nil {
		return PagedResult[MoodleReportRow]{}, err
	}
	return result, nil
}

// GetCategories returns the visible course categories, ordered by name.
func (r *MoodleReader) GetCategories(ctx context.Context) ([]CourseCategory, error) {
	var categories []CourseCategory

	err := r.factory.WithReadOnlyTx(ctx, mariadb.SourceMoodle, func(tx *sql.Tx) error {
		prefix := r.factory.Prefix(mariadb.SourceMoodle)
		query := fmt.Sprintf(`
SELECT c.id, c.name
FROM %scourse_categories c
WHERE c.visible = 1
ORDER BY c.name`, prefix)

		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("course categories query failed: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var cat CourseCategory
			if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
				return fmt.Errorf("failed to scan course category: %w", err)
			}
			categories = append(categories, cat)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// EnrolmentCount counts enrolments in the window, optionally limited to a
// course category.
func (r *MoodleReader) EnrolmentCount(ctx context.Context, fromUTC, toUTC *time.Time, categoryID *int64) (int, error) {
	var count int

	err := r.factory.WithReadOnlyTx(ctx, mariadb.SourceMoodle, func(tx *sql.Tx) error {
		prefix := r.factory.Prefix(mariadb.SourceMoodle)

		query := fmt.Sprintf(`
SELECT COUNT(ue.id)
FROM %[1]suser_enrolments ue
JOIN %[1]senrol e ON e.id = ue.enrolid
JOIN %[1]scourse c ON c.id = e.courseid`, prefix)

		var (
			clauses []string
			args    []any
		)
		if fromUTC != nil && toUTC != nil {
			clauses = append(clauses, `ue.timecreated BETWEEN ? AND ?`)
			args = append(args, fromUTC.Unix(), toUTC.Unix())
		}
		if categoryID != nil {
			clauses = append(clauses, `c.category = ?`)
			args = append(args, *categoryID)
		}
		if len(clauses) > 0 {
			query += "\nWHERE " + strings.Join(clauses, "\n  AND ")
		}

		if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return fmt.Errorf("enrolment count query failed: %w", err)
		}
		return nil
	})
	return count, err
}

// CompletionCount counts course completions in the window, optionally
// limited to a course category.
func (r *MoodleReader) CompletionCount(ctx context.Context, fromUTC, toUTC *time.Time, categoryID *int64) (int, error) {
	var count int

	err := r.factory.WithReadOnlyTx(ctx, mariadb.SourceMoodle, func(tx *sql.Tx) error {
		prefix := r.factory.Prefix(mariadb.SourceMoodle)

		query := fmt.Sprintf(`
SELECT COUNT(cc.id)
FROM %[1]scourse_completions cc
JOIN %[1]scourse c ON c.id = cc.course
WHERE cc.timecompleted IS NOT NULL`, prefix)

		var args []any
		if fromUTC != nil && toUTC != nil {
			query += "\n  AND cc.timecompleted BETWEEN ? AND ?"
			args = append(args, fromUTC.Unix(), toUTC.Unix())
		}
		if categoryID != nil {
			query += "\n  AND c.category = ?"
			args = append(args, *categoryID)
		}

		if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return fmt.Errorf("completion count query failed: %w", err)
		}
		return nil
	})
	return count, err
}
