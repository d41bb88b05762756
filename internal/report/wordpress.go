package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"charter-reporter/internal/mariadb"
)

// WordPressReader executes membership profile queries against the
// WooCommerce source. Profile fields live in usermeta under the billing
// keys; they are pivoted into one row per user.
type WordPressReader struct {
	factory *mariadb.Factory
}

// NewWordPressReader creates a new WordPress report reader
func NewWordPressReader(factory *mariadb.Factory) *WordPressReader {
	return &WordPressReader{factory: factory}
}

// wordpressBase pivots users plus their usermeta profile fields into the
// same column aliases the LMS query produces, so the shared sort allow-list
// applies unchanged. Membership rows carry no course data; the registration
// timestamp stands in for all three date columns.
func wordpressBase(prefix string) string {
	return fmt.Sprintf(`
WITH Profile AS (
    SELECT um.user_id,
           MAX(CASE WHEN um.meta_key = 'first_name' THEN NULLIF(um.meta_value, '') END) AS first_name,
           MAX(CASE WHEN um.meta_key = 'last_name' THEN NULLIF(um.meta_value, '') END) AS last_name,
           MAX(CASE WHEN um.meta_key = 'billing_phone' THEN NULLIF(um.meta_value, '') END) AS phone,
           MAX(CASE WHEN um.meta_key = 'billing_ppra' THEN NULLIF(um.meta_value, '') END) AS ppra_no,
           MAX(CASE WHEN um.meta_key = 'billing_said' THEN NULLIF(um.meta_value, '') END) AS id_no,
           MAX(CASE WHEN um.meta_key = 'billing_state' THEN NULLIF(um.meta_value, '') END) AS province,
           MAX(CASE WHEN um.meta_key = 'billing_company' THEN NULLIF(um.meta_value, '') END) AS agency
    FROM %[1]susermeta um
    WHERE um.meta_key IN (
        'first_name', 'last_name', 'billing_phone',
        'billing_ppra', 'billing_said', 'billing_state', 'billing_company')
    GROUP BY um.user_id
),
Base AS (
    SELECT u.ID AS UserId,
           COALESCE(p.first_name, u.display_name) AS FirstName,
           COALESCE(p.last_name, '') AS LastName,
           u.user_email AS Email,
           p.phone AS PhoneNumber,
           p.ppra_no AS PpraNo,
           p.id_no AS IdNo,
           p.province AS Province,
           p.agency AS Agency,
           '' AS CourseName,
           '' AS Category,
           UNIX_TIMESTAMP(u.user_registered) AS EnrolmentEpoch,
           UNIX_TIMESTAMP(u.user_registered) AS CompletionEpoch,
           UNIX_TIMESTAMP(u.user_registered) AS FourthCompletionEpoch
    FROM %[1]susers u
    LEFT JOIN Profile p ON p.user_id = u.ID
    WHERE u.ID > 0
)`, prefix)
}

func wordpressFilter(q Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if fromEpoch, toEpoch, noFilter := q.epochBounds(); !noFilter {
		clauses = append(clauses, `EnrolmentEpoch BETWEEN ? AND ?`)
		args = append(args, fromEpoch, toEpoch)
	}

	if like := q.like(); like != "" {
		clauses = append(clauses, `(FirstName LIKE ? OR LastName LIKE ? OR Email LIKE ?
		OR PhoneNumber LIKE ? OR PpraNo LIKE ? OR IdNo LIKE ? OR Province LIKE ?
		OR Agency LIKE ?)`)
		for i := 0; i < 8; i++ {
			args = append(args, like)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, "\n  AND "), args
}

// GetReport returns one page of membership profile rows plus the total
// matching count, read under a single read-only transaction. The category
// filter has no meaning on this source and is ignored.
func (r *WordPressReader) GetReport(ctx context.Context, q Query) (PagedResult[WordPressReportRow], error) {
	var result PagedResult[WordPressReportRow]

	err := r.factory.WithReadOnlyTx(ctx, mariadb.SourceWoo, func(tx *sql.Tx) error {
		prefix := r.factory.Prefix(mariadb.SourceWoo)
		where, filterArgs := wordpressFilter(q)

		query := wordpressBase(prefix) + `
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
			return fmt.Errorf("wordpress report query failed: %w", err)
		}
		defer rows.Close()

		var (
			items []WordPressReportRow
			total int
		)
		for rows.Next() {
			var (
				row                                      WordPressReportRow
				enrolEpoch, completionEpoch, fourthEpoch int64
			)
			if err := rows.Scan(
				&row.UserID, &row.FirstName, &row.LastName, &row.Email, &row.PhoneNumber,
				&row.PpraNo, &row.IDNo, &row.Province, &row.Agency,
				&row.CourseName, &row.Category,
				&enrolEpoch, &completionEpoch, &fourthEpoch,
				&total,
			); err != nil {
				return fmt.Errorf("failed to scan wordpress report row: %w", err)
			}
			row.EnrolmentDate = time.Unix(enrolEpoch, 0).UTC()
			row.CompletionDate = time.Unix(completionEpoch, 0).UTC()
			row.FourthCompletionDate = time.Unix(fourthEpoch, 0).UTC()
			items = append(items, row)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("wordpress report rows failed: %w", err)
		}

		if len(items) == 0 && q.offset() > 0 {
			countQuery := wordpressBase(prefix) + `
SELECT COUNT(*) FROM Base` + where
			if err := tx.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
				return fmt.Errorf("wordpress report count failed: %w", err)
			}
		}

		result = PagedResult[WordPressReportRow]{
			Items:      items,
			TotalCount: total,
			Page:       q.page(),
			PageSize:   q.limit(),
		}
		return nil
	})
	if err != nil {
		return PagedResult[WordPressReportRow]{}, err
	}
	return result, nil
}

// SalesTotal sums completed order totals in the window. Order timestamps
// are stored in the store's local time, so bounds are converted before
// comparison.
func (r *WordPressReader) SalesTotal(ctx context.Context, fromUTC, toUTC *time.Time) (float64, error) {
	var total float64

	err := r.factory.WithReadOnlyTx(ctx, mariadb.SourceWoo, func(tx *sql.Tx) error {
		prefix := r.factory.Prefix(mariadb.SourceWoo)

		query := fmt.Sprintf(`
SELECT COALESCE(SUM(CAST(pm.meta_value AS DECIMAL(18, 2))), 0)
FROM %[1]sposts p
JOIN %[1]spostmeta pm ON pm.post_id = p.ID AND pm.meta_key = '_order_total'
WHERE p.post_type = 'shop_order'
  AND p.post_status = 'wc-completed'`, prefix)

		var args []any
		if fromUTC != nil && toUTC != nil {
			query += "\n  AND p.post_date BETWEEN ? AND ?"
			args = append(args, fromUTC.Local(), toUTC.Local())
		}

		if err := tx.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
			return fmt.Errorf("sales total query failed: %w", err)
		}
		return nil
	})
	return total, err
}
