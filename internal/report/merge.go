package report

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// mergeFanOutPageSize is the candidate set size pulled from each source
// before the in-memory join. Bounded deliberately; the join is all or
// nothing, so an unbounded pull could pin arbitrary memory.
const mergeFanOutPageSize = 10000

// Merger joins the two sources by normalized email and classifies every
// user as present in both, LMS only, or membership only.
type Merger struct {
	moodle    *MoodleReader
	wordpress *WordPressReader
	logger    *slog.Logger
}

// NewMerger creates a new report merger
func NewMerger(moodle *MoodleReader, wordpress *WordPressReader, logger *slog.Logger) *Merger {
	return &Merger{moodle: moodle, wordpress: wordpress, logger: logger}
}

// normalizeEmail produces the join key. An empty key marks the row as
// unmatchable and excludes it from the join.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetMergedReport runs both source queries concurrently, joins them by
// email, applies the optional per-user collapse, then filters, sorts and
// paginates in memory. TotalCount is the count after filtering, before
// pagination.
func (m *Merger) GetMergedReport(ctx context.Context, q Query) (PagedResult[MergedReportRow], error) {
	fanOut := fanOutQuery(q)

	var (
		moodleRows    []MoodleReportRow
		wordpressRows []WordPressReportRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := m.moodle.GetReport(gctx, fanOut)
		if err != nil {
			return err
		}
		moodleRows = result.Items
		return nil
	})
	g.Go(func() error {
		result, err := m.wordpress.GetReport(gctx, fanOut)
		if err != nil {
			return err
		}
		wordpressRows = result.Items
		return nil
	})
	if err := g.Wait(); err != nil {
		return PagedResult[MergedReportRow]{}, err
	}

	merged := m.join(ctx, moodleRows, wordpressRows)

	if q.PerUser {
		merged = collapsePerUser(merged)
	}

	merged = filterMerged(merged, q.Search)
	sortMerged(merged, q.SortColumn, q.SortDesc)

	return paginateMerged(merged, q), nil
}

// fanOutQuery builds the candidate query sent to both sources. The search
// term travels down so a user whose only match is a membership-side field
// classifies as membership-only rather than merged; sorting stays in memory
// because the full candidate set is re-sorted after the join anyway.
func fanOutQuery(q Query) Query {
	return Query{
		FromUTC:    q.FromUTC,
		ToUTC:      q.ToUTC,
		CategoryID: q.CategoryID,
		Search:     q.Search,
		Page:       1,
		PageSize:   mergeFanOutPageSize,
	}
}

// paginateMerged slices one page out of the filtered, sorted row set.
// TotalCount is the pre-pagination size.
func paginateMerged(rows []MergedReportRow, q Query) PagedResult[MergedReportRow] {
	total := len(rows)
	start := q.offset()
	if start > total {
		start = total
	}
	end := start + q.limit()
	if end > total {
		end = total
	}

	return PagedResult[MergedReportRow]{
		Items:      rows[start:end],
		TotalCount: total,
		Page:       q.page(),
		PageSize:   q.limit(),
	}
}

// join partitions both result sets by normalized email and emits one
// classified row set. Rows with an empty email on either side never enter
// the join.
func (m *Merger) join(ctx context.Context, moodleRows []MoodleReportRow, wordpressRows []WordPressReportRow) []MergedReportRow {
	moodleByEmail := make(map[string][]MoodleReportRow)
	skippedMoodle := 0
	for _, row := range moodleRows {
		key := normalizeEmail(row.Email)
		if key == "" {
			skippedMoodle++
			continue
		}
		moodleByEmail[key] = append(moodleByEmail[key], row)
	}

	wordpressByEmail := make(map[string][]WordPressReportRow)
	skippedWordpress := 0
	for _, row := range wordpressRows {
		key := normalizeEmail(row.Email)
		if key == "" {
			skippedWordpress++
			continue
		}
		wordpressByEmail[key] = append(wordpressByEmail[key], row)
	}

	if skippedMoodle > 0 || skippedWordpress > 0 {
		m.logger.WarnContext(ctx, "excluded rows with empty email from merge",
			"moodle", skippedMoodle,
			"wordpress", skippedWordpress)
	}

	// Iterate the union of both key sets in sorted order so the build is
	// deterministic before any sort is applied.
	keys := make([]string, 0, len(moodleByEmail)+len(wordpressByEmail))
	for key := range moodleByEmail {
		keys = append(keys, key)
	}
	for key := range wordpressByEmail {
		if _, ok := moodleByEmail[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	merged := make([]MergedReportRow, 0, len(moodleRows)+len(wordpressRows))
	for _, key := range keys {
		lmsRows, inMoodle := moodleByEmail[key]
		memberRows, inWordpress := wordpressByEmail[key]

		switch {
		case inMoodle && inWordpress:
			// Only the first membership record enriches; users are assumed
			// to hold a single membership profile.
			member := memberRows[0]
			for _, lms := range lmsRows {
				merged = append(merged, MergedReportRow{
					UserID:               lms.UserID,
					FirstName:            lms.FirstName,
					LastName:             lms.LastName,
					Email:                lms.Email,
					PhoneNumber:          enrich(member.PhoneNumber, lms.PhoneNumber),
					PpraNo:               enrich(member.PpraNo, lms.PpraNo),
					IDNo:                 enrich(member.IDNo, lms.IDNo),
					Province:             enrich(member.Province, lms.Province),
					Agency:               enrich(member.Agency, lms.Agency),
					CourseName:           lms.CourseName,
					Category:             lms.Category,
					EnrolmentDate:        lms.EnrolmentDate,
					CompletionDate:       lms.CompletionDate,
					FourthCompletionDate: lms.FourthCompletionDate,
					DataSource:           DataSourceMerged,
				})
			}
		case inMoodle:
			for _, lms := range lmsRows {
				merged = append(merged, MergedReportRow{
					UserID:               lms.UserID,
					FirstName:            lms.FirstName,
					LastName:             lms.LastName,
					Email:                lms.Email,
					PhoneNumber:          lms.PhoneNumber,
					PpraNo:               lms.PpraNo,
					IDNo:                 lms.IDNo,
					Province:             lms.Province,
					Agency:               lms.Agency,
					CourseName:           lms.CourseName,
					Category:             lms.Category,
					EnrolmentDate:        lms.EnrolmentDate,
					CompletionDate:       lms.CompletionDate,
					FourthCompletionDate: lms.FourthCompletionDate,
					HighlightRed:         true,
					DataSource:           DataSourceMoodle,
				})
			}
		default:
			for _, member := range memberRows {
				merged = append(merged, MergedReportRow{
					UserID:               member.UserID,
					FirstName:            member.FirstName,
					LastName:             member.LastName,
					Email:                member.Email,
					PhoneNumber:          member.PhoneNumber,
					PpraNo:               member.PpraNo,
					IDNo:                 member.IDNo,
					Province:             member.Province,
					Agency:               member.Agency,
					CourseName:           member.CourseName,
					Category:             member.Category,
					EnrolmentDate:        member.EnrolmentDate,
					CompletionDate:       member.CompletionDate,
					FourthCompletionDate: member.FourthCompletionDate,
					HighlightBlue:        true,
					DataSource:           DataSourceWordPress,
				})
			}
		}
	}
	return merged
}

// enrich prefers the membership value when present, falling back to the
// LMS value.
func enrich(member, lms OptionalString) OptionalString {
	if member.Valid {
		return member
	}
	return lms
}

// collapsePerUser keeps one representative row per email: the row whose
// completion is the user's 4th completion when one exists, else the row
// with the latest 4th-completion date, with course name breaking ties.
func collapsePerUser(rows []MergedReportRow) []MergedReportRow {
	best := make(map[string]MergedReportRow)
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		key := normalizeEmail(row.Email)
		current, seen := best[key]
		if !seen {
			best[key] = row
			order = append(order, key)
			continue
		}
		if betterRepresentative(row, current) {
			best[key] = row
		}
	}

	collapsed := make([]MergedReportRow, 0, len(order))
	for _, key := range order {
		collapsed = append(collapsed, best[key])
	}
	return collapsed
}

func betterRepresentative(candidate, current MergedReportRow) bool {
	candidateExact := candidate.CompletionDate.Equal(candidate.FourthCompletionDate)
	currentExact := current.CompletionDate.Equal(current.FourthCompletionDate)
	if candidateExact != currentExact {
		return candidateExact
	}
	if !candidate.FourthCompletionDate.Equal(current.FourthCompletionDate) {
		return candidate.FourthCompletionDate.After(current.FourthCompletionDate)
	}
	return candidate.CourseName < current.CourseName
}

// filterMerged re-applies the substring search over the same field set the
// source readers search.
func filterMerged(rows []MergedReportRow, search string) []MergedReportRow {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return rows
	}

	filtered := make([]MergedReportRow, 0, len(rows))
	for _, row := range rows {
		if rowMatches(&row, term) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func rowMatches(row *MergedReportRow, term string) bool {
	fields := []string{
		row.FirstName, row.LastName, row.Email,
		row.PhoneNumber.Or(""), row.PpraNo.Or(""), row.IDNo.Or(""),
		row.Province.Or(""), row.Agency.Or(""),
		row.CourseName, row.Category,
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// sortMerged orders rows by the requested column via the merged allow-list,
// with last name then first name as the stable secondary key.
func sortMerged(rows []MergedReportRow, sortColumn string, sortDesc bool) {
	column := strings.ToLower(strings.TrimSpace(sortColumn))

	var less func(a, b *MergedReportRow) int
	if keyFn, ok := mergedSortKeys[column]; ok {
		less = func(a, b *MergedReportRow) int {
			return strings.Compare(keyFn(a), keyFn(b))
		}
	} else if timeFn, ok := mergedSortTimes[column]; ok {
		less = func(a, b *MergedReportRow) int {
			switch av, bv := timeFn(a), timeFn(b); {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if less != nil {
			if c := less(a, b); c != 0 {
				if sortDesc {
					return c > 0
				}
				return c < 0
			}
		}
		if c := strings.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)); c != 0 {
			if less == nil && sortDesc {
				return c > 0
			}
			return c < 0
		}
		if c := strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)); c != 0 {
			if less == nil && sortDesc {
				return c > 0
			}
			return c < 0
		}
		return a.CompletionDate.Before(b.CompletionDate)
	})
}
