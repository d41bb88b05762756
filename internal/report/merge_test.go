package report

import (
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func day(n int) time.Time {
	return time.Date(2024, 3, n, 12, 0, 0, 0, time.UTC)
}

func lmsRow(email, first, last, course string, completion, fourth time.Time) MoodleReportRow {
	return MoodleReportRow{
		FirstName:            first,
		LastName:             last,
		Email:                email,
		CourseName:           course,
		Category:             "Compliance",
		EnrolmentDate:        completion.AddDate(0, 0, -7),
		CompletionDate:       completion,
		FourthCompletionDate: fourth,
	}
}

func memberRow(email, first, last string) WordPressReportRow {
	registered := day(1)
	return WordPressReportRow{
		FirstName:            first,
		LastName:             last,
		Email:                email,
		EnrolmentDate:        registered,
		CompletionDate:       registered,
		FourthCompletionDate: registered,
	}
}

func newTestMerger() *Merger {
	return NewMerger(nil, nil, discardLogger())
}

func TestJoinClassifiesBothSides(t *testing.T) {
	moodle := []MoodleReportRow{
		lmsRow("ALICE@X.COM", "Alice", "Moore", "Ethics 4", day(4), day(4)),
		lmsRow("bob@y.com", "Bob", "Stone", "Ethics 4", day(5), day(5)),
	}
	wordpress := []WordPressReportRow{
		{
			FirstName: "Alice", LastName: "Moore", Email: "alice@x.com",
			PhoneNumber:          Present("0827654321"),
			EnrolmentDate:        day(1),
			CompletionDate:       day(1),
			FourthCompletionDate: day(1),
		},
		memberRow("carol@z.com", "Carol", "Reed"),
	}

	merged := newTestMerger().join(t.Context(), moodle, wordpress)

	if len(merged) != 3 {
		t.Fatalf("Expected 3 merged rows, got %d", len(merged))
	}

	byEmail := make(map[string]MergedReportRow)
	for _, row := range merged {
		byEmail[normalizeEmail(row.Email)] = row
	}

	alice := byEmail["alice@x.com"]
	if alice.DataSource != DataSourceMerged {
		t.Errorf("Alice should be classified as merged, got %s", alice.DataSource)
	}
	if alice.HighlightRed || alice.HighlightBlue {
		t.Error("Rows present in both sources should carry no highlight")
	}
	if got := alice.PhoneNumber.Or(""); got != "0827654321" {
		t.Errorf("Membership phone should enrich the LMS row, got %q", got)
	}

	bob := byEmail["bob@y.com"]
	if bob.DataSource != DataSourceMoodle || !bob.HighlightRed || bob.HighlightBlue {
		t.Errorf("Bob should be LMS-only with red highlight, got source=%s red=%v blue=%v",
			bob.DataSource, bob.HighlightRed, bob.HighlightBlue)
	}

	carol := byEmail["carol@z.com"]
	if carol.DataSource != DataSourceWordPress || !carol.HighlightBlue || carol.HighlightRed {
		t.Errorf("Carol should be membership-only with blue highlight, got source=%s red=%v blue=%v",
			carol.DataSource, carol.HighlightRed, carol.HighlightBlue)
	}
}

func TestJoinMatchesCaseInsensitively(t *testing.T) {
	moodle := []MoodleReportRow{
		lmsRow("  Alice@X.Com ", "Alice", "Moore", "Ethics 4", day(4), day(4)),
	}
	wordpress := []WordPressReportRow{memberRow("alice@x.com", "Alice", "Moore")}

	merged := newTestMerger().join(t.Context(), moodle, wordpress)

	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged row, got %d", len(merged))
	}
	if merged[0].DataSource != DataSourceMerged {
		t.Errorf("Normalized emails should match, got source %s", merged[0].DataSource)
	}
}

func TestJoinSkipsEmptyEmails(t *testing.T) {
	moodle := []MoodleReportRow{
		lmsRow("", "Ghost", "User", "Ethics 4", day(4), day(4)),
		lmsRow("bob@y.com", "Bob", "Stone", "Ethics 4", day(5), day(5)),
	}
	wordpress := []WordPressReportRow{memberRow("   ", "Blank", "Member")}

	merged := newTestMerger().join(t.Context(), moodle, wordpress)

	if len(merged) != 1 {
		t.Fatalf("Rows with empty emails should be excluded, got %d rows", len(merged))
	}
	if merged[0].Email != "bob@y.com" {
		t.Errorf("Unexpected surviving row: %s", merged[0].Email)
	}
}

func TestJoinEmitsEveryCompletionOfMatchedUsers(t *testing.T) {
	moodle := []MoodleReportRow{
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 1", day(1), day(4)),
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 2", day(2), day(4)),
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 3", day(3), day(4)),
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 4", day(4), day(4)),
	}
	wordpress := []WordPressReportRow{memberRow("alice@x.com", "Alice", "Moore")}

	merged := newTestMerger().join(t.Context(), moodle, wordpress)

	if len(merged) != 4 {
		t.Fatalf("Expected one merged row per completion, got %d", len(merged))
	}
	for _, row := range merged {
		if row.DataSource != DataSourceMerged {
			t.Errorf("All of Alice's rows should be merged, got %s for %s", row.DataSource, row.CourseName)
		}
	}
}

func TestEnrichPrefersMembershipValue(t *testing.T) {
	member := Present("Acme Realty")
	lms := Present("LMS Agency")

	if got := enrich(member, lms); got.String != "Acme Realty" {
		t.Errorf("Membership value should win, got %q", got.String)
	}
	if got := enrich(OptionalString{}, lms); got.String != "LMS Agency" {
		t.Errorf("LMS value should fill an absent membership field, got %q", got.String)
	}
	if got := enrich(OptionalString{}, OptionalString{}); got.Valid {
		t.Error("Two absent fields should stay absent")
	}
}

func TestCollapsePerUserPicksFourthCompletionRow(t *testing.T) {
	rows := []MergedReportRow{
		{Email: "alice@x.com", CourseName: "Ethics 1", CompletionDate: day(1), FourthCompletionDate: day(4)},
		{Email: "alice@x.com", CourseName: "Ethics 4", CompletionDate: day(4), FourthCompletionDate: day(4)},
		{Email: "alice@x.com", CourseName: "Ethics 2", CompletionDate: day(2), FourthCompletionDate: day(4)},
		{Email: "bob@y.com", CourseName: "Ethics 9", CompletionDate: day(9), FourthCompletionDate: day(9)},
	}

	collapsed := collapsePerUser(rows)

	if len(collapsed) != 2 {
		t.Fatalf("Expected one row per user, got %d", len(collapsed))
	}
	if collapsed[0].CourseName != "Ethics 4" {
		t.Errorf("The row matching the 4th completion should represent the user, got %s", collapsed[0].CourseName)
	}
	if collapsed[1].Email != "bob@y.com" {
		t.Errorf("First-seen order should be preserved, got %s", collapsed[1].Email)
	}
}

func TestCollapsePerUserTieBreaksByCourseName(t *testing.T) {
	rows := []MergedReportRow{
		{Email: "alice@x.com", CourseName: "Zeta", CompletionDate: day(4), FourthCompletionDate: day(4)},
		{Email: "alice@x.com", CourseName: "Alpha", CompletionDate: day(4), FourthCompletionDate: day(4)},
	}

	collapsed := collapsePerUser(rows)

	if len(collapsed) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(collapsed))
	}
	if collapsed[0].CourseName != "Alpha" {
		t.Errorf("Ties should resolve to the lexically smaller course, got %s", collapsed[0].CourseName)
	}
}

func TestCollapsePerUserIsIdempotent(t *testing.T) {
	rows := []MergedReportRow{
		{Email: "alice@x.com", CourseName: "Ethics 4", CompletionDate: day(4), FourthCompletionDate: day(4)},
		{Email: "alice@x.com", CourseName: "Ethics 1", CompletionDate: day(1), FourthCompletionDate: day(4)},
	}

	once := collapsePerUser(rows)
	twice := collapsePerUser(once)

	if len(once) != len(twice) {
		t.Fatalf("Collapse should be idempotent: %d vs %d rows", len(once), len(twice))
	}
	if once[0].CourseName != twice[0].CourseName {
		t.Errorf("Collapse changed the representative on the second pass: %s vs %s",
			once[0].CourseName, twice[0].CourseName)
	}
}

func TestFilterMergedSearchesAllFields(t *testing.T) {
	rows := []MergedReportRow{
		{Email: "alice@x.com", FirstName: "Alice", LastName: "Moore", Agency: Present("Acme Realty")},
		{Email: "bob@y.com", FirstName: "Bob", LastName: "Stone", CourseName: "Ethics 4"},
	}

	if got := filterMerged(rows, "acme"); len(got) != 1 || got[0].Email != "alice@x.com" {
		t.Errorf("Agency search failed: %+v", got)
	}
	if got := filterMerged(rows, "ETHICS"); len(got) != 1 || got[0].Email != "bob@y.com" {
		t.Errorf("Course search should be case-insensitive: %+v", got)
	}
	if got := filterMerged(rows, "  "); len(got) != 2 {
		t.Errorf("Blank search should keep every row, got %d", len(got))
	}
	if got := filterMerged(rows, "nomatch"); len(got) != 0 {
		t.Errorf("Unmatched search should drop every row, got %d", len(got))
	}
}

func TestSortMergedByColumn(t *testing.T) {
	rows := []MergedReportRow{
		{FirstName: "Bob", LastName: "Stone", Email: "bob@y.com", CompletionDate: day(5)},
		{FirstName: "Alice", LastName: "Moore", Email: "alice@x.com", CompletionDate: day(4)},
		{FirstName: "Carol", LastName: "Reed", Email: "carol@z.com", CompletionDate: day(1)},
	}

	sortMerged(rows, "email", false)
	if rows[0].Email != "alice@x.com" || rows[2].Email != "carol@z.com" {
		t.Errorf("Ascending email sort failed: %s, %s, %s", rows[0].Email, rows[1].Email, rows[2].Email)
	}

	sortMerged(rows, "completiondate", true)
	if rows[0].Email != "bob@y.com" {
		t.Errorf("Descending date sort failed, first row is %s", rows[0].Email)
	}
}

func TestFanOutQueryCarriesSearchToBothSources(t *testing.T) {
	from, to := day(1), day(30)
	categoryID := int64(7)
	q := Query{
		FromUTC:    &from,
		ToUTC:      &to,
		CategoryID: &categoryID,
		Search:     "Acme",
		SortColumn: "email",
		SortDesc:   true,
		PerUser:    true,
		Page:       3,
		PageSize:   25,
	}

	fanOut := fanOutQuery(q)

	if fanOut.Search != "Acme" {
		t.Errorf("Search must reach the source queries so membership-only matches classify blue, got %q", fanOut.Search)
	}
	if fanOut.FromUTC != &from || fanOut.ToUTC != &to || fanOut.CategoryID != &categoryID {
		t.Error("Window and category filters must reach the source queries")
	}
	if fanOut.Page != 1 || fanOut.PageSize != mergeFanOutPageSize {
		t.Errorf("Candidate pull should request the full bounded set, got page %d size %d",
			fanOut.Page, fanOut.PageSize)
	}
	if fanOut.SortColumn != "" || fanOut.PerUser {
		t.Error("Sorting and collapsing happen in memory after the join")
	}
}

func TestPaginationReconstructsFilteredSortedSet(t *testing.T) {
	moodle := []MoodleReportRow{
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 1", day(1), day(4)),
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 2", day(2), day(4)),
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 3", day(3), day(4)),
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 4", day(4), day(4)),
		lmsRow("bob@y.com", "Bob", "Stone", "Ethics 1", day(5), day(8)),
		lmsRow("bob@y.com", "Bob", "Stone", "Ethics 2", day(6), day(8)),
	}
	wordpress := []WordPressReportRow{
		memberRow("carol@z.com", "Carol", "Reed"),
	}

	merged := newTestMerger().join(t.Context(), moodle, wordpress)
	merged = filterMerged(merged, "ethics")
	sortMerged(merged, "completiondate", false)

	if len(merged) != 6 {
		t.Fatalf("Search should keep the 6 course rows and drop Carol, got %d", len(merged))
	}

	var walked []MergedReportRow
	pageSize := 4
	for page := 1; ; page++ {
		result := paginateMerged(merged, Query{Page: page, PageSize: pageSize})
		if result.TotalCount != len(merged) {
			t.Errorf("Page %d reported total %d, want %d", page, result.TotalCount, len(merged))
		}
		if page < 2 && len(result.Items) != pageSize {
			t.Errorf("Page %d should be full, got %d rows", page, len(result.Items))
		}
		walked = append(walked, result.Items...)
		if len(result.Items) < pageSize {
			break
		}
	}

	if len(walked) != len(merged) {
		t.Fatalf("Walking every page yielded %d rows, want %d", len(walked), len(merged))
	}
	for i := range merged {
		if walked[i].Email != merged[i].Email || walked[i].CourseName != merged[i].CourseName {
			t.Errorf("Row %d differs across pagination: got %s/%s, want %s/%s",
				i, walked[i].Email, walked[i].CourseName, merged[i].Email, merged[i].CourseName)
		}
	}
}

func TestPaginationPastTheEndIsEmpty(t *testing.T) {
	merged := newTestMerger().join(t.Context(), []MoodleReportRow{
		lmsRow("alice@x.com", "Alice", "Moore", "Ethics 4", day(4), day(4)),
	}, nil)

	result := paginateMerged(merged, Query{Page: 5, PageSize: 10})

	if len(result.Items) != 0 {
		t.Errorf("A page past the end should be empty, got %d rows", len(result.Items))
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount should survive an out-of-range page, got %d", result.TotalCount)
	}
}

func TestSortMergedUnknownColumnFallsBack(t *testing.T) {
	rows := []MergedReportRow{
		{FirstName: "Bob", LastName: "Stone"},
		{FirstName: "Alice", LastName: "Moore"},
		{FirstName: "Zoe", LastName: "Moore"},
	}

	sortMerged(rows, "Email; DROP TABLE users", false)

	if rows[0].LastName != "Moore" || rows[0].FirstName != "Alice" {
		t.Errorf("Fallback sort should order by last then first name, got %s %s",
			rows[0].FirstName, rows[0].LastName)
	}
	if rows[2].LastName != "Stone" {
		t.Errorf("Fallback sort failed, last row is %s", rows[2].LastName)
	}
}
