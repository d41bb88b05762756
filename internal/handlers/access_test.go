package handlers_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"charter-reporter/internal/export"
	"charter-reporter/internal/handlers"
	"charter-reporter/internal/middleware"
	"charter-reporter/internal/models"
	"charter-reporter/internal/report"
	"charter-reporter/internal/repository"
	"charter-reporter/internal/testutil"
)

// reportEnv wires real middleware and handlers against the test containers,
// the same chain the server builds.
type reportEnv struct {
	containers *testutil.TestContainers
	fixtures   *testutil.Fixtures
	auth       *testutil.AuthHelper
	authMw     *middleware.AuthMiddleware
	rbacMw     *middleware.RBACMiddleware
	auditMw    *middleware.AuditMiddleware
	moodle     *report.MoodleReader
	wordpress  *report.WordPressReader
	merger     *report.Merger
}

func setupReportEnv(t *testing.T) *reportEnv {
	t.Helper()

	containers := testutil.SetupTestContainers(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	fixtures := testutil.SetupFixtures(t, containers.DB)
	testutil.SeedSourceData(t, containers.SourceDB)

	helper := testutil.NewAuthHelper()
	moodle := report.NewMoodleReader(containers.SourceFactory)
	wordpress := report.NewWordPressReader(containers.SourceFactory)

	return &reportEnv{
		containers: containers,
		fixtures:   fixtures,
		auth:       helper,
		authMw:     middleware.NewAuthMiddleware(helper.Service, repository.NewSessionRepository(containers.DB)),
		rbacMw:     middleware.NewRBACMiddleware(containers.DB),
		auditMw:    middleware.NewAuditMiddleware(containers.DB),
		moodle:     moodle,
		wordpress:  wordpress,
		merger:     report.NewMerger(moodle, wordpress, slog.New(slog.DiscardHandler)),
	}
}

func (env *reportEnv) reportRoute(handlerFunc http.HandlerFunc) http.Handler {
	return env.authMw.Authenticate(
		env.rbacMw.RequireAnyRole(models.RoleCharterAdmin, models.RoleRebosaAdmin)(handlerFunc),
	)
}

func TestMergedReportRequiresAuthentication(t *testing.T) {
	env := setupReportEnv(t)

	handler := handlers.NewReportHandler(env.moodle, env.wordpress, env.merger)
	route := env.reportRoute(handler.GetMergedReport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/merged", nil)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusUnauthorized(t)
}

func TestMergedReportForbiddenWithoutRole(t *testing.T) {
	env := setupReportEnv(t)

	// A user who authenticated but holds no role at all
	var nobody models.User
	err := env.containers.DB.QueryRow(`
		INSERT INTO users (email, password_hash, first_name, last_name, is_active, created_at, updated_at)
		VALUES ('nobody@test.com', 'x', 'No', 'Body', TRUE, NOW(), NOW())
		RETURNING id`).Scan(&nobody.ID)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	nobody.Email = "nobody@test.com"

	handler := handlers.NewReportHandler(env.moodle, env.wordpress, env.merger)
	route := env.reportRoute(handler.GetMergedReport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/merged", nil)
	env.auth.AddAuthHeader(t, env.containers, req, &nobody)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusForbidden(t)
}

func TestMergedReportClassifiesSources(t *testing.T) {
	env := setupReportEnv(t)

	handler := handlers.NewReportHandler(env.moodle, env.wordpress, env.merger)
	route := env.reportRoute(handler.GetMergedReport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/merged", nil)
	env.auth.AddAuthHeader(t, env.containers, req, env.fixtures.RebosaAdmin)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusOK(t)

	var result report.PagedResult[report.MergedReportRow]
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// alice: 4 completions in both sources, bob: 4 completions LMS only,
	// carol: membership only, dave: 3 completions so below the milestone
	if result.TotalCount != 9 {
		t.Errorf("Expected 9 merged rows, got %d", result.TotalCount)
	}

	sources := make(map[string]report.DataSource)
	for _, row := range result.Items {
		email := strings.ToLower(row.Email)
		sources[email] = row.DataSource

		switch email {
		case "alice@x.com":
			if row.HighlightRed || row.HighlightBlue {
				t.Error("Alice is in both sources and should carry no highlight")
			}
			if got := row.PhoneNumber.Or(""); got != "0827654321" {
				t.Errorf("Alice's membership phone should win, got %q", got)
			}
		case "bob@y.com":
			if !row.HighlightRed {
				t.Error("Bob is LMS-only and should be highlighted red")
			}
		case "carol@z.com":
			if !row.HighlightBlue {
				t.Error("Carol is membership-only and should be highlighted blue")
			}
		case "dave@z.com":
			t.Error("Dave has only 3 completions and should not appear")
		}
	}

	if sources["alice@x.com"] != report.DataSourceMerged {
		t.Errorf("Alice should be merged, got %s", sources["alice@x.com"])
	}
	if sources["bob@y.com"] != report.DataSourceMoodle {
		t.Errorf("Bob should be moodle, got %s", sources["bob@y.com"])
	}
	if sources["carol@z.com"] != report.DataSourceWordPress {
		t.Errorf("Carol should be wordpress, got %s", sources["carol@z.com"])
	}
}

func TestMergedReportSearchClassifiesMembershipOnlyMatch(t *testing.T) {
	env := setupReportEnv(t)

	handler := handlers.NewReportHandler(env.moodle, env.wordpress, env.merger)
	route := env.reportRoute(handler.GetMergedReport)

	// "Acme" only appears in Alice's membership agency. The search runs in
	// both sources, so her LMS rows drop out and she classifies as
	// membership-only rather than merged.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/merged?search=Acme", nil)
	env.auth.AddAuthHeader(t, env.containers, req, env.fixtures.RebosaAdmin)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusOK(t)

	var result report.PagedResult[report.MergedReportRow]
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if result.TotalCount != 1 {
		t.Fatalf("Expected Alice's single membership row, got %d rows", result.TotalCount)
	}
	row := result.Items[0]
	if strings.ToLower(row.Email) != "alice@x.com" {
		t.Fatalf("Unexpected row %s", row.Email)
	}
	if row.DataSource != report.DataSourceWordPress || !row.HighlightBlue || row.HighlightRed {
		t.Errorf("A membership-only search match should be blue wordpress, got source=%s red=%v blue=%v",
			row.DataSource, row.HighlightRed, row.HighlightBlue)
	}
	if got := row.Agency.Or(""); got != "Acme Realty" {
		t.Errorf("Expected the matching agency, got %q", got)
	}
}

func TestMergedReportPerUserCollapse(t *testing.T) {
	env := setupReportEnv(t)

	handler := handlers.NewReportHandler(env.moodle, env.wordpress, env.merger)
	route := env.reportRoute(handler.GetMergedReport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/merged?per_user=true", nil)
	env.auth.AddAuthHeader(t, env.containers, req, env.fixtures.CharterAdmin)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusOK(t)

	var result report.PagedResult[report.MergedReportRow]
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if result.TotalCount != 3 {
		t.Errorf("Collapse should yield one row per user, got %d", result.TotalCount)
	}
}

func (env *reportEnv) exportHandler(rowCap int) *handlers.ExportHandler {
	return handlers.NewExportHandler(
		env.moodle, env.wordpress, env.merger,
		export.NewGovernor(rowCap, models.RoleCharterAdmin, models.RoleRebosaAdmin),
		export.NewExcelRenderer(),
		repository.NewUserRepository(env.containers.DB),
		repository.NewExportLogRepository(env.containers.DB),
		env.auditMw,
	)
}

func TestExportDownloadAllowedAndLogged(t *testing.T) {
	env := setupReportEnv(t)

	route := env.reportRoute(env.exportHandler(50000).Download)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/download?dataset=merged&columns=Email,LastName", nil)
	env.auth.AddAuthHeader(t, env.containers, req, env.fixtures.CharterAdmin)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusOK(t)

	if got := resp.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type %q", got)
	}
	disposition := resp.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, `attachment; filename="Merged_Report_`) {
		t.Errorf("Unexpected disposition %q", disposition)
	}
	if resp.Body.Len() == 0 {
		t.Error("Workbook body should not be empty")
	}

	var allowed bool
	var rowCount int
	var columns string
	err := env.containers.DB.QueryRow(`
		SELECT allowed, row_count, columns FROM export_logs WHERE user_id = $1`,
		env.fixtures.CharterAdmin.ID,
	).Scan(&allowed, &rowCount, &columns)
	if err != nil {
		t.Fatalf("Export should have been logged: %v", err)
	}
	if !allowed || rowCount != 9 {
		t.Errorf("Expected allowed log with 9 rows, got allowed=%v rows=%d", allowed, rowCount)
	}
	if columns != "Email,LastName" {
		t.Errorf("Logged columns should be the canonical selection, got %q", columns)
	}
}

func TestExportDownloadDeniedOverRowCap(t *testing.T) {
	env := setupReportEnv(t)

	route := env.reportRoute(env.exportHandler(5).Download)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/download?dataset=merged", nil)
	env.auth.AddAuthHeader(t, env.containers, req, env.fixtures.RebosaAdmin)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusForbidden(t)

	var allowed bool
	var denyReason string
	err := env.containers.DB.QueryRow(`
		SELECT allowed, deny_reason FROM export_logs WHERE user_id = $1`,
		env.fixtures.RebosaAdmin.ID,
	).Scan(&allowed, &denyReason)
	if err != nil {
		t.Fatalf("Denied export should have been logged: %v", err)
	}
	if allowed {
		t.Error("Denied export must be logged with allowed=false")
	}
	if !strings.Contains(denyReason, "row cap") {
		t.Errorf("Deny reason should name the row cap, got %q", denyReason)
	}
}

func TestExportDownloadWindowFiltersRows(t *testing.T) {
	env := setupReportEnv(t)

	route := env.reportRoute(env.exportHandler(50000).Download)

	// Window far in the past: no completions, no memberships
	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	to := time.Date(2000, 12, 31, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/exports/download?dataset=merged&from="+from+"&to="+to, nil)
	env.auth.AddAuthHeader(t, env.containers, req, env.fixtures.CharterAdmin)
	resp := testutil.NewTestResponse()
	route.ServeHTTP(resp, req)

	resp.AssertStatusOK(t)

	var rowCount int
	err := env.containers.DB.QueryRow(`
		SELECT row_count FROM export_logs WHERE user_id = $1`,
		env.fixtures.CharterAdmin.ID,
	).Scan(&rowCount)
	if err != nil {
		t.Fatalf("Export should have been logged: %v", err)
	}
	if rowCount != 0 {
		t.Errorf("Out-of-window export should contain no rows, got %d", rowCount)
	}
}
