package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"charter-reporter/internal/report"
)

// ReportHandler serves the reconciled reporting endpoints
type ReportHandler struct {
	moodle    *report.MoodleReader
	wordpress *report.WordPressReader
	merger    *report.Merger
}

// NewReportHandler creates a new report handler
func NewReportHandler(moodle *report.MoodleReader, wordpress *report.WordPressReader, merger *report.Merger) *ReportHandler {
	return &ReportHandler{
		moodle:    moodle,
		wordpress: wordpress,
		merger:    merger,
	}
}

// parseTimeParam accepts RFC3339 or plain dates and returns the UTC instant.
func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		utc := t.UTC()
		return &utc, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}

// parseReportQuery reads the shared filter, sort and pagination parameters.
func parseReportQuery(r *http.Request) (report.Query, error) {
	var q report.Query

	params := r.URL.Query()

	from, err := parseTimeParam(params.Get("from"))
	if err != nil {
		return q, err
	}
	to, err := parseTimeParam(params.Get("to"))
	if err != nil {
		return q, err
	}

	// A named preset wins over explicit bounds
	if preset := params.Get("preset"); preset != "" {
		from, to = report.ResolvePreset(preset, time.Now().UTC(), from, to)
	}
	q.FromUTC = from
	q.ToUTC = to

	if categoryStr := params.Get("category_id"); categoryStr != "" {
		categoryID, err := strconv.ParseInt(categoryStr, 10, 64)
		if err != nil {
			return q, err
		}
		q.CategoryID = &categoryID
	}

	q.Search = params.Get("search")
	q.SortColumn = params.Get("sort_column")
	q.SortDesc = params.Get("sort_order") == "desc"
	q.PerUser = params.Get("per_user") == "true"

	q.Page = 1
	if pageStr := params.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			q.Page = p
		}
	}

	q.PageSize = 50
	if sizeStr := params.Get("page_size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 {
			q.PageSize = s
		}
	}

	return q, nil
}

// GetMoodleReport returns a page of the LMS completion report
// @Summary Get LMS report
// @Description Get course completion rows from the learning platform
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param preset query string false "Date preset (all-time, last-month, last-3-months, last-6-months, last-year)"
// @Param from query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Param category_id query int false "Course category filter"
// @Param search query string false "Free-text search"
// @Param sort_column query string false "Sort column"
// @Param sort_order query string false "Sort order (asc, desc)" default(asc)
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Rows per page" default(50)
// @Success 200 {object} map[string]interface{} "Paginated report rows"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /reports/moodle [get]
func (h *ReportHandler) GetMoodleReport(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidReportQuery)
		return
	}

	result, err := h.moodle.GetReport(r.Context(), q)
	if err != nil {
		slog.Error("LMS report query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve report")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetWordPressReport returns a page of the membership report
// @Summary Get membership report
// @Description Get member profile rows from the membership database
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param preset query string false "Date preset"
// @Param from query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Param search query string false "Free-text search"
// @Param sort_column query string false "Sort column"
// @Param sort_order query string false "Sort order (asc, desc)" default(asc)
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Rows per page" default(50)
// @Success 200 {object} map[string]interface{} "Paginated report rows"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /reports/wordpress [get]
func (h *ReportHandler) GetWordPressReport(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidReportQuery)
		return
	}

	result, err := h.wordpress.GetReport(r.Context(), q)
	if err != nil {
		slog.Error("Membership report query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve report")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetMergedReport returns a page of the reconciled cross-source report
// @Summary Get merged report
// @Description Get the email-joined reconciliation of LMS and membership rows
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param preset query string false "Date preset"
// @Param from query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Param category_id query int false "Course category filter"
// @Param search query string false "Free-text search"
// @Param sort_column query string false "Sort column"
// @Param sort_order query string false "Sort order (asc, desc)" default(asc)
// @Param per_user query bool false "Collapse to one row per user" default(false)
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Rows per page" default(50)
// @Success 200 {object} map[string]interface{} "Paginated merged rows"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /reports/merged [get]
func (h *ReportHandler) GetMergedReport(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidReportQuery)
		return
	}

	result, err := h.merger.GetMergedReport(r.Context(), q)
	if err != nil {
		slog.Error("Merged report query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve report")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetCategories lists the course categories available for filtering
// @Summary List course categories
// @Description Get the visible course categories of the learning platform
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {array} report.CourseCategory "Course categories"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /reports/categories [get]
func (h *ReportHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.moodle.GetCategories(r.Context())
	if err != nil {
		slog.Error("Category query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve categories")
		return
	}

	respondWithJSON(w, http.StatusOK, categories)
}

// GetSummary returns the dashboard headline numbers
// @Summary Get dashboard summary
// @Description Get sales total, enrolment count and completion count for a window
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param preset query string false "Date preset"
// @Param from query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Param category_id query int false "Course category filter"
// @Success 200 {object} report.Summary "Summary numbers"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /reports/summary [get]
func (h *ReportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidReportQuery)
		return
	}

	summary, err := h.merger.Summary(r.Context(), q.FromUTC, q.ToUTC, q.CategoryID)
	if err != nil {
		slog.Error("Summary query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
