package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"charter-reporter/internal/export"
	"charter-reporter/internal/middleware"
	"charter-reporter/internal/models"
	"charter-reporter/internal/report"
	"charter-reporter/internal/repository"
)

// ExportHandler serves governed spreadsheet downloads of the report views
type ExportHandler struct {
	moodle        *report.MoodleReader
	wordpress     *report.WordPressReader
	merger        *report.Merger
	governor      *export.Governor
	renderer      *export.ExcelRenderer
	userRepo      *repository.UserRepository
	exportLogRepo *repository.ExportLogRepository
	auditMw       *middleware.AuditMiddleware
}

// NewExportHandler creates a new export handler
func NewExportHandler(
	moodle *report.MoodleReader,
	wordpress *report.WordPressReader,
	merger *report.Merger,
	governor *export.Governor,
	renderer *export.ExcelRenderer,
	userRepo *repository.UserRepository,
	exportLogRepo *repository.ExportLogRepository,
	auditMw *middleware.AuditMiddleware,
) *ExportHandler {
	return &ExportHandler{
		moodle:        moodle,
		wordpress:     wordpress,
		merger:        merger,
		governor:      governor,
		renderer:      renderer,
		userRepo:      userRepo,
		exportLogRepo: exportLogRepo,
		auditMw:       auditMw,
	}
}

// GetColumns returns the export column catalog for a dataset
// @Summary Get export columns
// @Description Get the exportable columns of a dataset, for building column pickers
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param dataset query string true "Dataset key (moodle, wordpress, merged)"
// @Success 200 {array} export.Column "Column catalog"
// @Failure 400 {object} map[string]string "Unknown dataset"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /exports/columns [get]
func (h *ExportHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")

	columns, ok := export.Columns(dataset)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Unknown dataset")
		return
	}

	respondWithJSON(w, http.StatusOK, columns)
}

// exportRole returns the first role of the user that the governor could
// accept. The route is already gated by RBAC; this only picks the name to
// evaluate and log.
func (h *ExportHandler) exportRole(userID uint) string {
	roles, err := h.userRepo.GetUserRoles(userID)
	if err != nil || len(roles) == 0 {
		return ""
	}
	for _, role := range roles {
		if role.Name == models.RoleCharterAdmin || role.Name == models.RoleRebosaAdmin {
			return role.Name
		}
	}
	return roles[0].Name
}

// Download streams a dataset as an XLSX workbook
// @Summary Download report export
// @Description Export a report view as a spreadsheet, subject to the row cap and column allow-list
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param dataset query string true "Dataset key (moodle, wordpress, merged)"
// @Param columns query string false "Comma-separated column values; invalid entries are dropped"
// @Param preset query string false "Date preset"
// @Param from query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Param category_id query int false "Course category filter"
// @Param search query string false "Free-text search"
// @Param sort_column query string false "Sort column"
// @Param sort_order query string false "Sort order (asc, desc)" default(asc)
// @Param per_user query bool false "Collapse to one row per user" default(false)
// @Success 200 {file} file "XLSX workbook"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Export denied"
// @Router /exports/download [get]
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	dataset := r.URL.Query().Get("dataset")
	if _, ok := export.Columns(dataset); !ok {
		respondWithError(w, http.StatusBadRequest, "Unknown dataset")
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidReportQuery)
		return
	}

	var requestedColumns []string
	if raw := r.URL.Query().Get("columns"); raw != "" {
		requestedColumns = strings.Split(raw, ",")
	}

	// Count probe: one-row page to learn the filtered set size before
	// committing to the full fetch
	total, err := h.countRows(r, dataset, q)
	if err != nil {
		slog.Error("Export count probe failed", "dataset", dataset, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to prepare export")
		return
	}

	role := h.exportRole(userID)
	decision := h.governor.Evaluate(dataset, role, total, requestedColumns)

	if !decision.Allowed {
		slog.Warn("Export denied", "user_id", userID, "dataset", dataset, "rows", total, "reason", decision.Reason)
		_ = h.exportLogRepo.Create(&models.ExportLog{
			UserID:     userID,
			Dataset:    dataset,
			RowCount:   total,
			Columns:    strings.Join(requestedColumns, ","),
			Allowed:    false,
			DenyReason: decision.Reason,
		})
		_ = h.auditMw.LogAction(&userID, "export.denied", "exports", decision.Reason, getIP(r), r.UserAgent())
		respondWithError(w, http.StatusForbidden, "Export denied: "+decision.Reason)
		return
	}

	rows, err := h.fetchRows(r, dataset, q, total)
	if err != nil {
		slog.Error("Export fetch failed", "dataset", dataset, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to prepare export")
		return
	}

	workbook, err := h.renderer.Render(rows, decision.Columns)
	if err != nil {
		slog.Error("Export rendering failed", "dataset", dataset, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to render export")
		return
	}

	_ = h.exportLogRepo.Create(&models.ExportLog{
		UserID:   userID,
		Dataset:  dataset,
		RowCount: len(rows),
		Columns:  strings.Join(decision.Columns, ","),
		Allowed:  true,
	})
	_ = h.auditMw.LogAction(&userID, "export.download", "exports",
		"Exported "+dataset+" dataset", getIP(r), r.UserAgent())

	fileName := export.FileName(dataset, time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(workbook)
}

// countRows runs a one-row probe of the filtered set and returns its total.
func (h *ExportHandler) countRows(r *http.Request, dataset string, q report.Query) (int, error) {
	probe := q
	probe.Page = 1
	probe.PageSize = 1

	switch dataset {
	case export.DatasetMoodle:
		result, err := h.moodle.GetReport(r.Context(), probe)
		if err != nil {
			return 0, err
		}
		return result.TotalCount, nil
	case export.DatasetWordPress:
		result, err := h.wordpress.GetReport(r.Context(), probe)
		if err != nil {
			return 0, err
		}
		return result.TotalCount, nil
	default:
		result, err := h.merger.GetMergedReport(r.Context(), probe)
		if err != nil {
			return 0, err
		}
		return result.TotalCount, nil
	}
}

// fetchRows retrieves the full filtered set, normalized to merged rows so a
// single renderer serves all three datasets.
func (h *ExportHandler) fetchRows(r *http.Request, dataset string, q report.Query, total int) ([]report.MergedReportRow, error) {
	full := q
	full.Page = 1
	full.PageSize = total
	if full.PageSize < 1 {
		full.PageSize = 1
	}

	switch dataset {
	case export.DatasetMoodle:
		result, err := h.moodle.GetReport(r.Context(), full)
		if err != nil {
			return nil, err
		}
		rows := make([]report.MergedReportRow, len(result.Items))
		for i, item := range result.Items {
			rows[i] = item.AsMerged()
		}
		return rows, nil
	case export.DatasetWordPress:
		result, err := h.wordpress.GetReport(r.Context(), full)
		if err != nil {
			return nil, err
		}
		rows := make([]report.MergedReportRow, len(result.Items))
		for i, item := range result.Items {
			rows[i] = item.AsMerged()
		}
		return rows, nil
	default:
		result, err := h.merger.GetMergedReport(r.Context(), full)
		if err != nil {
			return nil, err
		}
		return result.Items, nil
	}
}
