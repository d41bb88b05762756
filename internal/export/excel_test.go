package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"charter-reporter/internal/report"
)

func sampleRows() []report.MergedReportRow {
	completed := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	return []report.MergedReportRow{
		{
			FirstName: "Alice", LastName: "Moore", Email: "alice@x.com",
			PhoneNumber:          report.Present("0821234567"),
			Agency:               report.Present("Acme Realty"),
			CourseName:           "Ethics 4",
			Category:             "Compliance",
			EnrolmentDate:        completed.AddDate(0, 0, -7),
			CompletionDate:       completed,
			FourthCompletionDate: completed,
			DataSource:           report.DataSourceMerged,
		},
		{
			FirstName: "Bob", LastName: "Stone", Email: "bob@y.com",
			CourseName:           "Ethics 4",
			Category:             "Compliance",
			EnrolmentDate:        completed.AddDate(0, 0, -7),
			CompletionDate:       completed,
			FourthCompletionDate: completed,
			HighlightRed:         true,
			DataSource:           report.DataSourceMoodle,
		},
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Rendered output is not a readable workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRenderWritesHeadersAndRows(t *testing.T) {
	data, err := NewExcelRenderer().Render(sampleRows(), []string{"LastName", "Email", "CompletionDate"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	f := openWorkbook(t, data)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 data rows, got %d", len(rows))
	}
	if rows[0][0] != "Last Name" || rows[0][1] != "Email" || rows[0][2] != "Completion Date" {
		t.Errorf("Header labels wrong: %v", rows[0])
	}
	if rows[1][0] != "Moore" || rows[1][1] != "alice@x.com" {
		t.Errorf("First data row wrong: %v", rows[1])
	}
}

func TestRenderAppliesDisplaySentinels(t *testing.T) {
	data, err := NewExcelRenderer().Render(sampleRows(), []string{"Email", "PhoneNumber", "Agency"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	f := openWorkbook(t, data)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}

	if rows[1][1] != "0821234567" {
		t.Errorf("Present phone should render its value, got %q", rows[1][1])
	}
	if rows[2][1] != "No Phone" {
		t.Errorf("Absent phone should render the sentinel, got %q", rows[2][1])
	}
	if rows[2][2] != "No Agency" {
		t.Errorf("Absent agency should render the sentinel, got %q", rows[2][2])
	}
}

func TestRenderDateCellsAreNativeDates(t *testing.T) {
	data, err := NewExcelRenderer().Render(sampleRows(), []string{"Email", "CompletionDate"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	f := openWorkbook(t, data)

	// A native date cell holds an Excel serial number, not display text.
	raw, err := f.GetCellValue(sheetName, "B2", excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("Failed to read cell: %v", err)
	}
	if raw == "" || raw == "2024-03-04 12:00:00" {
		t.Errorf("Date cell should hold a serial value, got %q", raw)
	}

	formatted, err := f.GetCellValue(sheetName, "B2")
	if err != nil {
		t.Fatalf("Failed to read formatted cell: %v", err)
	}
	if formatted != "2024-03-04 12:00:00" {
		t.Errorf("Date cell should format per the custom number format, got %q", formatted)
	}
}

func TestRenderHighlightFills(t *testing.T) {
	data, err := NewExcelRenderer().Render(sampleRows(), []string{"Email"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	f := openWorkbook(t, data)

	plainStyle, err := f.GetCellStyle(sheetName, "A2")
	if err != nil {
		t.Fatalf("Failed to read style: %v", err)
	}
	redStyle, err := f.GetCellStyle(sheetName, "A3")
	if err != nil {
		t.Fatalf("Failed to read style: %v", err)
	}
	if redStyle == plainStyle {
		t.Error("LMS-only rows should carry a distinct fill style")
	}

	style, err := f.GetStyle(redStyle)
	if err != nil {
		t.Fatalf("Failed to resolve style: %v", err)
	}
	if len(style.Fill.Color) == 0 || style.Fill.Color[0] != redFillColor {
		t.Errorf("Expected red fill %s, got %+v", redFillColor, style.Fill)
	}
}

func TestRenderUnknownColumnsFallBack(t *testing.T) {
	data, err := NewExcelRenderer().Render(sampleRows(), []string{"Nope", "AlsoNope"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	f := openWorkbook(t, data)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows[0]) != len(ColumnValues(DatasetMerged)) {
		t.Errorf("Unknown selection should fall back to the full catalog, got %d headers", len(rows[0]))
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 4, 15, 4, 5, 0, time.UTC)

	if got := FileName(DatasetMerged, now); got != "Merged_Report_20240304_150405.xlsx" {
		t.Errorf("Unexpected file name: %s", got)
	}
	if got := FileName("whatever", now); got != "Report_Report_20240304_150405.xlsx" {
		t.Errorf("Unknown dataset should use the generic label, got %s", got)
	}
}
