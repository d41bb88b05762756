package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"charter-reporter/internal/report"
)

const (
	sheetName     = "Report"
	dateCellFmt   = "yyyy-mm-dd hh:mm:ss"
	redFillColor  = "FFC7CE"
	blueFillColor = "BDD7EE"
)

// cellValues maps catalog column names to row accessors. Optional fields
// get their display sentinel here, at the rendering edge, so absence stays
// typed everywhere upstream.
var cellValues = map[string]func(r *report.MergedReportRow) any{
	"LastName":             func(r *report.MergedReportRow) any { return r.LastName },
	"FirstName":            func(r *report.MergedReportRow) any { return r.FirstName },
	"Email":                func(r *report.MergedReportRow) any { return r.Email },
	"PhoneNumber":          func(r *report.MergedReportRow) any { return r.PhoneNumber.Or("No Phone") },
	"PpraNo":               func(r *report.MergedReportRow) any { return r.PpraNo.Or("No PPRA") },
	"IdNo":                 func(r *report.MergedReportRow) any { return r.IDNo.Or("No SAID") },
	"Province":             func(r *report.MergedReportRow) any { return r.Province.Or("No Province") },
	"Agency":               func(r *report.MergedReportRow) any { return r.Agency.Or("No Agency") },
	"CourseName":           func(r *report.MergedReportRow) any { return r.CourseName },
	"Category":             func(r *report.MergedReportRow) any { return r.Category },
	"EnrolmentDate":        func(r *report.MergedReportRow) any { return r.EnrolmentDate },
	"CompletionDate":       func(r *report.MergedReportRow) any { return r.CompletionDate },
	"FourthCompletionDate": func(r *report.MergedReportRow) any { return r.FourthCompletionDate },
	"DataSource":           func(r *report.MergedReportRow) any { return string(r.DataSource) },
}

// columnLabels flattens the catalog for header lookup.
var columnLabels = func() map[string]string {
	labels := make(map[string]string)
	for _, c := range mergedColumns {
		labels[c.Value] = c.Label
	}
	return labels
}()

// ExcelRenderer writes report rows to an XLSX workbook. It is stateless
// and never mutates the rows it is given.
type ExcelRenderer struct{}

// NewExcelRenderer creates a new Excel renderer
func NewExcelRenderer() *ExcelRenderer {
	return &ExcelRenderer{}
}

// rowStyles caches the per-highlight cell styles of one workbook.
type rowStyles struct {
	text     int
	date     int
	redText  int
	redDate  int
	blueText int
	blueDate int
}

func buildStyles(f *excelize.File) (rowStyles, error) {
	var s rowStyles
	dateFmt := dateCellFmt

	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}

	var err error
	if s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt}); err != nil {
		return s, err
	}
	if s.redText, err = f.NewStyle(&excelize.Style{Fill: fill(redFillColor)}); err != nil {
		return s, err
	}
	if s.redDate, err = f.NewStyle(&excelize.Style{Fill: fill(redFillColor), CustomNumFmt: &dateFmt}); err != nil {
		return s, err
	}
	if s.blueText, err = f.NewStyle(&excelize.Style{Fill: fill(blueFillColor)}); err != nil {
		return s, err
	}
	if s.blueDate, err = f.NewStyle(&excelize.Style{Fill: fill(blueFillColor), CustomNumFmt: &dateFmt}); err != nil {
		return s, err
	}
	return s, nil
}

func (s rowStyles) pick(row *report.MergedReportRow, isDate bool) int {
	switch {
	case row.HighlightRed && isDate:
		return s.redDate
	case row.HighlightRed:
		return s.redText
	case row.HighlightBlue && isDate:
		return s.blueDate
	case row.HighlightBlue:
		return s.blueText
	case isDate:
		return s.date
	default:
		return s.text
	}
}

// Render produces an XLSX document with one bold header row followed by
// one row per report row, in the column order given. Rows flagged as
// present in only one source get a solid red or blue fill.
func (r *ExcelRenderer) Render(rows []report.MergedReportRow, selectedColumns []string) ([]byte, error) {
	columns := make([]string, 0, len(selectedColumns))
	for _, col := range selectedColumns {
		if _, ok := cellValues[col]; ok {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 {
		columns = ColumnValues(DatasetMerged)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to prepare worksheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to build header style: %w", err)
	}
	styles, err := buildStyles(f)
	if err != nil {
		return nil, fmt.Errorf("failed to build cell styles: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, columnLabels[col]); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header cell: %w", err)
		}
	}

	for rowIdx := range rows {
		row := &rows[rowIdx]
		for colIdx, col := range columns {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell: %w", err)
			}

			value := cellValues[col](row)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}

			_, isDate := value.(time.Time)
			if style := styles.pick(row, isDate); style != 0 {
				if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
					return nil, fmt.Errorf("failed to style cell: %w", err)
				}
			}
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err == nil {
		_ = f.SetColWidth(sheetName, "A", lastCol, 22)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName builds the export attachment name for a dataset, encoding the
// generation timestamp.
func FileName(datasetKey string, now time.Time) string {
	label := map[string]string{
		DatasetMoodle:    "Moodle",
		DatasetWordPress: "WordPress",
		DatasetMerged:    "Merged",
	}[datasetKey]
	if label == "" {
		label = "Report"
	}
	return fmt.Sprintf("%s_Report_%s.xlsx", label, now.Format("20060102_150405"))
}
