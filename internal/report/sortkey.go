package report

import "strings"

// defaultOrder is the stable fallback ordering applied whenever the caller
// supplies no sort column or an unrecognized one. Epoch columns are used for
// dates so ordering stays deterministic at second resolution.
const defaultOrder = "LastName, FirstName, CompletionEpoch"

// sourceSortExprs maps public sort-key names to the ORDER BY expressions of
// the source readers' generated queries. Caller input is only ever used as a
// lookup key into this table, never interpolated, so SQL metacharacters in a
// sort column cannot change the query structure.
var sourceSortExprs = map[string]string{
	"firstname":            "FirstName",
	"lastname":             "LastName",
	"email":                "Email",
	"phonenumber":          "PhoneNumber",
	"pprano":               "PpraNo",
	"idno":                 "IdNo",
	"province":             "Province",
	"agency":               "Agency",
	"coursename":           "CourseName",
	"category":             "Category",
	"enrolmentdate":        "EnrolmentEpoch",
	"completiondate":       "CompletionEpoch",
	"fourthcompletiondate": "FourthCompletionEpoch",
}

// orderByExpr resolves a caller-supplied sort column against the allow-list.
func orderByExpr(sortColumn string, sortDesc bool) string {
	expr, ok := sourceSortExprs[strings.ToLower(strings.TrimSpace(sortColumn))]
	if !ok {
		expr = defaultOrder
	}
	dir := "ASC"
	if sortDesc {
		dir = "DESC"
	}
	return expr + " " + dir
}

// mergedSortKeys maps public sort-key names to comparison accessors over
// merged rows. The merged view extends the source allow-list with the
// data-source discriminator.
var mergedSortKeys = map[string]func(r *MergedReportRow) string{
	"firstname":   func(r *MergedReportRow) string { return strings.ToLower(r.FirstName) },
	"lastname":    func(r *MergedReportRow) string { return strings.ToLower(r.LastName) },
	"email":       func(r *MergedReportRow) string { return strings.ToLower(r.Email) },
	"phonenumber": func(r *MergedReportRow) string { return strings.ToLower(r.PhoneNumber.Or("")) },
	"pprano":      func(r *MergedReportRow) string { return strings.ToLower(r.PpraNo.Or("")) },
	"idno":        func(r *MergedReportRow) string { return strings.ToLower(r.IDNo.Or("")) },
	"province":    func(r *MergedReportRow) string { return strings.ToLower(r.Province.Or("")) },
	"agency":      func(r *MergedReportRow) string { return strings.ToLower(r.Agency.Or("")) },
	"coursename":  func(r *MergedReportRow) string { return strings.ToLower(r.CourseName) },
	"category":    func(r *MergedReportRow) string { return strings.ToLower(r.Category) },
	"datasource":  func(r *MergedReportRow) string { return string(r.DataSource) },
}

// mergedSortTimes covers the date-typed sort keys of the merged view.
var mergedSortTimes = map[string]func(r *MergedReportRow) int64{
	"enrolmentdate":        func(r *MergedReportRow) int64 { return r.EnrolmentDate.Unix() },
	"completiondate":       func(r *MergedReportRow) int64 { return r.CompletionDate.Unix() },
	"fourthcompletiondate": func(r *MergedReportRow) int64 { return r.FourthCompletionDate.Unix() },
}
