package export

// Column is one entry of the published export column catalog. The catalog
// is the single source of truth for both UI rendering and server-side
// validation, so the governor's allow-lists are derived from it rather
// than maintained separately.
type Column struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Dataset keys accepted by the governor and the column catalog endpoint.
const (
	DatasetMoodle    = "moodle"
	DatasetWordPress = "wordpress"
	DatasetMerged    = "merged"
)

var baseColumns = []Column{
	{Value: "LastName", Label: "Last Name"},
	{Value: "FirstName", Label: "First Name"},
	{Value: "Email", Label: "Email"},
	{Value: "PhoneNumber", Label: "Phone Number"},
	{Value: "PpraNo", Label: "PPRA No"},
	{Value: "IdNo", Label: "ID No"},
	{Value: "Province", Label: "Province"},
	{Value: "Agency", Label: "Agency"},
	{Value: "CourseName", Label: "Course Name"},
	{Value: "Category", Label: "Category"},
	{Value: "EnrolmentDate", Label: "Enrolment Date"},
	{Value: "CompletionDate", Label: "Completion Date"},
	{Value: "FourthCompletionDate", Label: "4th Completion Date"},
}

var mergedColumns = append(append([]Column{}, baseColumns...), Column{
	Value: "DataSource", Label: "Data Source",
})

// Columns returns the column catalog for a dataset key. The second return
// is false for unknown datasets.
func Columns(datasetKey string) ([]Column, bool) {
	switch datasetKey {
	case DatasetMoodle, DatasetWordPress:
		return baseColumns, true
	case DatasetMerged:
		return mergedColumns, true
	default:
		return nil, false
	}
}

// ColumnValues returns just the value names of a dataset's catalog, in
// catalog order.
func ColumnValues(datasetKey string) []string {
	columns, ok := Columns(datasetKey)
	if !ok {
		return nil
	}
	values := make([]string, len(columns))
	for i, c := range columns {
		values[i] = c.Value
	}
	return values
}
