package report

// AsMerged lifts an LMS row into the merged row shape without highlights,
// for callers that render single-source and merged results through one
// path.
func (r MoodleReportRow) AsMerged() MergedReportRow {
	return MergedReportRow{
		UserID:               r.UserID,
		FirstName:            r.FirstName,
		LastName:             r.LastName,
		Email:                r.Email,
		PhoneNumber:          r.PhoneNumber,
		PpraNo:               r.PpraNo,
		IDNo:                 r.IDNo,
		Province:             r.Province,
		Agency:               r.Agency,
		CourseName:           r.CourseName,
		Category:             r.Category,
		EnrolmentDate:        r.EnrolmentDate,
		CompletionDate:       r.CompletionDate,
		FourthCompletionDate: r.FourthCompletionDate,
		DataSource:           DataSourceMoodle,
	}
}

// AsMerged lifts a membership row into the merged row shape without
// highlights.
func (r WordPressReportRow) AsMerged() MergedReportRow {
	return MergedReportRow{
		UserID:               r.UserID,
		FirstName:            r.FirstName,
		LastName:             r.LastName,
		Email:                r.Email,
		PhoneNumber:          r.PhoneNumber,
		PpraNo:               r.PpraNo,
		IDNo:                 r.IDNo,
		Province:             r.Province,
		Agency:               r.Agency,
		CourseName:           r.CourseName,
		Category:             r.Category,
		EnrolmentDate:        r.EnrolmentDate,
		CompletionDate:       r.CompletionDate,
		FourthCompletionDate: r.FourthCompletionDate,
		DataSource:           DataSourceWordPress,
	}
}
