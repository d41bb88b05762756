package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoodleRowAsMerged(t *testing.T) {
	completed := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	row := MoodleReportRow{
		UserID:               100,
		FirstName:            "Alice",
		LastName:             "Moore",
		Email:                "alice@x.com",
		PhoneNumber:          Present("0821234567"),
		PpraNo:               Present("PPRA-100"),
		CourseName:           "Ethics 4",
		Category:             "Compliance",
		EnrolmentDate:        completed.AddDate(0, 0, -7),
		CompletionDate:       completed,
		FourthCompletionDate: completed,
	}

	merged := row.AsMerged()

	require.Equal(t, DataSourceMoodle, merged.DataSource)
	assert.False(t, merged.HighlightRed, "single-source lift carries no highlight")
	assert.False(t, merged.HighlightBlue)
	assert.Equal(t, row.UserID, merged.UserID)
	assert.Equal(t, row.Email, merged.Email)
	assert.Equal(t, row.PhoneNumber, merged.PhoneNumber)
	assert.Equal(t, row.CourseName, merged.CourseName)
	assert.True(t, merged.CompletionDate.Equal(row.CompletionDate))
	assert.True(t, merged.FourthCompletionDate.Equal(row.FourthCompletionDate))
}

func TestWordPressRowAsMerged(t *testing.T) {
	registered := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
	row := WordPressReportRow{
		UserID:               200,
		FirstName:            "Carol",
		LastName:             "Reed",
		Email:                "carol@z.com",
		Province:             Present("Western Cape"),
		EnrolmentDate:        registered,
		CompletionDate:       registered,
		FourthCompletionDate: registered,
	}

	merged := row.AsMerged()

	require.Equal(t, DataSourceWordPress, merged.DataSource)
	assert.False(t, merged.HighlightRed)
	assert.False(t, merged.HighlightBlue)
	assert.Equal(t, row.Province, merged.Province)
	assert.Empty(t, merged.CourseName, "membership rows carry no course data")
	assert.True(t, merged.EnrolmentDate.Equal(registered))
}
