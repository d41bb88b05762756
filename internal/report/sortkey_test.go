package report

import (
	"strings"
	"testing"
)

func TestOrderByExprResolvesAllowListedColumns(t *testing.T) {
	cases := []struct {
		column string
		want   string
	}{
		{"lastname", "LastName ASC"},
		{"LastName", "LastName ASC"},
		{" Email ", "Email ASC"},
		{"completiondate", "CompletionEpoch ASC"},
		{"fourthcompletiondate", "FourthCompletionEpoch ASC"},
	}
	for _, tc := range cases {
		if got := orderByExpr(tc.column, false); got != tc.want {
			t.Errorf("orderByExpr(%q) = %q, want %q", tc.column, got, tc.want)
		}
	}
}

func TestOrderByExprDescending(t *testing.T) {
	if got := orderByExpr("email", true); got != "Email DESC" {
		t.Errorf("Expected Email DESC, got %q", got)
	}
}

func TestOrderByExprRejectsUnknownColumns(t *testing.T) {
	hostile := []string{
		"",
		"unknown",
		"Email; DROP TABLE mdl_user",
		"Email--",
		"1=1",
		"Email' OR '1'='1",
	}
	for _, column := range hostile {
		got := orderByExpr(column, false)
		if got != defaultOrder+" ASC" {
			t.Errorf("orderByExpr(%q) = %q, want fallback order", column, got)
		}
		if strings.ContainsAny(got, ";'-=") {
			t.Errorf("SQL metacharacters leaked into ORDER BY: %q", got)
		}
	}
}

func TestMergedSortKeysCoverSourceAllowList(t *testing.T) {
	for column := range sourceSortExprs {
		_, inKeys := mergedSortKeys[column]
		_, inTimes := mergedSortTimes[column]
		if !inKeys && !inTimes {
			t.Errorf("Source sort column %q has no merged accessor", column)
		}
	}
	if _, ok := mergedSortKeys["datasource"]; !ok {
		t.Error("Merged view should also sort by data source")
	}
}
