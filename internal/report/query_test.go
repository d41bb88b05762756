package report

import (
	"testing"
	"time"
)

func TestQueryPageDefaults(t *testing.T) {
	if got := (Query{}).page(); got != 1 {
		t.Errorf("Zero page should default to 1, got %d", got)
	}
	if got := (Query{Page: -5}).page(); got != 1 {
		t.Errorf("Negative page should default to 1, got %d", got)
	}
	if got := (Query{Page: 7}).page(); got != 7 {
		t.Errorf("Explicit page should pass through, got %d", got)
	}
}

func TestQueryLimitClamps(t *testing.T) {
	if got := (Query{PageSize: 0}).limit(); got != 1 {
		t.Errorf("Zero page size should clamp to 1, got %d", got)
	}
	if got := (Query{PageSize: 50}).limit(); got != 50 {
		t.Errorf("Interactive page size should pass through, got %d", got)
	}
	if got := (Query{PageSize: 200}).limit(); got != 200 {
		t.Errorf("Page size at the interactive cap should pass through, got %d", got)
	}
	if got := (Query{PageSize: 5000}).limit(); got != 5000 {
		t.Errorf("Export-sized page size should pass through, got %d", got)
	}
	if got := (Query{PageSize: 2000000}).limit(); got != 100000 {
		t.Errorf("Page size beyond the export cap should clamp, got %d", got)
	}
}

func TestQueryOffset(t *testing.T) {
	q := Query{Page: 3, PageSize: 50}
	if got := q.offset(); got != 100 {
		t.Errorf("Expected offset 100, got %d", got)
	}
	if got := (Query{}).offset(); got != 0 {
		t.Errorf("Defaults should give offset 0, got %d", got)
	}
}

func TestQueryLike(t *testing.T) {
	if got := (Query{Search: "  "}).like(); got != "" {
		t.Errorf("Blank search should produce no pattern, got %q", got)
	}
	if got := (Query{Search: " smith "}).like(); got != "%smith%" {
		t.Errorf("Expected trimmed wildcard pattern, got %q", got)
	}
}

func TestQueryEpochBounds(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

	if _, _, noFilter := (Query{}).epochBounds(); !noFilter {
		t.Error("Missing bounds should disable the window filter")
	}
	if _, _, noFilter := (Query{FromUTC: &from}).epochBounds(); !noFilter {
		t.Error("A single bound should disable the window filter")
	}

	fromEpoch, toEpoch, noFilter := (Query{FromUTC: &from, ToUTC: &to}).epochBounds()
	if noFilter {
		t.Fatal("Both bounds present should enable the window filter")
	}
	if fromEpoch != from.Unix() || toEpoch != to.Unix() {
		t.Errorf("Epoch bounds mismatch: %d..%d", fromEpoch, toEpoch)
	}
}

func TestResolvePresetLastMonth(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	from, to := ResolvePreset("last-month", now, nil, nil)
	if from == nil || to == nil {
		t.Fatal("last-month should produce both bounds")
	}

	wantFrom := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	if !from.Equal(wantFrom) {
		t.Errorf("Expected start %v, got %v", wantFrom, from)
	}
	if !to.Equal(wantTo) {
		t.Errorf("Expected end %v, got %v", wantTo, to)
	}
}

func TestResolvePresetAllTimeClearsBounds(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, -1, 0)
	to := now

	gotFrom, gotTo := ResolvePreset("all-time", now, &from, &to)
	if gotFrom != nil || gotTo != nil {
		t.Error("all-time should clear explicit bounds")
	}
}

func TestResolvePresetRelativeWindows(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		preset string
		want   time.Time
	}{
		{"last-3-months", now.AddDate(0, -3, 0)},
		{"last-6-months", now.AddDate(0, -6, 0)},
		{"last-year", now.AddDate(-1, 0, 0)},
		{"1-year", now.AddDate(-1, 0, 0)},
	}
	for _, tc := range cases {
		from, to := ResolvePreset(tc.preset, now, nil, nil)
		if from == nil || to == nil {
			t.Errorf("%s should produce both bounds", tc.preset)
			continue
		}
		if !from.Equal(tc.want) {
			t.Errorf("%s: expected start %v, got %v", tc.preset, tc.want, from)
		}
		if !to.Equal(now) {
			t.Errorf("%s: expected end %v, got %v", tc.preset, now, to)
		}
	}
}

func TestResolvePresetUnknownKeepsExplicitBounds(t *testing.T) {
	now := time.Now().UTC()
	from := now.AddDate(0, -2, 0)
	to := now

	gotFrom, gotTo := ResolvePreset("quarterly", now, &from, &to)
	if gotFrom != &from || gotTo != &to {
		t.Error("Unknown presets should leave explicit bounds untouched")
	}
}
