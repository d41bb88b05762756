package report

import "testing"

func TestOptionalStringScanTreatsSentinelsAsAbsent(t *testing.T) {
	absent := []any{nil, "", "  ", "-", "No Phone", "No SAID", "No PPRA", "No Province", "No Agency"}
	for _, src := range absent {
		var o OptionalString
		if err := o.Scan(src); err != nil {
			t.Fatalf("Scan(%v) failed: %v", src, err)
		}
		if o.Valid {
			t.Errorf("Scan(%v) should be absent, got %q", src, o.String)
		}
	}
}

func TestOptionalStringScanKeepsRealValues(t *testing.T) {
	var o OptionalString
	if err := o.Scan([]byte("  0821234567 ")); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !o.Valid || o.String != "0821234567" {
		t.Errorf("Expected trimmed value, got valid=%v value=%q", o.Valid, o.String)
	}

	if err := o.Scan(42); err == nil {
		t.Error("Scan should reject unsupported source types")
	}
}

func TestOptionalStringOr(t *testing.T) {
	if got := Present("Gauteng").Or("No Province"); got != "Gauteng" {
		t.Errorf("Present value should win, got %q", got)
	}
	if got := (OptionalString{}).Or("No Province"); got != "No Province" {
		t.Errorf("Absent value should yield the sentinel, got %q", got)
	}
}
