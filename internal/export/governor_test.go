package export

import (
	"strings"
	"testing"

	"charter-reporter/internal/models"
)

func TestEvaluateAllowsWithinCap(t *testing.T) {
	g := NewGovernor(1000, models.RoleCharterAdmin)

	decision := g.Evaluate(DatasetMerged, models.RoleCharterAdmin, 500, nil)
	if !decision.Allowed {
		t.Fatalf("Export within the cap should be allowed, reason: %s", decision.Reason)
	}
	if len(decision.Columns) != len(ColumnValues(DatasetMerged)) {
		t.Errorf("No column selection should yield the full catalog, got %d columns", len(decision.Columns))
	}
}

func TestEvaluateDeniesOverCap(t *testing.T) {
	g := NewGovernor(1000, models.RoleCharterAdmin)

	decision := g.Evaluate(DatasetMerged, models.RoleCharterAdmin, 1001, nil)
	if decision.Allowed {
		t.Fatal("Export over the cap should be denied")
	}
	if !strings.Contains(decision.Reason, "row cap") {
		t.Errorf("Denial reason should name the row cap, got %q", decision.Reason)
	}
}

func TestEvaluateDeniesUnknownRole(t *testing.T) {
	g := NewGovernor(1000, models.RoleCharterAdmin, models.RoleRebosaAdmin)

	decision := g.Evaluate(DatasetMerged, "Intern", 1, nil)
	if decision.Allowed {
		t.Fatal("Unlisted roles should be denied")
	}
	if !strings.Contains(decision.Reason, "Intern") {
		t.Errorf("Denial reason should name the role, got %q", decision.Reason)
	}

	for _, role := range []string{models.RoleCharterAdmin, models.RoleRebosaAdmin} {
		if d := g.Evaluate(DatasetMerged, role, 1, nil); !d.Allowed {
			t.Errorf("Role %s should be allowed, reason: %s", role, d.Reason)
		}
	}
}

func TestEvaluateEmptyRoleListAdmitsAnyRole(t *testing.T) {
	g := NewGovernor(1000)

	if d := g.Evaluate(DatasetMoodle, "Anyone", 1, nil); !d.Allowed {
		t.Errorf("Governor without a role list should admit any role, reason: %s", d.Reason)
	}
}

func TestEvaluateDeniesUnknownDataset(t *testing.T) {
	g := NewGovernor(1000)

	decision := g.Evaluate("mainframe", "", 1, nil)
	if decision.Allowed {
		t.Fatal("Unknown datasets should be denied")
	}
	if !strings.Contains(decision.Reason, "mainframe") {
		t.Errorf("Denial reason should name the dataset, got %q", decision.Reason)
	}
}

func TestEvaluateColumnIntersection(t *testing.T) {
	g := NewGovernor(1000)

	decision := g.Evaluate(DatasetMerged, "", 1, []string{
		"email", " LASTNAME ", "NotAColumn", "datasource",
	})
	if !decision.Allowed {
		t.Fatalf("Expected allow, reason: %s", decision.Reason)
	}

	want := []string{"Email", "LastName", "DataSource"}
	if len(decision.Columns) != len(want) {
		t.Fatalf("Expected %v, got %v", want, decision.Columns)
	}
	for i, col := range want {
		if decision.Columns[i] != col {
			t.Errorf("Column %d: expected canonical %q in caller order, got %q", i, col, decision.Columns[i])
		}
	}
}

func TestEvaluateAllInvalidColumnsFallBackToCatalog(t *testing.T) {
	g := NewGovernor(1000)

	decision := g.Evaluate(DatasetMoodle, "", 1, []string{"bogus", "alsoBogus"})
	if !decision.Allowed {
		t.Fatalf("Expected allow, reason: %s", decision.Reason)
	}
	if len(decision.Columns) != len(ColumnValues(DatasetMoodle)) {
		t.Errorf("All-invalid selection should fall back to the catalog, got %v", decision.Columns)
	}
}

func TestMergedCatalogExtendsBaseCatalog(t *testing.T) {
	base := ColumnValues(DatasetMoodle)
	merged := ColumnValues(DatasetMerged)

	if len(merged) != len(base)+1 {
		t.Fatalf("Merged catalog should add one column, got %d vs %d", len(merged), len(base))
	}
	if merged[len(merged)-1] != "DataSource" {
		t.Errorf("Merged catalog should end with DataSource, got %s", merged[len(merged)-1])
	}

	if _, ok := Columns("nope"); ok {
		t.Error("Unknown dataset keys should report no catalog")
	}
}
