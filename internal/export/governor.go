package export

import (
	"fmt"
	"strings"
)

// Decision is the structured outcome of an export policy check. Denials
// carry a reason so callers can show the user something actionable instead
// of a generic failure.
type Decision struct {
	Allowed bool
	Columns []string
	Reason  string
}

// Governor enforces export policy: a hard row cap and per-dataset column
// allow-lists. All state is fixed at construction; instances are safe for
// concurrent use.
type Governor struct {
	rowCap     int
	roles      map[string]struct{}
	allowLists map[string]map[string]string
}

// NewGovernor builds a governor with allow-lists derived from the column
// catalog, keyed case-insensitively. Only the given roles may export; an
// empty role list admits any role.
func NewGovernor(rowCap int, allowedRoles ...string) *Governor {
	roles := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		roles[role] = struct{}{}
	}
	allowLists := make(map[string]map[string]string)
	for _, dataset := range []string{DatasetMoodle, DatasetWordPress, DatasetMerged} {
		allowed := make(map[string]string)
		for _, value := range ColumnValues(dataset) {
			allowed[strings.ToLower(value)] = value
		}
		allowLists[dataset] = allowed
	}
	return &Governor{rowCap: rowCap, roles: roles, allowLists: allowLists}
}

// Evaluate decides whether an export may proceed and with which columns.
// Requested columns outside the allow-list are dropped, not rejected; the
// survivors keep the caller's order, spelled in canonical catalog form.
// When nothing survives the full catalog is used, so a request with only
// invalid columns still exports something usable.
func (g *Governor) Evaluate(datasetKey, role string, estimatedRows int, requestedColumns []string) Decision {
	if len(g.roles) > 0 {
		if _, ok := g.roles[role]; !ok {
			return Decision{Reason: fmt.Sprintf("role %q may not export", role)}
		}
	}

	if estimatedRows > g.rowCap {
		return Decision{
			Reason: fmt.Sprintf("row cap exceeded: %d > %d", estimatedRows, g.rowCap),
		}
	}

	allowed, ok := g.allowLists[datasetKey]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown dataset %q", datasetKey)}
	}

	filtered := make([]string, 0, len(requestedColumns))
	for _, column := range requestedColumns {
		if canonical, ok := allowed[strings.ToLower(strings.TrimSpace(column))]; ok {
			filtered = append(filtered, canonical)
		}
	}
	if len(filtered) == 0 {
		filtered = ColumnValues(datasetKey)
	}

	return Decision{Allowed: true, Columns: filtered}
}

// RowCap exposes the configured cap for pre-flight checks and error
// messages.
func (g *Governor) RowCap() int {
	return g.rowCap
}
