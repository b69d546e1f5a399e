package persistence

import (
	"strings"
)

// SortColumns whitelists the columns a list endpoint may order by.
// User input never reaches ORDER BY unless it names one of these.
type SortColumns struct {
	allowed  map[string]struct{}
	fallback string
}

// NewSortColumns builds a whitelist; fallback is used for unknown input
func NewSortColumns(fallback string, columns ...string) SortColumns {
	allowed := make(map[string]struct{}, len(columns)+1)
	allowed[fallback] = struct{}{}
	for _, col := range columns {
		allowed[col] = struct{}{}
	}
	return SortColumns{allowed: allowed, fallback: fallback}
}

// Column returns field if it is whitelisted, the fallback otherwise
func (s SortColumns) Column(field string) string {
	field = strings.ToLower(strings.TrimSpace(field))
	if _, ok := s.allowed[field]; ok {
		return field
	}
	return s.fallback
}

// OrderClause returns "<column> ASC|DESC"; anything but "asc" sorts descending
func (s SortColumns) OrderClause(field, dir string) string {
	return s.Column(field) + " " + sortDirection(dir)
}

func sortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// Encrypted columns hold ciphertext, so they are never sortable.
var (
	ContactSortColumns  = NewSortColumns("created_at", "id", "updated_at", "name", "company", "email", "status")
	ProposalSortColumns = NewSortColumns("created_at", "id", "updated_at", "title", "amount", "status", "valid_until", "sent_at")
)
