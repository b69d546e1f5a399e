package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortColumns_OrderClause(t *testing.T) {
	cols := NewSortColumns("created_at", "name", "email")

	tests := []struct {
		field, dir string
		want       string
	}{
		{"", "", "created_at DESC"},
		{"name", "asc", "name ASC"},
		{"  NAME ", " ASC ", "name ASC"},
		{"email", "desc", "email DESC"},
		{"email", "sideways", "email DESC"},
		{"national_id", "asc", "created_at ASC"},
		{"name; DROP TABLE contacts;--", "asc", "created_at ASC"},
		{"name", "ASC; DELETE FROM contacts", "name DESC"},
		{"name'--", "", "created_at DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, cols.OrderClause(tt.field, tt.dir))
		})
	}
}

func TestSortColumns_EncryptedColumnsAreNotSortable(t *testing.T) {
	for _, field := range []string{"national_id", "tax_id", "phone", "date_of_birth", "address", "notes"} {
		assert.Equal(t, "created_at", ContactSortColumns.Column(field), field)
	}
	assert.Equal(t, "created_at", ProposalSortColumns.Column("content"))
	assert.Equal(t, "amount", ProposalSortColumns.Column("amount"))
}
