package tenant

import (
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Guard registers GORM callbacks that refuse to write a row belonging to a
// tenant other than the one in the statement context. Reads are left to
// TenantDB scoping.
type Guard struct{}

// RegisterGuard installs the create/update guard on db.
func RegisterGuard(db *gorm.DB) error {
	g := Guard{}
	if err := db.Callback().Create().Before("gorm:create").Register("tenant:guard_create", g.checkRows); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:guard_update", g.checkRows); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant:guard_delete", g.requireScope)
}

func (Guard) checkRows(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Schema == nil {
		return
	}
	field := db.Statement.Schema.LookUpField(Column)
	if field == nil {
		return
	}
	tenantID, err := FromContext(db.Statement.Context)
	if err != nil {
		// No tenant in context: system writes (seeders, migrations) pass.
		return
	}

	check := func(rv reflect.Value) {
		v, zero := field.ValueOf(db.Statement.Context, rv)
		if zero {
			return
		}
		if id, ok := v.(interface{ String() string }); ok && id.String() != tenantID.String() {
			_ = db.AddError(ErrInvalidTenantID)
		}
	}

	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			check(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		check(rv)
	}
}

// requireScope rejects tenant-table deletes that carry no tenant condition.
func (Guard) requireScope(db *gorm.DB) {
	if db.Statement.Schema == nil || db.Statement.Schema.LookUpField(Column) == nil {
		return
	}
	if _, err := FromContext(db.Statement.Context); err != nil {
		return
	}
	if c, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && hasTenantExpr(where.Exprs) {
			return
		}
	}
	_ = db.AddError(ErrTenantIDRequired)
}

func hasTenantExpr(exprs []clause.Expression) bool {
	for _, expr := range exprs {
		switch e := expr.(type) {
		case clause.Eq:
			if col, ok := e.Column.(clause.Column); ok && col.Name == Column {
				return true
			}
		case clause.Expr:
			if len(e.SQL) >= len(Column) && e.SQL[:len(Column)] == Column {
				return true
			}
		case clause.AndConditions:
			if hasTenantExpr(e.Exprs) {
				return true
			}
		}
	}
	return false
}
