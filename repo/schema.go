package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/employee-records/db"
)

// TableName is the single table backing Employee.
const TableName = "employee"

// CreateTableSQL returns the idempotent DDL for the employee table in the
// given dialect. Only the float column type varies.
func CreateTableSQL(d db.Dialect) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS employee (
			id         INTEGER PRIMARY KEY NOT NULL,
			first_name TEXT,
			last_name  TEXT,
			pay        %s
		)`, d.FloatType)
}

// EnsureSchema creates the employee table when it does not exist yet.
func EnsureSchema(ctx context.Context, q db.Querier) error {
	_, err := q.Exec(ctx, CreateTableSQL(q.Dialect()))
	return err
}
