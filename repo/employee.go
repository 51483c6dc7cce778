package repo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Skryldev/employee-records/db"
	"github.com/Skryldev/employee-records/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Employee: live handle on one row
// ─────────────────────────────────────────────────────────────────────────────

// Employee is a handle bound to one row of the employee table. It holds only
// the id and the connection: every getter issues a fresh SELECT and every
// setter an immediate UPDATE, so values always reflect the current row.
//
// An Employee is not safe for concurrent use and offers no isolation from
// other writers of the same row. After Delete the handle is stale and reads
// return db.ErrNotFound.
type Employee struct {
	id int64
	q  db.Querier
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	sqlInsertEmployee = `
		INSERT INTO employee (id, first_name, last_name, pay)
		VALUES (?, ?, ?, ?)`

	sqlSelectEmployee = `
		SELECT * FROM employee WHERE id = ?`

	sqlSelectFirstName = `SELECT first_name FROM employee WHERE id = ?`
	sqlSelectLastName  = `SELECT last_name FROM employee WHERE id = ?`
	sqlSelectPay       = `SELECT pay FROM employee WHERE id = ?`

	sqlUpdateFirstName = `UPDATE employee SET first_name = ? WHERE id = ?`
	sqlUpdateLastName  = `UPDATE employee SET last_name = ? WHERE id = ?`
	sqlUpdatePay       = `UPDATE employee SET pay = ? WHERE id = ?`

	sqlDeleteEmployee = `DELETE FROM employee WHERE id = ?`
)

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

// NewEmployee makes sure the table exists and inserts e. If a row with e.ID
// is already stored with identical fields the insert is treated as done;
// if any field differs a *ConflictError is returned.
func NewEmployee(ctx context.Context, q db.Querier, e models.Employee) (*Employee, error) {
	if err := EnsureSchema(ctx, q); err != nil {
		return nil, err
	}
	if err := insertOrMatch(ctx, q, e); err != nil {
		return nil, err
	}
	return &Employee{id: e.ID, q: q}, nil
}

func insertOrMatch(ctx context.Context, q db.Querier, e models.Employee) error {
	_, err := q.Exec(ctx, sqlInsertEmployee, e.ID, e.FirstName, e.LastName, e.Pay)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKey(err) {
		return err
	}

	rec, fetchErr := FetchByID(ctx, q, e.ID)
	if fetchErr != nil {
		return fetchErr
	}
	stored, convErr := rec.Employee()
	if convErr != nil {
		return convErr
	}
	if stored != e {
		return &ConflictError{ID: e.ID, Stored: stored, Requested: e, Cause: err}
	}

	slog.DebugContext(ctx, "repo/employee: identical row already stored", "id", e.ID)
	return nil
}

// GetExisting loads the row for id and returns a handle on it.
// Returns db.ErrNotFound when no row matches.
func GetExisting(ctx context.Context, q db.Querier, id int64) (*Employee, error) {
	rec, err := FetchByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	e, err := rec.Employee()
	if err != nil {
		return nil, err
	}
	return NewEmployee(ctx, q, e)
}

// ─────────────────────────────────────────────────────────────────────────────
// Record: column name to value
// ─────────────────────────────────────────────────────────────────────────────

// Record is one employee row keyed by column name. Text columns are always
// string, never []byte.
type Record map[string]any

// FetchByID runs SELECT * for id and returns the row as a Record.
// Returns db.ErrNotFound when no row matches.
func FetchByID(ctx context.Context, q db.Querier, id int64) (Record, error) {
	rows, err := q.Query(ctx, sqlSelectEmployee, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, &db.DBError{Sentinel: db.ErrNotFound, Cause: sql.ErrNoRows, Message: "employee " + strconv.FormatInt(id, 10)}
	}

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("repo/employee: scan: %w", err)
	}

	rec := make(Record, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			rec[c] = string(b)
			continue
		}
		rec[c] = values[i]
	}
	return rec, rows.Err()
}

// Employee converts the record into typed fields. NULL text and pay columns
// become zero values.
func (r Record) Employee() (models.Employee, error) {
	var (
		e   models.Employee
		err error
	)
	if e.ID, err = asInt64(r["id"]); err != nil {
		return e, fmt.Errorf("repo/employee: column id: %w", err)
	}
	if e.FirstName, err = asString(r["first_name"]); err != nil {
		return e, fmt.Errorf("repo/employee: column first_name: %w", err)
	}
	if e.LastName, err = asString(r["last_name"]); err != nil {
		return e, fmt.Errorf("repo/employee: column last_name: %w", err)
	}
	if e.Pay, err = asFloat64(r["pay"]); err != nil {
		return e, fmt.Errorf("repo/employee: column pay: %w", err)
	}
	return e, nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Field access
// ─────────────────────────────────────────────────────────────────────────────

// ID returns the primary key the handle is bound to.
func (e *Employee) ID() int64 { return e.id }

// FirstName reads first_name from storage.
func (e *Employee) FirstName(ctx context.Context) (string, error) {
	return e.readText(ctx, sqlSelectFirstName)
}

// SetFirstName writes first_name. The UPDATE is issued even when the value
// is unchanged.
func (e *Employee) SetFirstName(ctx context.Context, v string) error {
	return e.write(ctx, sqlUpdateFirstName, v)
}

// LastName reads last_name from storage.
func (e *Employee) LastName(ctx context.Context) (string, error) {
	return e.readText(ctx, sqlSelectLastName)
}

// SetLastName writes last_name.
func (e *Employee) SetLastName(ctx context.Context, v string) error {
	return e.write(ctx, sqlUpdateLastName, v)
}

// Pay reads pay from storage.
func (e *Employee) Pay(ctx context.Context) (float64, error) {
	var v sql.NullFloat64
	if err := e.q.QueryRow(ctx, sqlSelectPay, e.id).Scan(&v); err != nil {
		return 0, err
	}
	return v.Float64, nil
}

// SetPay writes pay.
func (e *Employee) SetPay(ctx context.Context, v float64) error {
	return e.write(ctx, sqlUpdatePay, v)
}

// Email is derived from the current first and last name.
func (e *Employee) Email(ctx context.Context) (string, error) {
	first, last, err := e.names(ctx)
	if err != nil {
		return "", err
	}
	return models.EmailFor(first, last), nil
}

// FullName is derived from the current first and last name.
func (e *Employee) FullName(ctx context.Context) (string, error) {
	first, last, err := e.names(ctx)
	if err != nil {
		return "", err
	}
	return models.FullNameFor(first, last), nil
}

// Snapshot reads the three data columns one statement at a time.
func (e *Employee) Snapshot(ctx context.Context) (models.Employee, error) {
	first, last, err := e.names(ctx)
	if err != nil {
		return models.Employee{}, err
	}
	pay, err := e.Pay(ctx)
	if err != nil {
		return models.Employee{}, err
	}
	return models.Employee{ID: e.id, FirstName: first, LastName: last, Pay: pay}, nil
}

// Represent returns the debug form Employee("first", "last", pay) built from
// the current row.
func (e *Employee) Represent(ctx context.Context) (string, error) {
	s, err := e.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// Equals compares id, names and pay of both handles, re-reading every field
// from storage. A nil other is never equal.
func (e *Employee) Equals(ctx context.Context, other *Employee) (bool, error) {
	if other == nil {
		return false, nil
	}
	a, err := e.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	b, err := other.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

// Delete removes the row. Deleting a row that is already gone is not an
// error.
func (e *Employee) Delete(ctx context.Context) error {
	_, err := e.q.Exec(ctx, sqlDeleteEmployee, e.id)
	return err
}

func (e *Employee) names(ctx context.Context) (string, string, error) {
	first, err := e.FirstName(ctx)
	if err != nil {
		return "", "", err
	}
	last, err := e.LastName(ctx)
	if err != nil {
		return "", "", err
	}
	return first, last, nil
}

func (e *Employee) readText(ctx context.Context, query string) (string, error) {
	var v sql.NullString
	if err := e.q.QueryRow(ctx, query, e.id).Scan(&v); err != nil {
		return "", err
	}
	return v.String, nil
}

func (e *Employee) write(ctx context.Context, query string, v any) error {
	_, err := e.q.Exec(ctx, query, v, e.id)
	return err
}
