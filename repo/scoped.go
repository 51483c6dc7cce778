package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Skryldev/employee-records/db"
	"github.com/Skryldev/employee-records/models"
)

// WithTemporaryEmployee stores e, hands the live handle to fn and deletes the
// row when fn returns, fails or panics. Delete runs exactly once per
// successful construction. If construction fails fn is not called.
//
// When both fn and the cleanup delete fail, the returned error joins the two.
// A panic in fn is re-raised after cleanup.
//
//	err := repo.WithTemporaryEmployee(ctx, d, models.Employee{ID: 1001, FirstName: "John", LastName: "Doe", Pay: 1000}, func(e *repo.Employee) error {
//	    return e.SetPay(ctx, 2000.1)
//	})
func WithTemporaryEmployee(ctx context.Context, q db.Querier, e models.Employee, fn func(*Employee) error) (err error) {
	emp, err := NewEmployee(ctx, q, e)
	if err != nil {
		return err
	}

	// The row must go even if fn cancelled ctx.
	cleanupCtx := context.WithoutCancel(ctx)

	defer func() {
		if p := recover(); p != nil {
			if delErr := emp.Delete(cleanupCtx); delErr != nil {
				slog.ErrorContext(cleanupCtx, "repo/employee: cleanup after panic failed", "id", emp.ID(), "error", delErr)
			}
			panic(p)
		}
		if delErr := emp.Delete(cleanupCtx); delErr != nil {
			err = errors.Join(err, fmt.Errorf("repo/employee: cleanup delete %d: %w", emp.ID(), delErr))
		}
	}()

	return fn(emp)
}
