// Package store holds the database queries. Functions take a db.DBTX so they
// run equally against a connection pool or inside a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/jaego/internal/db"
)

// get scans one row into dest. It reports false when no row matched.
func get(ctx context.Context, q db.DBTX, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// sel scans all rows into dest, a pointer to a slice.
func sel(ctx context.Context, q db.DBTX, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q db.DBTX, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// selIn expands slice arguments for IN (?) clauses before executing.
func selIn(ctx context.Context, q db.DBTX, dest any, query string, args ...any) error {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return fmt.Errorf("expanding query: %w", err)
	}
	return sel(ctx, q, dest, expanded, expandedArgs...)
}

// forUpdate returns the row-locking suffix for SELECTs inside transactions.
// SQLite serializes writers, so only Postgres needs it.
func forUpdate(q db.DBTX) string {
	if db.IsPostgres(q) {
		return " FOR UPDATE"
	}
	return ""
}

// likeOp is the case-insensitive LIKE operator of the dialect.
func likeOp(q db.DBTX) string {
	if db.IsPostgres(q) {
		return "ILIKE"
	}
	return "LIKE"
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

// likePattern wraps s for a substring LIKE match, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// isUniqueViolation reports whether err came from a unique constraint.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
