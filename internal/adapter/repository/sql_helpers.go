package repository

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/eslsoft/studyplan/internal/infrastructure/database"
)

// exec runs a statement; res may be nil when the result is not needed.
func exec(ctx context.Context, db *database.DB, query string, args []any, res *sql.Result) error {
	if res == nil {
		return db.Exec(ctx, query, args, nil)
	}
	return db.Exec(ctx, query, args, res)
}

// queryRow scans the single row of query into dest. A missing row yields sql.ErrNoRows.
func queryRow(ctx context.Context, db *database.DB, query string, args []any, dest ...any) error {
	var rows entsql.Rows
	if err := db.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return rows.Err()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
