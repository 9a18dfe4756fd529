package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/repository"
)

var _ repository.Engine = (*DB)(nil)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Insert adds a new document. The id column is the primary key, so a
// duplicate id surfaces as a conflict rather than an overwrite.
func (db *DB) Insert(ctx context.Context, collection string, rec repository.Record) error {
	table, err := db.table(collection)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, body, created_at, updated_at) VALUES (?, ?, ?, ?)`, table),
		rec.ID,
		string(rec.Body),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(collection, rec.ID)
		}
		return fmt.Errorf("sqlite: inserting into %s: %w", collection, err)
	}
	return nil
}

// Get retrieves one document by id. sql.ErrNoRows becomes the app's
// NotFound so callers never see driver errors for a plain miss.
func (db *DB) Get(ctx context.Context, collection, id string) (*repository.Record, error) {
	table, err := db.table(collection)
	if err != nil {
		return nil, err
	}

	row := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, body, created_at, updated_at FROM %s WHERE id = ?`, table),
		id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(collection, id)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", collection, id, err)
	}
	return rec, nil
}

// Find returns the documents matching every condition in filter, oldest
// first. Ties on created_at fall back to id order.
func (db *DB) Find(ctx context.Context, collection string, filter repository.Filter, opts repository.ListOptions) ([]repository.Record, error) {
	table, err := db.table(collection)
	if err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.Limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, body, created_at, updated_at FROM %s%s
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`, table, where),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding %s: %w", collection, err)
	}
	defer rows.Close()

	records := make([]repository.Record, 0, opts.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", collection, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s: %w", collection, err)
	}

	return records, nil
}

// Replace overwrites the body of an existing document. RowsAffected tells us
// whether the id existed, saving a SELECT.
func (db *DB) Replace(ctx context.Context, collection string, rec repository.Record) error {
	table, err := db.table(collection)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET body = ?, updated_at = ? WHERE id = ?`, table),
		string(rec.Body),
		formatTime(rec.UpdatedAt),
		rec.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(collection, rec.ID)
		}
		return fmt.Errorf("sqlite: updating %s %s: %w", collection, rec.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(collection, rec.ID)
	}

	return nil
}

// Delete removes a document by id. Deleting an absent id is not an error.
func (db *DB) Delete(ctx context.Context, collection, id string) (bool, error) {
	table, err := db.table(collection)
	if err != nil {
		return false, err
	}

	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting %s %s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*repository.Record, error) {
	var (
		rec                  repository.Record
		body                 string
		createdAt, updatedAt string
	)
	if err := s.Scan(&rec.ID, &body, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	rec.Body = []byte(body)
	return &rec, nil
}

// buildWhere turns a Filter into a WHERE clause. Keys are sorted so the
// generated SQL is stable. Field names travel as bound JSON paths, never
// spliced into the statement.
func buildWhere(filter repository.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		if k == "" || strings.ContainsAny(k, `"\`) {
			return "", nil, fmt.Errorf("sqlite: invalid filter field %q", k)
		}

		v := filter[k]
		if k == "_id" {
			conds = append(conds, "id = ?")
			args = append(args, v)
			continue
		}

		path := `$."` + k + `"`
		switch val := v.(type) {
		case nil:
			conds = append(conds, "json_extract(body, ?) IS NULL")
			args = append(args, path)
		case bool:
			// json_extract yields 1/0 for JSON true/false.
			n := 0
			if val {
				n = 1
			}
			conds = append(conds, "json_type(body, ?) IN ('true', 'false') AND json_extract(body, ?) = ?")
			args = append(args, path, path, n)
		case string, float64, float32, int, int64, int32:
			conds = append(conds, "json_extract(body, ?) = ?")
			args = append(args, path, val)
		default:
			return "", nil, fmt.Errorf("sqlite: unsupported filter value for %s: %T", k, v)
		}
	}

	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
