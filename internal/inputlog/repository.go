// Package inputlog stores the journal of property updates a device has
// received, together with how its nodes answered them.
package inputlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

// Paging and storage limits.
const (
	DefaultLimit = 50
	MaxLimit     = 200

	// MaxValueLength bounds the stored payload; longer values are truncated.
	MaxValueLength = 1024
)

// timeFormat has a fixed width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Record is a single journal entry.
type Record struct {
	ID        string      `json:"id"`
	NodeID    string      `json:"node_id"`
	Property  string      `json:"property"`
	Value     string      `json:"value"`
	Result    node.Result `json:"result"`
	Source    string      `json:"source"`
	CreatedAt time.Time   `json:"created_at"`
}

// Filter controls which records List returns.
type Filter struct {
	NodeID   string       // optional: exact node id
	Property string       // optional: exact property name
	Result   *node.Result // optional: only this outcome
	Limit    int          // default 50, max 200
	Offset   int
}

// ListResult is one page of records.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines the journal operations.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	CountByResult(ctx context.Context) (map[node.Result]int, error)
}

// SQLiteRepository keeps the journal in the input_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts rec. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.NodeID == "" || rec.Property == "" {
		return fmt.Errorf("inserting input record: node id and property are required")
	}
	if rec.ID == "" {
		rec.ID = "inp-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.Value = truncate(rec.Value, MaxValueLength)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO input_log (id, node_id, property, value, result, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.NodeID, rec.Property, rec.Value,
		rec.Result.String(), rec.Source,
		rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting input record: %w", err)
	}
	return nil
}

// List returns records matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.NodeID != "" {
		conditions = append(conditions, "node_id = ?")
		args = append(args, filter.NodeID)
	}
	if filter.Property != "" {
		conditions = append(conditions, "property = ?")
		args = append(args, filter.Property)
	}
	if filter.Result != nil {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result.String())
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM input_log " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting input records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, node_id, property, value, result, source, created_at FROM input_log %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying input records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var result, createdAt string

		if err := rows.Scan(&rec.ID, &rec.NodeID, &rec.Property, &rec.Value,
			&result, &rec.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning input record: %w", err)
		}

		if err := rec.Result.UnmarshalText([]byte(result)); err != nil {
			return nil, fmt.Errorf("scanning input record %s: %w", rec.ID, err)
		}

		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			t, err = time.Parse(time.RFC3339Nano, createdAt)
			if err != nil {
				return nil, fmt.Errorf("parsing input record timestamp %q: %w", createdAt, err)
			}
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating input records: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// CountByResult returns the number of records per outcome.
// Outcomes that never occurred are present with a zero count.
func (r *SQLiteRepository) CountByResult(ctx context.Context) (map[node.Result]int, error) {
	counts := map[node.Result]int{
		node.Accepted:  0,
		node.Rejected:  0,
		node.Unhandled: 0,
	}

	rows, err := r.db.QueryContext(ctx, "SELECT result, COUNT(*) FROM input_log GROUP BY result")
	if err != nil {
		return nil, fmt.Errorf("counting input records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning input count: %w", err)
		}
		result, ok := node.ParseResult(name)
		if !ok {
			return nil, fmt.Errorf("scanning input count: unknown result %q", name)
		}
		counts[result] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating input counts: %w", err)
	}
	return counts, nil
}

// Prune deletes records created before cutoff and returns how many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM input_log WHERE created_at < ?",
		cutoff.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning input records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning input records: %w", err)
	}
	return n, nil
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
