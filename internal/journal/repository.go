// Package journal records connectivity lifecycle transitions in SQLite so
// that drops and recoveries can be reviewed after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source names the component that produced an entry.
type Source string

const (
	SourceLink     Source = "link"
	SourceSession  Source = "session"
	SourceProducer Source = "producer"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceLink, SourceSession, SourceProducer:
		return true
	}
	return false
}

// ErrInvalidSource is returned when an entry or filter names an unknown source.
var ErrInvalidSource = errors.New("journal: invalid source")

// timeFormat is fixed-width so occurred_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Entry is one journal row.
type Entry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     Source    `json:"source"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail,omitempty"`
	Healthy    bool      `json:"healthy"`
	RequestID  int       `json:"request_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Filter selects entries. Zero values match everything.
type Filter struct {
	Source Source
	Kind   string
	Since  time.Time
	Limit  int // default 50, max 500
	Offset int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and lists journal entries.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository is the journal table in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts e, filling ID and OccurredAt when empty.
func (r *SQLiteRepository) Append(ctx context.Context, e *Entry) error {
	if !e.Source.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSource, e.Source)
	}
	if e.ID == "" {
		e.ID = "jrn-" + uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (id, occurred_at, source, kind, detail, healthy, request_id, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OccurredAt.UTC().Format(timeFormat), string(e.Source), e.Kind, e.Detail,
		boolToInt(e.Healthy), nullableInt(e.RequestID), nullableString(e.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, filter.Source)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM journal " + where //nolint:gosec // placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := "SELECT id, occurred_at, source, kind, detail, healthy, request_id, error FROM journal " + //nolint:gosec // placeholders only
		where + " ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			occurredAt string
			source     string
			healthy    int
			requestID  sql.NullInt64
			errText    sql.NullString
		)
		if err := rows.Scan(&e.ID, &occurredAt, &source, &e.Kind, &e.Detail, &healthy, &requestID, &errText); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		t, err := time.Parse(timeFormat, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t
		e.Source = Source(source)
		e.Healthy = healthy != 0
		if requestID.Valid {
			e.RequestID = int(requestID.Int64)
		}
		if errText.Valid {
			e.Error = errText.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt maps 0 to SQL NULL.
func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
