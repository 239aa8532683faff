package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// timeLayout is fixed width so that text comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseNullTime(value sql.NullString) (time.Time, error) {
	if !value.Valid {
		return time.Time{}, nil
	}
	return parseTime(value.String)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

// whereClause renders filter as an AND of equality conditions. columns maps
// the public field names a repository accepts to their SQL columns.
func whereClause(filter persistence.Filter, columns map[string]string, extra ...string) (string, []any, error) {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := append([]string(nil), extra...)
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		column, ok := columns[key]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", persistence.ErrUnknownFilter, key)
		}
		conditions = append(conditions, column+" = ?")
		args = append(args, filter[key])
	}

	if len(conditions) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// limitClause renders LIMIT/OFFSET. SQLite treats a negative limit as unbounded.
func limitClause(page persistence.Page) (string, []any) {
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	skip := page.Skip
	if skip < 0 {
		skip = 0
	}
	return " LIMIT ? OFFSET ?", []any{limit, skip}
}

func rowsAffected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
