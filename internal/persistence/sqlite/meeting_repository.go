package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/roombook/internal/persistence"
)

var meetingColumns = map[string]string{
	"id":      "id",
	"name":    "name",
	"room_id": "room_id",
	"user_id": "user_id",
	"etag":    "etag",
}

const meetingSelect = `SELECT id, name, description, start_time, end_time, room_id, user_id, etag, placeholder, created_at, updated_at FROM meetings`

type meetingRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	StartTime   sql.NullString `db:"start_time"`
	EndTime     sql.NullString `db:"end_time"`
	RoomID      sql.NullString `db:"room_id"`
	UserID      string         `db:"user_id"`
	ETag        string         `db:"etag"`
	Placeholder bool           `db:"placeholder"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (row meetingRow) toPersistence() (persistence.Meeting, error) {
	start, err := parseNullTime(row.StartTime)
	if err != nil {
		return persistence.Meeting{}, err
	}
	end, err := parseNullTime(row.EndTime)
	if err != nil {
		return persistence.Meeting{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Meeting{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.Meeting{}, err
	}
	return persistence.Meeting{
		ID:          row.ID,
		Name:        row.Name,
		Description: stringPtr(row.Description),
		Start:       start,
		End:         end,
		RoomID:      stringPtr(row.RoomID),
		UserID:      row.UserID,
		ETag:        row.ETag,
		Placeholder: row.Placeholder,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func toMeetings(rows []meetingRow) ([]persistence.Meeting, error) {
	meetings := make([]persistence.Meeting, 0, len(rows))
	for _, row := range rows {
		meeting, err := row.toPersistence()
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	return meetings, nil
}

// MeetingRepository implements persistence.MeetingRepository using SQLite.
//
// The schema carries triggers that abort any write leaving two confirmed
// meetings overlapping in one room, and a partial unique index allowing a
// single pending slot per user. Both surface through MapError as
// persistence.ErrConflict and persistence.ErrDuplicate.
type MeetingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewMeetingRepository creates a new SQLite meeting repository
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// FindByID retrieves a meeting or slot by ID.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (persistence.Meeting, error) {
	return r.FindByKey(ctx, "id", id)
}

// FindByKey retrieves the first meeting whose field equals value.
func (r *MeetingRepository) FindByKey(ctx context.Context, key, value string) (persistence.Meeting, error) {
	if strings.TrimSpace(value) == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	where, args, err := whereClause(persistence.Filter{key: value}, meetingColumns)
	if err != nil {
		return persistence.Meeting{}, err
	}

	var row meetingRow
	if err := r.helper.Get(ctx, &row, meetingSelect+where+" ORDER BY rowid LIMIT 1", args...); err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// List returns every matching record, placeholders and past meetings included.
func (r *MeetingRepository) List(ctx context.Context, filter persistence.Filter, page persistence.Page) ([]persistence.Meeting, int, error) {
	return r.Query(ctx, persistence.MeetingQuery{Filter: filter, IncludePlaceholders: true}, page)
}

// Query lists meetings ordered by start time then ID.
func (r *MeetingRepository) Query(ctx context.Context, query persistence.MeetingQuery, page persistence.Page) ([]persistence.Meeting, int, error) {
	var (
		extra     []string
		extraArgs []any
	)
	if !query.IncludePlaceholders {
		extra = append(extra, "placeholder = 0")
	}
	if query.EndsAfter != nil {
		extra = append(extra, "end_time > ?")
		extraArgs = append(extraArgs, formatTime(*query.EndsAfter))
	}

	where, filterArgs, err := whereClause(query.Filter, meetingColumns, extra...)
	if err != nil {
		return nil, 0, err
	}
	args := append(extraArgs, filterArgs...)

	var total int
	if err := r.helper.Get(ctx, &total, "SELECT COUNT(*) FROM meetings"+where, args...); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	limit, limitArgs := limitClause(page)
	var rows []meetingRow
	if err := r.helper.Select(ctx, &rows, meetingSelect+where+" ORDER BY start_time, id"+limit, append(args, limitArgs...)...); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	meetings, err := toMeetings(rows)
	if err != nil {
		return nil, 0, err
	}
	return meetings, total, nil
}

// Overlapping returns confirmed meetings intersecting [start, end), in
// insertion order. An empty roomID matches every room.
func (r *MeetingRepository) Overlapping(ctx context.Context, roomID string, start, end time.Time) ([]persistence.Meeting, error) {
	query := meetingSelect + ` WHERE placeholder = 0 AND room_id IS NOT NULL AND start_time < ? AND end_time > ?`
	args := []any{formatTime(end), formatTime(start)}
	if roomID != "" {
		query += " AND room_id = ?"
		args = append(args, roomID)
	}

	var rows []meetingRow
	if err := r.helper.Select(ctx, &rows, query+" ORDER BY rowid", args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return toMeetings(rows)
}

// FindPlaceholder returns the pending slot held by userID.
func (r *MeetingRepository) FindPlaceholder(ctx context.Context, userID string) (persistence.Meeting, error) {
	var row meetingRow
	err := r.helper.Get(ctx, &row, meetingSelect+" WHERE user_id = ? AND placeholder = 1 LIMIT 1", userID)
	if err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// Save inserts the meeting when ID is empty, otherwise replaces the stored
// row without checking its concurrency token.
func (r *MeetingRepository) Save(ctx context.Context, meeting persistence.Meeting) (string, error) {
	if meeting.UserID == "" || meeting.ETag == "" {
		return "", persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	const query = `
		INSERT INTO meetings (id, name, description, start_time, end_time, room_id, user_id, etag, placeholder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			room_id = excluded.room_id,
			user_id = excluded.user_id,
			etag = excluded.etag,
			placeholder = excluded.placeholder,
			updated_at = excluded.updated_at
	`
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			meeting.ID,
			meeting.Name,
			nullString(meeting.Description),
			nullTime(meeting.Start),
			nullTime(meeting.End),
			nullString(meeting.RoomID),
			meeting.UserID,
			meeting.ETag,
			meeting.Placeholder,
			formatTime(meeting.CreatedAt),
			formatTime(meeting.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return meeting.ID, nil
}

// Replace overwrites the stored meeting if its token still equals
// expectedETag. The update and the stale/missing distinction run in one
// transaction.
func (r *MeetingRepository) Replace(ctx context.Context, meeting persistence.Meeting, expectedETag string) error {
	if meeting.ID == "" || meeting.UserID == "" || meeting.ETag == "" {
		return persistence.ErrConstraintViolation
	}
	meeting.UpdatedAt = r.now().UTC()

	const query = `
		UPDATE meetings SET
			name = ?, description = ?, start_time = ?, end_time = ?, room_id = ?,
			user_id = ?, etag = ?, placeholder = ?, updated_at = ?
		WHERE id = ? AND etag = ?
	`
	var outcome error
	err := r.retry.WithRetry(ctx, func() error {
		outcome = nil
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			result, err := tx.ExecContext(ctx, query,
				meeting.Name,
				nullString(meeting.Description),
				nullTime(meeting.Start),
				nullTime(meeting.End),
				nullString(meeting.RoomID),
				meeting.UserID,
				meeting.ETag,
				meeting.Placeholder,
				formatTime(meeting.UpdatedAt),
				meeting.ID,
				expectedETag,
			)
			if err != nil {
				return err
			}
			updated, err := rowsAffected(result)
			if err != nil || updated > 0 {
				return err
			}

			var present int
			if err := tx.GetContext(ctx, &present, "SELECT COUNT(*) FROM meetings WHERE id = ?", meeting.ID); err != nil {
				return err
			}
			if present == 0 {
				outcome = persistence.ErrNotFound
			} else {
				outcome = persistence.ErrStale
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	return outcome
}

// Delete removes a meeting or slot.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteMany(ctx, persistence.Filter{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteMany removes every meeting matching filter. An empty filter is refused.
func (r *MeetingRepository) DeleteMany(ctx context.Context, filter persistence.Filter) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: refusing to delete all meetings", persistence.ErrConstraintViolation)
	}
	where, args, err := whereClause(filter, meetingColumns)
	if err != nil {
		return 0, err
	}

	var deleted int
	err = r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, "DELETE FROM meetings"+where, args...)
		if err != nil {
			return err
		}
		deleted, err = rowsAffected(result)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
