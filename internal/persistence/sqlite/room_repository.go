package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/roombook/internal/persistence"
)

var roomColumns = map[string]string{
	"id":    "id",
	"name":  "name",
	"place": "place",
}

const roomSelect = `SELECT id, name, description, place, created_at, updated_at FROM rooms`

type roomRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Place       string         `db:"place"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (row roomRow) toPersistence() (persistence.Room, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Room{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.Room{}, err
	}
	return persistence.Room{
		ID:          row.ID,
		Name:        row.Name,
		Description: stringPtr(row.Description),
		Place:       row.Place,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

// RoomRepository implements persistence.RoomRepository using SQLite. Rooms are
// always listed in insertion order, which automatic room selection relies on.
type RoomRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// FindByID retrieves a room by ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (persistence.Room, error) {
	return r.FindByKey(ctx, "id", id)
}

// FindByKey retrieves the first room whose field equals value.
func (r *RoomRepository) FindByKey(ctx context.Context, key, value string) (persistence.Room, error) {
	if strings.TrimSpace(value) == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	where, args, err := whereClause(persistence.Filter{key: value}, roomColumns)
	if err != nil {
		return persistence.Room{}, err
	}

	var row roomRow
	if err := r.helper.Get(ctx, &row, roomSelect+where+" ORDER BY rowid LIMIT 1", args...); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// List returns rooms in insertion order with the total number of matches.
func (r *RoomRepository) List(ctx context.Context, filter persistence.Filter, page persistence.Page) ([]persistence.Room, int, error) {
	where, args, err := whereClause(filter, roomColumns)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.helper.Get(ctx, &total, "SELECT COUNT(*) FROM rooms"+where, args...); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	limit, limitArgs := limitClause(page)
	var rows []roomRow
	if err := r.helper.Select(ctx, &rows, roomSelect+where+" ORDER BY rowid"+limit, append(args, limitArgs...)...); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.toPersistence()
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}
	return rooms, total, nil
}

// Save inserts the room when ID is empty, otherwise replaces the stored row.
func (r *RoomRepository) Save(ctx context.Context, room persistence.Room) (string, error) {
	if strings.TrimSpace(room.Name) == "" || strings.TrimSpace(room.Place) == "" {
		return "", persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `
		INSERT INTO rooms (id, name, description, place, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			place = excluded.place,
			updated_at = excluded.updated_at
	`
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			room.ID,
			room.Name,
			nullString(room.Description),
			room.Place,
			formatTime(room.CreatedAt),
			formatTime(room.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

// Delete removes a room together with the meetings booked in it.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteMany(ctx, persistence.Filter{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteMany removes every room matching filter. An empty filter is refused.
func (r *RoomRepository) DeleteMany(ctx context.Context, filter persistence.Filter) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: refusing to delete all rooms", persistence.ErrConstraintViolation)
	}
	where, args, err := whereClause(filter, roomColumns)
	if err != nil {
		return 0, err
	}

	var deleted int
	err = r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, "DELETE FROM rooms"+where, args...)
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
