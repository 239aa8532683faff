package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/roombook/internal/persistence"
)

var userColumns = map[string]string{
	"id":    "id",
	"login": "login",
	"name":  "name",
}

const userSelect = `SELECT id, login, password_hash, name, created_at, updated_at FROM users`

type userRow struct {
	ID           string `db:"id"`
	Login        string `db:"login"`
	PasswordHash string `db:"password_hash"`
	Name         string `db:"name"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (row userRow) toPersistence() (persistence.User, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:           row.ID,
		Login:        row.Login,
		PasswordHash: row.PasswordHash,
		Name:         row.Name,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (persistence.User, error) {
	return r.FindByKey(ctx, "id", id)
}

// FindByKey retrieves the first user whose field equals value.
func (r *UserRepository) FindByKey(ctx context.Context, key, value string) (persistence.User, error) {
	if strings.TrimSpace(value) == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	where, args, err := whereClause(persistence.Filter{key: value}, userColumns)
	if err != nil {
		return persistence.User{}, err
	}

	var row userRow
	if err := r.helper.Get(ctx, &row, userSelect+where+" ORDER BY rowid LIMIT 1", args...); err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// List returns users in creation order with the total number of matches.
func (r *UserRepository) List(ctx context.Context, filter persistence.Filter, page persistence.Page) ([]persistence.User, int, error) {
	where, args, err := whereClause(filter, userColumns)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.helper.Get(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	limit, limitArgs := limitClause(page)
	var rows []userRow
	if err := r.helper.Select(ctx, &rows, userSelect+where+" ORDER BY rowid"+limit, append(args, limitArgs...)...); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.toPersistence()
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, nil
}

// Save inserts the user when ID is empty, otherwise replaces the stored row.
// The login is unique; collisions surface as persistence.ErrDuplicate.
func (r *UserRepository) Save(ctx context.Context, user persistence.User) (string, error) {
	if strings.TrimSpace(user.Login) == "" || user.PasswordHash == "" {
		return "", persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, login, password_hash, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			login = excluded.login,
			password_hash = excluded.password_hash,
			name = excluded.name,
			updated_at = excluded.updated_at
	`
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			user.ID,
			user.Login,
			user.PasswordHash,
			user.Name,
			formatTime(user.CreatedAt),
			formatTime(user.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// Delete removes a user. Meetings and sessions owned by the user are removed
// by ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteMany(ctx, persistence.Filter{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteMany removes every user matching filter. An empty filter is refused.
func (r *UserRepository) DeleteMany(ctx context.Context, filter persistence.Filter) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: refusing to delete all users", persistence.ErrConstraintViolation)
	}
	where, args, err := whereClause(filter, userColumns)
	if err != nil {
		return 0, err
	}

	var deleted int
	err = r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, "DELETE FROM users"+where, args...)
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
