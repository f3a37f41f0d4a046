package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/skillsetu/skillsetu/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a SQLite-backed user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, blocked, skills_to_teach, skills_to_learn, created_at, updated_at`

// CreateUser stores a new user account.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	teach, err := encodeStrings(user.SkillsToTeach)
	if err != nil {
		return err
	}
	learn, err := encodeStrings(user.SkillsToLearn)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.Role,
		user.Blocked,
		teach,
		learn,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return persistence.ErrDuplicate
	}
	return err
}

// UpdateUser rewrites the mutable attributes of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	teach, err := encodeStrings(user.SkillsToTeach)
	if err != nil {
		return err
	}
	learn, err := encodeStrings(user.SkillsToLearn)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET name = ?, email = ?, password_hash = ?, role = ?, blocked = ?,
		    skills_to_teach = ?, skills_to_learn = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.db.ExecContext(ctx, query,
		user.Name,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.Role,
		user.Blocked,
		teach,
		learn,
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if isUniqueViolation(err) {
		return persistence.ErrDuplicate
	}
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.scanUser(r.db.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// ListUsers returns all users ordered by creation time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	rows, err := r.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user by ID.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.db.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

// SetBlocked flips the moderation block flag for a user.
func (r *UserRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	result, err := r.db.db.ExecContext(ctx, `UPDATE users SET blocked = ? WHERE id = ?`, blocked, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		teachRaw, learnRaw   string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Blocked,
		&teachRaw,
		&learnRaw,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.User{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.User{}, err
	}

	if user.SkillsToTeach, err = decodeStrings(teachRaw); err != nil {
		return persistence.User{}, err
	}
	if user.SkillsToLearn, err = decodeStrings(learnRaw); err != nil {
		return persistence.User{}, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
