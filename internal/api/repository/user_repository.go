package repository

//go:generate mockgen -source=user_repository.go -destination=mocks/mock_user_repository.go -package=mocks

import (
	"context"
	"ctchen222/user-service/internal/api/models"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("repository.user")

// ErrDuplicate is returned when an insert or update would break the
// uniqueness of username or email.
var ErrDuplicate = errors.New("username or email already exists")

const (
	userColumns = `id, name, username, gender, email, password_hash`

	selectUserByIDQuery       = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	selectUserByUsernameQuery = `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	selectUsersQuery          = `SELECT ` + userColumns + ` FROM users ORDER BY id`
	insertUserQuery           = `INSERT INTO users (name, username, gender, email, password_hash) VALUES (?, ?, ?, ?, ?) RETURNING id`
	updateUserQuery           = `UPDATE users SET name = ?, username = ?, gender = ?, email = ? WHERE id = ?`
	deleteUserQuery           = `DELETE FROM users WHERE id = ?`
)

// UserRepository defines the interface for user data operations.
// Lookups return (nil, nil) when no row matches.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	InsertUser(ctx context.Context, fields models.UserFields, passwordHash string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, fields models.UserFields) (bool, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

type sqlUserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new sqlx-based UserRepository. The same
// queries run against sqlite and postgres; placeholders are rebound per
// driver.
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

// GetUser retrieves a user by id.
func (r *sqlUserRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.GetUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(selectUserByIDQuery), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		recordError(span, err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user from the database by their username.
func (r *sqlUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.GetUserByUsername")
	defer span.End()

	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(selectUserByUsernameQuery), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No user found is not an application error
		}
		recordError(span, err)
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by id. The result is never nil.
func (r *sqlUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.ListUsers")
	defer span.End()

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, selectUsersQuery); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	span.SetAttributes(attribute.Int("user.count", len(users)))
	return users, nil
}

// InsertUser inserts a row and reads it back inside one transaction, so a
// failed read-back leaves no row behind.
func (r *sqlUserRepository) InsertUser(ctx context.Context, fields models.UserFields, passwordHash string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.InsertUser")
	defer span.End()

	var user models.User
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.QueryRowxContext(ctx, tx.Rebind(insertUserQuery),
			fields.Name, fields.Username, fields.Gender, fields.Email, passwordHash,
		).Scan(&id)
		if err != nil {
			return err
		}
		return tx.GetContext(ctx, &user, tx.Rebind(selectUserByIDQuery), id)
	})
	if err != nil {
		recordError(span, err)
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return &user, nil
}

// UpdateUser replaces the profile columns of user id. It reports false
// when no row matched.
func (r *sqlUserRepository) UpdateUser(ctx context.Context, id int64, fields models.UserFields) (bool, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.UpdateUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(updateUserQuery),
		fields.Name, fields.Username, fields.Gender, fields.Email, id)
	if err != nil {
		recordError(span, err)
		if isUniqueViolation(err) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	return affected(res)
}

// DeleteUser removes user id. It reports false when no row matched.
func (r *sqlUserRepository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.DeleteUser", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(deleteUserQuery), id)
	if err != nil {
		recordError(span, err)
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
