package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already registered")
	// ErrInvalidOTP signals a missing, mismatched, or expired verification code.
	ErrInvalidOTP = errors.New("auth: invalid or expired otp")
)

// Repository handles data access for accounts and verification codes.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	ReplaceOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, email, code string, now time.Time) error
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	IsVerified   bool
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, phone, is_verified, is_admin, last_login_at, created_at, updated_at`

// CreateUser inserts a new user with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	insertSQL := `
		INSERT INTO users (name, email, password_hash, phone, is_verified)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.Name, params.Email, params.PasswordHash, params.Phone, params.IsVerified))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// TouchLastLogin stamps the last successful login time.
func (r *PGRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, userID, at); err != nil {
		return fmt.Errorf("auth: touch last login: %w", err)
	}
	return nil
}

// ReplaceOTP discards any previous codes for the email and stores a fresh one.
func (r *PGRepository) ReplaceOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("auth: begin otp tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM otps WHERE email = lower($1)`, email); err != nil {
		return fmt.Errorf("auth: clear otps: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO otps (email, code, expires_at) VALUES (lower($1), $2, $3)`,
		email, code, expiresAt); err != nil {
		return fmt.Errorf("auth: insert otp: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("auth: commit otp tx: %w", err)
	}
	return nil
}

// ConsumeOTP deletes a live matching code. A code can be consumed once.
func (r *PGRepository) ConsumeOTP(ctx context.Context, email, code string, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM otps WHERE email = lower($1) AND code = $2 AND expires_at > $3`,
		email, code, now)
	if err != nil {
		return fmt.Errorf("auth: consume otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidOTP
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user        User
		phone       *string
		lastLoginAt *time.Time
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&phone,
		&user.IsVerified,
		&user.IsAdmin,
		&lastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	user.Phone = phone
	user.LastLoginAt = lastLoginAt
	return user, nil
}
