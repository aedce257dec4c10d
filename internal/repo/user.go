package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/mydiary/internal/db"
	"github.com/crucial707/mydiary/internal/models"
)

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB db.DBTX
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(conn db.DBTX) *UserRepo {
	return &UserRepo{DB: conn}
}

const userColumns = `id, username, password_hash, email, name, birth_date, gender, phone, created_at`

// ==========================
// Create User
// ==========================
func (r *UserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, email, name, birth_date, gender, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var birth any
	if u.BirthDate != nil {
		birth = *u.BirthDate
	}

	created := *u
	err := r.DB.QueryRowContext(ctx, query,
		u.Username, u.PasswordHash, u.Email, u.Name, birth, u.Gender, u.Phone,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	return &created, nil
}

// ==========================
// Get By ID
// ==========================
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// ==========================
// Get By Username
// ==========================
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// ==========================
// Get By Email
// ==========================
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByUsernameAndEmail matches a user on both fields, as the reset request requires.
func (r *UserRepo) GetByUsernameAndEmail(ctx context.Context, username, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 AND email = $2`, username, email)
}

// ==========================
// Existence checks
// ==========================
func (r *UserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

// ==========================
// Update Password
// ==========================
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *UserRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := r.DB.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var (
		u     models.User
		birth sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Name, &birth, &u.Gender, &u.Phone, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if birth.Valid {
		t := birth.Time
		u.BirthDate = &t
	}
	return &u, nil
}
