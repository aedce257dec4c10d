package repo

import (
	"context"
	"time"

	"github.com/crucial707/mydiary/internal/db"
	"github.com/crucial707/mydiary/internal/models"
)

// ResetTokenRepo persists password reset tokens.
type ResetTokenRepo struct {
	DB db.DBTX
}

func NewResetTokenRepo(conn db.DBTX) *ResetTokenRepo {
	return &ResetTokenRepo{DB: conn}
}

// Create stores a freshly issued token.
func (r *ResetTokenRepo) Create(ctx context.Context, t *models.PasswordResetToken) (*models.PasswordResetToken, error) {
	created := *t
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO password_reset_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, used, created_at
	`, t.Token, t.UserID, t.ExpiresAt).Scan(&created.ID, &created.Used, &created.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &created, nil
}

// GetByToken looks a token up without locking.
func (r *ResetTokenRepo) GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	return r.get(ctx, `
		SELECT id, token, user_id, expires_at, used, created_at
		FROM password_reset_tokens
		WHERE token = $1
	`, token)
}

// GetByTokenForUpdate locks the row until the surrounding transaction ends.
// Only meaningful when DB is a *sql.Tx.
func (r *ResetTokenRepo) GetByTokenForUpdate(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	return r.get(ctx, `
		SELECT id, token, user_id, expires_at, used, created_at
		FROM password_reset_tokens
		WHERE token = $1
		FOR UPDATE
	`, token)
}

// MarkUsed flips used to true. ErrNotFound if the row is gone or already used.
func (r *ResetTokenRepo) MarkUsed(ctx context.Context, id int64) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used = true WHERE id = $1 AND used = false`, id)
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

// DeleteExpired removes every token whose expiry is before now.
func (r *ResetTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ResetTokenRepo) get(ctx context.Context, query, token string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := r.DB.QueryRowContext(ctx, query, token).
		Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}
