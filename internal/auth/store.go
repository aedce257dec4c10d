package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/mydiary/internal/db"
	"github.com/crucial707/mydiary/internal/models"
	"github.com/crucial707/mydiary/internal/repo"
)

// UserStore is the credential store. *repo.UserRepo implements it.
type UserStore interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsernameAndEmail(ctx context.Context, username, email string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// TokenStore is the reset token store. *repo.ResetTokenRepo implements it.
type TokenStore interface {
	Create(ctx context.Context, t *models.PasswordResetToken) (*models.PasswordResetToken, error)
	GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditLog records account events. *repo.AuditRepo implements it.
type AuditLog interface {
	Log(ctx context.Context, userID int64, action, resourceType string, resourceID int64, details string) error
}

// TxFunc runs with stores bound to one transaction.
type TxFunc func(ctx context.Context, users UserStore, tokens TokenStore) error

// Transactor runs fn atomically: every write made through the stores it is
// handed commits together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// SQLTransactor binds repo stores to a database/sql transaction.
type SQLTransactor struct {
	DB *sql.DB
}

func (t SQLTransactor) WithinTx(ctx context.Context, fn TxFunc) error {
	return db.WithTx(ctx, t.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, repo.NewUserRepo(tx), repo.NewResetTokenRepo(tx))
	})
}
