package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/mydiary/internal/db"
	"github.com/crucial707/mydiary/internal/models"
)

// ==========================
// DiaryRepo
// ==========================
type DiaryRepo struct {
	DB db.DBTX
}

func NewDiaryRepo(conn db.DBTX) *DiaryRepo {
	return &DiaryRepo{DB: conn}
}

// ==========================
// Create Diary
// ==========================
func (r *DiaryRepo) Create(ctx context.Context, d *models.Diary) (*models.Diary, error) {
	query := `
		INSERT INTO diaries (user_id, title, content, image_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	created := *d
	err := r.DB.QueryRowContext(ctx, query, d.UserID, d.Title, d.Content, nullString(d.ImagePath)).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	return &created, nil
}

// ==========================
// List By User
// ==========================

// ListByUser returns the user's diaries by creation time, ties broken by id ascending.
func (r *DiaryRepo) ListByUser(ctx context.Context, userID int64, asc bool) ([]models.Diary, error) {
	query := `
		SELECT id, user_id, title, content, image_path, created_at
		FROM diaries
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
	`
	if asc {
		query = `
		SELECT id, user_id, title, content, image_path, created_at
		FROM diaries
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	}

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	diaries := []models.Diary{}
	for rows.Next() {
		d, err := scanDiary(rows)
		if err != nil {
			return nil, err
		}
		diaries = append(diaries, *d)
	}

	return diaries, rows.Err()
}

// ==========================
// Get By ID
// ==========================
func (r *DiaryRepo) GetByID(ctx context.Context, id, userID int64) (*models.Diary, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, image_path, created_at
		FROM diaries
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	d, err := scanDiary(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

// ==========================
// Update Diary
// ==========================

// Update changes title and content only. Image and owner are fixed.
func (r *DiaryRepo) Update(ctx context.Context, id, userID int64, title, content string) (*models.Diary, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE diaries
		SET title = $1, content = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, user_id, title, content, image_path, created_at
	`, title, content, id, userID)

	d, err := scanDiary(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

// ==========================
// Delete Diary
// ==========================

// Delete removes an owned diary and returns the row so the caller can drop its image.
func (r *DiaryRepo) Delete(ctx context.Context, id, userID int64) (*models.Diary, error) {
	row := r.DB.QueryRowContext(ctx, `
		DELETE FROM diaries
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, content, image_path, created_at
	`, id, userID)

	d, err := scanDiary(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiary(s rowScanner) (*models.Diary, error) {
	var (
		d     models.Diary
		image sql.NullString
	)
	if err := s.Scan(&d.ID, &d.UserID, &d.Title, &d.Content, &image, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.ImagePath = image.String
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
