package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crucial707/mydiary/internal/models"
)

var diaryCols = []string{"id", "user_id", "title", "content", "image_path", "created_at"}

func TestDiaryRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO diaries \(user_id, title, content, image_path\)`).
		WithArgs(int64(3), "day one", "hello", "uploads/abc_cat.png").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, now))

	repo := NewDiaryRepo(db)
	d, err := repo.Create(context.Background(), &models.Diary{
		UserID: 3, Title: "day one", Content: "hello", ImagePath: "uploads/abc_cat.png",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID != 10 || d.ImagePath != "uploads/abc_cat.png" {
		t.Errorf("unexpected diary: %+v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDiaryRepo_Create_NoImage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO diaries`).
		WithArgs(int64(3), "t", "c", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))

	repo := NewDiaryRepo(db)
	if _, err := repo.Create(context.Background(), &models.Diary{UserID: 3, Title: "t", Content: "c"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDiaryRepo_ListByUser_Order(t *testing.T) {
	tests := []struct {
		name  string
		asc   bool
		order string
	}{
		{"desc", false, `ORDER BY created_at DESC, id ASC`},
		{"asc", true, `ORDER BY created_at ASC, id ASC`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock.New: %v", err)
			}
			defer db.Close()

			t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			mock.ExpectQuery(`WHERE user_id = \$1\s+` + tt.order).
				WithArgs(int64(5)).
				WillReturnRows(sqlmock.NewRows(diaryCols).
					AddRow(1, 5, "a", "x", nil, t1).
					AddRow(2, 5, "b", "y", "uploads/k.png", t1.Add(time.Hour)))

			repo := NewDiaryRepo(db)
			list, err := repo.ListByUser(context.Background(), 5, tt.asc)
			if err != nil {
				t.Fatalf("ListByUser: %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("expected 2 diaries, got %d", len(list))
			}
			if list[0].ImagePath != "" || list[1].ImagePath != "uploads/k.png" {
				t.Errorf("unexpected image paths: %q %q", list[0].ImagePath, list[1].ImagePath)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestDiaryRepo_ListByUser_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM diaries`).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows(diaryCols))

	repo := NewDiaryRepo(db)
	list, err := repo.ListByUser(context.Background(), 5, false)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", list)
	}
}

func TestDiaryRepo_Update_NotOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`UPDATE diaries\s+SET title = \$1, content = \$2\s+WHERE id = \$3 AND user_id = \$4`).
		WithArgs("t", "c", int64(9), int64(5)).
		WillReturnError(sql.ErrNoRows)

	repo := NewDiaryRepo(db)
	_, err = repo.Update(context.Background(), 9, 5, "t", "c")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDiaryRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM diaries\s+WHERE id = \$1 AND user_id = \$2\s+RETURNING`).
		WithArgs(int64(9), int64(5)).
		WillReturnRows(sqlmock.NewRows(diaryCols).AddRow(9, 5, "t", "c", "uploads/k.png", time.Now()))

	repo := NewDiaryRepo(db)
	d, err := repo.Delete(context.Background(), 9, 5)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if d.ImagePath != "uploads/k.png" {
		t.Errorf("expected image path returned, got %q", d.ImagePath)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
