package models

import "time"

// MaxDiaryContent is the longest content accepted for one entry, in characters.
const MaxDiaryContent = 5000

type Diary struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImagePath string    `json:"image_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
