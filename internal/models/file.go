package models

import (
	"time"

	"github.com/google/uuid"
)

// Хранилища файлов.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// File загруженный пользователем файл.
type File struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	Name           string     `db:"name" json:"name"`
	Folder         string     `db:"folder" json:"folder"`
	MimeType       string     `db:"mime_type" json:"mime_type"`
	Size           int64      `db:"size" json:"size"`
	StorageKey     string     `db:"storage_key" json:"-"`
	StorageBackend string     `db:"storage_backend" json:"storage_backend"`
	IsStarred      bool       `db:"is_starred" json:"is_starred"`
	IsTrashed      bool       `db:"is_trashed" json:"is_trashed"`
	TrashedAt      *time.Time `db:"trashed_at" json:"trashed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	URL string `db:"-" json:"url,omitempty"`
}

// FileFilter параметры выборки файлов.
type FileFilter struct {
	Folder  string
	Starred *bool
	Trashed bool
	Search  string
	Limit   int
	Offset  int
}

// StorageUsage занятое место.
type StorageUsage struct {
	TotalBytes int64            `json:"total_bytes"`
	FileCount  int              `json:"file_count"`
	ByGroup    map[string]int64 `json:"by_group"`
}

// MimeGroupUsage строка агрегата по группам MIME.
type MimeGroupUsage struct {
	Group string `db:"mime_group"`
	Bytes int64  `db:"bytes"`
	Count int    `db:"count"`
}
