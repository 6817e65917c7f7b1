package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PortfolioItem работа в портфолио.
type PortfolioItem struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	UserID      uuid.UUID      `db:"user_id" json:"user_id"`
	Title       string         `db:"title" json:"title"`
	Description *string        `db:"description" json:"description,omitempty"`
	Category    string         `db:"category" json:"category"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	CoverFileID *uuid.UUID     `db:"cover_file_id" json:"cover_file_id,omitempty"`
	ProjectURL  *string        `db:"project_url" json:"project_url,omitempty"`
	ClientName  *string        `db:"client_name" json:"client_name,omitempty"`
	IsFeatured  bool           `db:"is_featured" json:"is_featured"`
	ViewCount   int            `db:"view_count" json:"view_count"`
	LikeCount   int            `db:"like_count" json:"like_count"`
	Position    int            `db:"position" json:"position"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// PortfolioFilter параметры выборки работ.
type PortfolioFilter struct {
	UserID   *uuid.UUID
	Category string
	Featured *bool
	Limit    int
	Offset   int
}

// PortfolioStats агрегаты по портфолио пользователя.
type PortfolioStats struct {
	Items    int `db:"items" json:"items"`
	Featured int `db:"featured" json:"featured"`
	Views    int `db:"views" json:"views"`
	Likes    int `db:"likes" json:"likes"`
}
