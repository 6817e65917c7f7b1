package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Content описывает материал (статью, страницу, пост, рассылку).
type Content struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	UserID         uuid.UUID      `db:"user_id" json:"user_id"`
	Title          string         `db:"title" json:"title"`
	Slug           string         `db:"slug" json:"slug"`
	Type           string         `db:"type" json:"type"`
	Status         string         `db:"status" json:"status"`
	Body           string         `db:"body" json:"body"`
	Excerpt        *string        `db:"excerpt" json:"excerpt,omitempty"`
	Tags           pq.StringArray `db:"tags" json:"tags"`
	SEOTitle       *string        `db:"seo_title" json:"seo_title,omitempty"`
	SEODescription *string        `db:"seo_description" json:"seo_description,omitempty"`
	WordCount      int            `db:"word_count" json:"word_count"`
	ViewCount      int            `db:"view_count" json:"view_count"`
	Version        int            `db:"version" json:"version"`
	PublishedAt    *time.Time     `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// ContentBlock хранит один блок редактора.
type ContentBlock struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ContentID uuid.UUID       `db:"content_id" json:"content_id"`
	Type      string          `db:"type" json:"type"`
	Data      json.RawMessage `db:"data" json:"data"`
	Position  int             `db:"position" json:"position"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// ContentVersion снимок материала до изменения.
type ContentVersion struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ContentID uuid.UUID `db:"content_id" json:"content_id"`
	Version   int       `db:"version" json:"version"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ContentFilter параметры выборки материалов.
type ContentFilter struct {
	Status string
	Type   string
	Search string
	Limit  int
	Offset int
}
