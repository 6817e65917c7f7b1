package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ContentRequest создание и изменение материала.
type ContentRequest struct {
	Title          string   `json:"title" binding:"required"`
	Slug           string   `json:"slug"`
	Type           string   `json:"type"`
	Body           string   `json:"body"`
	Excerpt        *string  `json:"excerpt"`
	Tags           []string `json:"tags"`
	SEOTitle       *string  `json:"seo_title"`
	SEODescription *string  `json:"seo_description"`
}

// BlockRequest блок редактора.
type BlockRequest struct {
	Type string          `json:"type" binding:"required"`
	Data json.RawMessage `json:"data"`
}

// BlockOrderRequest новый порядок блоков.
type BlockOrderRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}
