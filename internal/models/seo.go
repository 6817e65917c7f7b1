package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SEOAnalysis сохранённый результат анализа материала.
type SEOAnalysis struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ContentID   uuid.UUID       `db:"content_id" json:"content_id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Keyword     string          `db:"keyword" json:"keyword"`
	Score       int             `db:"score" json:"score"`
	Grade       string          `db:"grade" json:"grade"`
	Readability float64         `db:"readability" json:"readability"`
	ContentHash string          `db:"content_hash" json:"content_hash"`
	Report      json.RawMessage `db:"report" json:"report"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
