package dto

import "time"

// ShortURLRequest создание короткой ссылки.
type ShortURLRequest struct {
	OriginalURL string     `json:"original_url" binding:"required,url"`
	Alias       string     `json:"alias"`
	Title       *string    `json:"title"`
	ExpiresAt   *time.Time `json:"expires_at"`
	MaxClicks   *int       `json:"max_clicks" binding:"omitempty,gte=1"`
}

// ShortURLUpdateRequest изменение короткой ссылки; код не меняется.
type ShortURLUpdateRequest struct {
	OriginalURL string     `json:"original_url" binding:"required,url"`
	Title       *string    `json:"title"`
	ExpiresAt   *time.Time `json:"expires_at"`
	MaxClicks   *int       `json:"max_clicks" binding:"omitempty,gte=1"`
}

// RedirectRequest правило перенаправления.
type RedirectRequest struct {
	ConditionType  string `json:"condition_type" binding:"required,oneof=device country referrer"`
	ConditionValue string `json:"condition_value" binding:"required"`
	TargetURL      string `json:"target_url" binding:"required,url"`
	Priority       int    `json:"priority"`
}
