package dto

import "github.com/google/uuid"

// PortfolioRequest создание и изменение работы.
type PortfolioRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	Category    string     `json:"category" binding:"max=64"`
	Tags        []string   `json:"tags" binding:"max=20,dive,max=40"`
	CoverFileID *uuid.UUID `json:"cover_file_id"`
	ProjectURL  *string    `json:"project_url" binding:"omitempty,url"`
	ClientName  *string    `json:"client_name" binding:"omitempty,max=200"`
}

// PortfolioOrderRequest новый порядок работ.
type PortfolioOrderRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=500"`
}
