package dto

// APIKeyRequest выпуск API ключа.
type APIKeyRequest struct {
	Name          string   `json:"name" binding:"required,max=100"`
	Scopes        []string `json:"scopes" binding:"max=20"`
	ExpiresInDays *int     `json:"expires_in_days" binding:"omitempty,min=1,max=365"`
}
