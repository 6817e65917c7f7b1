package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// APIKey ключ доступа к API.
type APIKey struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	UserID     uuid.UUID      `db:"user_id" json:"user_id"`
	Name       string         `db:"name" json:"name"`
	Prefix     string         `db:"prefix" json:"prefix"`
	KeyHash    string         `db:"key_hash" json:"-"`
	Scopes     pq.StringArray `db:"scopes" json:"scopes"`
	LastUsedAt *time.Time     `db:"last_used_at" json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	RevokedAt  *time.Time     `db:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Usable сообщает, можно ли аутентифицироваться ключом.
func (k *APIKey) Usable(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// HasScope проверяет наличие права у ключа; пустой список означает полный доступ.
func (k *APIKey) HasScope(scope string) bool {
	if len(k.Scopes) == 0 {
		return true
	}
	for _, s := range k.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// IssuedAPIKey ключ с секретом, который показывается один раз.
type IssuedAPIKey struct {
	APIKey
	Key string `json:"key"`
}
