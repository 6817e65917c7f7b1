package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

type APIKeyRepository struct {
	db *sqlx.DB
}

func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create сохраняет ключ; совпадение префикса даёт Conflict.
func (r *APIKeyRepository) Create(ctx context.Context, k *models.APIKey) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO api_keys (user_id, name, prefix, key_hash, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, k.UserID, k.Name, k.Prefix, k.KeyHash, k.Scopes, k.ExpiresAt).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.Conflict("префикс ключа уже занят")
		}
		return fmt.Errorf("api key repository: create %w", err)
	}
	return nil
}

func (r *APIKeyRepository) GetOwned(ctx context.Context, userID, id uuid.UUID) (*models.APIKey, error) {
	return common.GetOwned[models.APIKey](ctx, r.db, "api_keys", "user_id", id, userID, apperror.ErrAPIKeyNotFound)
}

// GetByPrefix ищет ключ по открытой части.
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	var k models.APIKey
	if err := r.db.GetContext(ctx, &k, `SELECT * FROM api_keys WHERE prefix = $1`, prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("api key repository: get by prefix %w", err)
	}
	return &k, nil
}

// List возвращает ключи пользователя, новые первыми.
func (r *APIKeyRepository) List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	keys := []models.APIKey{}
	if err := r.db.SelectContext(ctx, &keys,
		`SELECT * FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("api key repository: list %w", err)
	}
	return keys, nil
}

// Revoke отзывает действующий ключ владельца.
func (r *APIKeyRepository) Revoke(ctx context.Context, userID, id uuid.UUID) (*models.APIKey, error) {
	var k models.APIKey
	err := r.db.GetContext(ctx, &k, `
		UPDATE api_keys SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
		RETURNING *
	`, id, userID)
	if err == nil {
		return &k, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("api key repository: revoke %w", err)
	}

	if _, getErr := r.GetOwned(ctx, userID, id); getErr != nil {
		return nil, getErr
	}
	return nil, apperror.Conflict("ключ уже отозван")
}

// Touch отмечает время последнего использования.
func (r *APIKeyRepository) Touch(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("api key repository: touch %w", err)
	}
	return nil
}
