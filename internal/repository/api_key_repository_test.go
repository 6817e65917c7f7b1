package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

var apiKeyColumns = []string{
	"id", "user_id", "name", "prefix", "key_hash", "scopes", "last_used_at", "expires_at", "revoked_at", "created_at",
}

func TestAPIKeyRepository_RevokeTwiceIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(`UPDATE api_keys SET revoked_at = NOW\(\)`).
		WithArgs(id, userID).
		WillReturnRows(sqlmock.NewRows(apiKeyColumns))
	mock.ExpectQuery(`SELECT \* FROM api_keys WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, userID).
		WillReturnRows(sqlmock.NewRows(apiKeyColumns).AddRow(
			id, userID, "ci", "abcdefgh", "hash", "{read}", nil, nil, timeNow(), timeNow(),
		))

	_, err := repo.Revoke(context.Background(), userID, id)
	assert.True(t, apperror.IsConflict(err))
}

func TestAPIKeyRepository_GetByPrefixMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPIKeyRepository(db)

	mock.ExpectQuery(`SELECT \* FROM api_keys WHERE prefix = \$1`).
		WithArgs("abcdefgh").
		WillReturnRows(sqlmock.NewRows(apiKeyColumns))

	_, err := repo.GetByPrefix(context.Background(), "abcdefgh")
	assert.ErrorIs(t, err, apperror.ErrAPIKeyNotFound)
}
