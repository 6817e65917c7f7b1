package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

var errKeyTaken = apperror.Conflict("ключ уже существует в этом пространстве имён")

const importBatchSize = 200

type TranslationRepository struct {
	db *sqlx.DB
}

func NewTranslationRepository(db *sqlx.DB) *TranslationRepository {
	return &TranslationRepository{db: db}
}

func (r *TranslationRepository) CreateKey(ctx context.Context, k *models.TranslationKey) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO translation_keys (user_id, namespace, key, source_text, context)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, k.UserID, k.Namespace, k.Key, k.SourceText, k.Context).Scan(&k.ID, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return errKeyTaken
		}
		return fmt.Errorf("translation repository: create key %w", err)
	}
	return nil
}

func (r *TranslationRepository) GetKey(ctx context.Context, id uuid.UUID) (*models.TranslationKey, error) {
	return common.GetByID[models.TranslationKey](ctx, r.db, "translation_keys", id, apperror.ErrKeyNotFound)
}

// ListKeys возвращает ключи пользователя с фильтром по пространству имён и поиском.
func (r *TranslationRepository) ListKeys(ctx context.Context, userID uuid.UUID, namespace, search string, limit, offset int) ([]models.TranslationKey, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if namespace != "" {
		f.Add("namespace = ?", namespace)
	}
	if search != "" {
		f.Add("(key ILIKE ? OR source_text ILIKE ?)", "%"+search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM translation_keys`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("translation repository: count keys %w", err)
	}

	query, args := f.Page(`SELECT * FROM translation_keys`+f.Where()+` ORDER BY namespace, key`, limit, offset)
	keys := []models.TranslationKey{}
	if err := r.db.SelectContext(ctx, &keys, query, args...); err != nil {
		return nil, 0, fmt.Errorf("translation repository: list keys %w", err)
	}
	return keys, total, nil
}

func (r *TranslationRepository) UpdateKey(ctx context.Context, k *models.TranslationKey) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE translation_keys SET namespace = $2, key = $3, source_text = $4, context = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, k.ID, k.Namespace, k.Key, k.SourceText, k.Context).Scan(&k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrKeyNotFound
		}
		if common.IsUniqueViolation(err) {
			return errKeyTaken
		}
		return fmt.Errorf("translation repository: update key %w", err)
	}
	return nil
}

// DeleteKey удаляет ключ вместе со всеми переводами.
func (r *TranslationRepository) DeleteKey(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "translation_keys", "user_id", id, userID, apperror.ErrKeyNotFound)
}

// UpsertTranslation создаёт или обновляет перевод ключа на локаль.
func (r *TranslationRepository) UpsertTranslation(ctx context.Context, t *models.Translation) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO translations (key_id, locale, value, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_id, locale) DO UPDATE
		SET value = EXCLUDED.value, status = EXCLUDED.status, updated_at = NOW()
		RETURNING id, updated_at
	`, t.KeyID, t.Locale, t.Value, t.Status).Scan(&t.ID, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("translation repository: upsert %w", err)
	}
	return nil
}

func (r *TranslationRepository) GetTranslation(ctx context.Context, id uuid.UUID) (*models.Translation, error) {
	return common.GetByID[models.Translation](ctx, r.db, "translations", id, apperror.ErrTranslationNotFound)
}

// ListTranslations возвращает переводы пользователя на локаль.
func (r *TranslationRepository) ListTranslations(ctx context.Context, userID uuid.UUID, locale string) ([]models.Translation, error) {
	items := []models.Translation{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT t.* FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		WHERE k.user_id = $1 AND t.locale = $2
		ORDER BY k.namespace, k.key
	`, userID, locale)
	if err != nil {
		return nil, fmt.Errorf("translation repository: list %w", err)
	}
	return items, nil
}

func (r *TranslationRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Translation, error) {
	var t models.Translation
	err := r.db.GetContext(ctx, &t, `
		UPDATE translations SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTranslationNotFound
		}
		return nil, fmt.Errorf("translation repository: set status %w", err)
	}
	return &t, nil
}

// BulkImport создаёт недостающие ключи и записывает значения локали пачками
// в одной транзакции. Возвращает число записанных переводов.
func (r *TranslationRepository) BulkImport(ctx context.Context, userID uuid.UUID, namespace, locale string, entries map[string]string) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	names := make([]string, 0, len(entries))
	for k := range entries {
		names = append(names, k)
	}

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		keys := common.NewBatchInserter(tx,
			`INSERT INTO translation_keys (user_id, namespace, key, source_text)`, 4, importBatchSize).
			OnConflict(`ON CONFLICT (user_id, namespace, key) DO NOTHING`)
		for _, name := range names {
			if err := keys.Add(ctx, userID, namespace, name, entries[name]); err != nil {
				return fmt.Errorf("translation repository: import keys %w", err)
			}
		}
		if err := keys.Flush(ctx); err != nil {
			return fmt.Errorf("translation repository: import keys %w", err)
		}

		var rows []struct {
			ID  uuid.UUID `db:"id"`
			Key string    `db:"key"`
		}
		if err := tx.SelectContext(ctx, &rows, `
			SELECT id, key FROM translation_keys
			WHERE user_id = $1 AND namespace = $2 AND key = ANY($3)
		`, userID, namespace, pq.Array(names)); err != nil {
			return fmt.Errorf("translation repository: import lookup %w", err)
		}

		values := common.NewBatchInserter(tx,
			`INSERT INTO translations (key_id, locale, value, status)`, 4, importBatchSize).
			OnConflict(`ON CONFLICT (key_id, locale) DO UPDATE SET value = EXCLUDED.value, status = EXCLUDED.status, updated_at = NOW()`)
		for _, row := range rows {
			if err := values.Add(ctx, row.ID, locale, entries[row.Key], "draft"); err != nil {
				return fmt.Errorf("translation repository: import values %w", err)
			}
		}
		if err := values.Flush(ctx); err != nil {
			return fmt.Errorf("translation repository: import values %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Export возвращает все ключи пользователя с переводом на локаль, если он есть.
func (r *TranslationRepository) Export(ctx context.Context, userID uuid.UUID, locale string) ([]models.ExportRow, error) {
	rows := []models.ExportRow{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT k.namespace, k.key, k.source_text, t.value
		FROM translation_keys k
		LEFT JOIN translations t ON t.key_id = k.id AND t.locale = $2
		WHERE k.user_id = $1
		ORDER BY k.namespace, k.key
	`, userID, locale)
	if err != nil {
		return nil, fmt.Errorf("translation repository: export %w", err)
	}
	return rows, nil
}

// Progress считает переводы по локалям и общее число ключей.
func (r *TranslationRepository) Progress(ctx context.Context, userID uuid.UUID) ([]models.LocaleProgress, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM translation_keys WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("translation repository: count keys %w", err)
	}

	items := []models.LocaleProgress{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT t.locale,
			COUNT(*) AS translated,
			COUNT(*) FILTER (WHERE t.status = 'approved') AS approved
		FROM translations t
		JOIN translation_keys k ON k.id = t.key_id
		WHERE k.user_id = $1
		GROUP BY t.locale
		ORDER BY t.locale
	`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("translation repository: progress %w", err)
	}
	return items, total, nil
}
