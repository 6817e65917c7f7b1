package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

type SystemRepository struct {
	db *sqlx.DB
}

func NewSystemRepository(db *sqlx.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

// ListSettings возвращает все настройки пользователя.
func (r *SystemRepository) ListSettings(ctx context.Context, userID uuid.UUID) ([]models.SystemSetting, error) {
	settings := []models.SystemSetting{}
	if err := r.db.SelectContext(ctx, &settings,
		`SELECT * FROM system_settings WHERE user_id = $1 ORDER BY key`, userID); err != nil {
		return nil, fmt.Errorf("system repository: list settings %w", err)
	}
	return settings, nil
}

func (r *SystemRepository) GetSetting(ctx context.Context, userID uuid.UUID, key string) (*models.SystemSetting, error) {
	var s models.SystemSetting
	err := r.db.GetContext(ctx, &s, `SELECT * FROM system_settings WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrSettingNotFound
		}
		return nil, fmt.Errorf("system repository: get setting %w", err)
	}
	return &s, nil
}

// UpsertSetting создаёт или перезаписывает настройку.
func (r *SystemRepository) UpsertSetting(ctx context.Context, s *models.SystemSetting) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO system_settings (user_id, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING updated_at
	`, s.UserID, s.Key, s.Value).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("system repository: upsert setting %w", err)
	}
	return nil
}

func (r *SystemRepository) DeleteSetting(ctx context.Context, userID uuid.UUID, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM system_settings WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		return fmt.Errorf("system repository: delete setting %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrSettingNotFound)
}

// WriteLog добавляет запись журнала.
func (r *SystemRepository) WriteLog(ctx context.Context, l *models.SystemLog) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO system_logs (user_id, level, source, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, l.UserID, l.Level, l.Source, l.Message, l.Metadata).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("system repository: write log %w", err)
	}
	return nil
}

// ListLogs возвращает последние записи журнала пользователя.
func (r *SystemRepository) ListLogs(ctx context.Context, userID uuid.UUID, level, source string, limit int) ([]models.SystemLog, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if level != "" {
		f.Add("level = ?", level)
	}
	if source != "" {
		f.Add("source = ?", source)
	}

	query, args := f.Page(`SELECT * FROM system_logs`+f.Where()+` ORDER BY created_at DESC`, limit, 0)
	logs := []models.SystemLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("system repository: list logs %w", err)
	}
	return logs, nil
}

// PurgeLogs удаляет записи старше before и возвращает их количество.
func (r *SystemRepository) PurgeLogs(ctx context.Context, userID uuid.UUID, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM system_logs WHERE user_id = $1 AND created_at < $2`, userID, before)
	if err != nil {
		return 0, fmt.Errorf("system repository: purge logs %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("system repository: purge logs %w", err)
	}
	return n, nil
}

func (r *SystemRepository) CreateAlert(ctx context.Context, a *models.SystemAlert) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO system_alerts (user_id, severity, title, message, status)
		VALUES ($1, $2, $3, $4, 'open')
		RETURNING id, status, created_at
	`, a.UserID, a.Severity, a.Title, a.Message).Scan(&a.ID, &a.Status, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("system repository: create alert %w", err)
	}
	return nil
}

func (r *SystemRepository) GetAlert(ctx context.Context, id uuid.UUID) (*models.SystemAlert, error) {
	return common.GetByID[models.SystemAlert](ctx, r.db, "system_alerts", id, apperror.ErrAlertNotFound)
}

func (r *SystemRepository) ListAlerts(ctx context.Context, userID uuid.UUID, status string) ([]models.SystemAlert, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if status != "" {
		f.Add("status = ?", status)
	}

	alerts := []models.SystemAlert{}
	if err := r.db.SelectContext(ctx, &alerts,
		`SELECT * FROM system_alerts`+f.Where()+` ORDER BY created_at DESC`, f.Args()...); err != nil {
		return nil, fmt.Errorf("system repository: list alerts %w", err)
	}
	return alerts, nil
}

// Acknowledge подтверждает открытое оповещение.
func (r *SystemRepository) Acknowledge(ctx context.Context, id uuid.UUID) (*models.SystemAlert, error) {
	return r.alertTransition(ctx, `
		UPDATE system_alerts SET status = 'acknowledged', acknowledged_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING *
	`, id, "подтвердить можно только открытое оповещение")
}

// Resolve закрывает оповещение, если оно ещё не закрыто.
func (r *SystemRepository) Resolve(ctx context.Context, id uuid.UUID) (*models.SystemAlert, error) {
	return r.alertTransition(ctx, `
		UPDATE system_alerts SET status = 'resolved', resolved_at = NOW(),
			acknowledged_at = COALESCE(acknowledged_at, NOW())
		WHERE id = $1 AND status <> 'resolved'
		RETURNING *
	`, id, "оповещение уже закрыто")
}

func (r *SystemRepository) alertTransition(ctx context.Context, query string, id uuid.UUID, conflict string) (*models.SystemAlert, error) {
	var a models.SystemAlert
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict(conflict)
		}
		return nil, fmt.Errorf("system repository: alert transition %w", err)
	}
	return &a, nil
}

// OpenAlertCounts считает незакрытые оповещения по уровню.
func (r *SystemRepository) OpenAlertCounts(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	var rows []struct {
		Severity string `db:"severity"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT severity, COUNT(*) AS count FROM system_alerts
		WHERE user_id = $1 AND status <> 'resolved'
		GROUP BY severity
	`, userID); err != nil {
		return nil, fmt.Errorf("system repository: alert counts %w", err)
	}
	counts := map[string]int{}
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}
	return counts, nil
}
