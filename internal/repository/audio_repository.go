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

type AudioRepository struct {
	db *sqlx.DB
}

func NewAudioRepository(db *sqlx.DB) *AudioRepository {
	return &AudioRepository{db: db}
}

// CreateProject сохраняет проект.
func (r *AudioRepository) CreateProject(ctx context.Context, p *models.AudioProject) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO audio_projects (user_id, name, bpm, sample_rate, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, track_count, created_at, updated_at
	`, p.UserID, p.Name, p.BPM, p.SampleRate, p.DurationSeconds).Scan(&p.ID, &p.TrackCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("audio repository: create project %w", err)
	}
	return nil
}

func (r *AudioRepository) GetProject(ctx context.Context, userID, id uuid.UUID) (*models.AudioProject, error) {
	return common.GetOwned[models.AudioProject](ctx, r.db, "audio_projects", "user_id", id, userID, apperror.ErrProjectNotFound)
}

// ListProjects возвращает проекты пользователя, недавно изменённые первыми.
func (r *AudioRepository) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AudioProject, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audio_projects WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("audio repository: count projects %w", err)
	}

	items := []models.AudioProject{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM audio_projects WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("audio repository: list projects %w", err)
	}
	return items, total, nil
}

// UpdateProject сохраняет параметры проекта.
func (r *AudioRepository) UpdateProject(ctx context.Context, p *models.AudioProject) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE audio_projects SET name = $3, bpm = $4, sample_rate = $5, duration_seconds = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING track_count, updated_at
	`, p.ID, p.UserID, p.Name, p.BPM, p.SampleRate, p.DurationSeconds).Scan(&p.TrackCount, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrProjectNotFound
		}
		return fmt.Errorf("audio repository: update project %w", err)
	}
	return nil
}

// DeleteProject удаляет проект вместе с дорожками.
func (r *AudioRepository) DeleteProject(ctx context.Context, userID, id uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "audio_projects", "user_id", id, userID, apperror.ErrProjectNotFound)
}

// ListTracks возвращает дорожки проекта по порядку.
func (r *AudioRepository) ListTracks(ctx context.Context, projectID uuid.UUID) ([]models.AudioTrack, error) {
	tracks := []models.AudioTrack{}
	if err := r.db.SelectContext(ctx, &tracks,
		`SELECT * FROM audio_tracks WHERE project_id = $1 ORDER BY position, created_at`, projectID); err != nil {
		return nil, fmt.Errorf("audio repository: list tracks %w", err)
	}
	return tracks, nil
}

func (r *AudioRepository) GetTrack(ctx context.Context, projectID, id uuid.UUID) (*models.AudioTrack, error) {
	return common.GetOwned[models.AudioTrack](ctx, r.db, "audio_tracks", "project_id", id, projectID, apperror.ErrTrackNotFound)
}

// AddTrack добавляет дорожку в конец проекта и увеличивает track_count.
func (r *AudioRepository) AddTrack(ctx context.Context, t *models.AudioTrack) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO audio_tracks (project_id, name, file_id, volume, pan, muted, solo, start_offset, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
				(SELECT COALESCE(MAX(position) + 1, 0) FROM audio_tracks WHERE project_id = $1))
			RETURNING id, position, created_at
		`, t.ProjectID, t.Name, t.FileID, t.Volume, t.Pan, t.Muted, t.Solo, t.StartOffset,
		).Scan(&t.ID, &t.Position, &t.CreatedAt)
		if err != nil {
			if common.IsForeignKeyViolation(err) {
				return apperror.ErrFileNotFound
			}
			return fmt.Errorf("audio repository: add track %w", err)
		}
		return r.shiftTrackCount(ctx, tx, t.ProjectID, 1)
	})
}

// UpdateTrack сохраняет параметры дорожки.
func (r *AudioRepository) UpdateTrack(ctx context.Context, t *models.AudioTrack) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE audio_tracks SET name = $3, file_id = $4, volume = $5, pan = $6, muted = $7, solo = $8, start_offset = $9
		WHERE id = $1 AND project_id = $2
	`, t.ID, t.ProjectID, t.Name, t.FileID, t.Volume, t.Pan, t.Muted, t.Solo, t.StartOffset)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return apperror.ErrFileNotFound
		}
		return fmt.Errorf("audio repository: update track %w", err)
	}
	if err := common.ExpectAffected(res, apperror.ErrTrackNotFound); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE audio_projects SET updated_at = NOW() WHERE id = $1`, t.ProjectID)
	if err != nil {
		return fmt.Errorf("audio repository: touch project %w", err)
	}
	return nil
}

// DeleteTrack удаляет дорожку и уменьшает track_count.
func (r *AudioRepository) DeleteTrack(ctx context.Context, projectID, id uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM audio_tracks WHERE id = $1 AND project_id = $2`, id, projectID)
		if err != nil {
			return fmt.Errorf("audio repository: delete track %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrTrackNotFound); err != nil {
			return err
		}
		return r.shiftTrackCount(ctx, tx, projectID, -1)
	})
}

func (r *AudioRepository) shiftTrackCount(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID, delta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE audio_projects SET track_count = GREATEST(track_count + $2, 0), updated_at = NOW() WHERE id = $1
	`, projectID, delta)
	if err != nil {
		return fmt.Errorf("audio repository: track count %w", err)
	}
	return nil
}
