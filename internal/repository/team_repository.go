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

var errTeamSlugTaken = apperror.Conflict("команда с таким slug уже существует")

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create создаёт команду и участника-владельца в одной транзакции.
func (r *TeamRepository) Create(ctx context.Context, t *models.Team) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO teams (owner_id, name, slug, description, member_count)
			VALUES ($1, $2, $3, $4, 1)
			RETURNING id, member_count, created_at, updated_at
		`, t.OwnerID, t.Name, t.Slug, t.Description).Scan(&t.ID, &t.MemberCount, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return errTeamSlugTaken
			}
			return fmt.Errorf("team repository: create %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, 'owner')`,
			t.ID, t.OwnerID); err != nil {
			return fmt.Errorf("team repository: add owner %w", err)
		}
		return nil
	})
}

func (r *TeamRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	return common.GetByID[models.Team](ctx, r.db, "teams", id, apperror.ErrTeamNotFound)
}

// ListForUser возвращает команды, где пользователь состоит.
func (r *TeamRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	teams := []models.Team{}
	err := r.db.SelectContext(ctx, &teams, `
		SELECT t.* FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("team repository: list %w", err)
	}
	return teams, nil
}

func (r *TeamRepository) Update(ctx context.Context, t *models.Team) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE teams SET name = $2, slug = $3, description = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Name, t.Slug, t.Description).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrTeamNotFound
		}
		if common.IsUniqueViolation(err) {
			return errTeamSlugTaken
		}
		return fmt.Errorf("team repository: update %w", err)
	}
	return nil
}

// Delete удаляет команду владельца; участники и приглашения удаляются каскадом.
func (r *TeamRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "teams", "owner_id", id, ownerID, apperror.ErrTeamNotFound)
}

func (r *TeamRepository) GetMember(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	var m models.TeamMember
	err := r.db.GetContext(ctx, &m, `SELECT * FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrMemberNotFound
		}
		return nil, fmt.Errorf("team repository: get member %w", err)
	}
	return &m, nil
}

func (r *TeamRepository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	members := []models.TeamMember{}
	err := r.db.SelectContext(ctx, &members, `
		SELECT * FROM team_members WHERE team_id = $1
		ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'member' THEN 2 ELSE 3 END, joined_at
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("team repository: list members %w", err)
	}
	return members, nil
}

// UpdateMemberRole меняет роль; роль владельца не меняется.
func (r *TeamRepository) UpdateMemberRole(ctx context.Context, teamID, userID uuid.UUID, role string) (*models.TeamMember, error) {
	var m models.TeamMember
	err := r.db.GetContext(ctx, &m, `
		UPDATE team_members SET role = $3
		WHERE team_id = $1 AND user_id = $2 AND role <> 'owner'
		RETURNING *
	`, teamID, userID, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrMemberNotFound
		}
		return nil, fmt.Errorf("team repository: update role %w", err)
	}
	return &m, nil
}

// RemoveMember удаляет участника (не владельца) и уменьшает member_count.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2 AND role <> 'owner'`, teamID, userID)
		if err != nil {
			return fmt.Errorf("team repository: remove member %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrMemberNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE teams SET member_count = GREATEST(member_count - 1, 1), updated_at = NOW() WHERE id = $1`,
			teamID); err != nil {
			return fmt.Errorf("team repository: member count %w", err)
		}
		return nil
	})
}

func (r *TeamRepository) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO team_invitations (team_id, email, role, token, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		RETURNING id, status, created_at
	`, inv.TeamID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt).Scan(&inv.ID, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.Conflict("приглашение на этот email уже отправлено")
		}
		return fmt.Errorf("team repository: create invitation %w", err)
	}
	return nil
}

func (r *TeamRepository) ListInvitations(ctx context.Context, teamID uuid.UUID) ([]models.TeamInvitation, error) {
	invitations := []models.TeamInvitation{}
	if err := r.db.SelectContext(ctx, &invitations,
		`SELECT * FROM team_invitations WHERE team_id = $1 ORDER BY created_at DESC`, teamID); err != nil {
		return nil, fmt.Errorf("team repository: list invitations %w", err)
	}
	return invitations, nil
}

func (r *TeamRepository) GetInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	return common.GetByID[models.TeamInvitation](ctx, r.db, "team_invitations", id, apperror.ErrInvitationNotFound)
}

func (r *TeamRepository) GetInvitationByToken(ctx context.Context, token string) (*models.TeamInvitation, error) {
	var inv models.TeamInvitation
	if err := r.db.GetContext(ctx, &inv, `SELECT * FROM team_invitations WHERE token = $1`, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("team repository: get invitation %w", err)
	}
	return &inv, nil
}

// SetInvitationStatus меняет статус только у pending приглашения.
func (r *TeamRepository) SetInvitationStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_invitations SET status = $2 WHERE id = $1 AND status = 'pending'`, id, status)
	if err != nil {
		return fmt.Errorf("team repository: invitation status %w", err)
	}
	return common.ExpectAffected(res, apperror.Conflict("приглашение уже обработано"))
}

// AcceptInvitation помечает приглашение принятым, добавляет участника и увеличивает member_count.
func (r *TeamRepository) AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, userID uuid.UUID) (*models.TeamMember, error) {
	member := &models.TeamMember{TeamID: inv.TeamID, UserID: userID, Role: inv.Role}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE team_invitations SET status = 'accepted' WHERE id = $1 AND status = 'pending'`, inv.ID)
		if err != nil {
			return fmt.Errorf("team repository: accept invitation %w", err)
		}
		if err := common.ExpectAffected(res, apperror.Conflict("приглашение уже обработано")); err != nil {
			return err
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)
			RETURNING joined_at
		`, inv.TeamID, userID, inv.Role).Scan(&member.JoinedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return apperror.Conflict("пользователь уже состоит в команде")
			}
			return fmt.Errorf("team repository: add member %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE teams SET member_count = member_count + 1, updated_at = NOW() WHERE id = $1`, inv.TeamID); err != nil {
			return fmt.Errorf("team repository: member count %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}
