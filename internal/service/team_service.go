package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/idgen"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/validation"
)

const (
	tableTeams       = "teams"
	tableTeamMembers = "team_members"
	tableInvitations = "team_invitations"

	// InvitationTTL срок действия приглашения.
	InvitationTTL = 7 * 24 * time.Hour
)

type TeamRepository interface {
	Create(ctx context.Context, t *models.Team) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, error)
	Update(ctx context.Context, t *models.Team) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	GetMember(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error)
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error)
	UpdateMemberRole(ctx context.Context, teamID, userID uuid.UUID, role string) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error
	CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error
	ListInvitations(ctx context.Context, teamID uuid.UUID) ([]models.TeamInvitation, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*models.TeamInvitation, error)
	SetInvitationStatus(ctx context.Context, id uuid.UUID, status string) error
	AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, userID uuid.UUID) (*models.TeamMember, error)
}

type TeamService struct {
	repo   TeamRepository
	events events.Emitter
	now    func() time.Time
}

func NewTeamService(repo TeamRepository, emitter events.Emitter) *TeamService {
	return &TeamService{repo: repo, events: emitterOrNoop(emitter), now: time.Now}
}

// CreateTeam создаёт команду, создатель становится владельцем.
func (s *TeamService) CreateTeam(ctx context.Context, userID uuid.UUID, req dto.TeamRequest) (*models.Team, error) {
	t := &models.Team{OwnerID: userID}
	if err := applyTeamRequest(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableTeams, t))
	return t, nil
}

// GetTeam доступен любому участнику.
func (s *TeamService) GetTeam(ctx context.Context, userID, teamID uuid.UUID) (*models.Team, error) {
	if _, err := s.membership(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, teamID)
}

func (s *TeamService) ListMyTeams(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	return s.repo.ListForUser(ctx, userID)
}

// UpdateTeam доступно владельцу и администраторам.
func (s *TeamService) UpdateTeam(ctx context.Context, userID, teamID uuid.UUID, req dto.TeamRequest) (*models.Team, error) {
	if _, err := s.manager(ctx, teamID, userID); err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	old := *t

	if err := applyTeamRequest(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTeams, t, &old))
	return t, nil
}

// DeleteTeam доступно только владельцу.
func (s *TeamService) DeleteTeam(ctx context.Context, userID, teamID uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.OwnerID != userID {
		return apperror.Forbidden("удалить команду может только владелец")
	}
	if err := s.repo.Delete(ctx, teamID, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableTeams, t))
	return nil
}

func (s *TeamService) ListMembers(ctx context.Context, userID, teamID uuid.UUID) ([]models.TeamMember, error) {
	if _, err := s.membership(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, teamID)
}

// InviteMember создаёт приглашение; роль owner назначить нельзя.
func (s *TeamService) InviteMember(ctx context.Context, userID, teamID uuid.UUID, req dto.InviteRequest) (*models.TeamInvitation, error) {
	if _, err := s.manager(ctx, teamID, userID); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.TeamRoleMember
	}
	if _, ok := models.ValidTeamRoles[role]; !ok {
		return nil, apperror.Validation("недопустимая роль приглашения")
	}
	email, err := validation.NormalizeEmail(req.Email)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	token, err := idgen.Token()
	if err != nil {
		return nil, apperror.Internal(err)
	}
	inv := &models.TeamInvitation{
		TeamID:    teamID,
		Email:     email,
		Role:      role,
		Token:     token,
		InvitedBy: userID,
		ExpiresAt: s.now().UTC().Add(InvitationTTL),
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableInvitations, inv))
	return inv, nil
}

// ListInvitations доступно владельцу и администраторам.
func (s *TeamService) ListInvitations(ctx context.Context, userID, teamID uuid.UUID) ([]models.TeamInvitation, error) {
	if _, err := s.manager(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListInvitations(ctx, teamID)
}

// RevokeInvitation отзывает ожидающее приглашение.
func (s *TeamService) RevokeInvitation(ctx context.Context, userID, teamID, invitationID uuid.UUID) error {
	if _, err := s.manager(ctx, teamID, userID); err != nil {
		return err
	}
	inv, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.TeamID != teamID {
		return apperror.ErrInvitationNotFound
	}
	if err := s.repo.SetInvitationStatus(ctx, invitationID, models.InvitationStatusRevoked); err != nil {
		return err
	}
	inv.Status = models.InvitationStatusRevoked
	s.events.Emit(ctx, userID, events.Updated(tableInvitations, inv, nil))
	return nil
}

// AcceptInvitation принимает приглашение по токену.
func (s *TeamService) AcceptInvitation(ctx context.Context, userID uuid.UUID, token string) (*models.TeamMember, error) {
	inv, err := s.repo.GetInvitationByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvitationStatusPending {
		return nil, apperror.Conflict("приглашение уже обработано")
	}
	if !s.now().Before(inv.ExpiresAt) {
		if err := s.repo.SetInvitationStatus(ctx, inv.ID, models.InvitationStatusExpired); err != nil && !apperror.IsConflict(err) {
			return nil, err
		}
		return nil, apperror.Gone("срок действия приглашения истёк")
	}

	member, err := s.repo.AcceptInvitation(ctx, inv, userID)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableTeamMembers, member))
	return member, nil
}

// UpdateMemberRole меняет роль участника; владельца изменить нельзя.
func (s *TeamService) UpdateMemberRole(ctx context.Context, userID, teamID, memberID uuid.UUID, role string) (*models.TeamMember, error) {
	if _, err := s.manager(ctx, teamID, userID); err != nil {
		return nil, err
	}
	if _, ok := models.ValidTeamRoles[role]; !ok {
		return nil, apperror.Validation("недопустимая роль")
	}
	target, err := s.repo.GetMember(ctx, teamID, memberID)
	if err != nil {
		return nil, err
	}
	if target.Role == models.TeamRoleOwner {
		return nil, apperror.Forbidden("роль владельца изменить нельзя")
	}

	member, err := s.repo.UpdateMemberRole(ctx, teamID, memberID, role)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTeamMembers, member, target))
	return member, nil
}

// RemoveMember исключает участника; владельца исключить нельзя.
func (s *TeamService) RemoveMember(ctx context.Context, userID, teamID, memberID uuid.UUID) error {
	if _, err := s.manager(ctx, teamID, userID); err != nil {
		return err
	}
	return s.removeMember(ctx, userID, teamID, memberID)
}

// LeaveTeam выход из команды; владелец выйти не может.
func (s *TeamService) LeaveTeam(ctx context.Context, userID, teamID uuid.UUID) error {
	return s.removeMember(ctx, userID, teamID, userID)
}

func (s *TeamService) removeMember(ctx context.Context, actorID, teamID, memberID uuid.UUID) error {
	target, err := s.repo.GetMember(ctx, teamID, memberID)
	if err != nil {
		return err
	}
	if target.Role == models.TeamRoleOwner {
		return apperror.Forbidden("владельца нельзя исключить из команды")
	}
	if err := s.repo.RemoveMember(ctx, teamID, memberID); err != nil {
		return err
	}
	s.events.Emit(ctx, actorID, events.Deleted(tableTeamMembers, target))
	return nil
}

// membership скрывает команду от посторонних как несуществующую.
func (s *TeamService) membership(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	m, err := s.repo.GetMember(ctx, teamID, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrTeamNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *TeamService) manager(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	m, err := s.membership(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if !m.CanManage() {
		return nil, apperror.Forbidden("действие доступно владельцу и администраторам команды")
	}
	return m, nil
}

func applyTeamRequest(t *models.Team, req dto.TeamRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperror.Validation("укажите название команды")
	}
	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return apperror.Validation("не удалось построить slug команды")
	}
	t.Name = name
	t.Slug = slug
	t.Description = optionalString(req.Description)
	return nil
}
