package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

type mockTeamRepo struct {
	mock.Mock
}

func (m *mockTeamRepo) Create(ctx context.Context, t *models.Team) error {
	args := m.Called(ctx, t)
	if args.Error(0) == nil {
		t.ID = uuid.New()
		t.MemberCount = 1
	}
	return args.Error(0)
}

func (m *mockTeamRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *mockTeamRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Team), args.Error(1)
}

func (m *mockTeamRepo) Update(ctx context.Context, t *models.Team) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTeamRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

func (m *mockTeamRepo) GetMember(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	args := m.Called(ctx, teamID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

func (m *mockTeamRepo) ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	args := m.Called(ctx, teamID)
	return args.Get(0).([]models.TeamMember), args.Error(1)
}

func (m *mockTeamRepo) UpdateMemberRole(ctx context.Context, teamID, userID uuid.UUID, role string) (*models.TeamMember, error) {
	args := m.Called(ctx, teamID, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

func (m *mockTeamRepo) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	return m.Called(ctx, teamID, userID).Error(0)
}

func (m *mockTeamRepo) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *mockTeamRepo) ListInvitations(ctx context.Context, teamID uuid.UUID) ([]models.TeamInvitation, error) {
	args := m.Called(ctx, teamID)
	return args.Get(0).([]models.TeamInvitation), args.Error(1)
}

func (m *mockTeamRepo) GetInvitation(ctx context.Context, id uuid.UUID) (*models.TeamInvitation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamInvitation), args.Error(1)
}

func (m *mockTeamRepo) GetInvitationByToken(ctx context.Context, token string) (*models.TeamInvitation, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamInvitation), args.Error(1)
}

func (m *mockTeamRepo) SetInvitationStatus(ctx context.Context, id uuid.UUID, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockTeamRepo) AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, userID uuid.UUID) (*models.TeamMember, error) {
	args := m.Called(ctx, inv, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

func TestTeamService_CreateTeam(t *testing.T) {
	repo := new(mockTeamRepo)
	em := &recordingEmitter{}
	svc := NewTeamService(repo, em)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Create", ctx, mock.AnythingOfType("*models.Team")).Return(nil)

	team, err := svc.CreateTeam(ctx, userID, dto.TeamRequest{Name: "Дизайн Студия"})

	require.NoError(t, err)
	assert.Equal(t, userID, team.OwnerID)
	assert.Equal(t, "dizayn-studiya", team.Slug)
	assert.Equal(t, 1, team.MemberCount)
	assert.Equal(t, []string{"teams:INSERT"}, em.tables())
}

func TestTeamService_GetTeam_NonMemberHidden(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	ctx := context.Background()
	teamID, userID := uuid.New(), uuid.New()

	repo.On("GetMember", ctx, teamID, userID).Return(nil, apperror.ErrMemberNotFound)

	_, err := svc.GetTeam(ctx, userID, teamID)
	assert.ErrorIs(t, err, apperror.ErrTeamNotFound)
}

func TestTeamService_InviteMember_CannotInviteOwner(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	ctx := context.Background()
	teamID, userID := uuid.New(), uuid.New()

	repo.On("GetMember", ctx, teamID, userID).Return(&models.TeamMember{Role: models.TeamRoleOwner}, nil)

	_, err := svc.InviteMember(ctx, userID, teamID, dto.InviteRequest{Email: "a@b.co", Role: models.TeamRoleOwner})
	assert.True(t, apperror.IsValidation(err))
}

func TestTeamService_InviteMember_MemberForbidden(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	ctx := context.Background()
	teamID, userID := uuid.New(), uuid.New()

	repo.On("GetMember", ctx, teamID, userID).Return(&models.TeamMember{Role: models.TeamRoleMember}, nil)

	_, err := svc.InviteMember(ctx, userID, teamID, dto.InviteRequest{Email: "a@b.co"})
	assert.True(t, apperror.IsForbidden(err))
}

func TestTeamService_InviteMember_SetsExpiry(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	teamID, userID := uuid.New(), uuid.New()

	repo.On("GetMember", ctx, teamID, userID).Return(&models.TeamMember{Role: models.TeamRoleAdmin}, nil)
	repo.On("CreateInvitation", ctx, mock.AnythingOfType("*models.TeamInvitation")).Return(nil)

	inv, err := svc.InviteMember(ctx, userID, teamID, dto.InviteRequest{Email: " Anna@Example.com "})

	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", inv.Email)
	assert.Equal(t, models.TeamRoleMember, inv.Role)
	assert.Equal(t, now.Add(7*24*time.Hour), inv.ExpiresAt)
	assert.Len(t, inv.Token, 24)
}

func TestTeamService_AcceptInvitation_Expired(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	ctx := context.Background()
	inv := &models.TeamInvitation{
		ID:        uuid.New(),
		Status:    models.InvitationStatusPending,
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	repo.On("GetInvitationByToken", ctx, "tok").Return(inv, nil)
	repo.On("SetInvitationStatus", ctx, inv.ID, models.InvitationStatusExpired).Return(nil)

	_, err := svc.AcceptInvitation(ctx, uuid.New(), "tok")
	assert.Equal(t, apperror.ErrCodeGone, apperror.CodeOf(err))
}

func TestTeamService_AcceptInvitation(t *testing.T) {
	repo := new(mockTeamRepo)
	em := &recordingEmitter{}
	svc := NewTeamService(repo, em)
	ctx := context.Background()
	userID := uuid.New()
	inv := &models.TeamInvitation{
		ID:        uuid.New(),
		TeamID:    uuid.New(),
		Role:      models.TeamRoleViewer,
		Status:    models.InvitationStatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	repo.On("GetInvitationByToken", ctx, "tok").Return(inv, nil)
	repo.On("AcceptInvitation", ctx, inv, userID).
		Return(&models.TeamMember{TeamID: inv.TeamID, UserID: userID, Role: inv.Role}, nil)

	member, err := svc.AcceptInvitation(ctx, userID, "tok")

	require.NoError(t, err)
	assert.Equal(t, models.TeamRoleViewer, member.Role)
	assert.Equal(t, []string{"team_members:INSERT"}, em.tables())
}

func TestTeamService_RemoveMember_OwnerProtected(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	ctx := context.Background()
	teamID, adminID, ownerID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetMember", ctx, teamID, adminID).Return(&models.TeamMember{Role: models.TeamRoleAdmin}, nil)
	repo.On("GetMember", ctx, teamID, ownerID).Return(&models.TeamMember{UserID: ownerID, Role: models.TeamRoleOwner}, nil)

	err := svc.RemoveMember(ctx, adminID, teamID, ownerID)
	assert.True(t, apperror.IsForbidden(err))
	repo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestTeamService_DeleteTeam_OnlyOwner(t *testing.T) {
	repo := new(mockTeamRepo)
	svc := NewTeamService(repo, nil)
	ctx := context.Background()
	teamID := uuid.New()

	repo.On("GetByID", ctx, teamID).Return(&models.Team{ID: teamID, OwnerID: uuid.New()}, nil)

	err := svc.DeleteTeam(ctx, uuid.New(), teamID)
	assert.True(t, apperror.IsForbidden(err))
}
