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
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

type mockProposalRepo struct {
	mock.Mock
}

func (m *mockProposalRepo) Create(ctx context.Context, p *models.Proposal, items []models.ProposalItem) error {
	args := m.Called(ctx, p, items)
	if args.Error(0) == nil {
		p.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockProposalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) GetByShareToken(ctx context.Context, token string) (*models.Proposal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) ListItems(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalItem, error) {
	args := m.Called(ctx, proposalID)
	return args.Get(0).([]models.ProposalItem), args.Error(1)
}

func (m *mockProposalRepo) GetSignature(ctx context.Context, proposalID uuid.UUID) (*models.ProposalSignature, error) {
	args := m.Called(ctx, proposalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProposalSignature), args.Error(1)
}

func (m *mockProposalRepo) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Proposal, int, error) {
	args := m.Called(ctx, userID, status, limit, offset)
	return args.Get(0).([]models.Proposal), args.Int(1), args.Error(2)
}

func (m *mockProposalRepo) Update(ctx context.Context, p *models.Proposal) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProposalRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockProposalRepo) AddItem(ctx context.Context, item *models.ProposalItem) (*models.ProposalTotals, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProposalTotals), args.Error(1)
}

func (m *mockProposalRepo) UpdateItem(ctx context.Context, item *models.ProposalItem) (*models.ProposalTotals, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProposalTotals), args.Error(1)
}

func (m *mockProposalRepo) RemoveItem(ctx context.Context, proposalID, itemID uuid.UUID) (*models.ProposalTotals, error) {
	args := m.Called(ctx, proposalID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProposalTotals), args.Error(1)
}

func (m *mockProposalRepo) Recalculate(ctx context.Context, proposalID uuid.UUID) (*models.ProposalTotals, error) {
	args := m.Called(ctx, proposalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProposalTotals), args.Error(1)
}

func (m *mockProposalRepo) MarkSent(ctx context.Context, id uuid.UUID, token string, sentAt time.Time) (*models.Proposal, error) {
	args := m.Called(ctx, id, token, sentAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) RegisterView(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) Sign(ctx context.Context, sig *models.ProposalSignature) (*models.Proposal, error) {
	args := m.Called(ctx, sig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (*models.Proposal, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) ExpireOverdue(ctx context.Context, now time.Time) ([]models.Proposal, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.Proposal), args.Error(1)
}

func (m *mockProposalRepo) StatusTotals(ctx context.Context, userID uuid.UUID) ([]models.StatusTotal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.StatusTotal), args.Error(1)
}

// recordingEmitter собирает события для проверок.
type recordingEmitter struct {
	changes []events.Change
}

func (r *recordingEmitter) Emit(_ context.Context, _ uuid.UUID, c events.Change) {
	r.changes = append(r.changes, c)
}

func (r *recordingEmitter) tables() []string {
	out := make([]string, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Table + ":" + c.Type
	}
	return out
}

func TestProposalService_CreateProposal_Success(t *testing.T) {
	repo := new(mockProposalRepo)
	em := &recordingEmitter{}
	svc := NewProposalService(repo, em)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Create", ctx, mock.AnythingOfType("*models.Proposal"), mock.MatchedBy(func(items []models.ProposalItem) bool {
		return len(items) == 2 && items[0].Description == "Логотип"
	})).Return(nil)

	p, err := svc.CreateProposal(ctx, userID, dto.ProposalRequest{
		ClientName: " ООО Ромашка ",
		Title:      "Брендинг",
		Currency:   "eur",
		Items: []dto.ProposalItemRequest{
			{Description: "Логотип", Quantity: 1, UnitPrice: 500},
			{Description: "Гайдлайн", Quantity: 1, UnitPrice: 800},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusDraft, p.Status)
	assert.Equal(t, "ООО Ромашка", p.ClientName)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, []string{"proposals:INSERT"}, em.tables())
}

func TestProposalService_CreateProposal_Validation(t *testing.T) {
	svc := NewProposalService(new(mockProposalRepo), nil)
	ctx := context.Background()

	_, err := svc.CreateProposal(ctx, uuid.New(), dto.ProposalRequest{ClientName: "A", Title: "B", DiscountPercent: 120})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateProposal(ctx, uuid.New(), dto.ProposalRequest{
		ClientName: "A", Title: "B",
		Items: []dto.ProposalItemRequest{{Description: "x", Quantity: 0, UnitPrice: 1}},
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestProposalService_GetProposal_OtherOwner(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Proposal{ID: id, UserID: uuid.New()}, nil)

	_, err := svc.GetProposal(ctx, uuid.New(), id)
	assert.ErrorIs(t, err, apperror.ErrProposalNotFound)
}

func TestProposalService_AddItem_OnlyDraft(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Proposal{ID: id, UserID: userID, Status: models.ProposalStatusSent}, nil)

	_, _, err := svc.AddItem(ctx, userID, id, dto.ProposalItemRequest{Description: "Доп. работы", Quantity: 2, UnitPrice: 10})
	assert.True(t, apperror.IsConflict(err))
	repo.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything)
}

func TestProposalService_AddItem_ReturnsTotals(t *testing.T) {
	repo := new(mockProposalRepo)
	em := &recordingEmitter{}
	svc := NewProposalService(repo, em)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Proposal{ID: id, UserID: userID, Status: models.ProposalStatusDraft}, nil)
	repo.On("AddItem", ctx, mock.AnythingOfType("*models.ProposalItem")).
		Return(&models.ProposalTotals{Subtotal: 20, Total: 20}, nil)

	item, totals, err := svc.AddItem(ctx, userID, id, dto.ProposalItemRequest{Description: "Правки", Quantity: 2, UnitPrice: 10})
	require.NoError(t, err)
	assert.Equal(t, id, item.ProposalID)
	assert.Equal(t, 20.0, totals.Total)
	assert.Equal(t, []string{"proposal_items:INSERT"}, em.tables())
}

func TestProposalService_SendProposal(t *testing.T) {
	repo := new(mockProposalRepo)
	em := &recordingEmitter{}
	svc := NewProposalService(repo, em)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()
	draft := &models.Proposal{ID: id, UserID: userID, Status: models.ProposalStatusDraft}

	repo.On("GetByID", ctx, id).Return(draft, nil)
	repo.On("ListItems", ctx, id).Return([]models.ProposalItem{{ID: uuid.New(), Amount: 100}}, nil)
	repo.On("MarkSent", ctx, id, mock.MatchedBy(func(tok string) bool { return len(tok) == 24 }), mock.AnythingOfType("time.Time")).
		Return(&models.Proposal{ID: id, UserID: userID, Status: models.ProposalStatusSent}, nil)

	sent, err := svc.SendProposal(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusSent, sent.Status)
	assert.Len(t, sent.Items, 1)
	assert.Equal(t, []string{"proposals:UPDATE"}, em.tables())
}

func TestProposalService_SendProposal_NoItems(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Proposal{ID: id, UserID: userID, Status: models.ProposalStatusDraft}, nil)
	repo.On("ListItems", ctx, id).Return([]models.ProposalItem{}, nil)

	_, err := svc.SendProposal(ctx, userID, id)
	assert.True(t, apperror.IsValidation(err))
}

func TestProposalService_ViewByToken_DraftHidden(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()

	repo.On("GetByShareToken", ctx, "tok").Return(&models.Proposal{ID: uuid.New(), Status: models.ProposalStatusDraft}, nil)

	_, err := svc.ViewByToken(ctx, "tok")
	assert.ErrorIs(t, err, apperror.ErrProposalNotFound)
}

func TestProposalService_ViewByToken_FirstViewTransitions(t *testing.T) {
	repo := new(mockProposalRepo)
	em := &recordingEmitter{}
	svc := NewProposalService(repo, em)
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByShareToken", ctx, "tok").Return(&models.Proposal{ID: id, Status: models.ProposalStatusSent}, nil)
	repo.On("RegisterView", ctx, id).Return(&models.Proposal{ID: id, Status: models.ProposalStatusViewed, ViewCount: 1}, nil)
	repo.On("ListItems", ctx, id).Return([]models.ProposalItem{}, nil)
	repo.On("GetSignature", ctx, id).Return(nil, nil)

	p, err := svc.ViewByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusViewed, p.Status)
	assert.Equal(t, 1, p.ViewCount)
	assert.Len(t, em.changes, 1)
}

func TestProposalService_SignByToken_Expired(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()
	id := uuid.New()
	past := time.Now().Add(-24 * time.Hour)

	repo.On("GetByShareToken", ctx, "tok").
		Return(&models.Proposal{ID: id, Status: models.ProposalStatusViewed, ValidUntil: &past}, nil)
	repo.On("TransitionStatus", ctx, id, []string{"sent", "viewed"}, "expired").
		Return(&models.Proposal{ID: id, Status: models.ProposalStatusExpired}, nil)

	_, err := svc.SignByToken(ctx, "tok", dto.SignProposalRequest{
		SignerName: "Иван", SignerEmail: "ivan@example.com", SignatureData: "data:image/png;base64,AAAA",
	}, "10.0.0.1")
	assert.Equal(t, apperror.ErrCodeGone, apperror.CodeOf(err))
	repo.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

func TestProposalService_SignByToken_Accepts(t *testing.T) {
	repo := new(mockProposalRepo)
	em := &recordingEmitter{}
	svc := NewProposalService(repo, em)
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByShareToken", ctx, "tok").Return(&models.Proposal{ID: id, Status: models.ProposalStatusViewed}, nil)
	repo.On("Sign", ctx, mock.MatchedBy(func(sig *models.ProposalSignature) bool {
		return sig.ProposalID == id && sig.IPAddress != nil && *sig.IPAddress == "10.0.0.1"
	})).Return(&models.Proposal{ID: id, Status: models.ProposalStatusAccepted}, nil)

	p, err := svc.SignByToken(ctx, "tok", dto.SignProposalRequest{
		SignerName: "Иван", SignerEmail: "ivan@example.com", SignatureData: "sig",
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, p.Status)
	assert.NotNil(t, p.Signature)
	assert.Equal(t, []string{"proposals:UPDATE", "proposal_signatures:INSERT"}, em.tables())
}

func TestProposalService_DuplicateProposal(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Proposal{
		ID: id, UserID: userID, Title: "Сайт", Status: models.ProposalStatusAccepted, DiscountPercent: 5,
	}, nil)
	repo.On("ListItems", ctx, id).Return([]models.ProposalItem{{Description: "Верстка", Quantity: 3, UnitPrice: 100}}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Proposal"), mock.Anything).Return(nil)

	cp, err := svc.DuplicateProposal(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, "Сайт (копия)", cp.Title)
	assert.Equal(t, models.ProposalStatusDraft, cp.Status)
	assert.Equal(t, 5.0, cp.DiscountPercent)
	assert.Len(t, cp.Items, 1)
	assert.NotEqual(t, id, cp.ID)
}

func TestProposalService_Stats(t *testing.T) {
	repo := new(mockProposalRepo)
	svc := NewProposalService(repo, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("StatusTotals", ctx, userID).Return([]models.StatusTotal{
		{Status: "accepted", Count: 3, Amount: 3000},
		{Status: "declined", Count: 1, Amount: 500},
		{Status: "sent", Count: 2, Amount: 1200.5},
		{Status: "draft", Count: 4, Amount: 100},
	}, nil)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 3000.0, stats.AcceptedValue)
	assert.Equal(t, 1200.5, stats.PipelineValue)
	assert.Equal(t, 75.0, stats.AcceptanceRate)
}
