package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

type mockTutorialRepo struct {
	mock.Mock
}

func (m *mockTutorialRepo) Create(ctx context.Context, t *models.Tutorial) error {
	args := m.Called(ctx, t)
	if args.Error(0) == nil {
		t.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockTutorialRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tutorial), args.Error(1)
}

func (m *mockTutorialRepo) ListPublished(ctx context.Context, category, difficulty string, limit, offset int) ([]models.Tutorial, int, error) {
	args := m.Called(ctx, category, difficulty, limit, offset)
	return args.Get(0).([]models.Tutorial), args.Int(1), args.Error(2)
}

func (m *mockTutorialRepo) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Tutorial, int, error) {
	args := m.Called(ctx, authorID, limit, offset)
	return args.Get(0).([]models.Tutorial), args.Int(1), args.Error(2)
}

func (m *mockTutorialRepo) Update(ctx context.Context, t *models.Tutorial) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTutorialRepo) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*models.Tutorial, error) {
	args := m.Called(ctx, id, published)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tutorial), args.Error(1)
}

func (m *mockTutorialRepo) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	return m.Called(ctx, id, authorID).Error(0)
}

func (m *mockTutorialRepo) ListSteps(ctx context.Context, tutorialID uuid.UUID) ([]models.TutorialStep, error) {
	args := m.Called(ctx, tutorialID)
	return args.Get(0).([]models.TutorialStep), args.Error(1)
}

func (m *mockTutorialRepo) AddStep(ctx context.Context, s *models.TutorialStep) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockTutorialRepo) UpdateStep(ctx context.Context, s *models.TutorialStep) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockTutorialRepo) DeleteStep(ctx context.Context, tutorialID, stepID uuid.UUID) error {
	return m.Called(ctx, tutorialID, stepID).Error(0)
}

func (m *mockTutorialRepo) GetProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error) {
	args := m.Called(ctx, userID, tutorialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TutorialProgress), args.Error(1)
}

func (m *mockTutorialRepo) StartProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error) {
	args := m.Called(ctx, userID, tutorialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TutorialProgress), args.Error(1)
}

func (m *mockTutorialRepo) SaveProgress(ctx context.Context, p *models.TutorialProgress, firstCompletion bool) error {
	return m.Called(ctx, p, firstCompletion).Error(0)
}

func (m *mockTutorialRepo) ListProgress(ctx context.Context, userID uuid.UUID) ([]models.TutorialProgress, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.TutorialProgress), args.Error(1)
}

func TestTutorialService_CreateTutorial_Defaults(t *testing.T) {
	repo := new(mockTutorialRepo)
	svc := NewTutorialService(repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.Tutorial")).Return(nil)

	tut, err := svc.CreateTutorial(ctx, uuid.New(), dto.TutorialRequest{Title: "Основы Go"})
	require.NoError(t, err)
	assert.Equal(t, "osnovy-go", tut.Slug)
	assert.Equal(t, "beginner", tut.Difficulty)
	assert.Equal(t, "general", tut.Category)
}

func TestTutorialService_CreateTutorial_BadDifficulty(t *testing.T) {
	svc := NewTutorialService(new(mockTutorialRepo), nil)

	_, err := svc.CreateTutorial(context.Background(), uuid.New(), dto.TutorialRequest{Title: "x", Difficulty: "expert"})
	assert.True(t, apperror.IsValidation(err))
}

func TestTutorialService_Publish_RequiresSteps(t *testing.T) {
	repo := new(mockTutorialRepo)
	svc := NewTutorialService(repo, nil)
	ctx := context.Background()
	authorID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Tutorial{ID: id, AuthorID: authorID}, nil)

	_, err := svc.Publish(ctx, authorID, id)
	assert.True(t, apperror.IsValidation(err))
}

func TestTutorialService_GetTutorial_DraftHiddenFromOthers(t *testing.T) {
	repo := new(mockTutorialRepo)
	svc := NewTutorialService(repo, nil)
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Tutorial{ID: id, AuthorID: uuid.New()}, nil)

	_, err := svc.GetTutorial(ctx, uuid.New(), id)
	assert.ErrorIs(t, err, apperror.ErrTutorialNotFound)
}

func TestTutorialService_CompleteStep_FirstCompletion(t *testing.T) {
	repo := new(mockTutorialRepo)
	em := &recordingEmitter{}
	svc := NewTutorialService(repo, em)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()
	s1, s2 := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Tutorial{ID: id, AuthorID: uuid.New(), IsPublished: true, StepCount: 2}, nil)
	repo.On("ListSteps", ctx, id).Return([]models.TutorialStep{{ID: s1}, {ID: s2}}, nil)
	repo.On("GetProgress", ctx, userID, id).Return(&models.TutorialProgress{
		UserID: userID, TutorialID: id, CompletedSteps: pq.StringArray{s1.String()}, Percent: 50,
	}, nil)
	repo.On("SaveProgress", ctx, mock.AnythingOfType("*models.TutorialProgress"), true).Return(nil)

	p, err := svc.CompleteStep(ctx, userID, id, s2)

	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Percent)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, fixed, *p.CompletedAt)
	assert.Equal(t, []string{"tutorial_progress:UPDATE"}, em.tables())
}

func TestTutorialService_CompleteStep_Idempotent(t *testing.T) {
	repo := new(mockTutorialRepo)
	svc := NewTutorialService(repo, nil)
	ctx := context.Background()
	userID, id, s1 := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Tutorial{ID: id, IsPublished: true, StepCount: 3}, nil)
	repo.On("ListSteps", ctx, id).Return([]models.TutorialStep{{ID: s1}}, nil)
	repo.On("GetProgress", ctx, userID, id).Return(&models.TutorialProgress{
		UserID: userID, TutorialID: id, CompletedSteps: pq.StringArray{s1.String()}, Percent: 33.33,
	}, nil)

	p, err := svc.CompleteStep(ctx, userID, id, s1)

	require.NoError(t, err)
	assert.Equal(t, 33.33, p.Percent)
	repo.AssertNotCalled(t, "SaveProgress", mock.Anything, mock.Anything, mock.Anything)
}

func TestTutorialService_CompleteStep_StartsProgress(t *testing.T) {
	repo := new(mockTutorialRepo)
	svc := NewTutorialService(repo, nil)
	ctx := context.Background()
	userID, id, s1 := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Tutorial{ID: id, IsPublished: true, StepCount: 4}, nil)
	repo.On("ListSteps", ctx, id).Return([]models.TutorialStep{{ID: s1}}, nil)
	repo.On("GetProgress", ctx, userID, id).Return(nil, apperror.ErrProgressNotFound)
	repo.On("StartProgress", ctx, userID, id).Return(&models.TutorialProgress{UserID: userID, TutorialID: id}, nil)
	repo.On("SaveProgress", ctx, mock.AnythingOfType("*models.TutorialProgress"), false).Return(nil)

	p, err := svc.CompleteStep(ctx, userID, id, s1)

	require.NoError(t, err)
	assert.Equal(t, 25.0, p.Percent)
	assert.Nil(t, p.CompletedAt)
}

func TestTutorialService_CompleteStep_UnknownStep(t *testing.T) {
	repo := new(mockTutorialRepo)
	svc := NewTutorialService(repo, nil)
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Tutorial{ID: id, IsPublished: true, StepCount: 1}, nil)
	repo.On("ListSteps", ctx, id).Return([]models.TutorialStep{{ID: uuid.New()}}, nil)

	_, err := svc.CompleteStep(ctx, uuid.New(), id, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrStepNotFound)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0.0, ProgressPercent(1, 0))
	assert.Equal(t, 33.33, ProgressPercent(1, 3))
	assert.Equal(t, 100.0, ProgressPercent(5, 4))
}
