package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/validation"
)

const (
	tableTutorials        = "tutorials"
	tableTutorialSteps    = "tutorial_steps"
	tableTutorialProgress = "tutorial_progress"

	defaultTutorialCategory = "general"
)

type TutorialRepository interface {
	Create(ctx context.Context, t *models.Tutorial) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tutorial, error)
	ListPublished(ctx context.Context, category, difficulty string, limit, offset int) ([]models.Tutorial, int, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Tutorial, int, error)
	Update(ctx context.Context, t *models.Tutorial) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool) (*models.Tutorial, error)
	Delete(ctx context.Context, id, authorID uuid.UUID) error
	ListSteps(ctx context.Context, tutorialID uuid.UUID) ([]models.TutorialStep, error)
	AddStep(ctx context.Context, s *models.TutorialStep) error
	UpdateStep(ctx context.Context, s *models.TutorialStep) error
	DeleteStep(ctx context.Context, tutorialID, stepID uuid.UUID) error
	GetProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error)
	StartProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error)
	SaveProgress(ctx context.Context, p *models.TutorialProgress, firstCompletion bool) error
	ListProgress(ctx context.Context, userID uuid.UUID) ([]models.TutorialProgress, error)
}

type TutorialService struct {
	repo   TutorialRepository
	events events.Emitter
	now    func() time.Time
}

func NewTutorialService(repo TutorialRepository, emitter events.Emitter) *TutorialService {
	return &TutorialService{repo: repo, events: emitterOrNoop(emitter), now: time.Now}
}

func (s *TutorialService) CreateTutorial(ctx context.Context, authorID uuid.UUID, req dto.TutorialRequest) (*models.Tutorial, error) {
	t := &models.Tutorial{AuthorID: authorID}
	if err := applyTutorialRequest(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, authorID, events.Inserted(tableTutorials, t))
	return t, nil
}

// GetTutorial возвращает урок с шагами. Черновик виден только автору.
func (s *TutorialService) GetTutorial(ctx context.Context, userID, id uuid.UUID) (*models.Tutorial, error) {
	t, err := s.visible(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Steps = steps
	return t, nil
}

func (s *TutorialService) ListPublished(ctx context.Context, category, difficulty string, limit, offset int) ([]models.Tutorial, int, error) {
	limit, offset = normalizePage(limit, offset)
	if difficulty != "" {
		if _, ok := models.ValidDifficulties[difficulty]; !ok {
			return nil, 0, apperror.Validation("недопустимая сложность")
		}
	}
	return s.repo.ListPublished(ctx, strings.TrimSpace(category), difficulty, limit, offset)
}

func (s *TutorialService) ListMine(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Tutorial, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListByAuthor(ctx, authorID, limit, offset)
}

func (s *TutorialService) UpdateTutorial(ctx context.Context, authorID, id uuid.UUID, req dto.TutorialRequest) (*models.Tutorial, error) {
	t, err := s.authored(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	old := *t
	if err := applyTutorialRequest(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, authorID, events.Updated(tableTutorials, t, &old))
	return t, nil
}

// Publish публикует урок, в котором есть хотя бы один шаг.
func (s *TutorialService) Publish(ctx context.Context, authorID, id uuid.UUID) (*models.Tutorial, error) {
	t, err := s.authored(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	if t.StepCount < 1 {
		return nil, apperror.Validation("нельзя опубликовать урок без шагов")
	}
	return s.setPublished(ctx, authorID, t, true)
}

func (s *TutorialService) Unpublish(ctx context.Context, authorID, id uuid.UUID) (*models.Tutorial, error) {
	t, err := s.authored(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	return s.setPublished(ctx, authorID, t, false)
}

func (s *TutorialService) setPublished(ctx context.Context, authorID uuid.UUID, t *models.Tutorial, published bool) (*models.Tutorial, error) {
	if t.IsPublished == published {
		return t, nil
	}
	updated, err := s.repo.SetPublished(ctx, t.ID, published)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, authorID, events.Updated(tableTutorials, updated, t))
	return updated, nil
}

func (s *TutorialService) DeleteTutorial(ctx context.Context, authorID, id uuid.UUID) error {
	t, err := s.authored(ctx, authorID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, authorID); err != nil {
		return err
	}
	s.events.Emit(ctx, authorID, events.Deleted(tableTutorials, t))
	return nil
}

func (s *TutorialService) AddStep(ctx context.Context, authorID, tutorialID uuid.UUID, req dto.TutorialStepRequest) (*models.TutorialStep, error) {
	if _, err := s.authored(ctx, authorID, tutorialID); err != nil {
		return nil, err
	}
	step := &models.TutorialStep{TutorialID: tutorialID}
	if err := applyStepRequest(step, req); err != nil {
		return nil, err
	}
	if err := s.repo.AddStep(ctx, step); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, authorID, events.Inserted(tableTutorialSteps, step))
	return step, nil
}

func (s *TutorialService) UpdateStep(ctx context.Context, authorID, tutorialID, stepID uuid.UUID, req dto.TutorialStepRequest) (*models.TutorialStep, error) {
	if _, err := s.authored(ctx, authorID, tutorialID); err != nil {
		return nil, err
	}
	step := &models.TutorialStep{ID: stepID, TutorialID: tutorialID}
	if err := applyStepRequest(step, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, authorID, events.Updated(tableTutorialSteps, step, nil))
	return step, nil
}

func (s *TutorialService) DeleteStep(ctx context.Context, authorID, tutorialID, stepID uuid.UUID) error {
	t, err := s.authored(ctx, authorID, tutorialID)
	if err != nil {
		return err
	}
	if t.IsPublished && t.StepCount <= 1 {
		return apperror.Conflict("в опубликованном уроке должен остаться хотя бы один шаг")
	}
	if err := s.repo.DeleteStep(ctx, tutorialID, stepID); err != nil {
		return err
	}
	s.events.Emit(ctx, authorID, events.Deleted(tableTutorialSteps, &models.TutorialStep{ID: stepID, TutorialID: tutorialID}))
	return nil
}

// StartTutorial создаёт прогресс пользователя; повторный вызов возвращает текущий.
func (s *TutorialService) StartTutorial(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error) {
	if _, err := s.visible(ctx, userID, tutorialID); err != nil {
		return nil, err
	}
	p, err := s.repo.StartProgress(ctx, userID, tutorialID)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTutorialProgress, p, nil))
	return p, nil
}

// CompleteStep отмечает шаг пройденным. Повторная отметка ничего не меняет.
// Первое достижение 100% фиксирует completed_at и увеличивает completion_count.
func (s *TutorialService) CompleteStep(ctx context.Context, userID, tutorialID, stepID uuid.UUID) (*models.TutorialProgress, error) {
	t, err := s.visible(ctx, userID, tutorialID)
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, tutorialID)
	if err != nil {
		return nil, err
	}
	if !containsStep(steps, stepID) {
		return nil, apperror.ErrStepNotFound
	}

	p, err := s.repo.GetProgress(ctx, userID, tutorialID)
	if errors.Is(err, apperror.ErrProgressNotFound) {
		p, err = s.repo.StartProgress(ctx, userID, tutorialID)
	}
	if err != nil {
		return nil, err
	}
	if p.HasStep(stepID) {
		return p, nil
	}

	old := *p
	p.CompletedSteps = append(p.CompletedSteps, stepID.String())
	p.Percent = ProgressPercent(len(p.CompletedSteps), t.StepCount)

	firstCompletion := p.CompletedAt == nil && p.Percent >= 100
	if firstCompletion {
		now := s.now().UTC()
		p.CompletedAt = &now
	}
	if err := s.repo.SaveProgress(ctx, p, firstCompletion); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTutorialProgress, p, &old))
	return p, nil
}

func (s *TutorialService) GetProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error) {
	return s.repo.GetProgress(ctx, userID, tutorialID)
}

func (s *TutorialService) ListMyProgress(ctx context.Context, userID uuid.UUID) ([]models.TutorialProgress, error) {
	return s.repo.ListProgress(ctx, userID)
}

// ProgressPercent считает процент пройденных шагов, не больше 100.
func ProgressPercent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Min(round2(float64(completed)/float64(total)*100), 100)
}

func (s *TutorialService) visible(ctx context.Context, userID, id uuid.UUID) (*models.Tutorial, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsPublished && t.AuthorID != userID {
		return nil, apperror.ErrTutorialNotFound
	}
	return t, nil
}

func (s *TutorialService) authored(ctx context.Context, authorID, id uuid.UUID) (*models.Tutorial, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.AuthorID != authorID {
		return nil, apperror.ErrTutorialNotFound
	}
	return t, nil
}

func applyTutorialRequest(t *models.Tutorial, req dto.TutorialRequest) error {
	if err := requireText(req.Title, "название урока обязательно"); err != nil {
		return err
	}
	difficulty := strings.ToLower(strings.TrimSpace(req.Difficulty))
	if difficulty == "" {
		difficulty = "beginner"
	}
	if _, ok := models.ValidDifficulties[difficulty]; !ok {
		return apperror.Validation("недопустимая сложность")
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = defaultTutorialCategory
	}
	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(req.Title)
	}
	if slug == "" {
		return apperror.Validation("не удалось построить slug из названия")
	}

	t.Title = strings.TrimSpace(req.Title)
	t.Slug = slug
	t.Description = optionalString(req.Description)
	t.Category = category
	t.Difficulty = difficulty
	t.EstimatedMinutes = req.EstimatedMinutes
	return nil
}

func applyStepRequest(step *models.TutorialStep, req dto.TutorialStepRequest) error {
	if err := requireText(req.Title, "название шага обязательно"); err != nil {
		return err
	}
	step.Title = strings.TrimSpace(req.Title)
	step.Body = req.Body
	step.VideoURL = optionalString(req.VideoURL)
	if err := validation.ValidateOptionalLink(step.VideoURL); err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

func containsStep(steps []models.TutorialStep, id uuid.UUID) bool {
	for _, st := range steps {
		if st.ID == id {
			return true
		}
	}
	return false
}
