package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/validation"
)

const (
	tablePortfolio = "portfolio_items"

	defaultPortfolioCategory = "other"
)

type PortfolioRepository interface {
	Create(ctx context.Context, item *models.PortfolioItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PortfolioItem, error)
	List(ctx context.Context, filter models.PortfolioFilter) ([]models.PortfolioItem, int, error)
	Update(ctx context.Context, item *models.PortfolioItem) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*models.PortfolioItem, error)
	Reorder(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
	IncrementViews(ctx context.Context, id uuid.UUID) (int, error)
	Like(ctx context.Context, userID, itemID uuid.UUID) (int, error)
	Unlike(ctx context.Context, userID, itemID uuid.UUID) (int, error)
	HasLiked(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.PortfolioStats, error)
}

// PortfolioService работы портфолио: витрина доступна всем, правка только владельцу.
type PortfolioService struct {
	repo   PortfolioRepository
	events events.Emitter
}

func NewPortfolioService(repo PortfolioRepository, emitter events.Emitter) *PortfolioService {
	return &PortfolioService{repo: repo, events: emitterOrNoop(emitter)}
}

// LikeState счётчик лайков и отметка текущего пользователя.
type LikeState struct {
	ItemID    uuid.UUID `json:"item_id"`
	LikeCount int       `json:"like_count"`
	Liked     bool      `json:"liked"`
}

func (s *PortfolioService) Create(ctx context.Context, userID uuid.UUID, req dto.PortfolioRequest) (*models.PortfolioItem, error) {
	item := &models.PortfolioItem{UserID: userID}
	if err := applyPortfolioRequest(item, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tablePortfolio, item))
	return item, nil
}

func (s *PortfolioService) Get(ctx context.Context, id uuid.UUID) (*models.PortfolioItem, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PortfolioService) List(ctx context.Context, filter models.PortfolioFilter) ([]models.PortfolioItem, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	return s.repo.List(ctx, filter)
}

func (s *PortfolioService) Update(ctx context.Context, userID, id uuid.UUID, req dto.PortfolioRequest) (*models.PortfolioItem, error) {
	item, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *item
	if err := applyPortfolioRequest(item, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tablePortfolio, item, &old))
	return item, nil
}

func (s *PortfolioService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	item, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tablePortfolio, item))
	return nil
}

func (s *PortfolioService) ToggleFeatured(ctx context.Context, userID, id uuid.UUID) (*models.PortfolioItem, error) {
	item, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SetFeatured(ctx, id, !item.IsFeatured)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tablePortfolio, updated, item))
	return updated, nil
}

// Reorder принимает полный или частичный список работ владельца в новом порядке.
func (s *PortfolioService) Reorder(ctx context.Context, userID uuid.UUID, req dto.PortfolioOrderRequest) error {
	seen := make(map[uuid.UUID]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if _, dup := seen[id]; dup {
			return apperror.Validation("работы в списке не должны повторяться")
		}
		seen[id] = struct{}{}
	}
	if err := s.repo.Reorder(ctx, userID, req.IDs); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Updated(tablePortfolio, map[string]any{"user_id": userID, "order": req.IDs}, nil))
	return nil
}

// RecordView увеличивает счётчик просмотров. Владелец свои просмотры не накручивает.
func (s *PortfolioService) RecordView(ctx context.Context, viewerID, id uuid.UUID) (int, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if viewerID == item.UserID {
		return item.ViewCount, nil
	}
	return s.repo.IncrementViews(ctx, id)
}

func (s *PortfolioService) Like(ctx context.Context, userID, id uuid.UUID) (*LikeState, error) {
	count, err := s.repo.Like(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.emitLike(ctx, id, count)
	return &LikeState{ItemID: id, LikeCount: count, Liked: true}, nil
}

func (s *PortfolioService) Unlike(ctx context.Context, userID, id uuid.UUID) (*LikeState, error) {
	count, err := s.repo.Unlike(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.emitLike(ctx, id, count)
	return &LikeState{ItemID: id, LikeCount: count, Liked: false}, nil
}

func (s *PortfolioService) LikeStatus(ctx context.Context, userID, id uuid.UUID) (*LikeState, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	liked, err := s.repo.HasLiked(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &LikeState{ItemID: id, LikeCount: item.LikeCount, Liked: liked}, nil
}

func (s *PortfolioService) Stats(ctx context.Context, userID uuid.UUID) (*models.PortfolioStats, error) {
	return s.repo.Stats(ctx, userID)
}

// emitLike сообщает владельцу работы о новом счётчике.
func (s *PortfolioService) emitLike(ctx context.Context, id uuid.UUID, count int) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return
	}
	item.LikeCount = count
	s.events.Emit(ctx, item.UserID, events.Updated(tablePortfolio, item, nil))
}

func (s *PortfolioService) owned(ctx context.Context, userID, id uuid.UUID) (*models.PortfolioItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, apperror.ErrPortfolioNotFound
	}
	return item, nil
}

func applyPortfolioRequest(item *models.PortfolioItem, req dto.PortfolioRequest) error {
	if err := requireText(req.Title, "название работы обязательно"); err != nil {
		return err
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = defaultPortfolioCategory
	}

	tags := pq.StringArray{}
	seen := map[string]bool{}
	for _, t := range req.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}

	item.Title = strings.TrimSpace(req.Title)
	item.Description = optionalString(req.Description)
	item.Category = category
	item.Tags = tags
	item.CoverFileID = req.CoverFileID
	item.ProjectURL = optionalString(req.ProjectURL)
	item.ClientName = optionalString(req.ClientName)
	if err := validation.ValidateOptionalLink(item.ProjectURL); err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}
