package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/idgen"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const tableContent = "content"

type ContentRepository interface {
	Create(ctx context.Context, c *models.Content) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Content, error)
	List(ctx context.Context, userID uuid.UUID, filter models.ContentFilter) ([]models.Content, int, error)
	UpdateWithVersion(ctx context.Context, c *models.Content, editorID uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, publishedAt *time.Time) (*models.Content, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	Duplicate(ctx context.Context, srcID uuid.UUID, dst *models.Content) error
	IncrementViews(ctx context.Context, id uuid.UUID) (int, error)
	ListBlocks(ctx context.Context, contentID uuid.UUID) ([]models.ContentBlock, error)
	AddBlock(ctx context.Context, b *models.ContentBlock) error
	UpdateBlock(ctx context.Context, b *models.ContentBlock) error
	DeleteBlock(ctx context.Context, contentID, blockID uuid.UUID) error
	ReorderBlocks(ctx context.Context, contentID uuid.UUID, ids []uuid.UUID) error
	ListVersions(ctx context.Context, contentID uuid.UUID) ([]models.ContentVersion, error)
	GetVersion(ctx context.Context, contentID uuid.UUID, version int) (*models.ContentVersion, error)
}

type ContentService struct {
	repo   ContentRepository
	events events.Emitter
}

func NewContentService(repo ContentRepository, emitter events.Emitter) *ContentService {
	return &ContentService{repo: repo, events: emitterOrNoop(emitter)}
}

// CreateContent создаёт черновик материала.
func (s *ContentService) CreateContent(ctx context.Context, userID uuid.UUID, req dto.ContentRequest) (*models.Content, error) {
	c := &models.Content{UserID: userID, Status: models.ContentStatusDraft}
	if err := applyContentRequest(c, req); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableContent, c))
	return c, nil
}

// GetContent возвращает материал владельца.
func (s *ContentService) GetContent(ctx context.Context, userID, id uuid.UUID) (*models.Content, error) {
	return s.owned(ctx, userID, id)
}

// ListContent возвращает материалы пользователя.
func (s *ContentService) ListContent(ctx context.Context, userID uuid.UUID, filter models.ContentFilter) ([]models.Content, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, userID, filter)
}

// UpdateContent сохраняет новую версию материала.
func (s *ContentService) UpdateContent(ctx context.Context, userID, id uuid.UUID, req dto.ContentRequest) (*models.Content, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *c

	if err := applyContentRequest(c, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateWithVersion(ctx, c, userID); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, userID, events.Updated(tableContent, c, &old))
	return c, nil
}

// PublishContent публикует материал.
func (s *ContentService) PublishContent(ctx context.Context, userID, id uuid.UUID) (*models.Content, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Body) == "" {
		blocks, err := s.repo.ListBlocks(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			return nil, apperror.Validation("нельзя опубликовать пустой материал")
		}
	}

	now := time.Now().UTC()
	return s.setStatus(ctx, c, models.ContentStatusPublished, &now)
}

// ArchiveContent переносит материал в архив.
func (s *ContentService) ArchiveContent(ctx context.Context, userID, id uuid.UUID) (*models.Content, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, c, models.ContentStatusArchived, nil)
}

func (s *ContentService) setStatus(ctx context.Context, c *models.Content, status string, publishedAt *time.Time) (*models.Content, error) {
	if c.Status == status {
		return c, nil
	}
	updated, err := s.repo.SetStatus(ctx, c.ID, status, publishedAt)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, c.UserID, events.Updated(tableContent, updated, c))
	return updated, nil
}

// DeleteContent удаляет материал.
func (s *ContentService) DeleteContent(ctx context.Context, userID, id uuid.UUID) error {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableContent, c))
	return nil
}

// DuplicateContent создаёт черновик-копию вместе с блоками.
func (s *ContentService) DuplicateContent(ctx context.Context, userID, id uuid.UUID) (*models.Content, error) {
	src, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	suffix, err := idgen.Generate(4)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	cp := &models.Content{
		UserID:         userID,
		Title:          src.Title + " (копия)",
		Slug:           src.Slug + "-copy-" + strings.ToLower(suffix),
		Type:           src.Type,
		Status:         models.ContentStatusDraft,
		Body:           src.Body,
		Excerpt:        src.Excerpt,
		Tags:           append(pq.StringArray{}, src.Tags...),
		SEOTitle:       src.SEOTitle,
		SEODescription: src.SEODescription,
		WordCount:      src.WordCount,
	}
	if err := s.repo.Duplicate(ctx, src.ID, cp); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, userID, events.Inserted(tableContent, cp))
	return cp, nil
}

// IncrementViews учитывает просмотр опубликованного материала.
func (s *ContentService) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	return s.repo.IncrementViews(ctx, id)
}

// ListBlocks возвращает блоки материала.
func (s *ContentService) ListBlocks(ctx context.Context, userID, contentID uuid.UUID) ([]models.ContentBlock, error) {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return nil, err
	}
	return s.repo.ListBlocks(ctx, contentID)
}

// AddBlock добавляет блок в конец материала.
func (s *ContentService) AddBlock(ctx context.Context, userID, contentID uuid.UUID, req dto.BlockRequest) (*models.ContentBlock, error) {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return nil, err
	}
	data, err := validateBlock(req)
	if err != nil {
		return nil, err
	}

	b := &models.ContentBlock{ContentID: contentID, Type: req.Type, Data: data}
	if err := s.repo.AddBlock(ctx, b); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted("content_blocks", b))
	return b, nil
}

// UpdateBlock меняет блок.
func (s *ContentService) UpdateBlock(ctx context.Context, userID, contentID, blockID uuid.UUID, req dto.BlockRequest) (*models.ContentBlock, error) {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return nil, err
	}
	data, err := validateBlock(req)
	if err != nil {
		return nil, err
	}

	b := &models.ContentBlock{ID: blockID, ContentID: contentID, Type: req.Type, Data: data}
	if err := s.repo.UpdateBlock(ctx, b); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated("content_blocks", b, nil))
	return b, nil
}

// DeleteBlock удаляет блок.
func (s *ContentService) DeleteBlock(ctx context.Context, userID, contentID, blockID uuid.UUID) error {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return err
	}
	if err := s.repo.DeleteBlock(ctx, contentID, blockID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted("content_blocks", map[string]uuid.UUID{"id": blockID, "content_id": contentID}))
	return nil
}

// ReorderBlocks задаёт новый порядок блоков.
func (s *ContentService) ReorderBlocks(ctx context.Context, userID, contentID uuid.UUID, ids []uuid.UUID) ([]models.ContentBlock, error) {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return nil, err
	}
	if hasDuplicateIDs(ids) {
		return nil, apperror.Validation("идентификаторы блоков не должны повторяться")
	}
	if err := s.repo.ReorderBlocks(ctx, contentID, ids); err != nil {
		return nil, err
	}

	blocks, err := s.repo.ListBlocks(ctx, contentID)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated("content_blocks", blocks, nil))
	return blocks, nil
}

// ListVersions возвращает историю версий.
func (s *ContentService) ListVersions(ctx context.Context, userID, contentID uuid.UUID) ([]models.ContentVersion, error) {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, contentID)
}

// RestoreVersion восстанавливает заголовок и текст версии как новую версию.
func (s *ContentService) RestoreVersion(ctx context.Context, userID, contentID uuid.UUID, version int) (*models.Content, error) {
	c, err := s.owned(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	v, err := s.repo.GetVersion(ctx, contentID, version)
	if err != nil {
		return nil, err
	}
	old := *c

	c.Title = v.Title
	c.Body = v.Body
	c.WordCount = CountWords(v.Body)
	if err := s.repo.UpdateWithVersion(ctx, c, userID); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, userID, events.Updated(tableContent, c, &old))
	return c, nil
}

func (s *ContentService) owned(ctx context.Context, userID, id uuid.UUID) (*models.Content, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperror.ErrContentNotFound
	}
	return c, nil
}

func applyContentRequest(c *models.Content, req dto.ContentRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return apperror.Validation("укажите заголовок")
	}

	contentType := req.Type
	if contentType == "" {
		contentType = "article"
		if c.Type != "" {
			contentType = c.Type
		}
	}
	if _, ok := models.ValidContentTypes[contentType]; !ok {
		return apperror.Validation("неизвестный тип материала")
	}

	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return apperror.Validation("не удалось построить slug из заголовка")
	}

	tags := make(pq.StringArray, 0, len(req.Tags))
	seen := map[string]struct{}{}
	for _, t := range req.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[t]; t == "" || dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	c.Title = title
	c.Slug = slug
	c.Type = contentType
	c.Body = req.Body
	c.Excerpt = optionalString(req.Excerpt)
	c.Tags = tags
	c.SEOTitle = optionalString(req.SEOTitle)
	c.SEODescription = optionalString(req.SEODescription)
	c.WordCount = CountWords(req.Body)
	return nil
}

func validateBlock(req dto.BlockRequest) (json.RawMessage, error) {
	if _, ok := models.ValidBlockTypes[req.Type]; !ok {
		return nil, apperror.Validation("неизвестный тип блока")
	}
	if len(req.Data) == 0 {
		return json.RawMessage(`{}`), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(req.Data, &obj); err != nil {
		return nil, apperror.Validation("данные блока должны быть JSON объектом")
	}
	return req.Data, nil
}

func hasDuplicateIDs(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
