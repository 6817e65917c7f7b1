package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/cache"
	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/seo"
)

const (
	tableSEOAnalyses = "seo_analyses"
	seoCacheTTL      = 24 * time.Hour
)

type SEORepository interface {
	Create(ctx context.Context, a *models.SEOAnalysis) error
	ListByContent(ctx context.Context, contentID uuid.UUID, limit, offset int) ([]models.SEOAnalysis, int, error)
}

// ContentSource отдаёт материалы владельца.
type ContentSource interface {
	GetContent(ctx context.Context, userID, id uuid.UUID) (*models.Content, error)
}

// SEOAnalysisResult сохранённый анализ вместе с отчётом.
type SEOAnalysisResult struct {
	Analysis *models.SEOAnalysis `json:"analysis"`
	Report   *seo.Report         `json:"report"`
	Cached   bool                `json:"cached"`
}

type SEOService struct {
	repo     SEORepository
	contents ContentSource
	cache    cache.Cache
	events   events.Emitter
}

// NewSEOService создаёт сервис; кэш может быть nil.
func NewSEOService(repo SEORepository, contents ContentSource, c cache.Cache, emitter events.Emitter) *SEOService {
	return &SEOService{repo: repo, contents: contents, cache: c, events: emitterOrNoop(emitter)}
}

// Analyze оценивает произвольный текст без сохранения.
func (s *SEOService) Analyze(req dto.SEOAnalyzeRequest) (*seo.Report, error) {
	if err := requireText(req.Body, "текст обязателен"); err != nil {
		return nil, err
	}
	return seo.Analyze(seo.Input{
		Title:           req.Title,
		MetaDescription: req.MetaDescription,
		Body:            req.Body,
		Keyword:         req.Keyword,
	}), nil
}

// AnalyzeContent анализирует материал пользователя и сохраняет результат.
// Повторный анализ неизменённого текста с тем же ключом берётся из кэша.
func (s *SEOService) AnalyzeContent(ctx context.Context, userID, contentID uuid.UUID, keyword string) (*SEOAnalysisResult, error) {
	content, err := s.contents.GetContent(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}

	in := seoInput(content, keyword)
	hash := contentHash(in)
	key := cache.SEOAnalysisKey(hash, in.Keyword)
	log := logger.WithComponent("seo").WithField("content_id", contentID)

	if s.cache != nil {
		var cached SEOAnalysisResult
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("cache read failed")
		} else if found && cached.Analysis != nil && cached.Analysis.UserID == userID {
			cached.Cached = true
			return &cached, nil
		}
	}

	report := seo.Analyze(in)
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	analysis := &models.SEOAnalysis{
		ContentID:   contentID,
		UserID:      userID,
		Keyword:     in.Keyword,
		Score:       report.Score,
		Grade:       report.Grade,
		Readability: report.Readability,
		ContentHash: hash,
		Report:      raw,
	}
	if err := s.repo.Create(ctx, analysis); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableSEOAnalyses, analysis))

	result := &SEOAnalysisResult{Analysis: analysis, Report: report}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, seoCacheTTL); err != nil {
			log.WithError(err).Warn("cache write failed")
		}
	}
	return result, nil
}

// ListAnalyses возвращает историю анализов материала.
func (s *SEOService) ListAnalyses(ctx context.Context, userID, contentID uuid.UUID, limit, offset int) ([]models.SEOAnalysis, int, error) {
	if _, err := s.contents.GetContent(ctx, userID, contentID); err != nil {
		return nil, 0, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListByContent(ctx, contentID, limit, offset)
}

func seoInput(c *models.Content, keyword string) seo.Input {
	in := seo.Input{Title: c.Title, Body: c.Body, Keyword: strings.TrimSpace(keyword)}
	if c.SEOTitle != nil && *c.SEOTitle != "" {
		in.Title = *c.SEOTitle
	}
	if c.SEODescription != nil {
		in.MetaDescription = *c.SEODescription
	} else if c.Excerpt != nil {
		in.MetaDescription = *c.Excerpt
	}
	return in
}

func contentHash(in seo.Input) string {
	h := sha256.New()
	for _, part := range []string{in.Title, in.MetaDescription, in.Body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
