package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/cache"
	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/idgen"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/validation"
)

const (
	tableURLs         = "urls"
	tableURLClicks    = "url_clicks"
	tableURLRedirects = "url_redirects"

	maxStatsDays     = 365
	codeAttempts     = 5
	defaultURLTTL    = 10 * time.Minute
	maxRedirectRules = 20
)

type URLRepository interface {
	Create(ctx context.Context, u *models.ShortURL) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ShortURL, error)
	GetByCode(ctx context.Context, code string) (*models.ShortURL, error)
	List(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]models.ShortURL, int, error)
	Update(ctx context.Context, u *models.ShortURL) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.ShortURL, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	RecordClick(ctx context.Context, click *models.URLClick) (int, error)
	AddRedirect(ctx context.Context, rd *models.URLRedirect) error
	ListRedirects(ctx context.Context, urlID uuid.UUID) ([]models.URLRedirect, error)
	DeleteRedirect(ctx context.Context, urlID, id uuid.UUID) error
	ClickStats(ctx context.Context, urlID uuid.UUID, since time.Time) (*models.ClickStats, error)
}

// ClickCounter считает переходы в метриках.
type ClickCounter interface {
	URLClick()
}

// resolvedURL то, что кэшируется по коду ссылки.
type resolvedURL struct {
	URL       models.ShortURL      `json:"url"`
	Redirects []models.URLRedirect `json:"redirects"`
}

type URLService struct {
	repo     URLRepository
	cache    cache.Cache
	cacheTTL time.Duration
	baseURL  string
	clicks   ClickCounter
	events   events.Emitter
	now      func() time.Time
}

func NewURLService(repo URLRepository, c cache.Cache, cacheTTL time.Duration, baseURL string, clicks ClickCounter, emitter events.Emitter) *URLService {
	if cacheTTL <= 0 {
		cacheTTL = defaultURLTTL
	}
	return &URLService{
		repo:     repo,
		cache:    c,
		cacheTTL: cacheTTL,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		clicks:   clicks,
		events:   emitterOrNoop(emitter),
		now:      time.Now,
	}
}

// CreateShortURL создаёт ссылку с алиасом или случайным кодом.
func (s *URLService) CreateShortURL(ctx context.Context, userID uuid.UUID, req dto.ShortURLRequest) (*models.ShortURL, error) {
	target, err := validateTargetURL(req.OriginalURL)
	if err != nil {
		return nil, err
	}
	if err := s.validateLimits(req.ExpiresAt, req.MaxClicks); err != nil {
		return nil, err
	}

	u := &models.ShortURL{
		UserID:      userID,
		OriginalURL: target,
		Title:       optionalString(req.Title),
		ExpiresAt:   req.ExpiresAt,
		MaxClicks:   req.MaxClicks,
	}

	if alias := strings.TrimSpace(req.Alias); alias != "" {
		if !idgen.ValidAlias(alias) {
			return nil, apperror.Validation("алиас: 3-32 символа, латиница, цифры, дефис и подчёркивание")
		}
		u.ShortCode = alias
		if err := s.repo.Create(ctx, u); err != nil {
			return nil, err
		}
	} else if err := s.createWithRandomCode(ctx, u); err != nil {
		return nil, err
	}

	s.decorate(u)
	s.events.Emit(ctx, userID, events.Inserted(tableURLs, u))
	return u, nil
}

// createWithRandomCode повторяет вставку при коллизии случайного кода.
func (s *URLService) createWithRandomCode(ctx context.Context, u *models.ShortURL) error {
	var lastErr error
	for i := 0; i < codeAttempts; i++ {
		code, err := idgen.ShortCode()
		if err != nil {
			return apperror.Internal(err)
		}
		u.ShortCode = code
		lastErr = s.repo.Create(ctx, u)
		if lastErr == nil || !apperror.IsConflict(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (s *URLService) GetShortURL(ctx context.Context, userID, id uuid.UUID) (*models.ShortURL, error) {
	u, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.decorate(u)
	return u, nil
}

func (s *URLService) ListShortURLs(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]models.ShortURL, int, error) {
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.repo.List(ctx, userID, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return items, total, nil
}

func (s *URLService) UpdateShortURL(ctx context.Context, userID, id uuid.UUID, req dto.ShortURLUpdateRequest) (*models.ShortURL, error) {
	u, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	target, err := validateTargetURL(req.OriginalURL)
	if err != nil {
		return nil, err
	}
	if err := s.validateLimits(req.ExpiresAt, req.MaxClicks); err != nil {
		return nil, err
	}

	old := *u
	u.OriginalURL = target
	u.Title = optionalString(req.Title)
	u.ExpiresAt = req.ExpiresAt
	u.MaxClicks = req.MaxClicks
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.invalidate(ctx, u.ShortCode)
	s.decorate(u)
	s.events.Emit(ctx, userID, events.Updated(tableURLs, u, &old))
	return u, nil
}

func (s *URLService) DeleteShortURL(ctx context.Context, userID, id uuid.UUID) error {
	u, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.invalidate(ctx, u.ShortCode)
	s.events.Emit(ctx, userID, events.Deleted(tableURLs, u))
	return nil
}

// ToggleActive включает или выключает ссылку.
func (s *URLService) ToggleActive(ctx context.Context, userID, id uuid.UUID) (*models.ShortURL, error) {
	u, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SetActive(ctx, id, !u.IsActive)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, u.ShortCode)
	s.decorate(updated)
	s.events.Emit(ctx, userID, events.Updated(tableURLs, updated, u))
	return updated, nil
}

// Resolve находит адрес перехода по коду и записывает клик.
func (s *URLService) Resolve(ctx context.Context, code string, meta models.ClickMeta) (string, error) {
	resolved, err := s.lookup(ctx, code)
	if err != nil {
		return "", err
	}
	u := resolved.URL
	if !u.IsActive {
		return "", apperror.ErrURLGone
	}
	if u.ExpiresAt != nil && !s.now().Before(*u.ExpiresAt) {
		return "", apperror.ErrURLGone
	}

	device := DetectDevice(meta.UserAgent)
	target := MatchRedirect(resolved.Redirects, device, meta.Country, meta.Referrer)
	if target == "" {
		target = u.OriginalURL
	}

	click := &models.URLClick{
		URLID:     u.ID,
		Referrer:  nonEmpty(meta.Referrer),
		UserAgent: nonEmpty(meta.UserAgent),
		IPHash:    nonEmpty(HashIP(meta.IP)),
		Device:    device,
		Country:   nonEmpty(strings.ToUpper(meta.Country)),
	}
	if _, err := s.repo.RecordClick(ctx, click); err != nil {
		if errors.Is(err, apperror.ErrURLGone) {
			s.invalidate(ctx, code)
		}
		return "", err
	}
	if s.clicks != nil {
		s.clicks.URLClick()
	}
	s.events.Emit(ctx, u.UserID, events.Inserted(tableURLClicks, click))
	return target, nil
}

func (s *URLService) lookup(ctx context.Context, code string) (*resolvedURL, error) {
	key := cache.ShortURLKey(code)
	if s.cache != nil {
		var cached resolvedURL
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.WithComponent("urls").WithError(err).Warn("cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	u, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	redirects, err := s.repo.ListRedirects(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	resolved := &resolvedURL{URL: *u, Redirects: redirects}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resolved, s.cacheTTL); err != nil {
			logger.WithComponent("urls").WithError(err).Warn("cache write failed")
		}
	}
	return resolved, nil
}

func (s *URLService) AddRedirect(ctx context.Context, userID, urlID uuid.UUID, req dto.RedirectRequest) (*models.URLRedirect, error) {
	u, err := s.owned(ctx, userID, urlID)
	if err != nil {
		return nil, err
	}
	target, err := validateTargetURL(req.TargetURL)
	if err != nil {
		return nil, err
	}
	value := strings.TrimSpace(req.ConditionValue)
	if value == "" {
		return nil, apperror.Validation("условие перенаправления не может быть пустым")
	}
	existing, err := s.repo.ListRedirects(ctx, urlID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= maxRedirectRules {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "не более %d правил на ссылку", maxRedirectRules)
	}

	switch req.ConditionType {
	case models.RedirectByDevice:
		value = strings.ToLower(value)
		if !validDevice(value) {
			return nil, apperror.Validation("устройство: desktop, mobile, tablet или bot")
		}
	case models.RedirectByCountry:
		value = strings.ToUpper(value)
		if len(value) != 2 {
			return nil, apperror.Validation("страна задаётся двухбуквенным кодом")
		}
	case models.RedirectByReferrer:
		value = strings.ToLower(value)
	default:
		return nil, apperror.Validation("недопустимое условие перенаправления")
	}

	rd := &models.URLRedirect{
		URLID:          urlID,
		ConditionType:  req.ConditionType,
		ConditionValue: value,
		TargetURL:      target,
		Priority:       req.Priority,
	}
	if err := s.repo.AddRedirect(ctx, rd); err != nil {
		return nil, err
	}
	s.invalidate(ctx, u.ShortCode)
	s.events.Emit(ctx, userID, events.Inserted(tableURLRedirects, rd))
	return rd, nil
}

func (s *URLService) ListRedirects(ctx context.Context, userID, urlID uuid.UUID) ([]models.URLRedirect, error) {
	if _, err := s.owned(ctx, userID, urlID); err != nil {
		return nil, err
	}
	return s.repo.ListRedirects(ctx, urlID)
}

func (s *URLService) DeleteRedirect(ctx context.Context, userID, urlID, id uuid.UUID) error {
	u, err := s.owned(ctx, userID, urlID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRedirect(ctx, urlID, id); err != nil {
		return err
	}
	s.invalidate(ctx, u.ShortCode)
	s.events.Emit(ctx, userID, events.Deleted(tableURLRedirects, &models.URLRedirect{ID: id, URLID: urlID}))
	return nil
}

// ClickStats статистика переходов за последние days дней.
func (s *URLService) ClickStats(ctx context.Context, userID, urlID uuid.UUID, days int) (*models.ClickStats, error) {
	if _, err := s.owned(ctx, userID, urlID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	return s.repo.ClickStats(ctx, urlID, since)
}

func (s *URLService) owned(ctx context.Context, userID, id uuid.UUID) (*models.ShortURL, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.UserID != userID {
		return nil, apperror.ErrURLNotFound
	}
	return u, nil
}

func (s *URLService) validateLimits(expiresAt *time.Time, maxClicks *int) error {
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return apperror.Validation("срок действия должен быть в будущем")
	}
	if maxClicks != nil && *maxClicks < 1 {
		return apperror.Validation("лимит переходов должен быть положительным")
	}
	return nil
}

func (s *URLService) decorate(u *models.ShortURL) {
	u.ShortLink = s.baseURL + "/r/" + u.ShortCode
}

func (s *URLService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.ShortURLKey(code)); err != nil {
		logger.WithComponent("urls").WithError(err).WithField("code", code).Warn("cache invalidate failed")
	}
}

// validateTargetURL пропускает только абсолютные http и https адреса.
func validateTargetURL(raw string) (string, error) {
	link, err := validation.NormalizeLink(raw)
	if err != nil {
		return "", apperror.Validation("допускаются только ссылки http и https")
	}
	return link, nil
}

// DetectDevice определяет тип устройства по User-Agent.
func DetectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return models.DeviceDesktop
	case containsAny(ua, "bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests"):
		return models.DeviceBot
	case containsAny(ua, "ipad", "tablet", "kindle", "silk/") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		return models.DeviceTablet
	case containsAny(ua, "mobi", "iphone", "ipod", "android", "windows phone"):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}

// MatchRedirect возвращает адрес первого подходящего правила. Правила
// должны быть отсортированы по убыванию приоритета.
func MatchRedirect(rules []models.URLRedirect, device, country, referrer string) string {
	country = strings.ToUpper(country)
	referrerHost := strings.ToLower(referrer)
	if parsed, err := url.Parse(referrer); err == nil && parsed.Host != "" {
		referrerHost = strings.ToLower(parsed.Host)
	}

	for _, rule := range rules {
		if strings.TrimSpace(rule.ConditionValue) == "" {
			continue
		}
		switch rule.ConditionType {
		case models.RedirectByDevice:
			if strings.EqualFold(rule.ConditionValue, device) {
				return rule.TargetURL
			}
		case models.RedirectByCountry:
			if country != "" && strings.EqualFold(rule.ConditionValue, country) {
				return rule.TargetURL
			}
		case models.RedirectByReferrer:
			if referrerHost != "" && strings.Contains(referrerHost, strings.ToLower(rule.ConditionValue)) {
				return rule.TargetURL
			}
		}
	}
	return ""
}

// HashIP хэширует IP адрес, чтобы не хранить его в открытом виде.
func HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

func validDevice(d string) bool {
	switch d {
	case models.DeviceDesktop, models.DeviceMobile, models.DeviceTablet, models.DeviceBot:
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
