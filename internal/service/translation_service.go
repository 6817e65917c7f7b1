package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const (
	tableTranslationKeys = "translation_keys"
	tableTranslations    = "translations"

	defaultNamespace = "common"
	maxImportEntries = 5000
)

var (
	localePattern  = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)
	keyPattern     = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,200}$`)
	namespaceChars = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
)

type TranslationRepository interface {
	CreateKey(ctx context.Context, k *models.TranslationKey) error
	GetKey(ctx context.Context, id uuid.UUID) (*models.TranslationKey, error)
	ListKeys(ctx context.Context, userID uuid.UUID, namespace, search string, limit, offset int) ([]models.TranslationKey, int, error)
	UpdateKey(ctx context.Context, k *models.TranslationKey) error
	DeleteKey(ctx context.Context, id, userID uuid.UUID) error
	UpsertTranslation(ctx context.Context, t *models.Translation) error
	GetTranslation(ctx context.Context, id uuid.UUID) (*models.Translation, error)
	ListTranslations(ctx context.Context, userID uuid.UUID, locale string) ([]models.Translation, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Translation, error)
	BulkImport(ctx context.Context, userID uuid.UUID, namespace, locale string, entries map[string]string) (int, error)
	Export(ctx context.Context, userID uuid.UUID, locale string) ([]models.ExportRow, error)
	Progress(ctx context.Context, userID uuid.UUID) ([]models.LocaleProgress, int, error)
}

type TranslationService struct {
	repo   TranslationRepository
	events events.Emitter
}

func NewTranslationService(repo TranslationRepository, emitter events.Emitter) *TranslationService {
	return &TranslationService{repo: repo, events: emitterOrNoop(emitter)}
}

func (s *TranslationService) CreateKey(ctx context.Context, userID uuid.UUID, req dto.TranslationKeyRequest) (*models.TranslationKey, error) {
	k := &models.TranslationKey{UserID: userID}
	if err := applyKeyRequest(k, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateKey(ctx, k); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableTranslationKeys, k))
	return k, nil
}

func (s *TranslationService) ListKeys(ctx context.Context, userID uuid.UUID, namespace, search string, limit, offset int) ([]models.TranslationKey, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListKeys(ctx, userID, strings.TrimSpace(namespace), strings.TrimSpace(search), limit, offset)
}

func (s *TranslationService) UpdateKey(ctx context.Context, userID, id uuid.UUID, req dto.TranslationKeyRequest) (*models.TranslationKey, error) {
	k, err := s.ownedKey(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *k
	if err := applyKeyRequest(k, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateKey(ctx, k); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTranslationKeys, k, &old))
	return k, nil
}

func (s *TranslationService) DeleteKey(ctx context.Context, userID, id uuid.UUID) error {
	k, err := s.ownedKey(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteKey(ctx, id, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableTranslationKeys, k))
	return nil
}

// UpsertTranslation записывает значение ключа для локали. Новое значение
// без явного статуса снова становится черновиком.
func (s *TranslationService) UpsertTranslation(ctx context.Context, userID, keyID uuid.UUID, req dto.TranslationRequest) (*models.Translation, error) {
	if _, err := s.ownedKey(ctx, userID, keyID); err != nil {
		return nil, err
	}
	if !localePattern.MatchString(req.Locale) {
		return nil, apperror.Validation("неверный код локали")
	}
	if err := requireText(req.Value, "значение перевода обязательно"); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = "draft"
	}
	if _, ok := models.ValidTranslationStatuses[status]; !ok {
		return nil, apperror.Validation("недопустимый статус перевода")
	}

	t := &models.Translation{KeyID: keyID, Locale: req.Locale, Value: req.Value, Status: status}
	if err := s.repo.UpsertTranslation(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTranslations, t, nil))
	return t, nil
}

func (s *TranslationService) ListTranslations(ctx context.Context, userID uuid.UUID, locale string) ([]models.Translation, error) {
	if !localePattern.MatchString(locale) {
		return nil, apperror.Validation("неверный код локали")
	}
	return s.repo.ListTranslations(ctx, userID, locale)
}

// ApproveTranslation отмечает перевод как утверждённый.
func (s *TranslationService) ApproveTranslation(ctx context.Context, userID, id uuid.UUID) (*models.Translation, error) {
	t, err := s.repo.GetTranslation(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedKey(ctx, userID, t.KeyID); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrTranslationNotFound
		}
		return nil, err
	}
	if t.Status == "approved" {
		return t, nil
	}

	old := *t
	updated, err := s.repo.SetStatus(ctx, id, "approved")
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTranslations, updated, &old))
	return updated, nil
}

// BulkImport создаёт недостающие ключи и перезаписывает значения локали.
func (s *TranslationService) BulkImport(ctx context.Context, userID uuid.UUID, req dto.BulkImportRequest) (int, error) {
	if !localePattern.MatchString(req.Locale) {
		return 0, apperror.Validation("неверный код локали")
	}
	namespace, err := normalizeNamespace(req.Namespace)
	if err != nil {
		return 0, err
	}
	if len(req.Entries) == 0 {
		return 0, apperror.Validation("нет записей для импорта")
	}
	if len(req.Entries) > maxImportEntries {
		return 0, apperror.Newf(apperror.ErrCodeValidation, "за раз можно импортировать не более %d записей", maxImportEntries)
	}

	entries := make(map[string]string, len(req.Entries))
	for key, value := range req.Entries {
		key = strings.TrimSpace(key)
		if !keyPattern.MatchString(key) {
			return 0, apperror.Newf(apperror.ErrCodeValidation, "недопустимый ключ %q", key)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		entries[key] = value
	}

	n, err := s.repo.BulkImport(ctx, userID, namespace, req.Locale, entries)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.events.Emit(ctx, userID, events.Updated(tableTranslations,
			map[string]any{"locale": req.Locale, "namespace": namespace, "imported": n}, nil))
	}
	return n, nil
}

// ExportLocale возвращает плоскую карту namespace.key → значение. Ключи без
// перевода получают исходный текст.
func (s *TranslationService) ExportLocale(ctx context.Context, userID uuid.UUID, locale string) (map[string]string, error) {
	if !localePattern.MatchString(locale) {
		return nil, apperror.Validation("неверный код локали")
	}
	rows, err := s.repo.Export(ctx, userID, locale)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		value := row.SourceText
		if row.Value != nil && *row.Value != "" {
			value = *row.Value
		}
		out[row.Namespace+"."+row.Key] = value
	}
	return out, nil
}

// Progress считает процент переведённых ключей для каждой локали.
func (s *TranslationService) Progress(ctx context.Context, userID uuid.UUID) ([]models.LocaleProgress, error) {
	items, total, err := s.repo.Progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].TotalKeys = total
		if total > 0 {
			items[i].Percent = round2(float64(items[i].Translated) / float64(total) * 100)
		}
	}
	return items, nil
}

func (s *TranslationService) ownedKey(ctx context.Context, userID, id uuid.UUID) (*models.TranslationKey, error) {
	k, err := s.repo.GetKey(ctx, id)
	if err != nil {
		return nil, err
	}
	if k.UserID != userID {
		return nil, apperror.ErrKeyNotFound
	}
	return k, nil
}

func applyKeyRequest(k *models.TranslationKey, req dto.TranslationKeyRequest) error {
	namespace, err := normalizeNamespace(req.Namespace)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(req.Key)
	if !keyPattern.MatchString(key) {
		return apperror.Validation("ключ может содержать только латиницу, цифры, точку, дефис и подчёркивание")
	}
	if err := requireText(req.SourceText, "исходный текст обязателен"); err != nil {
		return err
	}
	k.Namespace = namespace
	k.Key = key
	k.SourceText = req.SourceText
	k.Context = optionalString(req.Context)
	return nil
}

func normalizeNamespace(ns string) (string, error) {
	ns = strings.ToLower(strings.TrimSpace(ns))
	if ns == "" {
		return defaultNamespace, nil
	}
	if !namespaceChars.MatchString(ns) {
		return "", apperror.Validation("недопустимое пространство имён")
	}
	return ns, nil
}
