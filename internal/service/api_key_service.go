package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/idgen"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const tableAPIKeys = "api_keys"

// scope вида "*", "read", "write" или "<ресурс>:read|write".
var scopePattern = regexp.MustCompile(`^(\*|read|write|[a-z_]+:(read|write))$`)

type APIKeyRepository interface {
	Create(ctx context.Context, k *models.APIKey) error
	GetOwned(ctx context.Context, userID, id uuid.UUID) (*models.APIKey, error)
	GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	Revoke(ctx context.Context, userID, id uuid.UUID) (*models.APIKey, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

type APIKeyService struct {
	repo   APIKeyRepository
	events events.Emitter
	cost   int
	now    func() time.Time
}

func NewAPIKeyService(repo APIKeyRepository, emitter events.Emitter) *APIKeyService {
	return &APIKeyService{
		repo:   repo,
		events: emitterOrNoop(emitter),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Create выпускает ключ. Секрет возвращается только в этом ответе.
func (s *APIKeyService) Create(ctx context.Context, userID uuid.UUID, req dto.APIKeyRequest) (*models.IssuedAPIKey, error) {
	name := strings.TrimSpace(req.Name)
	if err := requireText(name, "название ключа обязательно"); err != nil {
		return nil, err
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if req.ExpiresInDays != nil {
		t := s.now().UTC().AddDate(0, 0, *req.ExpiresInDays)
		expiresAt = &t
	}
	return s.issue(ctx, userID, name, scopes, expiresAt)
}

func (s *APIKeyService) issue(ctx context.Context, userID uuid.UUID, name string, scopes []string, expiresAt *time.Time) (*models.IssuedAPIKey, error) {
	key, prefix, secret, err := idgen.APIKey()
	if err != nil {
		return nil, apperror.Internal(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	k := &models.APIKey{
		UserID:    userID,
		Name:      name,
		Prefix:    prefix,
		KeyHash:   string(hash),
		Scopes:    scopes,
		ExpiresAt: expiresAt,
	}
	if err := s.repo.Create(ctx, k); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableAPIKeys, k))
	return &models.IssuedAPIKey{APIKey: *k, Key: key}, nil
}

// List возвращает ключи пользователя без секретов.
func (s *APIKeyService) List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	return s.repo.List(ctx, userID)
}

// Revoke отзывает ключ.
func (s *APIKeyService) Revoke(ctx context.Context, userID, id uuid.UUID) (*models.APIKey, error) {
	k, err := s.repo.Revoke(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableAPIKeys, k, nil))
	return k, nil
}

// Rotate выпускает новый ключ с тем же названием, правами и сроком и
// отзывает старый.
func (s *APIKeyService) Rotate(ctx context.Context, userID, id uuid.UUID) (*models.IssuedAPIKey, error) {
	old, err := s.repo.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !old.Usable(s.now()) {
		return nil, apperror.Conflict("ключ отозван или истёк")
	}

	issued, err := s.issue(ctx, userID, old.Name, old.Scopes, old.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if _, err := s.Revoke(ctx, userID, id); err != nil {
		return nil, err
	}
	return issued, nil
}

// Authenticate проверяет ключ и отмечает его использование.
// Любая ошибка проверки возвращается как ErrInvalidKey.
func (s *APIKeyService) Authenticate(ctx context.Context, key string) (*models.APIKey, error) {
	prefix, secret, ok := idgen.ParseAPIKey(strings.TrimSpace(key))
	if !ok {
		return nil, apperror.ErrInvalidKey
	}

	k, err := s.repo.GetByPrefix(ctx, prefix)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrInvalidKey
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(secret)) != nil {
		return nil, apperror.ErrInvalidKey
	}
	if !k.Usable(s.now()) {
		return nil, apperror.ErrInvalidKey
	}

	if err := s.repo.Touch(ctx, k.ID); err != nil {
		logger.WithComponent("api_keys").WithError(err).WithField("key_id", k.ID).Warn("touch failed")
	} else {
		now := s.now().UTC()
		k.LastUsedAt = &now
	}
	return k, nil
}

func normalizeScopes(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		scope := strings.ToLower(strings.TrimSpace(raw))
		if scope == "" || seen[scope] {
			continue
		}
		if !scopePattern.MatchString(scope) {
			return nil, apperror.Validation("неверное право доступа: " + raw)
		}
		seen[scope] = true
		out = append(out, scope)
	}
	return out, nil
}
