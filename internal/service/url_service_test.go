package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/cache"
	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

type mockURLRepo struct {
	mock.Mock
}

func (m *mockURLRepo) Create(ctx context.Context, u *models.ShortURL) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		u.ID = uuid.New()
		u.IsActive = true
	}
	return args.Error(0)
}

func (m *mockURLRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ShortURL, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShortURL), args.Error(1)
}

func (m *mockURLRepo) GetByCode(ctx context.Context, code string) (*models.ShortURL, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShortURL), args.Error(1)
}

func (m *mockURLRepo) List(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]models.ShortURL, int, error) {
	args := m.Called(ctx, userID, search, limit, offset)
	return args.Get(0).([]models.ShortURL), args.Int(1), args.Error(2)
}

func (m *mockURLRepo) Update(ctx context.Context, u *models.ShortURL) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockURLRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.ShortURL, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShortURL), args.Error(1)
}

func (m *mockURLRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockURLRepo) RecordClick(ctx context.Context, click *models.URLClick) (int, error) {
	args := m.Called(ctx, click)
	return args.Int(0), args.Error(1)
}

func (m *mockURLRepo) AddRedirect(ctx context.Context, rd *models.URLRedirect) error {
	return m.Called(ctx, rd).Error(0)
}

func (m *mockURLRepo) ListRedirects(ctx context.Context, urlID uuid.UUID) ([]models.URLRedirect, error) {
	args := m.Called(ctx, urlID)
	return args.Get(0).([]models.URLRedirect), args.Error(1)
}

func (m *mockURLRepo) DeleteRedirect(ctx context.Context, urlID, id uuid.UUID) error {
	return m.Called(ctx, urlID, id).Error(0)
}

func (m *mockURLRepo) ClickStats(ctx context.Context, urlID uuid.UUID, since time.Time) (*models.ClickStats, error) {
	args := m.Called(ctx, urlID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClickStats), args.Error(1)
}

type countingClicks struct{ n int }

func (c *countingClicks) URLClick() { c.n++ }

func newTestURLService(t *testing.T, repo *mockURLRepo, clicks ClickCounter) *URLService {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewURLService(repo, cache.NewMemory(ctx), time.Minute, "https://kazi.link/", clicks, nil)
}

func TestURLService_CreateShortURL_RandomCode(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.ShortURL")).Return(nil)

	u, err := svc.CreateShortURL(ctx, uuid.New(), dto.ShortURLRequest{OriginalURL: "https://example.com/page"})

	require.NoError(t, err)
	assert.Len(t, u.ShortCode, 7)
	assert.Equal(t, "https://kazi.link/r/"+u.ShortCode, u.ShortLink)
}

func TestURLService_CreateShortURL_RetriesOnCollision(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.ShortURL")).Return(apperror.Conflict("занят")).Once()
	repo.On("Create", ctx, mock.AnythingOfType("*models.ShortURL")).Return(nil).Once()

	_, err := svc.CreateShortURL(ctx, uuid.New(), dto.ShortURLRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Create", 2)
}

func TestURLService_CreateShortURL_AliasConflict(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.ShortURL")).Return(apperror.Conflict("занят"))

	_, err := svc.CreateShortURL(ctx, uuid.New(), dto.ShortURLRequest{OriginalURL: "https://example.com", Alias: "promo"})
	assert.True(t, apperror.IsConflict(err))
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestURLService_CreateShortURL_RejectsScheme(t *testing.T) {
	svc := newTestURLService(t, new(mockURLRepo), nil)

	_, err := svc.CreateShortURL(context.Background(), uuid.New(), dto.ShortURLRequest{OriginalURL: "ftp://example.com/file"})
	assert.True(t, apperror.IsValidation(err))
}

func TestURLService_CreateShortURL_BadAlias(t *testing.T) {
	svc := newTestURLService(t, new(mockURLRepo), nil)

	_, err := svc.CreateShortURL(context.Background(), uuid.New(), dto.ShortURLRequest{OriginalURL: "https://example.com", Alias: "a!"})
	assert.True(t, apperror.IsValidation(err))
}

func TestURLService_Resolve_UsesRedirectAndCache(t *testing.T) {
	repo := new(mockURLRepo)
	clicks := &countingClicks{}
	svc := newTestURLService(t, repo, clicks)
	ctx := context.Background()
	u := &models.ShortURL{ID: uuid.New(), UserID: uuid.New(), ShortCode: "promo", OriginalURL: "https://example.com", IsActive: true}

	repo.On("GetByCode", ctx, "promo").Return(u, nil).Once()
	repo.On("ListRedirects", ctx, u.ID).Return([]models.URLRedirect{
		{ConditionType: "device", ConditionValue: "mobile", TargetURL: "https://m.example.com", Priority: 10},
	}, nil).Once()
	repo.On("RecordClick", ctx, mock.MatchedBy(func(c *models.URLClick) bool {
		return c.Device == "mobile" && c.IPHash != nil && *c.IPHash != "10.0.0.1"
	})).Return(1, nil)

	mobileUA := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"
	target, err := svc.Resolve(ctx, "promo", models.ClickMeta{UserAgent: mobileUA, IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "https://m.example.com", target)

	target, err = svc.Resolve(ctx, "promo", models.ClickMeta{UserAgent: mobileUA, IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "https://m.example.com", target)
	assert.Equal(t, 2, clicks.n)
	repo.AssertNumberOfCalls(t, "GetByCode", 1)
}

func TestURLService_Resolve_Expired(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	u := &models.ShortURL{ID: uuid.New(), ShortCode: "old", OriginalURL: "https://example.com", IsActive: true, ExpiresAt: &past}

	repo.On("GetByCode", ctx, "old").Return(u, nil)
	repo.On("ListRedirects", ctx, u.ID).Return([]models.URLRedirect{}, nil)

	_, err := svc.Resolve(ctx, "old", models.ClickMeta{})
	assert.ErrorIs(t, err, apperror.ErrURLGone)
	repo.AssertNotCalled(t, "RecordClick", mock.Anything, mock.Anything)
}

func TestURLService_Resolve_Inactive(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()
	u := &models.ShortURL{ID: uuid.New(), ShortCode: "off", OriginalURL: "https://example.com"}

	repo.On("GetByCode", ctx, "off").Return(u, nil)
	repo.On("ListRedirects", ctx, u.ID).Return([]models.URLRedirect{}, nil)

	_, err := svc.Resolve(ctx, "off", models.ClickMeta{})
	assert.ErrorIs(t, err, apperror.ErrURLGone)
	repo.AssertNotCalled(t, "RecordClick", mock.Anything, mock.Anything)
}

func TestURLService_Resolve_ClickLimitReached(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()
	u := &models.ShortURL{ID: uuid.New(), ShortCode: "lim", OriginalURL: "https://example.com", IsActive: true}

	repo.On("GetByCode", ctx, "lim").Return(u, nil)
	repo.On("ListRedirects", ctx, u.ID).Return([]models.URLRedirect{}, nil)
	repo.On("RecordClick", ctx, mock.Anything).Return(0, apperror.ErrURLGone)

	_, err := svc.Resolve(ctx, "lim", models.ClickMeta{})
	assert.ErrorIs(t, err, apperror.ErrURLGone)
}

func TestDetectDevice(t *testing.T) {
	cases := map[string]string{
		"": "desktop",
		"Googlebot/2.1 (+http://www.google.com/bot.html)": "bot",
		"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)":   "tablet",
		"Mozilla/5.0 (Linux; Android 13; SM-X700)":        "tablet",
		"Mozilla/5.0 (Linux; Android 13; Pixel 7) Mobile": "mobile",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64)":       "desktop",
	}
	for ua, want := range cases {
		assert.Equal(t, want, DetectDevice(ua), ua)
	}
}

func TestMatchRedirect(t *testing.T) {
	rules := []models.URLRedirect{
		{ConditionType: "country", ConditionValue: "DE", TargetURL: "https://de.example.com", Priority: 20},
		{ConditionType: "referrer", ConditionValue: "twitter.com", TargetURL: "https://tw.example.com", Priority: 10},
		{ConditionType: "device", ConditionValue: "mobile", TargetURL: "https://m.example.com", Priority: 5},
	}

	assert.Equal(t, "https://de.example.com", MatchRedirect(rules, "mobile", "de", ""))
	assert.Equal(t, "https://tw.example.com", MatchRedirect(rules, "mobile", "", "https://twitter.com/post/1"))
	assert.Equal(t, "https://m.example.com", MatchRedirect(rules, "mobile", "FR", ""))
	assert.Empty(t, MatchRedirect(rules, "desktop", "FR", ""))
}

func TestMatchRedirect_SkipsEmptyCondition(t *testing.T) {
	rules := []models.URLRedirect{
		{ConditionType: "referrer", ConditionValue: "", TargetURL: "https://any.example.com", Priority: 20},
		{ConditionType: "referrer", ConditionValue: " ", TargetURL: "https://blank.example.com", Priority: 15},
		{ConditionType: "referrer", ConditionValue: "ycombinator.com", TargetURL: "https://hn.example.com", Priority: 10},
	}

	assert.Equal(t, "https://hn.example.com", MatchRedirect(rules, "desktop", "", "https://news.ycombinator.com/item"))
	assert.Empty(t, MatchRedirect(rules, "desktop", "", "https://twitter.com/post/1"))
}

func TestURLService_AddRedirect_EmptyCondition(t *testing.T) {
	repo := new(mockURLRepo)
	svc := newTestURLService(t, repo, nil)
	ctx := context.Background()
	userID := uuid.New()
	u := &models.ShortURL{ID: uuid.New(), UserID: userID, ShortCode: "abc", IsActive: true}

	repo.On("GetByID", ctx, u.ID).Return(u, nil)

	_, err := svc.AddRedirect(ctx, userID, u.ID, dto.RedirectRequest{
		ConditionType: "referrer", ConditionValue: "   ", TargetURL: "https://example.com/landing",
	})
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "AddRedirect", mock.Anything, mock.Anything)
}

func TestHashIP(t *testing.T) {
	assert.Empty(t, HashIP(""))
	assert.Len(t, HashIP("127.0.0.1"), 64)
	assert.Equal(t, HashIP("127.0.0.1"), HashIP("127.0.0.1"))
}
