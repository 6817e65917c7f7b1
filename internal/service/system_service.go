package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const maxSettingKeyLength = 100

type SystemRepository interface {
	ListSettings(ctx context.Context, userID uuid.UUID) ([]models.SystemSetting, error)
	GetSetting(ctx context.Context, userID uuid.UUID, key string) (*models.SystemSetting, error)
	UpsertSetting(ctx context.Context, s *models.SystemSetting) error
	DeleteSetting(ctx context.Context, userID uuid.UUID, key string) error
	WriteLog(ctx context.Context, l *models.SystemLog) error
	ListLogs(ctx context.Context, userID uuid.UUID, level, source string, limit int) ([]models.SystemLog, error)
	PurgeLogs(ctx context.Context, userID uuid.UUID, before time.Time) (int64, error)
	CreateAlert(ctx context.Context, a *models.SystemAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*models.SystemAlert, error)
	ListAlerts(ctx context.Context, userID uuid.UUID, status string) ([]models.SystemAlert, error)
	Acknowledge(ctx context.Context, id uuid.UUID) (*models.SystemAlert, error)
	Resolve(ctx context.Context, id uuid.UUID) (*models.SystemAlert, error)
	OpenAlertCounts(ctx context.Context, userID uuid.UUID) (map[string]int, error)
}

// Pinger проверяет доступность базы.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// ConnectionCounter сообщает число realtime подключений.
type ConnectionCounter interface {
	ConnectionCount() int
}

type SystemService struct {
	repo      SystemRepository
	db        Pinger
	realtime  ConnectionCounter
	events    events.Emitter
	startedAt time.Time
}

func NewSystemService(repo SystemRepository, db Pinger, realtime ConnectionCounter, emitter events.Emitter) *SystemService {
	return &SystemService{
		repo:      repo,
		db:        db,
		realtime:  realtime,
		events:    emitterOrNoop(emitter),
		startedAt: time.Now(),
	}
}

func (s *SystemService) GetSettings(ctx context.Context, userID uuid.UUID) ([]models.SystemSetting, error) {
	return s.repo.ListSettings(ctx, userID)
}

func (s *SystemService) GetSetting(ctx context.Context, userID uuid.UUID, key string) (*models.SystemSetting, error) {
	return s.repo.GetSetting(ctx, userID, strings.TrimSpace(key))
}

// UpsertSetting сохраняет значение настройки.
func (s *SystemService) UpsertSetting(ctx context.Context, userID uuid.UUID, key string, value json.RawMessage) (*models.SystemSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxSettingKeyLength {
		return nil, apperror.Validation("неверный ключ настройки")
	}
	if !json.Valid(value) {
		return nil, apperror.Validation("значение должно быть корректным JSON")
	}

	setting := &models.SystemSetting{UserID: userID, Key: key, Value: value}
	if err := s.repo.UpsertSetting(ctx, setting); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated("system_settings", setting, nil))
	return setting, nil
}

func (s *SystemService) DeleteSetting(ctx context.Context, userID uuid.UUID, key string) error {
	if err := s.repo.DeleteSetting(ctx, userID, strings.TrimSpace(key)); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted("system_settings", map[string]string{"key": key}))
	return nil
}

// WriteLog сохраняет запись журнала и дублирует её в логгер приложения.
func (s *SystemService) WriteLog(ctx context.Context, userID uuid.UUID, req dto.LogRequest) (*models.SystemLog, error) {
	level := strings.ToLower(req.Level)
	if _, ok := models.ValidLogLevels[level]; !ok {
		return nil, apperror.Validation("неизвестный уровень журнала")
	}
	if err := requireText(req.Message, "укажите сообщение"); err != nil {
		return nil, err
	}
	metadata := req.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	} else if !json.Valid(metadata) {
		return nil, apperror.Validation("metadata должна быть корректным JSON")
	}

	entry := &models.SystemLog{
		UserID:   &userID,
		Level:    level,
		Source:   strings.TrimSpace(req.Source),
		Message:  strings.TrimSpace(req.Message),
		Metadata: metadata,
	}
	if err := s.repo.WriteLog(ctx, entry); err != nil {
		return nil, err
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.WithComponent("system_log").WithFields(logrus.Fields{
		"user_id": userID,
		"source":  entry.Source,
	}).Log(lvl, entry.Message)

	s.events.Emit(ctx, userID, events.Inserted("system_logs", entry))
	return entry, nil
}

func (s *SystemService) ListLogs(ctx context.Context, userID uuid.UUID, level, source string, limit int) ([]models.SystemLog, error) {
	limit, _ = normalizePage(limit, 0)
	return s.repo.ListLogs(ctx, userID, level, source, limit)
}

// PurgeLogs удаляет записи старше указанного числа дней.
func (s *SystemService) PurgeLogs(ctx context.Context, userID uuid.UUID, olderThanDays int) (int64, error) {
	if olderThanDays < 1 {
		return 0, apperror.Validation("укажите период не меньше одного дня")
	}
	before := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	return s.repo.PurgeLogs(ctx, userID, before)
}

func (s *SystemService) CreateAlert(ctx context.Context, userID uuid.UUID, req dto.AlertRequest) (*models.SystemAlert, error) {
	if _, ok := models.ValidAlertSeverities[req.Severity]; !ok {
		return nil, apperror.Validation("неизвестный уровень оповещения")
	}
	if err := requireText(req.Title, "укажите заголовок оповещения"); err != nil {
		return nil, err
	}

	alert := &models.SystemAlert{
		UserID:   userID,
		Severity: req.Severity,
		Title:    strings.TrimSpace(req.Title),
		Message:  strings.TrimSpace(req.Message),
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted("system_alerts", alert))
	return alert, nil
}

func (s *SystemService) ListAlerts(ctx context.Context, userID uuid.UUID, status string) ([]models.SystemAlert, error) {
	return s.repo.ListAlerts(ctx, userID, status)
}

// AcknowledgeAlert подтверждает открытое оповещение.
func (s *SystemService) AcknowledgeAlert(ctx context.Context, userID, id uuid.UUID) (*models.SystemAlert, error) {
	old, err := s.ownedAlert(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if old.Status != models.AlertStatusOpen {
		return nil, apperror.Conflict("подтвердить можно только открытое оповещение")
	}
	alert, err := s.repo.Acknowledge(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated("system_alerts", alert, old))
	return alert, nil
}

// ResolveAlert закрывает оповещение.
func (s *SystemService) ResolveAlert(ctx context.Context, userID, id uuid.UUID) (*models.SystemAlert, error) {
	old, err := s.ownedAlert(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	alert, err := s.repo.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated("system_alerts", alert, old))
	return alert, nil
}

// SystemStatus собирает состояние базы, оповещений и realtime.
func (s *SystemService) SystemStatus(ctx context.Context, userID uuid.UUID) (*models.SystemStatus, error) {
	status := &models.SystemStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		CheckedAt:     time.Now().UTC(),
	}

	if s.db != nil {
		latency, err := s.db.Ping(ctx)
		if err != nil {
			logger.WithComponent("system").WithError(err).Warn("database ping failed")
			status.Status = "degraded"
		}
		status.DatabaseLatencyMS = round2(float64(latency.Microseconds()) / 1000)
	}
	if s.realtime != nil {
		status.RealtimeConnections = s.realtime.ConnectionCount()
	}

	counts, err := s.repo.OpenAlertCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	status.OpenAlerts = counts
	if counts["critical"] > 0 && status.Status == "healthy" {
		status.Status = "warning"
	}
	return status, nil
}

func (s *SystemService) ownedAlert(ctx context.Context, userID, id uuid.UUID) (*models.SystemAlert, error) {
	a, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, apperror.ErrAlertNotFound
	}
	return a, nil
}
