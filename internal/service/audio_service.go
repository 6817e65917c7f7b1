package service

import (
	"bytes"
	"context"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/media"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const (
	tableAudioProjects = "audio_projects"
	tableAudioTracks   = "audio_tracks"

	defaultBPM        = 120
	defaultSampleRate = 44100
	defaultVolume     = 1.0

	// для длительности WAV хватает заголовка
	wavProbeBytes = 1 << 20
)

type AudioRepository interface {
	CreateProject(ctx context.Context, p *models.AudioProject) error
	GetProject(ctx context.Context, userID, id uuid.UUID) (*models.AudioProject, error)
	ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AudioProject, int, error)
	UpdateProject(ctx context.Context, p *models.AudioProject) error
	DeleteProject(ctx context.Context, userID, id uuid.UUID) error
	ListTracks(ctx context.Context, projectID uuid.UUID) ([]models.AudioTrack, error)
	GetTrack(ctx context.Context, projectID, id uuid.UUID) (*models.AudioTrack, error)
	AddTrack(ctx context.Context, t *models.AudioTrack) error
	UpdateTrack(ctx context.Context, t *models.AudioTrack) error
	DeleteTrack(ctx context.Context, projectID, id uuid.UUID) error
}

// OwnedFiles файлы пользователя.
type OwnedFiles interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.File, error)
	Open(ctx context.Context, userID, id uuid.UUID) (*models.File, io.ReadCloser, error)
}

type AudioService struct {
	repo   AudioRepository
	files  OwnedFiles
	events events.Emitter
}

func NewAudioService(repo AudioRepository, files OwnedFiles, emitter events.Emitter) *AudioService {
	return &AudioService{repo: repo, files: files, events: emitterOrNoop(emitter)}
}

func (s *AudioService) CreateProject(ctx context.Context, userID uuid.UUID, req dto.AudioProjectRequest) (*models.AudioProject, error) {
	p := &models.AudioProject{UserID: userID, BPM: defaultBPM, SampleRate: defaultSampleRate}
	if err := applyProjectRequest(p, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableAudioProjects, p))
	return p, nil
}

// GetProject возвращает проект вместе с дорожками.
func (s *AudioService) GetProject(ctx context.Context, userID, id uuid.UUID) (*models.AudioProject, error) {
	p, err := s.repo.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	tracks, err := s.repo.ListTracks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Tracks = tracks
	return p, nil
}

func (s *AudioService) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AudioProject, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListProjects(ctx, userID, limit, offset)
}

func (s *AudioService) UpdateProject(ctx context.Context, userID, id uuid.UUID, req dto.AudioProjectRequest) (*models.AudioProject, error) {
	p, err := s.repo.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *p
	if err := applyProjectRequest(p, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableAudioProjects, p, &old))
	return p, nil
}

func (s *AudioService) DeleteProject(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.DeleteProject(ctx, userID, id); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableAudioProjects, map[string]uuid.UUID{"id": id}))
	return nil
}

// AddTrack добавляет дорожку в конец проекта. WAV-дорожка, выходящая за
// конец проекта, удлиняет его.
func (s *AudioService) AddTrack(ctx context.Context, userID, projectID uuid.UUID, req dto.AudioTrackRequest) (*models.AudioTrack, error) {
	p, err := s.repo.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return nil, apperror.Validation("название дорожки обязательно")
	}

	t := &models.AudioTrack{ProjectID: projectID, Volume: defaultVolume}
	if err := s.applyTrackRequest(ctx, userID, t, req); err != nil {
		return nil, err
	}
	if err := s.repo.AddTrack(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableAudioTracks, t))
	s.fitDuration(ctx, userID, p, t)
	return t, nil
}

func (s *AudioService) UpdateTrack(ctx context.Context, userID, projectID, trackID uuid.UUID, req dto.AudioTrackRequest) (*models.AudioTrack, error) {
	p, err := s.repo.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetTrack(ctx, projectID, trackID)
	if err != nil {
		return nil, err
	}
	old := *t
	if err := s.applyTrackRequest(ctx, userID, t, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTrack(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableAudioTracks, t, &old))
	if req.FileID != nil || req.StartOffset != nil {
		s.fitDuration(ctx, userID, p, t)
	}
	return t, nil
}

func (s *AudioService) DeleteTrack(ctx context.Context, userID, projectID, trackID uuid.UUID) error {
	if _, err := s.repo.GetProject(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.repo.DeleteTrack(ctx, projectID, trackID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableAudioTracks, map[string]uuid.UUID{"id": trackID, "project_id": projectID}))
	return nil
}

// Mixdown собирает дорожки для сведения. Если хотя бы одна дорожка в solo,
// звучат только solo-дорожки, иначе все незаглушённые.
func (s *AudioService) Mixdown(ctx context.Context, userID, projectID uuid.UUID) (*models.MixdownPlan, error) {
	p, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return BuildMixdown(p), nil
}

// fitDuration удлиняет проект до конца WAV-дорожки. Ошибки разбора файла
// не мешают сохранению дорожки.
func (s *AudioService) fitDuration(ctx context.Context, userID uuid.UUID, p *models.AudioProject, t *models.AudioTrack) {
	if t.FileID == nil {
		return
	}
	length, ok := s.wavLength(ctx, userID, *t.FileID)
	if !ok {
		return
	}
	end := math.Round((t.StartOffset+length)*1000) / 1000
	if end <= p.DurationSeconds {
		return
	}

	old := *p
	p.DurationSeconds = end
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		logger.WithComponent("audio").WithError(err).WithField("project_id", p.ID).Warn("duration update failed")
		return
	}
	s.events.Emit(ctx, userID, events.Updated(tableAudioProjects, p, &old))
}

func (s *AudioService) wavLength(ctx context.Context, userID, fileID uuid.UUID) (float64, bool) {
	log := logger.WithComponent("audio").WithField("file_id", fileID)
	f, rc, err := s.files.Open(ctx, userID, fileID)
	if err != nil {
		log.WithError(err).Debug("open failed")
		return 0, false
	}
	defer rc.Close()
	if !media.IsWAV(f.MimeType) {
		return 0, false
	}

	head, err := io.ReadAll(io.LimitReader(rc, wavProbeBytes))
	if err != nil {
		log.WithError(err).Warn("read failed")
		return 0, false
	}
	info, err := media.ProbeWAV(bytes.NewReader(head))
	if err != nil {
		log.WithError(err).Debug("probe failed")
		return 0, false
	}
	return info.Duration.Seconds(), true
}

func BuildMixdown(p *models.AudioProject) *models.MixdownPlan {
	plan := &models.MixdownPlan{
		ProjectID:  p.ID,
		BPM:        p.BPM,
		SampleRate: p.SampleRate,
		Tracks:     []models.AudioTrack{},
	}
	for _, t := range p.Tracks {
		if t.Solo {
			plan.SoloActive = true
			break
		}
	}
	for _, t := range p.Tracks {
		audible := !t.Muted
		if plan.SoloActive {
			audible = t.Solo
		}
		if !audible || t.FileID == nil {
			plan.Skipped++
			continue
		}
		plan.Tracks = append(plan.Tracks, t)
	}
	return plan
}

func applyProjectRequest(p *models.AudioProject, req dto.AudioProjectRequest) error {
	name := strings.TrimSpace(req.Name)
	if err := requireText(name, "название проекта обязательно"); err != nil {
		return err
	}
	p.Name = name
	if req.BPM != nil {
		if *req.BPM < 20 || *req.BPM > 300 {
			return apperror.Validation("темп должен быть от 20 до 300 BPM")
		}
		p.BPM = *req.BPM
	}
	if req.SampleRate != nil {
		p.SampleRate = *req.SampleRate
	}
	if req.DurationSeconds != nil {
		if *req.DurationSeconds < 0 {
			return apperror.Validation("длительность не может быть отрицательной")
		}
		p.DurationSeconds = *req.DurationSeconds
	}
	return nil
}

func (s *AudioService) applyTrackRequest(ctx context.Context, userID uuid.UUID, t *models.AudioTrack, req dto.AudioTrackRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := requireText(name, "название дорожки обязательно"); err != nil {
			return err
		}
		t.Name = name
	}
	if req.FileID != nil {
		f, err := s.files.Get(ctx, userID, *req.FileID)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(f.MimeType, "audio/") {
			return apperror.Validation("файл дорожки должен быть аудио")
		}
		t.FileID = req.FileID
	}
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 2 {
			return apperror.Validation("громкость должна быть от 0 до 2")
		}
		t.Volume = *req.Volume
	}
	if req.Pan != nil {
		if *req.Pan < -1 || *req.Pan > 1 {
			return apperror.Validation("панорама должна быть от -1 до 1")
		}
		t.Pan = *req.Pan
	}
	if req.Muted != nil {
		t.Muted = *req.Muted
	}
	if req.Solo != nil {
		t.Solo = *req.Solo
	}
	if req.StartOffset != nil {
		if *req.StartOffset < 0 {
			return apperror.Validation("смещение не может быть отрицательным")
		}
		t.StartOffset = *req.StartOffset
	}
	return nil
}
