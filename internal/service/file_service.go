package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/media"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/storage"
)

const (
	tableFiles = "files"

	defaultMimeType = "application/octet-stream"
)

// Исполняемые файлы не принимаем ни под каким именем.
var blockedMimeTypes = map[string]bool{
	"application/x-executable":                      true,
	"application/vnd.microsoft.portable-executable": true,
	"application/x-mach-binary":                     true,
	"application/x-msdownload":                      true,
}

type FileRepository interface {
	Create(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	List(ctx context.Context, userID uuid.UUID, filter models.FileFilter) ([]models.File, int, error)
	Update(ctx context.Context, f *models.File) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	DeleteTrashed(ctx context.Context, userID uuid.UUID) ([]models.File, error)
	Usage(ctx context.Context, userID uuid.UUID) ([]models.MimeGroupUsage, error)
}

// BlobStore хранилище содержимого файлов (диск или S3).
type BlobStore interface {
	Backend() string
	Save(ctx context.Context, userID uuid.UUID, originalName, contentType string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

type FileService struct {
	repo     FileRepository
	store    BlobStore
	maxBytes int64
	events   events.Emitter
	now      func() time.Time
}

func NewFileService(repo FileRepository, store BlobStore, maxUploadMB int64, emitter events.Emitter) *FileService {
	return &FileService{
		repo:     repo,
		store:    store,
		maxBytes: maxUploadMB * 1024 * 1024,
		events:   emitterOrNoop(emitter),
		now:      time.Now,
	}
}

// Upload читает содержимое с ограничением размера, определяет MIME по
// сигнатуре и сохраняет файл в хранилище.
func (s *FileService) Upload(ctx context.Context, userID uuid.UUID, name, folder string, r io.Reader) (*models.File, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	if len(data) == 0 {
		return nil, apperror.Validation("файл не может быть пустым")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "размер файла превышает лимит %d МБ", s.maxBytes/(1024*1024))
	}
	return s.save(ctx, userID, name, folder, data)
}

func (s *FileService) save(ctx context.Context, userID uuid.UUID, name, folder string, data []byte) (*models.File, error) {
	mimeType := DetectMimeType(data)
	if blockedMimeTypes[mimeType] {
		return nil, apperror.Validation("исполняемые файлы загружать нельзя")
	}
	cleanName := storage.SanitizeFilename(strings.TrimSpace(name))
	dir, err := normalizeFolder(folder)
	if err != nil {
		return nil, err
	}

	key, err := s.store.Save(ctx, userID, cleanName, mimeType, data)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	f := &models.File{
		UserID:         userID,
		Name:           cleanName,
		Folder:         dir,
		MimeType:       mimeType,
		Size:           int64(len(data)),
		StorageKey:     key,
		StorageBackend: s.store.Backend(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		// Запись не создалась, содержимое больше никому не нужно.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.WithComponent("files").WithError(delErr).WithField("key", key).Warn("orphan blob left in storage")
		}
		return nil, err
	}
	s.decorate(f)
	s.events.Emit(ctx, userID, events.Inserted(tableFiles, f))
	return f, nil
}

func (s *FileService) List(ctx context.Context, userID uuid.UUID, filter models.FileFilter) ([]models.File, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Folder != "" {
		dir, err := normalizeFolder(filter.Folder)
		if err != nil {
			return nil, 0, err
		}
		filter.Folder = dir
	}
	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return items, total, nil
}

func (s *FileService) Get(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	f, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.decorate(f)
	return f, nil
}

// Open отдаёт содержимое файла владельцу.
func (s *FileService) Open(ctx context.Context, userID, id uuid.UUID) (*models.File, io.ReadCloser, error) {
	f, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperror.ErrFileNotFound
		}
		return nil, nil, apperror.Internal(err)
	}
	return f, rc, nil
}

func (s *FileService) Rename(ctx context.Context, userID, id uuid.UUID, req dto.RenameFileRequest) (*models.File, error) {
	if err := requireText(req.Name, "имя файла обязательно"); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, func(f *models.File) error {
		f.Name = storage.SanitizeFilename(strings.TrimSpace(req.Name))
		return nil
	})
}

func (s *FileService) Move(ctx context.Context, userID, id uuid.UUID, req dto.MoveFileRequest) (*models.File, error) {
	dir, err := normalizeFolder(req.Folder)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, func(f *models.File) error {
		f.Folder = dir
		return nil
	})
}

func (s *FileService) ToggleStar(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	return s.mutate(ctx, userID, id, func(f *models.File) error {
		f.IsStarred = !f.IsStarred
		return nil
	})
}

// Trash переносит файл в корзину; повторный вызов ничего не меняет.
func (s *FileService) Trash(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	return s.mutate(ctx, userID, id, func(f *models.File) error {
		if f.IsTrashed {
			return nil
		}
		now := s.now()
		f.IsTrashed = true
		f.TrashedAt = &now
		return nil
	})
}

func (s *FileService) Restore(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	return s.mutate(ctx, userID, id, func(f *models.File) error {
		if !f.IsTrashed {
			return apperror.Conflict("файл не в корзине")
		}
		f.IsTrashed = false
		f.TrashedAt = nil
		return nil
	})
}

// DeletePermanently удаляет запись и содержимое.
func (s *FileService) DeletePermanently(ctx context.Context, userID, id uuid.UUID) error {
	f, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.removeBlob(ctx, f.StorageKey)
	s.events.Emit(ctx, userID, events.Deleted(tableFiles, f))
	return nil
}

// EmptyTrash удаляет все файлы из корзины и возвращает их количество.
func (s *FileService) EmptyTrash(ctx context.Context, userID uuid.UUID) (int, error) {
	removed, err := s.repo.DeleteTrashed(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i := range removed {
		s.removeBlob(ctx, removed[i].StorageKey)
		s.events.Emit(ctx, userID, events.Deleted(tableFiles, &removed[i]))
	}
	return len(removed), nil
}

func (s *FileService) StorageUsage(ctx context.Context, userID uuid.UUID) (*models.StorageUsage, error) {
	rows, err := s.repo.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage := &models.StorageUsage{ByGroup: make(map[string]int64, len(rows))}
	for _, row := range rows {
		group := row.Group
		if group == "" {
			group = "other"
		}
		usage.ByGroup[group] += row.Bytes
		usage.TotalBytes += row.Bytes
		usage.FileCount += row.Count
	}
	return usage, nil
}

// Watermark накладывает знак на изображение и сохраняет результат новым
// файлом рядом с исходным.
func (s *FileService) Watermark(ctx context.Context, userID, id uuid.UUID, req dto.WatermarkRequest) (*models.File, error) {
	src, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(src.MimeType, "image/") {
		return nil, apperror.Validation("водяной знак можно наложить только на изображение")
	}
	if strings.TrimSpace(req.Text) == "" && req.LogoFileID == nil {
		return nil, apperror.Validation("нужен текст или логотип")
	}

	base, err := s.decodeImage(ctx, src)
	if err != nil {
		return nil, err
	}
	pos, err := media.ParsePosition(req.Position)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	opacity := 0.5
	if req.Opacity != nil {
		opacity = *req.Opacity
	}
	margin := 16
	if req.Margin != nil {
		margin = *req.Margin
	}

	var out image.Image = base
	if req.LogoFileID != nil {
		logoFile, err := s.owned(ctx, userID, *req.LogoFileID)
		if err != nil {
			return nil, err
		}
		logo, err := s.decodeImage(ctx, logoFile)
		if err != nil {
			return nil, err
		}
		out, err = media.ApplyLogo(out, media.LogoOptions{
			Logo: logo, WidthRatio: req.WidthRatio, Opacity: opacity, Position: pos, Margin: margin,
		})
		if err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}
	if text := strings.TrimSpace(req.Text); text != "" {
		opts := media.DefaultTextOptions(text)
		opts.Opacity = opacity
		opts.Position = pos
		opts.Margin = margin
		opts.Scale = req.Scale
		opts.Tiled = req.Tiled
		if req.Color != "" {
			c, err := media.ParseHexColor(req.Color)
			if err != nil {
				return nil, apperror.Validation(err.Error())
			}
			opts.Color = c
		}
		out, err = media.ApplyText(out, opts)
		if err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}

	format := media.Format(req.Format)
	if format == "" {
		format = media.FormatPNG
	}
	var buf bytes.Buffer
	if err := media.Encode(&buf, out, format, req.Quality); err != nil {
		return nil, apperror.Internal(err)
	}

	ext := ".png"
	if format == media.FormatJPEG {
		ext = ".jpg"
	}
	name := strings.TrimSuffix(src.Name, path.Ext(src.Name)) + "-watermarked" + ext
	return s.save(ctx, userID, name, src.Folder, buf.Bytes())
}

func (s *FileService) decodeImage(ctx context.Context, f *models.File) (image.Image, error) {
	rc, err := s.store.Open(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.ErrFileNotFound
		}
		return nil, apperror.Internal(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	img, err := media.Decode(data)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("%s: %v", f.Name, err))
	}
	return img, nil
}

func (s *FileService) mutate(ctx context.Context, userID, id uuid.UUID, fn func(*models.File) error) (*models.File, error) {
	f, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *f
	if err := fn(f); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}
	s.decorate(f)
	s.events.Emit(ctx, userID, events.Updated(tableFiles, f, &old))
	return f, nil
}

func (s *FileService) removeBlob(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.WithComponent("files").WithError(err).WithField("key", key).Warn("failed to delete blob")
	}
}

func (s *FileService) decorate(f *models.File) {
	if url := s.store.URL(f.StorageKey); url != "" {
		f.URL = url
		return
	}
	f.URL = "/api/files/" + f.ID.String() + "/download"
}

func (s *FileService) owned(ctx context.Context, userID, id uuid.UUID) (*models.File, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, apperror.ErrFileNotFound
	}
	return f, nil
}

// DetectMimeType определяет MIME по сигнатуре содержимого.
func DetectMimeType(data []byte) string {
	kind, err := filetype.Match(data)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	// Текстовые форматы сигнатур не имеют.
	if detected, _, _ := strings.Cut(http.DetectContentType(data), ";"); detected != "" {
		return detected
	}
	return defaultMimeType
}

// normalizeFolder приводит путь папки к виду /a/b.
func normalizeFolder(folder string) (string, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return "/", nil
	}
	if strings.Contains(folder, "..") {
		return "", apperror.Validation("недопустимый путь папки")
	}
	return path.Clean("/" + folder), nil
}
