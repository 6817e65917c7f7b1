package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/idgen"
	"github.com/ignatzorin/kazi-backend/internal/models"
)

// ErrNotFound объект отсутствует в хранилище.
var ErrNotFound = errors.New("storage: объект не найден")

// LocalStorage хранит файлы на диске под rootPath.
type LocalStorage struct {
	rootPath string
}

// NewLocalStorage создаёт файловое хранилище.
func NewLocalStorage(rootPath string) (*LocalStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &LocalStorage{rootPath: rootPath}, nil
}

func (s *LocalStorage) Backend() string { return models.StorageLocal }

// Save пишет файл через временный и возвращает ключ вида <user>/<id><ext>.
func (s *LocalStorage) Save(ctx context.Context, userID uuid.UUID, originalName, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := objectKey(userID, originalName)
	if err != nil {
		return "", err
	}
	userDir := filepath.Join(s.rootPath, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	targetPath := filepath.Join(s.rootPath, filepath.FromSlash(key))
	tempPath := targetPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}
	return key, nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: не удалось открыть файл: %w", err)
	}
	return f, nil
}

// Delete удаляет файл; отсутствие файла не считается ошибкой.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// URL локальные файлы отдаются через API, прямой ссылки нет.
func (s *LocalStorage) URL(string) string { return "" }

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("storage: недопустимый ключ %q", key)
	}
	return filepath.Join(s.rootPath, clean), nil
}

func objectKey(userID uuid.UUID, originalName string) (string, error) {
	id, err := idgen.Generate(16)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(sanitizeFilename(originalName)))
	return userID.String() + "/" + id + ext, nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}

// SanitizeFilename экспортирует очистку имени для отображаемых имён файлов.
func SanitizeFilename(name string) string {
	return sanitizeFilename(name)
}
