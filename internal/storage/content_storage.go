// Package storage хранит загруженные фотографии и метаданные под адресом keccak256 от содержимого.
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"golang.org/x/crypto/sha3"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/validation"
)

const (
	mimeJSON   = "application/json"
	mimeBinary = "application/octet-stream"
	sniffLen   = 512
)

// Разрешённые типы изображений
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heif": true,
}

// ContentStorage файловое хранилище с адресацией по содержимому.
type ContentStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewContentStorage создаёт хранилище в каталоге rootPath.
func NewContentStorage(rootPath string, maxUploadMB int64) (*ContentStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &ContentStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// MaxUploadBytes предел размера одной загрузки.
func (s *ContentStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// ContentHash возвращает 0x + hex(keccak256(data)).
func ContentHash(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// DetectType определяет MIME тип: изображение по магическим байтам либо JSON.
func DetectType(data []byte) (string, error) {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}

	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		if allowedImageTypes[kind.MIME.Value] {
			return kind.MIME.Value, nil
		}
		return "", apperror.ErrUnsupportedContent.WithCause(fmt.Errorf("тип %s не разрешён", kind.MIME.Value))
	}

	if json.Valid(data) {
		return mimeJSON, nil
	}
	return "", apperror.ErrUnsupportedContent
}

// Upload сохраняет содержимое. Повторная загрузка тех же байтов возвращает тот же хэш.
func (s *ContentStorage) Upload(ctx context.Context, r io.Reader) (*models.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limited := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	data, err := io.ReadAll(&limited)
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка чтения содержимого: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, apperror.ErrContentTooLarge
	}
	if len(data) == 0 {
		return nil, apperror.ErrEmptyContent
	}
	if _, err := DetectType(data); err != nil {
		return nil, err
	}

	hash := ContentHash(data)
	target := s.path(hash)

	if _, err := os.Stat(target); err == nil {
		return &models.UploadResult{Hash: hash, Size: int64(len(data))}, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	tempPath := f.Name()

	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &models.UploadResult{Hash: hash, Size: int64(len(data))}, nil
}

// Download возвращает содержимое по хэшу.
func (s *ContentStorage) Download(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := validation.NormalizeContentHash(hash)
	if err != nil {
		return nil, apperror.ErrInvalidContentHash.WithCause(err)
	}

	data, err := os.ReadFile(s.path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperror.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка чтения файла: %w", err)
	}
	return data, nil
}

// Info возвращает размер и тип сохранённого содержимого.
// Запись атомарна, поэтому найденный файл всегда завершён.
func (s *ContentStorage) Info(ctx context.Context, hash string) (*models.FileInfo, error) {
	data, err := s.Download(ctx, hash)
	if err != nil {
		return nil, err
	}

	mime, err := DetectType(data)
	if err != nil {
		mime = mimeBinary
	}

	return &models.FileInfo{
		Hash:      ContentHash(data),
		Size:      int64(len(data)),
		MimeType:  mime,
		Finalized: true,
	}, nil
}

// path раскладывает файлы по подкаталогам из первых двух hex символов.
func (s *ContentStorage) path(hash string) string {
	return filepath.Join(s.rootPath, hash[2:4], hash[2:])
}
