package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/http/handlers/common"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/storage"
)

// запас на заголовки multipart сверх лимита файла
const multipartOverhead = 64 * 1024

// StorageHandler загрузка и выдача фотографий и метаданных.
type StorageHandler struct {
	storage *storage.ContentStorage
}

func NewStorageHandler(storage *storage.ContentStorage) *StorageHandler {
	return &StorageHandler{storage: storage}
}

// Upload обрабатывает POST /api/storage/upload (multipart, поле file).
func (h *StorageHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.storage.MaxUploadBytes()+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		common.HandleError(c, apperror.ErrEmptyContent.WithCause(err), "Failed to upload content")
		return
	}

	// Валидация размера файла
	if file.Size > h.storage.MaxUploadBytes() {
		common.HandleError(c, apperror.ErrContentTooLarge, "Failed to upload content")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.HandleError(c, err, "Failed to upload content")
		return
	}
	defer src.Close()

	result, err := h.storage.Upload(c.Request.Context(), src)
	if err != nil {
		common.HandleError(c, err, "Failed to upload content")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Download обрабатывает GET /api/storage/:hash.
func (h *StorageHandler) Download(c *gin.Context) {
	data, err := h.storage.Download(c.Request.Context(), c.Param("hash"))
	if err != nil {
		common.HandleError(c, err, "Failed to download content")
		return
	}

	mime, err := storage.DetectType(data)
	if err != nil {
		mime = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, mime, data)
}

// Info обрабатывает GET /api/storage/:hash/info.
func (h *StorageHandler) Info(c *gin.Context) {
	info, err := h.storage.Info(c.Request.Context(), c.Param("hash"))
	if err != nil {
		common.HandleError(c, err, "Failed to read content info")
		return
	}

	c.JSON(http.StatusOK, info)
}
