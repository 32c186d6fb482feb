package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/nixai/internal/pkg/errcode"
	appErr "github.com/xxxsen/nixai/internal/pkg/errors"
	"github.com/xxxsen/nixai/internal/pkg/response"
	"github.com/xxxsen/nixai/internal/service"
)

type FileHandler struct {
	documents *service.DocumentService
	maxBytes  int64
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

func NewFileHandler(documents *service.DocumentService, maxBytes int64) *FileHandler {
	return &FileHandler{documents: documents, maxBytes: maxBytes}
}

func (h *FileHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, errcode.ErrFileTooLarge, "file exceeds "+formatUploadLimit(h.maxBytes))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, errcode.ErrFileTooLarge, "file exceeds "+formatUploadLimit(h.maxBytes))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	if err := sniffContent(opened, file.Filename, file.Size); err != nil {
		handleError(c, err)
		return
	}
	name, err := h.documents.Upload(c.Request.Context(), getUserID(c), file.Filename, opened, file.Size)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, UploadResponse{
		Message:  "File uploaded. Processing in background.",
		Filename: name,
	})
}

// sniffContent checks that the file content matches its extension and rewinds it.
func sniffContent(file multipart.File, filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if size == 0 && ext != ".pdf" {
		return nil
	}
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	switch ext {
	case ".pdf":
		if !mt.Is("application/pdf") {
			return appErr.ErrUnsupportedFile
		}
	case ".txt", ".md", ".markdown":
		if !isText(mt) {
			return appErr.ErrUnsupportedFile
		}
	default:
		return appErr.ErrUnsupportedFile
	}
	return nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
