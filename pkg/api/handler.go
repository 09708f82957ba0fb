package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/receipts"
)

// Analyzer turns one uploaded image into an outcome
type Analyzer interface {
	Analyze(ctx context.Context, src receipts.Source) extraction.Outcome
}

// Store persists analyzed receipts
type Store interface {
	Save(ctx context.Context, rec models.ReceiptRecord) error
	List(ctx context.Context, limit int) ([]models.ReceiptRecord, error)
}

// Handler serves the receipt endpoints
type Handler struct {
	analyzer  Analyzer
	store     Store
	maxUpload int64
	lastID    atomic.Int64
	log       logrus.FieldLogger
}

// NewHandler creates a handler. store may be nil when no database is configured.
func NewHandler(analyzer Analyzer, store Store, maxUpload int64, log logrus.FieldLogger) *Handler {
	return &Handler{analyzer: analyzer, store: store, maxUpload: maxUpload, log: log}
}

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"webp": true,
}

func allowedFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return allowedExtensions[ext]
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// AnalyzeReceipt extracts a receipt from the multipart "image" field
func (h *Handler) AnalyzeReceipt(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}
	if !allowedFile(header.Filename) || !isImage(file) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed"})
		return
	}

	id := int(h.lastID.Add(1))
	src := receipts.Source{
		ID:   id,
		Path: header.Filename,
		Open: func() (io.ReadCloser, error) {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
			return io.NopCloser(file), nil
		},
	}
	out := h.analyzer.Analyze(c.Request.Context(), src)
	h.save(c, out.Record)

	if out.Degraded() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":        failureMessage(out.Failure),
			"raw_response": out.Record.RawResponse,
			"receipt":      out.Record,
		})
		return
	}
	c.JSON(http.StatusOK, out.Record)
}

// ListReceipts returns stored receipts, newest first
func (h *Handler) ListReceipts(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		h.log.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Error("failed to list receipts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list receipts"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) save(c *gin.Context, rec models.ReceiptRecord) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(c.Request.Context(), rec); err != nil {
		h.log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"receipt_id": rec.ReceiptID,
		}).WithError(err).Error("failed to store receipt")
	}
}

// isImage sniffs the upload's content; the extension alone is not trusted.
func isImage(file multipart.File) bool {
	mtype, err := mimetype.DetectReader(file)
	if _, serr := file.Seek(0, io.SeekStart); serr != nil || err != nil {
		return false
	}
	return strings.HasPrefix(mtype.String(), "image/")
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func failureMessage(f *extraction.Failure) string {
	if f == nil {
		return "Failed to analyze receipt"
	}
	switch f.Reason {
	case extraction.ReasonNoPayload:
		return "No JSON object found in model response"
	case extraction.ReasonEmpty, extraction.ReasonSyntax:
		return "Failed to parse model response as JSON"
	case extraction.ReasonSchemaMismatch:
		return "Model response is not a JSON object"
	case extraction.ReasonTimeout:
		return "Model request timed out"
	case extraction.ReasonDecode:
		return "Error processing image"
	}
	return "Failed to get response from model"
}
