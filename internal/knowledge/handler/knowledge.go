// Package handler provides HTTP handlers for the knowledge service.
package handler

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/finsight-io/finsight/internal/knowledge/biz"
	"github.com/finsight-io/finsight/internal/pkg/knowledge/docutil"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/utils/errors"
	"github.com/finsight-io/finsight/pkg/utils/response"
)

// analysisTimeout bounds generative analysis requests.
const analysisTimeout = 120 * time.Second

// KnowledgeHandler handles knowledge HTTP requests.
type KnowledgeHandler struct {
	service       biz.Service
	maxUploadSize int64
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(service biz.Service, maxUploadSize int64) *KnowledgeHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 50 << 20
	}
	return &KnowledgeHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// UploadDocument ingests a document from a multipart form. The "file"
// part carries the document; title, source, level and version arrive as
// form fields. async=true returns a pending job immediately.
func (h *KnowledgeHandler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.WriteError(c, errors.ErrKnowledgeInvalidRequest.WithMessage("file part is required"))
		return
	}
	if fileHeader.Size > h.maxUploadSize {
		response.WriteError(c, errors.ErrKnowledgePayloadTooLarge.WithMessagef(
			"file size %d exceeds limit %d", fileHeader.Size, h.maxUploadSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.WriteError(c, errors.ErrKnowledgeInvalidRequest.WithCause(err))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		response.WriteError(c, errors.ErrKnowledgeInvalidRequest.WithCause(err))
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		response.WriteError(c, errors.ErrKnowledgePayloadTooLarge.WithMessagef(
			"file exceeds limit %d", h.maxUploadSize))
		return
	}
	if len(data) > 0 && !docutil.IsPDF(data) && !utf8.Valid(data) {
		response.WriteError(c, errors.ErrKnowledgeUnsupportedFile.WithMessagef(
			"%s is neither PDF nor UTF-8 text", fileHeader.Filename))
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}
	meta := biz.UploadMeta{
		Title:   title,
		Source:  model.DocumentSource(c.DefaultPostForm("source", string(model.SourceInternal))),
		Level:   model.CertificationLevel(c.PostForm("level")),
		Version: c.PostForm("version"),
	}

	async, _ := strconv.ParseBool(c.DefaultPostForm("async", "true"))

	job, err := h.service.UploadDocument(c.Request.Context(), data, meta, async)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteSuccess(c, job)
}

// GetJob returns an ingestion job by id.
func (h *KnowledgeHandler) GetJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteSuccess(c, job)
}

// Search retrieves relevant knowledge chunks.
func (h *KnowledgeHandler) Search(c *gin.Context) {
	var query biz.SearchQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		response.WriteError(c, errors.ErrKnowledgeInvalidRequest.WithCause(err))
		return
	}

	results, err := h.service.Search(c.Request.Context(), &query)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	response.WriteSuccess(c, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// EnhancedAnalysis generates a knowledge-grounded analysis.
func (h *KnowledgeHandler) EnhancedAnalysis(c *gin.Context) {
	var req biz.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, errors.ErrKnowledgeInvalidRequest.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analysisTimeout)
	defer cancel()

	result, err := h.service.EnhancedAnalysis(ctx, &req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			response.WriteError(c, errors.ErrKnowledgeTimeout.WithCause(err))
			return
		}
		response.WriteError(c, err)
		return
	}
	response.WriteSuccess(c, result)
}

// Frameworks returns valuation frameworks for an instrument type.
func (h *KnowledgeHandler) Frameworks(c *gin.Context) {
	instrumentType := model.InstrumentType(strings.ToUpper(c.Param("instrumentType")))

	frameworks, err := h.service.Frameworks(instrumentType, c.Query("sector"), c.Query("region"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	response.WriteSuccess(c, gin.H{
		"instrument_type": instrumentType,
		"frameworks":      frameworks,
	})
}

// Stats returns knowledge base statistics.
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteSuccess(c, stats)
}
