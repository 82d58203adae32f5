package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-io/finsight/internal/knowledge/biz"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/utils/errors"
	"github.com/finsight-io/finsight/pkg/utils/json"
	"github.com/finsight-io/finsight/pkg/utils/response"
)

// stubService scripts the biz.Service methods exercised per test.
type stubService struct {
	job         *model.ProcessingJob
	jobErr      error
	results     []*model.KnowledgeResult
	searchErr   error
	analysis    *model.AnalysisResult
	analysisErr error
	frameworks  []*model.ValuationFramework
	fwErr       error
	stats       map[string]any

	uploadedMeta  biz.UploadMeta
	uploadedAsync bool
	uploadedBytes int
	searchedQuery *biz.SearchQuery
}

func (s *stubService) Init(ctx context.Context) error { return nil }
func (s *stubService) Close()                         {}

func (s *stubService) UploadDocument(ctx context.Context, data []byte, meta biz.UploadMeta, async bool) (*model.ProcessingJob, error) {
	s.uploadedMeta = meta
	s.uploadedAsync = async
	s.uploadedBytes = len(data)
	return s.job, s.jobErr
}

func (s *stubService) GetJob(id string) (*model.ProcessingJob, error) {
	if s.jobErr != nil {
		return nil, s.jobErr
	}
	return s.job, nil
}

func (s *stubService) Search(ctx context.Context, q *biz.SearchQuery) ([]*model.KnowledgeResult, error) {
	s.searchedQuery = q
	return s.results, s.searchErr
}

func (s *stubService) EnhancedAnalysis(ctx context.Context, req *biz.AnalysisRequest) (*model.AnalysisResult, error) {
	return s.analysis, s.analysisErr
}

func (s *stubService) Frameworks(instrumentType model.InstrumentType, sector, region string) ([]*model.ValuationFramework, error) {
	return s.frameworks, s.fwErr
}

func (s *stubService) GetStats(ctx context.Context) (map[string]any, error) {
	return s.stats, nil
}

var _ biz.Service = (*stubService)(nil)

func newTestContext(t *testing.T, method, target string, body *bytes.Buffer, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var r response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return &r
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	svc := &stubService{job: &model.ProcessingJob{ID: "job-1", Status: model.JobPending}}
	h := NewKnowledgeHandler(svc, 0)

	body, contentType := multipartUpload(t, map[string]string{
		"title":  "CFA Level I Notes",
		"source": "CFA_INSTITUTE",
		"async":  "true",
	}, "notes.txt", "some document text")

	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/documents/upload", body, contentType)
	h.UploadDocument(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)
	assert.Equal(t, "CFA Level I Notes", svc.uploadedMeta.Title)
	assert.Equal(t, model.DocumentSource("CFA_INSTITUTE"), svc.uploadedMeta.Source)
	assert.True(t, svc.uploadedAsync)
	assert.Equal(t, len("some document text"), svc.uploadedBytes)
}

func TestUploadDocument_TitleDefaultsToFilename(t *testing.T) {
	svc := &stubService{job: &model.ProcessingJob{ID: "job-1"}}
	h := NewKnowledgeHandler(svc, 0)

	body, contentType := multipartUpload(t, nil, "handbook.txt", "text")
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/documents/upload", body, contentType)
	h.UploadDocument(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handbook.txt", svc.uploadedMeta.Title)
	assert.Equal(t, model.SourceInternal, svc.uploadedMeta.Source)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	h := NewKnowledgeHandler(&stubService{}, 0)

	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/documents/upload", nil, "multipart/form-data; boundary=x")
	h.UploadDocument(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	r := decodeEnvelope(t, w)
	assert.False(t, r.Success)
	assert.Equal(t, errors.ErrKnowledgeInvalidRequest.Code, r.Error.Code)
}

func TestUploadDocument_TooLarge(t *testing.T) {
	h := NewKnowledgeHandler(&stubService{}, 8)

	body, contentType := multipartUpload(t, nil, "big.txt", "well over eight bytes of content")
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/documents/upload", body, contentType)
	h.UploadDocument(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, errors.ErrKnowledgePayloadTooLarge.Code, decodeEnvelope(t, w).Error.Code)
}

func TestUploadDocument_RejectsUnsupportedFileType(t *testing.T) {
	svc := &stubService{job: &model.ProcessingJob{ID: "job-1"}}
	h := NewKnowledgeHandler(svc, 0)

	// Binary payload that is neither PDF nor valid UTF-8.
	body, contentType := multipartUpload(t, nil, "image.png", "\x89PNG\r\n\x1a\n\xff\xfe\xfd")
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/documents/upload", body, contentType)
	h.UploadDocument(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	r := decodeEnvelope(t, w)
	assert.Equal(t, errors.ErrKnowledgeUnsupportedFile.Code, r.Error.Code)
	assert.Zero(t, svc.uploadedBytes)
}

func TestUploadDocument_AcceptsPDFMagic(t *testing.T) {
	svc := &stubService{job: &model.ProcessingJob{ID: "job-1"}}
	h := NewKnowledgeHandler(svc, 0)

	// PDF magic with binary tail passes the sniff; extraction failures
	// surface later through the job state.
	body, contentType := multipartUpload(t, nil, "doc.pdf", "%PDF-1.4\n\xff\xfe")
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/documents/upload", body, contentType)
	h.UploadDocument(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	svc := &stubService{jobErr: errors.ErrKnowledgeJobNotFound}
	h := NewKnowledgeHandler(svc, 0)

	c, w := newTestContext(t, http.MethodGet, "/v1/knowledge/jobs/missing", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.GetJob(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	svc := &stubService{
		results: []*model.KnowledgeResult{
			{Chunk: model.DocumentChunk{ID: "c1", Content: "dcf overview"}, Score: 0.9},
		},
	}
	h := NewKnowledgeHandler(svc, 0)

	body := bytes.NewBufferString(`{"symbol": "AAPL", "instrumentType": "STOCK", "analysisType": "FUNDAMENTAL_ANALYSIS"}`)
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/search", body, "application/json")
	h.Search(c)

	assert.Equal(t, http.StatusOK, w.Code)
	r := decodeEnvelope(t, w)
	assert.True(t, r.Success)
	require.NotNil(t, svc.searchedQuery)
	assert.Equal(t, "AAPL", svc.searchedQuery.Symbol)

	data, ok := r.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, data["count"])
}

func TestSearch_BadJSON(t *testing.T) {
	h := NewKnowledgeHandler(&stubService{}, 0)

	body := bytes.NewBufferString(`{"symbol": `)
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/search", body, "application/json")
	h.Search(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnhancedAnalysis(t *testing.T) {
	svc := &stubService{
		analysis: &model.AnalysisResult{
			Symbol:  "AAPL",
			Summary: "Looks fine.",
			Recommendation: model.Recommendation{
				Action:     model.ActionHold,
				Confidence: 0.5,
			},
		},
	}
	h := NewKnowledgeHandler(svc, 0)

	body := bytes.NewBufferString(`{"symbol": "AAPL", "instrumentType": "STOCK"}`)
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/analysis/enhanced", body, "application/json")
	h.EnhancedAnalysis(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)
}

func TestEnhancedAnalysis_ServiceError(t *testing.T) {
	svc := &stubService{analysisErr: errors.ErrAnalysisFailed}
	h := NewKnowledgeHandler(svc, 0)

	body := bytes.NewBufferString(`{"symbol": "AAPL"}`)
	c, w := newTestContext(t, http.MethodPost, "/v1/knowledge/analysis/enhanced", body, "application/json")
	h.EnhancedAnalysis(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrAnalysisFailed.Code, decodeEnvelope(t, w).Error.Code)
}

func TestFrameworks_UppercasesParam(t *testing.T) {
	svc := &stubService{
		frameworks: []*model.ValuationFramework{{Name: "Discounted Cash Flow"}},
	}
	h := NewKnowledgeHandler(svc, 0)

	c, w := newTestContext(t, http.MethodGet, "/v1/knowledge/frameworks/stock", nil, "")
	c.Params = gin.Params{{Key: "instrumentType", Value: "stock"}}
	h.Frameworks(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"instrument_type":"STOCK"`))
}

func TestStats(t *testing.T) {
	svc := &stubService{stats: map[string]any{"row_count": 42}}
	h := NewKnowledgeHandler(svc, 0)

	c, w := newTestContext(t, http.MethodGet, "/v1/knowledge/stats", nil, "")
	h.Stats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data, ok := decodeEnvelope(t, w).Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 42, data["row_count"])
}
