package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/finsight-io/finsight/internal/knowledge/metrics"
	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/internal/pkg/knowledge/docutil"
	"github.com/finsight-io/finsight/internal/pkg/knowledge/textutil"
	"github.com/finsight-io/finsight/pkg/embedding"
)

// ProcessorConfig tunes the document processor.
type ProcessorConfig struct {
	// ChunkTokenBudget bounds the estimated token count per chunk.
	ChunkTokenBudget int
	// MinSectionLen discards sections shorter than this many characters.
	MinSectionLen int
	// PoolSize is the background worker pool size for async ingestion.
	PoolSize int
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		ChunkTokenBudget: 500,
		MinSectionLen:    200,
		PoolSize:         4,
	}
}

// UploadMeta carries caller-supplied document metadata.
type UploadMeta struct {
	Title   string                   `json:"title"`
	Source  model.DocumentSource     `json:"source"`
	Level   model.CertificationLevel `json:"level,omitempty"`
	Version string                   `json:"version,omitempty"`
}

// ChunkSink receives fully processed chunks for persistence.
type ChunkSink interface {
	StoreChunks(ctx context.Context, doc *model.FinancialDocument, chunks []*model.DocumentChunk) error
}

// DocumentProcessor orchestrates the ingestion pipeline: text
// extraction, classification, sectioning, chunking, concept enrichment
// and embedding. Pipeline failures land in the job's FAILED state
// rather than being returned as errors.
type DocumentProcessor struct {
	extractor *ConceptExtractor
	embedder  *embedding.Service
	sink      ChunkSink
	config    *ProcessorConfig
	metrics   *metrics.KnowledgeMetrics

	pool *ants.Pool

	mu   sync.RWMutex
	jobs map[string]*model.ProcessingJob
}

// NewDocumentProcessor creates a document processor. sink may be nil
// when chunks should not be persisted (tests).
func NewDocumentProcessor(extractor *ConceptExtractor, embedder *embedding.Service, sink ChunkSink, config *ProcessorConfig) (*DocumentProcessor, error) {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	if config.ChunkTokenBudget <= 0 {
		config.ChunkTokenBudget = DefaultProcessorConfig().ChunkTokenBudget
	}
	if config.MinSectionLen <= 0 {
		config.MinSectionLen = DefaultProcessorConfig().MinSectionLen
	}
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultProcessorConfig().PoolSize
	}

	pool, err := ants.NewPool(config.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &DocumentProcessor{
		extractor: extractor,
		embedder:  embedder,
		sink:      sink,
		config:    config,
		metrics:   metrics.GetKnowledgeMetrics(),
		pool:      pool,
		jobs:      make(map[string]*model.ProcessingJob),
	}, nil
}

// Close releases the background worker pool.
func (p *DocumentProcessor) Close() {
	p.pool.Release()
}

// GetJob returns a job by id.
func (p *DocumentProcessor) GetJob(id string) (*model.ProcessingJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	if !ok {
		return nil, false
	}
	clone := *job
	return &clone, true
}

// SubmitDocument schedules ingestion on the background pool and
// returns the pending job immediately.
func (p *DocumentProcessor) SubmitDocument(data []byte, meta UploadMeta) (*model.ProcessingJob, error) {
	job := p.newJob()

	err := p.pool.Submit(func() {
		p.runPipeline(context.Background(), job.ID, data, meta)
	})
	if err != nil {
		p.mu.Lock()
		delete(p.jobs, job.ID)
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	return job, nil
}

// ProcessDocument runs the ingestion pipeline synchronously and returns
// the terminal job.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, data []byte, meta UploadMeta) *model.ProcessingJob {
	job := p.newJob()
	p.runPipeline(ctx, job.ID, data, meta)
	done, _ := p.GetJob(job.ID)
	return done
}

func (p *DocumentProcessor) newJob() *model.ProcessingJob {
	job := &model.ProcessingJob{
		ID:        uuid.NewString(),
		Status:    model.JobPending,
		StartedAt: time.Now(),
	}
	p.mu.Lock()
	p.jobs[job.ID] = job
	p.mu.Unlock()
	clone := *job
	return &clone
}

func (p *DocumentProcessor) updateJob(id string, fn func(j *model.ProcessingJob)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.jobs[id]; ok {
		fn(job)
	}
}

func (p *DocumentProcessor) failJob(id string, start time.Time, msg string) {
	now := time.Now()
	p.updateJob(id, func(j *model.ProcessingJob) {
		j.Status = model.JobFailed
		j.Error = msg
		j.CompletedAt = &now
		j.Stats.ElapsedMS = now.Sub(start).Milliseconds()
	})
	p.metrics.RecordDocument(0, 0, 0, true)
	logger.Errorw("document processing failed", "job_id", id, "error", msg)
}

// runPipeline executes every pipeline stage in order. Per-chunk
// enrichment and embedding failures are isolated; only failures that
// leave nothing to index fail the job.
func (p *DocumentProcessor) runPipeline(ctx context.Context, jobID string, data []byte, meta UploadMeta) {
	start := time.Now()
	p.updateJob(jobID, func(j *model.ProcessingJob) {
		j.Status = model.JobProcessing
	})

	if len(data) == 0 {
		p.failJob(jobID, start, "document is empty")
		return
	}

	text, pages, err := docutil.ExtractText(data)
	if err != nil {
		p.failJob(jobID, start, fmt.Sprintf("text extraction failed: %v", err))
		return
	}

	doc := p.buildDocument(data, meta, text, pages)
	chunks := p.buildChunks(doc, text)
	if len(chunks) == 0 {
		p.failJob(jobID, start, "document produced no chunks")
		return
	}

	conceptCount := 0
	for _, chunk := range chunks {
		chunk.Concepts = p.extractor.ExtractConcepts(ctx, chunk.Content, chunk.Metadata.Topics)
		conceptCount += len(chunk.Concepts)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.failJob(jobID, start, fmt.Sprintf("embedding generation failed: %v", err))
		return
	}

	embeddingCount := 0
	for i, vec := range vectors {
		chunks[i].Embedding = vec
		if !isZeroVector(vec) {
			embeddingCount++
		} else {
			p.metrics.RecordEmbeddingDegraded()
		}
	}

	if p.sink != nil {
		if err := p.sink.StoreChunks(ctx, doc, chunks); err != nil {
			p.failJob(jobID, start, fmt.Sprintf("chunk storage failed: %v", err))
			return
		}
	}

	now := time.Now()
	p.updateJob(jobID, func(j *model.ProcessingJob) {
		j.Status = model.JobCompleted
		j.DocumentID = doc.ID
		j.CompletedAt = &now
		j.Stats = model.JobStats{
			PageCount:      pages,
			ChunkCount:     len(chunks),
			ConceptCount:   conceptCount,
			EmbeddingCount: embeddingCount,
			ElapsedMS:      now.Sub(start).Milliseconds(),
		}
	})
	p.metrics.RecordDocument(len(chunks), conceptCount, embeddingCount, false)

	logger.Infow("document processed",
		"job_id", jobID,
		"document_id", doc.ID,
		"pages", pages,
		"chunks", len(chunks),
		"concepts", conceptCount,
		"embeddings", embeddingCount,
	)
}

// buildDocument derives the immutable document record. The id depends
// only on content bytes and normalized metadata, so identical input
// reproduces the identical document.
func (p *DocumentProcessor) buildDocument(data []byte, meta UploadMeta, text string, pages int) *model.FinancialDocument {
	now := time.Now()
	level := meta.Level
	if level == "" {
		level = model.LevelGeneral
	}

	category, subcategory := classifyDocument(meta.Title, text)

	return &model.FinancialDocument{
		ID:          DocumentID(data, meta.Title, meta.Source),
		Title:       meta.Title,
		Source:      meta.Source,
		Category:    category,
		Subcategory: subcategory,
		Level:       level,
		Version:     meta.Version,
		PageCount:   pages,
		SizeBytes:   int64(len(data)),
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(data)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DocumentID derives a deterministic document id from content bytes
// and normalized title/source.
func DocumentID(data []byte, title string, source model.DocumentSource) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte("|"))
	h.Write([]byte(strings.ToLower(strings.TrimSpace(title))))
	h.Write([]byte("|"))
	h.Write([]byte(source))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// documentCategoryKeywords maps category labels to title/content
// keywords, checked in order.
var documentCategoryKeywords = []struct {
	category    string
	subcategory string
	keywords    []string
}{
	{"equity", "valuation", []string{"equity valuation", "stock valuation", "intrinsic value", "dcf"}},
	{"equity", "analysis", []string{"equity", "stock analysis", "earnings"}},
	{"fixed_income", "", []string{"fixed income", "bond", "yield curve"}},
	{"derivatives", "", []string{"derivative", "option", "futures", "swap"}},
	{"portfolio", "", []string{"portfolio", "asset allocation"}},
	{"risk", "", []string{"risk management", "value at risk"}},
	{"economics", "", []string{"economics", "macroeconomic", "monetary"}},
}

// classifyDocument picks a category from title keywords first, then
// content, defaulting to GENERAL.
func classifyDocument(title, content string) (string, string) {
	lowTitle := strings.ToLower(title)
	for _, entry := range documentCategoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowTitle, kw) {
				return entry.category, entry.subcategory
			}
		}
	}

	// Title gave nothing; inspect the leading content.
	sample := strings.ToLower(textutil.TruncateString(content, 4000))
	for _, entry := range documentCategoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(sample, kw) {
				return entry.category, entry.subcategory
			}
		}
	}

	return "GENERAL", ""
}

var sectionHeaderRegex = regexp.MustCompile(`(?m)^\s*(?:(?:CHAPTER|SECTION|PART|READING)\s+\S+.*|[IVXLC]+\.\s+.+|#{1,6}\s+.+)$`)

// splitSections divides text on financial-document headers. Sections
// shorter than minLen are discarded.
func splitSections(text string, minLen int) []string {
	locs := sectionHeaderRegex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if len(strings.TrimSpace(text)) < minLen {
			return nil
		}
		return []string{text}
	}

	var sections []string
	appendSection := func(s string) {
		if len(strings.TrimSpace(s)) >= minLen {
			sections = append(sections, s)
		}
	}

	if locs[0][0] > 0 {
		appendSection(text[:locs[0][0]])
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		appendSection(text[loc[0]:end])
	}
	return sections
}

// buildChunks sections the text and greedily accumulates sentences
// into token-budgeted chunks with derived metadata.
func (p *DocumentProcessor) buildChunks(doc *model.FinancialDocument, text string) []*model.DocumentChunk {
	sections := splitSections(text, p.config.MinSectionLen)

	var chunks []*model.DocumentChunk
	chunkIndex := 0

	for sectionIdx, section := range sections {
		sectionTitle := guessSectionTitle(section)

		for subIdx, content := range chunkSection(section, p.config.ChunkTokenBudget) {
			chunk := &model.DocumentChunk{
				ID:         fmt.Sprintf("%s-s%d-c%d", doc.ID, sectionIdx, subIdx),
				DocumentID: doc.ID,
				ChunkIndex: chunkIndex,
				Content:    content,
				TokenCount: textutil.EstimateTokens(content),
				Metadata: model.ChunkMetadata{
					SectionTitle: sectionTitle,
					Topics:       detectTopics(content),
					Formulas:     extractFormulas(content),
					HasTable:     hasTable(content),
					HasFigure:    hasFigure(content),
				},
			}
			chunks = append(chunks, chunk)
			chunkIndex++
		}
	}

	return chunks
}

// chunkSection accumulates sentences until adding the next one would
// exceed the token budget, then seals the chunk.
func chunkSection(section string, tokenBudget int) []string {
	sentences := textutil.SplitSentences(section)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			chunks = append(chunks, content)
		}
		current.Reset()
		currentTokens = 0
	}

	for _, sentence := range sentences {
		tokens := textutil.EstimateTokens(sentence)
		if tokens > tokenBudget {
			// A single sentence over the budget cannot accumulate;
			// hard-split it so every chunk stays within bounds.
			flush()
			chunks = append(chunks, splitLongSentence(sentence, tokenBudget)...)
			continue
		}
		if currentTokens > 0 && currentTokens+tokens > tokenBudget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += tokens
	}
	flush()

	return chunks
}

// splitLongSentence cuts an oversized sentence into budget-sized
// pieces, preferring a space boundary in the back half of the window.
func splitLongSentence(sentence string, tokenBudget int) []string {
	window := tokenBudget * 4
	runes := []rune(sentence)

	var pieces []string
	for len(runes) > 0 {
		if len(runes) <= window {
			if piece := strings.TrimSpace(string(runes)); piece != "" {
				pieces = append(pieces, piece)
			}
			break
		}

		cut := window
		for i := window - 1; i > window/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = runes[cut:]
	}
	return pieces
}

// guessSectionTitle returns the first non-trivial short line.
func guessSectionTitle(section string) string {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= 4 && len(line) <= 100 {
			return line
		}
	}
	return ""
}

// detectTopics collects concept pattern names matching the content.
func detectTopics(content string) []string {
	var topics []string
	for _, p := range conceptPatterns {
		if p.regex.MatchString(content) {
			topics = append(topics, p.name)
		}
	}
	return topics
}

var figureRegex = regexp.MustCompile(`(?i)\b(figure|exhibit|chart|diagram)\s+\d`)

// hasTable uses a structural heuristic: several lines containing
// column separators.
func hasTable(content string) bool {
	separatorLines := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.Count(line, "|") >= 2 || strings.Count(line, "\t") >= 2 {
			separatorLines++
			if separatorLines >= 2 {
				return true
			}
		}
	}
	return false
}

func hasFigure(content string) bool {
	return figureRegex.MatchString(content)
}

// isZeroVector reports whether every component is zero.
func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
