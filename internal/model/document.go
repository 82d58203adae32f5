// Package model provides data models for the FinSight knowledge platform.
package model

import (
	"time"
)

// DocumentSource identifies where a reference document came from.
type DocumentSource string

const (
	SourceCFAInstitute   DocumentSource = "CFA_INSTITUTE"
	SourceSEC            DocumentSource = "SEC"
	SourceFederalReserve DocumentSource = "FEDERAL_RESERVE"
	SourceAcademic       DocumentSource = "ACADEMIC"
	SourceInternal       DocumentSource = "INTERNAL"
)

// CertificationLevel tags a document with the certification program
// level it belongs to, if any.
type CertificationLevel string

const (
	CFALevel1    CertificationLevel = "CFA_LEVEL_1"
	CFALevel2    CertificationLevel = "CFA_LEVEL_2"
	CFALevel3    CertificationLevel = "CFA_LEVEL_3"
	LevelGeneral CertificationLevel = "GENERAL"
)

// FinancialDocument represents one ingested reference document. The ID
// is derived from content and metadata, so re-ingesting identical bytes
// reproduces the same document.
type FinancialDocument struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Source        DocumentSource     `json:"source"`
	Category      string             `json:"category"`
	Subcategory   string             `json:"subcategory,omitempty"`
	Level         CertificationLevel `json:"level"`
	Version       string             `json:"version,omitempty"`
	PageCount     int                `json:"page_count"`
	SizeBytes     int64              `json:"size_bytes"`
	Checksum      string             `json:"checksum"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ChunkMetadata carries structural hints extracted alongside a chunk.
type ChunkMetadata struct {
	SectionTitle string   `json:"section_title,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Formulas     []string `json:"formulas,omitempty"`
	HasTable     bool     `json:"has_table"`
	HasFigure    bool     `json:"has_figure"`
}

// DocumentChunk is one semantic unit of a document. Chunks belong to
// exactly one document and never outlive it.
type DocumentChunk struct {
	ID         string             `json:"id"`
	DocumentID string             `json:"document_id"`
	ChunkIndex int                `json:"chunk_index"`
	Content    string             `json:"content"`
	TokenCount int                `json:"token_count"`
	Embedding  []float32          `json:"embedding,omitempty"`
	Metadata   ChunkMetadata      `json:"metadata"`
	Concepts   []FinancialConcept `json:"concepts,omitempty"`
}
