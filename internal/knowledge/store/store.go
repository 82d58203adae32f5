// Package store defines the vector storage abstraction for document
// chunks.
package store

import (
	"context"
)

// ChunkRecord is one chunk row as written to the vector index. String
// list fields (topics, concepts, categories) are stored space-joined
// so they can be matched with filter expressions.
type ChunkRecord struct {
	// ID is the deterministic chunk id and the collection primary key.
	ID string
	// DocumentID is the owning document id.
	DocumentID string
	// DocumentTitle is the owning document title.
	DocumentTitle string
	// ChunkIndex is the chunk position within the document.
	ChunkIndex int64
	// Section is the chunk's section title.
	Section string
	// Content is the chunk text, possibly truncated for the index
	// payload. The chunk id remains the source of truth for full text.
	Content string
	// Topics holds space-joined topic keywords.
	Topics string
	// Concepts holds space-joined concept names.
	Concepts string
	// Categories holds space-joined concept categories.
	Categories string
	// Formulas holds newline-joined formula expressions. Formulas
	// contain spaces, so they get a line separator instead.
	Formulas string
	// Embedding is the chunk vector.
	Embedding []float32
}

// SearchResult is one similarity match from the index.
type SearchResult struct {
	ID            string
	DocumentID    string
	DocumentTitle string
	ChunkIndex    int64
	Section       string
	Content       string
	Topics        string
	Concepts      string
	Categories    string
	Formulas      string
	Score         float32
}

// CollectionConfig describes a chunk collection.
type CollectionConfig struct {
	// Name is the collection name.
	Name string
	// Description is the collection description.
	Description string
	// Dimension is the vector dimensionality.
	Dimension int
}

// VectorStore is the vector index abstraction.
type VectorStore interface {
	// CreateCollection creates the collection if it does not exist.
	CreateCollection(ctx context.Context, config *CollectionConfig) error

	// Upsert writes chunk records, replacing rows with the same id.
	Upsert(ctx context.Context, collection string, records []*ChunkRecord) error

	// Search performs a similarity search. filter is an optional
	// boolean expression applied before ranking.
	Search(ctx context.Context, collection string, embedding []float32, topK int, filter string) ([]*SearchResult, error)

	// DeleteByIDs removes chunk rows by id.
	DeleteByIDs(ctx context.Context, collection string, ids []string) error

	// GetStats returns collection statistics.
	GetStats(ctx context.Context, collection string) (map[string]any, error)
}
