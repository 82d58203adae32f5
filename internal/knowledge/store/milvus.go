package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/finsight-io/finsight/pkg/component/milvus"
)

// MilvusStore implements VectorStore backed by Milvus.
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore creates a Milvus-backed vector store.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

var chunkOutputFields = []string{
	"document_id", "document_title", "chunk_index",
	"section", "content", "topics", "concepts", "categories",
	"formulas",
}

// CreateCollection creates the chunk collection.
func (s *MilvusStore) CreateCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		IDMaxLen:    128,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "document_title", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "section", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "topics", DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: "concepts", DataType: entity.FieldTypeVarChar, MaxLen: 2048},
			{Name: "categories", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "formulas", DataType: entity.FieldTypeVarChar, MaxLen: 4096},
		},
	}
	return s.client.CreateCollection(ctx, schema)
}

// Upsert writes chunk records into Milvus.
func (s *MilvusStore) Upsert(ctx context.Context, collection string, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadata := map[string][]any{
		"document_id":    make([]any, len(records)),
		"document_title": make([]any, len(records)),
		"chunk_index":    make([]any, len(records)),
		"section":        make([]any, len(records)),
		"content":        make([]any, len(records)),
		"topics":         make([]any, len(records)),
		"concepts":       make([]any, len(records)),
		"categories":     make([]any, len(records)),
		"formulas":       make([]any, len(records)),
	}

	for i, r := range records {
		ids[i] = r.ID
		embeddings[i] = r.Embedding
		metadata["document_id"][i] = r.DocumentID
		metadata["document_title"][i] = r.DocumentTitle
		metadata["chunk_index"][i] = r.ChunkIndex
		metadata["section"][i] = r.Section
		metadata["content"][i] = r.Content
		metadata["topics"][i] = r.Topics
		metadata["concepts"][i] = r.Concepts
		metadata["categories"][i] = r.Categories
		metadata["formulas"][i] = r.Formulas
	}

	data := &milvus.UpsertData{
		IDs:        ids,
		Embeddings: embeddings,
		Metadata:   metadata,
	}

	if err := s.client.Upsert(ctx, collection, data); err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

// Search performs a similarity search with an optional filter
// expression.
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int, filter string) ([]*SearchResult, error) {
	results, err := s.client.Search(ctx, collection, embedding, topK, filter, chunkOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	searchResults := make([]*SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = &SearchResult{
			ID:            r.ID,
			DocumentID:    metaString(r.Metadata, "document_id"),
			DocumentTitle: metaString(r.Metadata, "document_title"),
			ChunkIndex:    metaInt64(r.Metadata, "chunk_index"),
			Section:       metaString(r.Metadata, "section"),
			Content:       metaString(r.Metadata, "content"),
			Topics:        metaString(r.Metadata, "topics"),
			Concepts:      metaString(r.Metadata, "concepts"),
			Categories:    metaString(r.Metadata, "categories"),
			Formulas:      metaString(r.Metadata, "formulas"),
			Score:         r.Score,
		}
	}

	return searchResults, nil
}

// DeleteByIDs removes chunk rows by id.
func (s *MilvusStore) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	return s.client.DeleteByIDs(ctx, collection, ids)
}

// GetStats returns collection statistics.
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (map[string]any, error) {
	count, err := s.client.GetCollectionStats(ctx, collection)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"collection": collection,
		"row_count":  count,
	}, nil
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt64(m map[string]any, key string) int64 {
	if v, ok := m[key].(int64); ok {
		return v
	}
	return 0
}
