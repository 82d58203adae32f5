// Package knowledge provides configuration options for the knowledge pipeline.
package knowledge

import (
	"fmt"
	"time"

	"github.com/finsight-io/finsight/pkg/options"
	"github.com/spf13/pflag"
)

// Options defines configuration options for document processing, embedding
// normalization and knowledge retrieval.
type Options struct {
	// Collection is the Milvus collection holding chunk vectors.
	Collection string `json:"collection" mapstructure:"collection"`

	// TargetDimensions is the fixed dimensionality of every stored vector.
	// Provider vectors are truncated or zero-padded to this length.
	TargetDimensions int `json:"target-dimensions" mapstructure:"target-dimensions"`

	// ChunkTokenBudget bounds the estimated token count of a single chunk.
	ChunkTokenBudget int `json:"chunk-token-budget" mapstructure:"chunk-token-budget"`

	// MinSectionLen discards sections shorter than this many characters.
	MinSectionLen int `json:"min-section-len" mapstructure:"min-section-len"`

	// MinGenerativeLen is the minimum chunk length for the generative
	// concept-extraction pass. Shorter chunks use pattern extraction only.
	MinGenerativeLen int `json:"min-generative-len" mapstructure:"min-generative-len"`

	// EmbedBatchSize is the number of texts per embedding request.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// InterBatchDelay is the pause between sequential embedding batches.
	InterBatchDelay time.Duration `json:"inter-batch-delay" mapstructure:"inter-batch-delay"`

	// ItemDelay is the pause between per-item fallback embeddings.
	ItemDelay time.Duration `json:"item-delay" mapstructure:"item-delay"`

	// UpsertBatchSize is the number of chunks per vector-index upsert.
	UpsertBatchSize int `json:"upsert-batch-size" mapstructure:"upsert-batch-size"`

	// IndexContentLimit caps chunk content stored in the index payload.
	IndexContentLimit int `json:"index-content-limit" mapstructure:"index-content-limit"`

	// TopK is the default number of matches requested from the index.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore is the default relevance threshold. Matches scoring below
	// it are discarded. Callers may override it per request.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// MaxUploadSize bounds accepted document uploads, in bytes.
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Collection:        "financial_knowledge",
		TargetDimensions:  1536,
		ChunkTokenBudget:  500,
		MinSectionLen:     200,
		MinGenerativeLen:  300,
		EmbedBatchSize:    10,
		InterBatchDelay:   time.Second,
		ItemDelay:         200 * time.Millisecond,
		UpsertBatchSize:   100,
		IndexContentLimit: 2000,
		TopK:              5,
		MinScore:          0.7,
		MaxUploadSize:     50 << 20,
	}
}

// AddFlags adds flags for knowledge options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"knowledge.collection", o.Collection, "Milvus collection for chunk vectors.")
	fs.IntVar(&o.TargetDimensions, options.Join(prefixes...)+"knowledge.target-dimensions", o.TargetDimensions, "Fixed dimensionality of stored vectors.")
	fs.IntVar(&o.ChunkTokenBudget, options.Join(prefixes...)+"knowledge.chunk-token-budget", o.ChunkTokenBudget, "Estimated token budget per chunk.")
	fs.IntVar(&o.MinSectionLen, options.Join(prefixes...)+"knowledge.min-section-len", o.MinSectionLen, "Minimum section length in characters.")
	fs.IntVar(&o.MinGenerativeLen, options.Join(prefixes...)+"knowledge.min-generative-len", o.MinGenerativeLen, "Minimum chunk length for generative concept extraction.")
	fs.IntVar(&o.EmbedBatchSize, options.Join(prefixes...)+"knowledge.embed-batch-size", o.EmbedBatchSize, "Texts per embedding batch.")
	fs.DurationVar(&o.InterBatchDelay, options.Join(prefixes...)+"knowledge.inter-batch-delay", o.InterBatchDelay, "Delay between embedding batches.")
	fs.DurationVar(&o.ItemDelay, options.Join(prefixes...)+"knowledge.item-delay", o.ItemDelay, "Delay between per-item fallback embeddings.")
	fs.IntVar(&o.UpsertBatchSize, options.Join(prefixes...)+"knowledge.upsert-batch-size", o.UpsertBatchSize, "Chunks per vector upsert batch.")
	fs.IntVar(&o.IndexContentLimit, options.Join(prefixes...)+"knowledge.index-content-limit", o.IndexContentLimit, "Max chunk content characters stored in the index payload.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"knowledge.top-k", o.TopK, "Default number of matches per search.")
	fs.Float64Var(&o.MinScore, options.Join(prefixes...)+"knowledge.min-score", o.MinScore, "Default minimum relevance score.")
	fs.Int64Var(&o.MaxUploadSize, options.Join(prefixes...)+"knowledge.max-upload-size", o.MaxUploadSize, "Max document upload size in bytes.")
}

// Validate validates the knowledge options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("knowledge collection is required"))
	}
	if o.TargetDimensions <= 0 {
		errs = append(errs, fmt.Errorf("target dimensions must be positive"))
	}
	if o.ChunkTokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("chunk token budget must be positive"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embed batch size must be positive"))
	}
	if o.UpsertBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("upsert batch size must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		errs = append(errs, fmt.Errorf("min score must be in [0,1]"))
	}
	return errs
}

// Complete completes the knowledge options with defaults.
func (o *Options) Complete() error {
	return nil
}
