package model

import "time"

// JobStatus is the processing job state. PENDING and PROCESSING are
// transient; COMPLETED and FAILED are terminal.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// JobStats records pipeline statistics for one ingestion job.
type JobStats struct {
	PageCount      int   `json:"page_count"`
	ChunkCount     int   `json:"chunk_count"`
	ConceptCount   int   `json:"concept_count"`
	EmbeddingCount int   `json:"embedding_count"`
	ElapsedMS      int64 `json:"elapsed_ms"`
}

// ProcessingJob tracks one document ingestion run. A failed job has no
// partial state and must be resubmitted from raw bytes.
type ProcessingJob struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id,omitempty"`
	Status      JobStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Stats       JobStats   `json:"stats"`
	Error       string     `json:"error,omitempty"`
}
