package model

import "time"

// GroupCount reports how many documents were filed under one course.
type GroupCount struct {
	Course    string `json:"course" yaml:"course"`
	Folder    string `json:"folder" yaml:"folder"`
	Documents int    `json:"documents" yaml:"documents"`
}

// Summary is the plain-data report handed back to the presentation layer.
// Groups are listed in first-seen order.
type Summary struct {
	ArchiveCount   int          `json:"archive_count" yaml:"archive_count"`
	TotalDocuments int          `json:"total_documents" yaml:"total_documents"`
	GroupCount     int          `json:"group_count" yaml:"group_count"`
	Overwritten    int          `json:"overwritten" yaml:"overwritten"`
	Groups         []GroupCount `json:"groups" yaml:"groups"`
}

// BatchResult is the outcome of processing one batch: the grouped archive plus its summary.
// Archive is nil when the batch contained no input archives.
type BatchResult struct {
	ID       string
	Filename string
	Archive  []byte
	Summary  Summary
}

// PublishedBatch describes a grouped archive uploaded to object storage.
type PublishedBatch struct {
	BatchID     string    `json:"batch_id"`
	ObjectKey   string    `json:"object_key"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Summary     Summary   `json:"summary"`
}

// Batch is the history record of a processed batch.
// Only counts and course names are kept, never document content.
type Batch struct {
	ID            string       `json:"id"`
	ArchiveCount  int          `json:"archive_count"`
	DocumentCount int          `json:"document_count"`
	GroupCount    int          `json:"group_count"`
	ObjectKey     string       `json:"object_key,omitempty"`
	Groups        []GroupCount `json:"groups,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
