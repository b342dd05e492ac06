package model

import "time"

// JobRecord is the local ledger entry for a submitted job.
type JobRecord struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Model      string    `json:"model"`
	Size       string    `json:"size"`
	Seconds    string    `json:"seconds"`
	Prompt     string    `json:"prompt"`
	Status     JobState  `json:"status"`
	Progress   int       `json:"progress"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJobRecord builds a ledger entry from a freshly submitted job. Fields the
// remote object leaves blank are taken from the request.
func NewJobRecord(job *Job, req GenerationRequest) *JobRecord {
	rec := &JobRecord{
		ID:       job.ID,
		ParentID: job.RemixedFromVideoID,
		Model:    job.Model,
		Size:     job.Size,
		Seconds:  job.Seconds,
		Prompt:   req.Prompt,
		Status:   job.Status,
		Progress: clampProgress(job.Progress),
	}
	if rec.Model == "" {
		rec.Model = req.Model
	}
	if rec.Size == "" {
		rec.Size = req.Size
	}
	if rec.Seconds == "" {
		rec.Seconds = req.Seconds
	}
	if rec.Status == "" {
		rec.Status = JobQueued
	}
	return rec
}
