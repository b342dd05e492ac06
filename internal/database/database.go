package database

import (
	"errors"

	"github.com/leca/dt-video-gen/internal/model"
)

// ErrNotFound is returned when a job is not in the ledger.
var ErrNotFound = errors.New("job not found")

// Database defines the persistence interface for the job ledger.
type Database interface {
	RecordJob(rec *model.JobRecord) error
	UpdateJobStatus(id string, status model.JobState, progress int) error
	MarkArchived(id, key string) error
	GetJob(id string) (*model.JobRecord, error)
	ListJobs(page, perPage int) ([]*model.JobRecord, int, error)

	Close() error
}
