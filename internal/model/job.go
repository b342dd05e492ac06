package model

import "encoding/json"

// JobState is the lifecycle state reported by the remote service.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the remote job object. Raw holds the exact bytes received so that
// callers can be given the object verbatim.
type Job struct {
	ID                 string    `json:"id"`
	Object             string    `json:"object,omitempty"`
	Status             JobState  `json:"status"`
	Progress           int       `json:"progress"`
	Model              string    `json:"model,omitempty"`
	Seconds            string    `json:"seconds,omitempty"`
	Size               string    `json:"size,omitempty"`
	CreatedAt          int64     `json:"created_at,omitempty"`
	CompletedAt        *int64    `json:"completed_at,omitempty"`
	ExpiresAt          *int64    `json:"expires_at,omitempty"`
	RemixedFromVideoID string    `json:"remixed_from_video_id,omitempty"`
	Error              *JobError `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// JobError describes why a remote job failed.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResult is the caller-facing view of a single poll.
type StatusResult struct {
	State       JobState `json:"state"`
	Progress    int      `json:"progress"`
	ArtifactRef string   `json:"artifact_ref,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// Result collapses the job into the state the caller acts on.
func (j *Job) Result() StatusResult {
	res := StatusResult{State: j.Status}
	switch j.Status {
	case JobInProgress:
		res.Progress = clampProgress(j.Progress)
	case JobCompleted:
		res.Progress = 100
		res.ArtifactRef = j.ID
	case JobFailed:
		if j.Error != nil {
			res.Reason = j.Error.Message
		}
	}
	return res
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ReferenceImage is a read handle on a local image sent alongside a request.
type ReferenceImage struct {
	Path     string
	MIME     string
	Filename string
}

// GenerationRequest holds the caller inputs for one generation call.
type GenerationRequest struct {
	Prompt    string
	Reference *ReferenceImage
	Size      string
	Seconds   string
	Model     string
}
