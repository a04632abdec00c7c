package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation categories.
type JobKind string

const (
	JobKindImage JobKind = "image"
	JobKindVideo JobKind = "video"
	JobKindAudio JobKind = "audio"
	JobKindText  JobKind = "text"
)

// KnownKind reports whether k is one of the supported generation categories.
func KnownKind(k JobKind) bool {
	switch k {
	case JobKindImage, JobKindVideo, JobKindAudio, JobKindText:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states. Both terminal states are
// absorbing: once a job leaves pending it never changes again.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one tracked unit of asynchronous provider work. RequestID is the
// provider-assigned correlation key and is unique across all jobs.
type Job struct {
	ID           string
	RequestID    string
	OwnerID      string
	ModelID      string
	Kind         JobKind
	Status       JobStatus
	Input        json.RawMessage
	Result       json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Terminal reports whether the job has reached an absorbing state.
func (j *Job) Terminal() bool {
	return j != nil && (j.Status == JobStatusCompleted || j.Status == JobStatusFailed)
}

// ProjectID extracts the optional project_id metadata field embedded in the
// submission input. Listing filters match on it.
func (j *Job) ProjectID() string {
	if j == nil || len(j.Input) == 0 {
		return ""
	}
	var meta struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(j.Input, &meta); err != nil {
		return ""
	}
	return meta.ProjectID
}

// Clone returns a deep copy so store implementations can hand out records
// without aliasing internal state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Input = append(json.RawMessage(nil), j.Input...)
	out.Result = append(json.RawMessage(nil), j.Result...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
