package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an enrichment job.
//
//	PENDING -> RUNNING -> {COMPLETED, FAILED}
//
// CANCELLED is reachable out-of-band from PENDING or RUNNING. COMPLETED,
// FAILED and CANCELLED are terminal.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Valid reports whether s is a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state diagram permits moving from s
// to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobCancelled
	case JobRunning:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	}
	return false
}

// EnrichmentJob is one request to apply an enrichment version to one
// dataset's input. It references its enrichment and version by identifier
// only; the reference is resolved through the catalog at update time.
type EnrichmentJob struct {
	JobID             string         `json:"job_id"`
	DatasetID         string         `json:"dataset_id"`
	EnrichmentName    string         `json:"enrichment_name"`
	EnrichmentVersion string         `json:"enrichment_version"`
	Status            JobStatus      `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	InputData         map[string]any `json:"input_data"`
	Result            map[string]any `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	Metadata          map[string]any `json:"metadata"`
}

// NewJob creates a job in PENDING with a fresh globally unique id. Input
// validation happens before this is called; invalid input never produces a
// job record.
func NewJob(datasetID, enrichmentName, versionID string, input map[string]any) *EnrichmentJob {
	return &EnrichmentJob{
		JobID:             uuid.New().String(),
		DatasetID:         datasetID,
		EnrichmentName:    enrichmentName,
		EnrichmentVersion: versionID,
		Status:            JobPending,
		CreatedAt:         time.Now().UTC(),
		InputData:         input,
		Metadata:          map[string]any{},
	}
}

// Transition moves the job to next, enforcing the state diagram. Entering
// RUNNING stamps StartedAt; entering COMPLETED or FAILED stamps
// CompletedAt.
func (j *EnrichmentJob) Transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return &IllegalTransitionError{JobID: j.JobID, From: j.Status, To: next}
	}

	j.Status = next
	now := time.Now().UTC()
	switch next {
	case JobRunning:
		j.StartedAt = &now
	case JobCompleted, JobFailed:
		j.CompletedAt = &now
	}
	return nil
}

// Clone returns a copy sharing no mutable state with the receiver.
// Map values are replaced wholesale during updates, never mutated in
// place, so cloning one level deep is sufficient.
func (j *EnrichmentJob) Clone() *EnrichmentJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	c.InputData = maps.Clone(j.InputData)
	c.Result = maps.Clone(j.Result)
	c.Metadata = maps.Clone(j.Metadata)
	return &c
}

// RecordError stores a free-text error annotation. It does not force a
// FAILED transition; callers set status explicitly, which permits
// partial-failure notes on non-terminal jobs.
func (j *EnrichmentJob) RecordError(message string) {
	j.Error = message
}
