package models

import (
	"time"

	"carboncast/pkg/domain"
)

// JobStatus is the lifecycle of a retrain job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the job reached a terminal status.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed
}

// RetrainJob tracks one asynchronous retrain. An empty Sectors list means
// every sector.
type RetrainJob struct {
	ID         string          `json:"id"`
	Sectors    []domain.Sector `json:"domains"`
	Status     JobStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// AllSectors reports whether the job retrains every sector.
func (j *RetrainJob) AllSectors() bool {
	return len(j.Sectors) == 0
}
