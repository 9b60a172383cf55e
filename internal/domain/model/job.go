package model

import (
	"encoding/json"
	"time"
)

// JobKind selects the handler of a background job.
type JobKind string

// JobMediaIngest copies a task's media into object storage.
const JobMediaIngest JobKind = "media.ingest"

// Job is a unit of heavy asynchronous work carried by the durable queue.
// Delivery is at-least-once, so handlers must be idempotent.
type Job struct {
	ID          string          `json:"id"`
	Kind        JobKind         `json:"kind"`
	TaskID      string          `json:"task_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	NotBefore   time.Time       `json:"not_before,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// JobStatus is the bookkeeping state of a job in the idempotency ledger.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobRecord is the ledger entry for a job.
type JobRecord struct {
	ID        string
	Kind      JobKind
	TaskID    string
	Status    JobStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RetentionPolicy bounds how many finished job records are kept.
type RetentionPolicy struct {
	CompletedMaxAge   time.Duration
	CompletedMaxCount int
	FailedMaxAge      time.Duration
}

// MediaIngestPayload is the payload of a JobMediaIngest job.
type MediaIngestPayload struct {
	PlatformID string   `json:"platform_id"`
	MediaURLs  []string `json:"media_urls"`
}
