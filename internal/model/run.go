package model

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// IngestRun is the audit record of one (source, time-window) execution.
// One row per attempt, regardless of outcome; never updated after finish.
type IngestRun struct {
	ID                int64      `json:"id" db:"id"`
	RunKey            string     `json:"run_key" db:"run_key"`
	Source            string     `json:"source" db:"source"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Status            RunStatus  `json:"status" db:"status"`
	RecordsFetched    int        `json:"records_fetched" db:"records_fetched"`
	RecordsNormalized int        `json:"records_normalized" db:"records_normalized"`
	Error             *string    `json:"error,omitempty" db:"error"`
}

// RawPayload is an audit capture of one raw connector response. It has no
// relational link to companies or events; it exists for traceability.
type RawPayload struct {
	ID         int64     `json:"id" db:"id"`
	Source     string    `json:"source" db:"source"`
	Payload    []byte    `json:"payload" db:"payload"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}
