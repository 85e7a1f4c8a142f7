package entity

import (
	"encoding/json"

	"github.com/google/uuid"
)

// JobState mirrors the states the dispatcher's result store reports.
// A FAILURE job is distinguishable from a SUCCESS job whose extraction
// found nothing: callers must check the state, not the result fields.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobStarted JobState = "STARTED"
	JobSuccess JobState = "SUCCESS"
	JobFailure JobState = "FAILURE"
)

// Job is one unit of asynchronous work: process one document's file.
// It lives in the dispatcher's key-value store, not in Postgres.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	DocumentID uuid.UUID       `json:"document_id"`
	FilePath   string          `json:"file_path"`
	State      JobState        `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}
