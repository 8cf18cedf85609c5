package domain

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending       JobStatus = "pending"
	JobStatusInProgress    JobStatus = "in_progress"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusFailed        JobStatus = "failed"
	JobStatusInvestigating JobStatus = "investigating"
	JobStatusPaused        JobStatus = "paused"
	JobStatusCancelled     JobStatus = "cancelled"
)

// Terminal reports whether the status marks the end of a job's lifecycle.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one unit of work observed from the backend pipeline. The client
// never originates a Job; records are created on first observation and
// replaced in place on later observations of the same ID.
//
// Extra holds wire attributes this client does not model. They survive a
// marshal/unmarshal round trip so an update never drops fields the backend
// added after this client was built.
type Job struct {
	ID           int64     `json:"id"`
	Project      string    `json:"project"`
	SourceFile   string    `json:"source_file"`
	Status       JobStatus `json:"status"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	CurrentPhase string    `json:"current_phase,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownJobFields = []string{
	"id", "project", "source_file", "status", "priority", "created_at", "current_phase",
}

// jobWire mirrors Job's modeled fields for plain JSON (de)serialization.
type jobWire struct {
	ID           int64     `json:"id"`
	Project      string    `json:"project"`
	SourceFile   string    `json:"source_file"`
	Status       JobStatus `json:"status"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	CurrentPhase string    `json:"current_phase,omitempty"`
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var w jobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownJobFields {
		delete(raw, k)
	}

	j.ID = w.ID
	j.Project = w.Project
	j.SourceFile = w.SourceFile
	j.Status = w.Status
	j.Priority = w.Priority
	j.CreatedAt = w.CreatedAt
	j.CurrentPhase = w.CurrentPhase
	if len(raw) > 0 {
		j.Extra = raw
	} else {
		j.Extra = nil
	}
	return nil
}

func (j Job) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(jobWire{
		ID:           j.ID,
		Project:      j.Project,
		SourceFile:   j.SourceFile,
		Status:       j.Status,
		Priority:     j.Priority,
		CreatedAt:    j.CreatedAt,
		CurrentPhase: j.CurrentPhase,
	})
	if err != nil {
		return nil, err
	}
	if len(j.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(j.Extra)+len(knownJobFields))
	for k, v := range j.Extra {
		merged[k] = v
	}
	var modeled map[string]json.RawMessage
	if err := json.Unmarshal(known, &modeled); err != nil {
		return nil, err
	}
	for k, v := range modeled {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// JobPage is the wrapper returned by the backend's paginated job-list endpoint.
type JobPage struct {
	Jobs     []*Job `json:"jobs"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}
