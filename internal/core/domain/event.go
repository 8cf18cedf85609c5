package domain

type EventType string

const (
	EventJobCreated   EventType = "job_created"
	EventJobUpdated   EventType = "job_updated"
	EventJobStarted   EventType = "job_started"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventStatsUpdated EventType = "stats_updated"
)

// Valid reports whether t belongs to the closed event taxonomy.
func (t EventType) Valid() bool {
	switch t {
	case EventJobCreated, EventJobUpdated, EventJobStarted,
		EventJobCompleted, EventJobFailed, EventStatsUpdated:
		return true
	}
	return false
}

// Event is one decoded push frame. Job and Stats are mutually exclusive:
// stats_updated carries Stats, every other type carries Job.
type Event struct {
	Type  EventType   `json:"type"`
	Job   *Job        `json:"job,omitempty"`
	Stats *QueueStats `json:"stats,omitempty"`
}
