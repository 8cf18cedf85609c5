package domain

// QueueStats holds the aggregate per-status counts reported by the backend.
// The server is authoritative: the client always replaces the whole object
// with the latest snapshot or push event and never patches counts locally.
type QueueStats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled,omitempty"`
	Paused     int `json:"paused,omitempty"`
	Total      int `json:"total,omitempty"`
}
